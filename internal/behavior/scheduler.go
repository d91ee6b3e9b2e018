package behavior

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"minepilot.ai/internal/fault"
)

type StartOutcome string

const (
	Started        StartOutcome = "started"
	Updated        StartOutcome = "updated"
	AlreadyRunning StartOutcome = "already_running"
)

type StartResult struct {
	Outcome StartOutcome   `json:"outcome"`
	Message string         `json:"message"`
	Config  map[string]any `json:"config"`
	// Ignored names override keys that were unknown or had the wrong type.
	Ignored []string `json:"ignored,omitempty"`
}

// Status is one row of List.
type Status struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Interval    time.Duration  `json:"-"`
	IntervalMS  int64          `json:"interval_ms"`
	Running     bool           `json:"running"`
	Config      map[string]any `json:"config"`
	Ticks       int64          `json:"ticks"`
	Failures    int64          `json:"failures"`
	Skipped     int64          `json:"skipped"`
	LastError   string         `json:"last_error,omitempty"`
	LastTickAt  *time.Time     `json:"last_tick_at,omitempty"`
}

// run is the mutable state of one started behavior. It outlives Stop so
// List can still show the last configuration.
type run struct {
	def Definition
	cfg configValue
	log *slog.Logger

	// enabled is read by firing timers without the scheduler lock.
	enabled atomic.Bool
	// entry and desired are guarded by Scheduler.mu. entry is zero when no
	// timer exists. desired survives Shutdown so Resume can restart the run.
	entry   cron.EntryID
	desired bool

	ticks    atomic.Int64
	failures atomic.Int64
	skipped  atomic.Int64

	mu         sync.Mutex
	lastErr    string
	lastTickAt time.Time
}

// Scheduler runs each started behavior on its own interval timer.
//
// Timers fire without waiting for the previous tick of the same behavior to
// return. A tick that blocks longer than its interval (waiting on navigation,
// for instance) overlaps with the next one, and ticks of different behaviors
// interleave freely with each other and with one-shot actions. Nothing
// arbitrates the movement goal or the held item between them: the last
// command issued wins.
type Scheduler struct {
	reg  *Registry
	env  Env
	log  *slog.Logger
	cron *cron.Cron

	store     RunStore
	observers []Observer
	resume    bool

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	runs map[string]*run
}

type Option func(*Scheduler)

func WithStore(store RunStore) Option {
	return func(s *Scheduler) { s.store = store }
}

func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithResumeOnConnect restarts behaviors that were running when the last
// session ended as soon as a new session spawns.
func WithResumeOnConnect(on bool) Option {
	return func(s *Scheduler) { s.resume = on }
}

// NewScheduler wires the scheduler to the session: every session end shuts
// all behaviors down.
func NewScheduler(reg *Registry, env Env, opts ...Option) *Scheduler {
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		reg:    reg,
		env:    env,
		log:    env.Logger.With("component", "scheduler"),
		ctx:    ctx,
		cancel: cancel,
		runs:   map[string]*run{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(cron.WithLogger(cronLogger{s.log}))
	s.cron.Start()

	if env.Session != nil {
		env.Session.OnDisconnect(func(reason string) {
			if n := s.Shutdown(); n > 0 {
				s.log.Info("session ended, behaviors stopped", "reason", reason, "stopped", n)
			}
		})
		if s.resume {
			env.Session.OnConnect(func(ctx context.Context) { s.Resume() })
		}
	}
	return s
}

// Start enables name. A running behavior is never given a second timer:
// overrides patch its config in place, and no overrides is a no-op.
func (s *Scheduler) Start(name string, overrides map[string]any) (StartResult, error) {
	def, ok := s.reg.Get(name)
	if !ok {
		return StartResult{}, fault.UnknownBehavior(name, s.reg.Names())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.runs[name]
	if r != nil && r.entry != 0 {
		if len(overrides) == 0 {
			return StartResult{
				Outcome: AlreadyRunning,
				Message: fmt.Sprintf("%s is already running", name),
				Config:  r.cfg.snapshot(),
			}, nil
		}
		ignored := s.patch(r, overrides)
		s.persist(r)
		return StartResult{
			Outcome: Updated,
			Message: fmt.Sprintf("%s is already running, config updated", name),
			Config:  r.cfg.snapshot(),
			Ignored: ignored,
		}, nil
	}

	if r == nil {
		cfg, err := def.newConfig()
		if err != nil {
			return StartResult{}, fmt.Errorf("start %s: %w", name, err)
		}
		r = &run{def: def, cfg: cfg, log: s.env.Logger.With("behavior", name)}
		s.runs[name] = r
	}
	ignored := s.patch(r, overrides)
	s.arm(r)
	r.desired = true
	s.persist(r)

	s.log.Info("behavior started", "behavior", name, "interval", def.Interval)
	return StartResult{
		Outcome: Started,
		Message: fmt.Sprintf("Started %s (every %s)", name, def.Interval),
		Config:  r.cfg.snapshot(),
		Ignored: ignored,
	}, nil
}

// Stop cancels the timer of name. A tick already in flight runs to its end.
func (s *Scheduler) Stop(name string) (string, error) {
	if _, ok := s.reg.Get(name); !ok {
		return "", fault.UnknownBehavior(name, s.reg.Names())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.runs[name]
	if r == nil || r.entry == 0 {
		if r != nil && r.desired {
			r.desired = false
			s.persist(r)
		}
		return fmt.Sprintf("%s is not running", name), nil
	}
	s.disarm(r)
	r.desired = false
	s.persist(r)
	s.log.Info("behavior stopped", "behavior", name)
	return fmt.Sprintf("Stopped %s", name), nil
}

// StopAll stops every running behavior and returns their names, sorted.
func (s *Scheduler) StopAll() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	stopped := []string{}
	for name, r := range s.runs {
		if r.entry == 0 {
			if r.desired {
				r.desired = false
				s.persist(r)
			}
			continue
		}
		s.disarm(r)
		r.desired = false
		s.persist(r)
		stopped = append(stopped, name)
	}
	sort.Strings(stopped)
	if len(stopped) > 0 {
		s.log.Info("all behaviors stopped", "stopped", stopped)
	}
	return stopped
}

// Shutdown disarms every timer and reports how many were running. Unlike
// StopAll it remembers which behaviors were running for Resume. It is safe
// to call at any time, including when nothing runs.
func (s *Scheduler) Shutdown() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.runs {
		if r.entry == 0 {
			continue
		}
		s.disarm(r)
		n++
	}
	return n
}

// Resume re-arms behaviors that Shutdown disarmed.
func (s *Scheduler) Resume() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	resumed := []string{}
	for name, r := range s.runs {
		if !r.desired || r.entry != 0 {
			continue
		}
		s.arm(r)
		resumed = append(resumed, name)
	}
	sort.Strings(resumed)
	if len(resumed) > 0 {
		s.log.Info("behaviors resumed", "behaviors", resumed)
	}
	return resumed
}

// Restore loads persisted run states. Behaviors that were enabled are
// marked for Resume but not armed; unknown names are skipped.
func (s *Scheduler) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	recs, err := s.store.LoadRuns(ctx)
	if err != nil {
		return fmt.Errorf("restore behaviors: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		def, ok := s.reg.Get(rec.Name)
		if !ok {
			s.log.Warn("skipping stored run of unknown behavior", "behavior", rec.Name)
			continue
		}
		if r := s.runs[rec.Name]; r != nil && r.entry != 0 {
			continue
		}
		cfg, err := def.newConfig()
		if err != nil {
			return fmt.Errorf("restore %s: %w", rec.Name, err)
		}
		r := &run{def: def, cfg: cfg, log: s.env.Logger.With("behavior", rec.Name), desired: rec.Enabled}
		if len(rec.Config) > 0 {
			var stored map[string]any
			if err := json.Unmarshal(rec.Config, &stored); err != nil {
				s.log.Warn("stored config unreadable, using defaults", "behavior", rec.Name, "err", err)
			} else if ignored := cfg.patch(stored); len(ignored) > 0 {
				s.log.Warn("stored config keys ignored", "behavior", rec.Name, "keys", ignored)
			}
		}
		s.runs[rec.Name] = r
	}
	return nil
}

// List reports every registered behavior, running or not, in registry order.
func (s *Scheduler) List() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.reg.defs))
	for _, def := range s.reg.defs {
		st := Status{
			Name:        def.Name,
			Description: def.Description,
			Interval:    def.Interval,
			IntervalMS:  def.Interval.Milliseconds(),
		}
		r := s.runs[def.Name]
		if r == nil {
			st.Config = def.Defaults()
			out = append(out, st)
			continue
		}
		st.Running = r.entry != 0
		st.Config = r.cfg.snapshot()
		st.Ticks = r.ticks.Load()
		st.Failures = r.failures.Load()
		st.Skipped = r.skipped.Load()
		r.mu.Lock()
		st.LastError = r.lastErr
		if !r.lastTickAt.IsZero() {
			at := r.lastTickAt
			st.LastTickAt = &at
		}
		r.mu.Unlock()
		out = append(out, st)
	}
	return out
}

// Running counts armed behaviors.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.runs {
		if r.entry != 0 {
			n++
		}
	}
	return n
}

func (s *Scheduler) Registry() *Registry { return s.reg }

// Close disarms everything and waits for in-flight ticks up to ctx.
func (s *Scheduler) Close(ctx context.Context) error {
	s.Shutdown()
	stopped := s.cron.Stop()
	s.cancel()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) patch(r *run, overrides map[string]any) []string {
	if len(overrides) == 0 {
		return nil
	}
	ignored := r.cfg.patch(overrides)
	if len(ignored) > 0 {
		s.log.Warn("config overrides ignored", "behavior", r.def.Name, "keys", ignored)
	}
	return ignored
}

// arm and disarm must be called with s.mu held.
func (s *Scheduler) arm(r *run) {
	r.enabled.Store(true)
	r.entry = s.cron.Schedule(every(r.def.Interval), cron.FuncJob(func() { s.fire(r) }))
}

func (s *Scheduler) disarm(r *run) {
	r.enabled.Store(false)
	s.cron.Remove(r.entry)
	r.entry = 0
}

func (s *Scheduler) persist(r *run) {
	if s.store == nil {
		return
	}
	raw, err := r.cfg.marshal()
	if err != nil {
		s.log.Warn("encode run state", "behavior", r.def.Name, "err", err)
		return
	}
	rec := RunRecord{Name: r.def.Name, Enabled: r.desired, Config: raw, UpdatedAt: time.Now().UTC()}
	if err := s.store.SaveRun(s.ctx, rec); err != nil {
		s.log.Warn("save run state", "behavior", r.def.Name, "err", err)
	}
}

// fire is one timer firing. It re-checks enabled and the session because
// either may have changed since the timer was armed; a skipped firing is
// not an error and the timer keeps going.
func (s *Scheduler) fire(r *run) {
	if !r.enabled.Load() || s.env.Session == nil || !s.env.Session.Connected() {
		r.skipped.Add(1)
		return
	}
	start := time.Now()
	err := s.tick(r)
	took := time.Since(start)

	r.ticks.Add(1)
	r.mu.Lock()
	r.lastTickAt = start
	if err != nil {
		r.lastErr = err.Error()
	}
	r.mu.Unlock()
	if err != nil {
		r.failures.Add(1)
		r.log.Warn("tick failed", "err", err, "code", fault.CodeOf(err), "took", took)
	}
	for _, o := range s.observers {
		o.ObserveTick(r.def.Name, took, err)
	}
}

func (s *Scheduler) tick(r *run) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tick panicked: %v", p)
		}
	}()
	env := s.env
	env.Logger = r.log
	return r.def.tick(s.ctx, env, r.cfg)
}

// every is a fixed-interval cron schedule. cron.Every rounds to whole
// seconds, which is too coarse for the guard cadence.
type every time.Duration

func (e every) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

type cronLogger struct{ log *slog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append([]any{"err", err}, keysAndValues...)...)
}
