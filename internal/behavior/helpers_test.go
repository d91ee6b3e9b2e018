package behavior

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"minepilot.ai/internal/actions"
	"minepilot.ai/internal/session"
	"minepilot.ai/internal/world"
	"minepilot.ai/internal/world/worldtest"
)

var connectOptions = session.Options{
	DialOptions:  world.DialOptions{Host: "localhost", Port: 25565, Username: "pilot"},
	SpawnTimeout: time.Second,
}

func newEnv(t *testing.T) (Env, *worldtest.World) {
	t.Helper()
	w := worldtest.New()
	w.AutoArrive = true
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := session.New(worldtest.NewDialer(w), logger)
	_, err := h.Connect(context.Background(), connectOptions)
	require.NoError(t, err)
	t.Cleanup(func() { h.Disconnect(context.Background()) })
	return Env{Session: h, Actions: actions.New(h, actions.Config{}, logger), Logger: logger}, w
}

func newScheduler(t *testing.T, reg *Registry, env Env, opts ...Option) *Scheduler {
	t.Helper()
	s := NewScheduler(reg, env, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s
}

func statusOf(t *testing.T, s *Scheduler, name string) Status {
	t.Helper()
	for _, st := range s.List() {
		if st.Name == name {
			return st
		}
	}
	t.Fatalf("behavior %s not listed", name)
	return Status{}
}

type memStore struct {
	mu   sync.Mutex
	runs map[string]RunRecord
	fail bool
}

func newMemStore() *memStore { return &memStore{runs: map[string]RunRecord{}} }

func (m *memStore) SaveRun(ctx context.Context, rec RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	m.runs[rec.Name] = rec
	return nil
}

func (m *memStore) LoadRuns(ctx context.Context) ([]RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RunRecord, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) get(name string) (RunRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[name]
	return r, ok
}

type tickCounter struct {
	mu    sync.Mutex
	ticks map[string]int
	errs  map[string]int
}

func (c *tickCounter) ObserveTick(name string, took time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticks == nil {
		c.ticks, c.errs = map[string]int{}, map[string]int{}
	}
	c.ticks[name]++
	if err != nil {
		c.errs[name]++
	}
}

func (c *tickCounter) count(name string) (ticks, errs int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks[name], c.errs[name]
}
