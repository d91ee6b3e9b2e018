// Package session owns the single live world connection and exposes the
// avatar primitives every other layer builds on.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"minepilot.ai/internal/fault"
	"minepilot.ai/internal/world"
)

const defaultSpawnTimeout = 30 * time.Second

type Options struct {
	world.DialOptions
	SpawnTimeout time.Duration
	Movement     world.MovementOptions
}

// ConnectHook runs after the avatar has spawned.
type ConnectHook func(ctx context.Context)

// DisconnectHook runs when the session ends, solicited or not, before the
// connection is closed.
type DisconnectHook func(reason string)

type connectAttempt struct {
	done  chan struct{}
	state State
	err   error
}

// Handle is the process-wide session. At most one world.Conn is live at a
// time; Connect while connected never dials again.
type Handle struct {
	dialer world.Dialer
	log    *slog.Logger

	mu          sync.RWMutex
	status      Status
	conn        world.Conn
	epoch       uint64
	opts        Options
	connectedAt time.Time
	pending     *connectAttempt

	subMu   sync.Mutex
	subs    map[int]*subscriber
	nextSub int

	hookMu       sync.Mutex
	onConnect    []ConnectHook
	onDisconnect []DisconnectHook
}

func New(dialer world.Dialer, logger *slog.Logger) *Handle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handle{
		dialer: dialer,
		log:    logger.With("component", "session"),
		status: StatusDisconnected,
		subs:   map[int]*subscriber{},
	}
}

func (h *Handle) OnConnect(fn ConnectHook) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	h.onConnect = append(h.onConnect, fn)
}

func (h *Handle) OnDisconnect(fn DisconnectHook) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	h.onDisconnect = append(h.onDisconnect, fn)
}

func (h *Handle) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

func (h *Handle) Connected() bool {
	return h.Status() == StatusConnected
}

// Connect opens the session and resolves once the avatar has spawned.
// While connected it returns the current snapshot without side effects;
// while a handshake is in flight it waits for that handshake instead.
func (h *Handle) Connect(ctx context.Context, opts Options) (State, error) {
	h.mu.Lock()
	switch h.status {
	case StatusConnected:
		h.mu.Unlock()
		return h.Snapshot(), nil
	case StatusConnecting:
		p := h.pending
		h.mu.Unlock()
		select {
		case <-p.done:
			return p.state, p.err
		case <-ctx.Done():
			return h.Snapshot(), ctx.Err()
		}
	}
	p := &connectAttempt{done: make(chan struct{})}
	h.pending = p
	h.status = StatusConnecting
	h.mu.Unlock()

	p.state, p.err = h.handshake(ctx, opts)
	close(p.done)
	return p.state, p.err
}

func (h *Handle) handshake(ctx context.Context, opts Options) (State, error) {
	if opts.SpawnTimeout <= 0 {
		opts.SpawnTimeout = defaultSpawnTimeout
	}
	log := h.log.With("host", opts.Host, "port", opts.Port, "username", opts.Username)
	log.Info("connecting")

	conn, err := h.dialer.Dial(ctx, opts.DialOptions)
	if err != nil {
		h.abortConnect()
		log.Warn("dial failed", "err", err)
		return disconnectedState(StatusDisconnected), fmt.Errorf("connect: %w", err)
	}

	if err := waitSpawn(ctx, conn, opts.SpawnTimeout); err != nil {
		_ = conn.Close()
		h.abortConnect()
		log.Warn("handshake failed", "err", err)
		return disconnectedState(StatusDisconnected), fmt.Errorf("connect: %w", err)
	}

	h.mu.Lock()
	h.epoch++
	epoch := h.epoch
	h.conn = conn
	h.opts = opts
	h.status = StatusConnected
	h.connectedAt = time.Now()
	h.pending = nil
	h.mu.Unlock()

	if err := conn.SetMovements(ctx, opts.Movement); err != nil {
		log.Warn("apply movement defaults", "err", err)
	}
	go h.pump(conn, epoch)

	h.hookMu.Lock()
	hooks := append([]ConnectHook(nil), h.onConnect...)
	h.hookMu.Unlock()
	for _, fn := range hooks {
		fn(ctx)
	}

	st := h.Snapshot()
	log.Info("spawned", "position", st.Position, "game_mode", st.GameMode)
	return st, nil
}

func (h *Handle) abortConnect() {
	h.mu.Lock()
	h.status = StatusDisconnected
	h.pending = nil
	h.mu.Unlock()
}

func waitSpawn(ctx context.Context, conn world.Conn, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	events := conn.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("timed out after %s waiting for spawn", timeout)
		case ev, ok := <-events:
			if !ok {
				return errors.New("connection closed before spawn")
			}
			switch ev.Kind {
			case world.EventSpawned:
				return nil
			case world.EventError:
				return fmt.Errorf("handshake error: %s", ev.Reason)
			case world.EventEnded, world.EventKicked:
				return fmt.Errorf("session %s before spawn: %s", ev.Kind, ev.Reason)
			}
		}
	}
}

// pump forwards world events to subscribers until the connection goes away.
func (h *Handle) pump(conn world.Conn, epoch uint64) {
	for ev := range conn.Events() {
		if ev.Terminal() {
			h.teardown(epoch, ev)
			return
		}
		h.publish(ev)
	}
	h.teardown(epoch, world.Event{Kind: world.EventEnded, Reason: "connection closed"})
}

// Disconnect ends the session. It never fails; on an already disconnected
// handle it leaves everything untouched.
func (h *Handle) Disconnect(ctx context.Context) string {
	h.mu.RLock()
	conn, epoch := h.conn, h.epoch
	h.mu.RUnlock()
	if conn == nil {
		return "Not connected"
	}
	if !h.teardown(epoch, world.Event{Kind: world.EventEnded, Reason: "disconnect requested"}) {
		return "Not connected"
	}
	return "Disconnected"
}

// teardown is the single exit path for a connection. It returns false when
// that connection was already torn down.
func (h *Handle) teardown(epoch uint64, ev world.Event) bool {
	h.mu.Lock()
	if h.conn == nil || h.epoch != epoch {
		h.mu.Unlock()
		return false
	}
	conn := h.conn
	h.conn = nil
	h.status = StatusDisconnected
	h.connectedAt = time.Time{}
	h.mu.Unlock()

	h.log.Info("session ended", "kind", ev.Kind, "reason", ev.Reason)
	h.publish(ev)

	h.hookMu.Lock()
	hooks := append([]DisconnectHook(nil), h.onDisconnect...)
	h.hookMu.Unlock()
	for _, fn := range hooks {
		fn(ev.Reason)
	}

	if err := conn.Close(); err != nil {
		h.log.Debug("close connection", "err", err)
	}
	return true
}

// Snapshot never fails; with no session it returns a zeroed record.
func (h *Handle) Snapshot() State {
	h.mu.RLock()
	conn, status, at := h.conn, h.status, h.connectedAt
	h.mu.RUnlock()
	if conn == nil || status != StatusConnected {
		return disconnectedState(status)
	}
	return stateFromTelemetry(conn.Telemetry(), at)
}

func (h *Handle) current() (world.Conn, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.conn == nil || h.status != StatusConnected {
		return nil, fault.ErrNotConnected
	}
	return h.conn, nil
}

// Position is the avatar's current position.
func (h *Handle) Position() (world.Vec3, error) {
	c, err := h.current()
	if err != nil {
		return world.Vec3{}, err
	}
	t := c.Telemetry()
	if t.Position == nil {
		return world.Vec3{}, fault.ErrNotConnected
	}
	return *t.Position, nil
}
