// Package wsclient implements world.Dialer against a game gateway speaking
// the protocol package's JSON messages over a websocket.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"minepilot.ai/internal/fault"
	"minepilot.ai/internal/protocol"
	"minepilot.ai/internal/world"
)

type Config struct {
	// URL of the gateway, e.g. ws://127.0.0.1:8765/v1/session.
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	CommandTimeout   time.Duration
	WriteTimeout     time.Duration
	// ReadTimeout bounds silence from the gateway; zero disables it.
	ReadTimeout time.Duration
	// Validate checks every inbound message against its schema and drops
	// the ones that do not conform.
	Validate bool
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 5 * time.Second
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

type Dialer struct {
	cfg Config
	log *slog.Logger
}

func NewDialer(cfg Config, logger *slog.Logger) (*Dialer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("gateway url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("gateway url: scheme must be ws or wss, got %q", u.Scheme)
	}
	return &Dialer{cfg: cfg.withDefaults(), log: logger.With("component", "wsclient")}, nil
}

// Dial opens the websocket and sends HELLO. Spawn (or failure) is reported
// later on the Conn's event stream.
func (d *Dialer) Dial(ctx context.Context, opts world.DialOptions) (world.Conn, error) {
	wd := websocket.Dialer{HandshakeTimeout: d.cfg.HandshakeTimeout}
	ws, resp, err := wd.DialContext(ctx, d.cfg.URL, d.cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c := &Conn{
		cfg:     d.cfg,
		log:     d.log.With("username", opts.Username),
		ws:      ws,
		events:  make(chan world.Event, 64),
		pending: map[string]chan protocol.ResultMsg{},
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Username:        opts.Username,
		Host:            opts.Host,
		Port:            opts.Port,
		GameVersion:     opts.Version,
		ResumeToken:     strings.TrimSpace(opts.ResumeToken),
	}
	if err := c.write(hello); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("send hello: %w", err)
	}
	go c.readLoop()
	return c, nil
}

// Conn is one gateway session.
type Conn struct {
	cfg Config
	log *slog.Logger

	ws      *websocket.Conn
	writeMu sync.Mutex

	mu        sync.RWMutex
	telemetry world.Telemetry
	welcome   protocol.WelcomeMsg

	pendingMu sync.Mutex
	pending   map[string]chan protocol.ResultMsg

	events    chan world.Event
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (c *Conn) Events() <-chan world.Event { return c.events }

func (c *Conn) Telemetry() world.Telemetry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t := c.telemetry
	if t.Position != nil {
		p := *t.Position
		t.Position = &p
	}
	return t
}

// ResumeToken is the token the gateway handed out in WELCOME.
func (c *Conn) ResumeToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.welcome.ResumeToken
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
		_ = c.ws.Close()
	})
	<-c.done
	return nil
}

func (c *Conn) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.ws.WriteJSON(v)
}

func (c *Conn) emit(ev world.Event) {
	select {
	case c.events <- ev:
	case <-c.stop:
	}
}

func (c *Conn) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		if c.cfg.ReadTimeout > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		}
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.stop:
			default:
				reason := err.Error()
				var ce *websocket.CloseError
				if errors.As(err, &ce) && ce.Text != "" {
					reason = ce.Text
				}
				c.emit(world.Event{Kind: world.EventEnded, Reason: reason})
			}
			return
		}
		if c.cfg.Validate {
			if err := protocol.Validate(msg); err != nil {
				c.log.Warn("dropping invalid gateway message", "err", err)
				continue
			}
		}
		if terminal := c.handle(msg); terminal {
			return
		}
	}
}

// handle routes one inbound message and reports whether it ended the session.
func (c *Conn) handle(msg []byte) bool {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		c.log.Debug("undecodable gateway message", "err", err)
		return false
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return false
		}
		if !protocol.IsSupportedVersion(w.ProtocolVersion) {
			c.emit(world.Event{Kind: world.EventError, Reason: fmt.Sprintf("unsupported protocol version %q", w.ProtocolVersion)})
			return false
		}
		c.mu.Lock()
		c.welcome = w
		c.mu.Unlock()
		c.log.Info("gateway welcome", "session_id", w.SessionID, "game_version", w.GameVersion)

	case protocol.TypeState:
		var s protocol.StateMsg
		if err := json.Unmarshal(msg, &s); err != nil {
			return false
		}
		c.mu.Lock()
		c.telemetry = s.Telemetry
		c.mu.Unlock()

	case protocol.TypeEvent:
		var e protocol.EventMsg
		if err := json.Unmarshal(msg, &e); err != nil {
			return false
		}
		ev := e.Event()
		c.emit(ev)
		return ev.Terminal()

	case protocol.TypeResult:
		var r protocol.ResultMsg
		if err := json.Unmarshal(msg, &r); err != nil {
			return false
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[r.ReqID]
		delete(c.pending, r.ReqID)
		c.pendingMu.Unlock()
		if ok {
			ch <- r
		} else {
			c.log.Debug("result for unknown request", "req_id", r.ReqID)
		}
	}
	return false
}

// command sends a CMD and waits for its RESULT. out may be nil.
func (c *Conn) command(ctx context.Context, op string, args any, out any) error {
	select {
	case <-c.done:
		return fault.ErrNotConnected
	default:
	}

	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("%s: encode args: %w", op, err)
		}
		raw = b
	}
	id := uuid.NewString()
	ch := make(chan protocol.ResultMsg, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.write(protocol.CmdMsg{Type: protocol.TypeCmd, ReqID: id, Op: op, Args: raw}); err != nil {
		return fault.New(fault.CodeNotConnected, "%s: %v", op, err)
	}

	timer := time.NewTimer(c.cfg.CommandTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%s: no result after %s", op, c.cfg.CommandTimeout)
	case <-c.done:
		return fault.ErrNotConnected
	case r := <-ch:
		if !r.OK {
			return protocol.ResultError(r)
		}
		if out != nil && len(r.Data) > 0 {
			if err := json.Unmarshal(r.Data, out); err != nil {
				return fmt.Errorf("%s: decode result: %w", op, err)
			}
		}
		return nil
	}
}
