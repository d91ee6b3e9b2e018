package wsclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minepilot.ai/internal/fault"
	"minepilot.ai/internal/protocol"
	"minepilot.ai/internal/session"
	"minepilot.ai/internal/world"
)

// fakeGateway accepts one session at a time and answers commands with reply.
type fakeGateway struct {
	srv     *httptest.Server
	version string
	// preamble is sent after WELCOME, before the spawn event.
	preamble []any
	reply    func(cmd protocol.CmdMsg) *protocol.ResultMsg

	mu     sync.Mutex
	conn   *websocket.Conn
	hellos []protocol.HelloMsg
	cmds   []protocol.CmdMsg
}

func newGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{version: protocol.Version}
	g.reply = func(cmd protocol.CmdMsg) *protocol.ResultMsg {
		return &protocol.ResultMsg{Type: protocol.TypeResult, ReqID: cmd.ReqID, OK: true}
	}
	up := websocket.Upgrader{}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		var hello protocol.HelloMsg
		if err := ws.ReadJSON(&hello); err != nil {
			return
		}
		g.mu.Lock()
		g.conn = ws
		g.hellos = append(g.hellos, hello)
		preamble := g.preamble
		g.mu.Unlock()

		g.send(protocol.WelcomeMsg{Type: protocol.TypeWelcome, ProtocolVersion: g.version, SessionID: "s-1", ResumeToken: "rt-1"})
		pos := world.V(5, 70, -2)
		g.send(protocol.StateMsg{Type: protocol.TypeState, Telemetry: world.Telemetry{
			Username: hello.Username, Health: 20, Food: 17, Position: &pos,
			Dimension: "overworld", GameMode: "survival", TimeOfDay: 6000, Weather: "rain",
		}})
		for _, m := range preamble {
			g.send(m)
		}
		g.send(protocol.EventMsg{Type: protocol.TypeEvent, Kind: world.EventSpawned})

		for {
			var cmd protocol.CmdMsg
			if err := ws.ReadJSON(&cmd); err != nil {
				return
			}
			g.mu.Lock()
			g.cmds = append(g.cmds, cmd)
			g.mu.Unlock()
			if res := g.reply(cmd); res != nil {
				g.send(res)
			}
		}
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGateway) url() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http")
}

func (g *fakeGateway) send(v any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != nil {
		_ = g.conn.WriteJSON(v)
	}
}

func (g *fakeGateway) commands() []protocol.CmdMsg {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]protocol.CmdMsg(nil), g.cmds...)
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func dial(t *testing.T, g *fakeGateway, cfg Config) *Conn {
	t.Helper()
	cfg.URL = g.url()
	d, err := NewDialer(cfg, quiet())
	require.NoError(t, err)
	c, err := d.Dial(context.Background(), world.DialOptions{Host: "mc.local", Port: 25565, Username: "pilot", ResumeToken: "old"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c.(*Conn)
}

func nextEvent(t *testing.T, c *Conn) world.Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event from gateway")
		return world.Event{}
	}
}

func TestDialHandshake(t *testing.T) {
	g := newGateway(t)
	c := dial(t, g, Config{})

	assert.Equal(t, world.EventSpawned, nextEvent(t, c).Kind)
	tm := c.Telemetry()
	assert.Equal(t, float64(17), tm.Food)
	require.NotNil(t, tm.Position)
	assert.Equal(t, world.V(5, 70, -2), *tm.Position)
	assert.Equal(t, "rt-1", c.ResumeToken())

	g.mu.Lock()
	hello := g.hellos[0]
	g.mu.Unlock()
	assert.Equal(t, "pilot", hello.Username)
	assert.Equal(t, "mc.local", hello.Host)
	assert.Equal(t, "old", hello.ResumeToken)
	assert.Equal(t, protocol.Version, hello.ProtocolVersion)
}

func TestCommandsRoundTrip(t *testing.T) {
	g := newGateway(t)
	g.reply = func(cmd protocol.CmdMsg) *protocol.ResultMsg {
		res := &protocol.ResultMsg{Type: protocol.TypeResult, ReqID: cmd.ReqID, OK: true}
		switch cmd.Op {
		case protocol.OpEntities:
			res.Data = json.RawMessage(`[{"id":4,"name":"zombie","type":"hostile","position":{"x":1,"y":64,"z":2}}]`)
		case protocol.OpBlockAt:
			res.Data = json.RawMessage(`{"loaded":true,"block":{"name":"stone","position":[1,63,2],"diggable":true}}`)
		case protocol.OpDig:
			res.OK = false
			res.Code = fault.CodeTargetUnavailable
			res.Message = "block at (1, 63, 2) is air"
		}
		return res
	}
	c := dial(t, g, Config{})
	nextEvent(t, c)
	ctx := context.Background()

	require.NoError(t, c.Chat(ctx, "hello"))
	ents, err := c.Entities(ctx)
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, "zombie", ents[0].Name)

	b, loaded, err := c.BlockAt(ctx, world.V(1, 63, 2))
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "stone", b.Name)
	assert.Equal(t, world.V(1, 63, 2), b.Position)

	err = c.Dig(ctx, world.V(1, 63, 2))
	assert.ErrorIs(t, err, fault.ErrTargetUnavailable)
	assert.Equal(t, "block at (1, 63, 2) is air", err.Error())

	cmds := g.commands()
	require.Len(t, cmds, 4)
	assert.Equal(t, protocol.OpChat, cmds[0].Op)
	assert.JSONEq(t, `{"message":"hello"}`, string(cmds[0].Args))
	assert.NotEqual(t, cmds[0].ReqID, cmds[1].ReqID)
}

func TestCommandTimeout(t *testing.T) {
	g := newGateway(t)
	g.reply = func(cmd protocol.CmdMsg) *protocol.ResultMsg { return nil }
	c := dial(t, g, Config{CommandTimeout: 50 * time.Millisecond})
	nextEvent(t, c)

	err := c.StopNavigation(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no result")
}

func TestKickEndsStream(t *testing.T) {
	g := newGateway(t)
	c := dial(t, g, Config{})
	nextEvent(t, c)

	g.send(protocol.EventMsg{Type: protocol.TypeEvent, Kind: world.EventKicked, Reason: "banned"})
	ev := nextEvent(t, c)
	assert.Equal(t, world.EventKicked, ev.Kind)
	assert.Equal(t, "banned", ev.Reason)

	select {
	case _, ok := <-c.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("event stream not closed after kick")
	}
	assert.ErrorIs(t, c.Chat(context.Background(), "still there?"), fault.ErrNotConnected)
}

func TestGatewayDropEmitsEnded(t *testing.T) {
	g := newGateway(t)
	c := dial(t, g, Config{})
	nextEvent(t, c)

	g.mu.Lock()
	_ = g.conn.Close()
	g.mu.Unlock()
	assert.Equal(t, world.EventEnded, nextEvent(t, c).Kind)
}

func TestUnsupportedVersionReportsError(t *testing.T) {
	g := newGateway(t)
	g.version = "0.1"
	c := dial(t, g, Config{})

	ev := nextEvent(t, c)
	assert.Equal(t, world.EventError, ev.Kind)
	assert.Contains(t, ev.Reason, "unsupported protocol version")
}

func TestValidateDropsMalformedMessages(t *testing.T) {
	g := newGateway(t)
	g.preamble = []any{map[string]any{"type": "EVENT", "kind": "teleported"}}
	c := dial(t, g, Config{Validate: true})

	assert.Equal(t, world.EventSpawned, nextEvent(t, c).Kind)
}

func TestNewDialerRejectsHTTP(t *testing.T) {
	_, err := NewDialer(Config{URL: "http://localhost:8765"}, nil)
	assert.ErrorContains(t, err, "scheme")
}

func TestSessionOverGateway(t *testing.T) {
	g := newGateway(t)
	d, err := NewDialer(Config{URL: g.url()}, quiet())
	require.NoError(t, err)
	h := session.New(d, quiet())

	st, err := h.Connect(context.Background(), session.Options{
		DialOptions:  world.DialOptions{Host: "mc.local", Port: 25565, Username: "pilot"},
		SpawnTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, session.StatusConnected, st.Status)
	assert.Equal(t, float64(17), st.Food)
	assert.Equal(t, "rain", st.Weather)
	assert.Equal(t, "rt-1", h.ResumeToken())

	require.Eventually(t, func() bool {
		for _, c := range g.commands() {
			if c.Op == protocol.OpSetMovements {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "Disconnected", h.Disconnect(context.Background()))
	assert.False(t, h.Connected())
}
