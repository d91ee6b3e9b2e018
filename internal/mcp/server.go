// Package mcp serves the agent tool surface as JSON-RPC 2.0 over HTTP.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"minepilot.ai/internal/actions"
	"minepilot.ai/internal/behavior"
	"minepilot.ai/internal/fault"
	"minepilot.ai/internal/session"
)

const protocolVersion = "2024-11-05"

// CallObserver is told about every finished tool call.
type CallObserver interface {
	ObserveCall(tool string, took time.Duration, err error)
}

type Config struct {
	Session   *session.Handle
	Actions   *actions.Facade
	Scheduler *behavior.Scheduler
	// ConnectOptions supplies the defaults for the connect tool. When nil
	// the options of the last connect are reused.
	ConnectOptions func(ctx context.Context) session.Options

	// HMACSecret enables signed requests. Without it only loopback
	// clients are served.
	HMACSecret string
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer  prometheus.Gatherer
	Observers []CallObserver
	Logger    *slog.Logger
}

type Server struct {
	session     *session.Handle
	actions     *actions.Facade
	scheduler   *behavior.Scheduler
	connectOpts func(ctx context.Context) session.Options

	hmacSecret []byte
	replay     *replayGuard
	gatherer   prometheus.Gatherer
	observers  []CallObserver
	log        *slog.Logger
	now        func() time.Time

	tools []*tool
	index map[string]*tool
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Session == nil || cfg.Actions == nil || cfg.Scheduler == nil {
		return nil, fmt.Errorf("mcp: session, actions and scheduler are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		session:     cfg.Session,
		actions:     cfg.Actions,
		scheduler:   cfg.Scheduler,
		connectOpts: cfg.ConnectOptions,
		gatherer:    cfg.Gatherer,
		observers:   cfg.Observers,
		log:         logger.With("component", "mcp"),
		now:         time.Now,
		tools:       builtinTools(),
		index:       map[string]*tool{},
	}
	if strings.TrimSpace(cfg.HMACSecret) != "" {
		s.hmacSecret = []byte(cfg.HMACSecret)
		s.replay = newReplayGuard(2 * signatureWindow)
	}

	c := jsonschema.NewCompiler()
	for _, t := range s.tools {
		if err := t.compile(c); err != nil {
			return nil, fmt.Errorf("mcp: tool %s schema: %w", t.name, err)
		}
		s.index[t.name] = t
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("content-type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"ok":      true,
			"session": s.session.Status(),
			"running": s.scheduler.Running(),
		})
	})
	r.Post("/mcp", s.handleMCP)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) connectOptions(ctx context.Context) session.Options {
	if s.connectOpts != nil {
		return s.connectOpts(ctx)
	}
	return s.session.Options()
}

func (s *Server) handleMCP(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(rw, "bad body", http.StatusBadRequest)
		return
	}
	_ = r.Body.Close()

	caller := strings.TrimSpace(r.Header.Get(headerAgentID))
	if len(s.hmacSecret) > 0 {
		vr := verifyHMAC(r, body, s.hmacSecret, s.now())
		if vr.HTTPStatus != 0 {
			http.Error(rw, vr.Message, vr.HTTPStatus)
			return
		}
		if !s.replay.allow(vr.AgentID, vr.Signature, s.now()) {
			http.Error(rw, "replayed request", http.StatusUnauthorized)
			return
		}
		caller = vr.AgentID
	} else if err := requireLoopback(r); err != nil {
		http.Error(rw, err.Error(), http.StatusForbidden)
		return
	}
	if caller == "" {
		caller = "local"
	}

	req, err := parseRPCRequest(body)
	if err != nil {
		http.Error(rw, "bad jsonrpc request", http.StatusBadRequest)
		return
	}

	resp := s.dispatch(r.Context(), caller, req)
	if req.notification() {
		rw.WriteHeader(http.StatusAccepted)
		return
	}
	rw.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(rw).Encode(resp)
}

func (s *Server) dispatch(ctx context.Context, caller string, req rpcRequest) rpcResponse {
	switch req.Method {
	case "initialize":
		return rpcResult(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      map[string]any{"name": "minepilot"},
			"capabilities": map[string]any{
				"tools": map[string]any{"listChanged": false},
			},
		})

	case "ping", "notifications/initialized":
		return rpcResult(req.ID, map[string]any{})

	case "list_tools", "tools/list":
		return rpcResult(req.ID, map[string]any{"tools": s.toolsList()})

	case "call_tool", "tools/call":
		call, perr := decodeToolCall(req.Params)
		if perr != nil {
			return rpcFailure(req.ID, perr)
		}
		t, ok := s.index[call.Name]
		if !ok {
			return rpcFailure(req.ID, &rpcError{Code: codeMethodNotFound, Message: "tool not found", Data: map[string]any{"name": call.Name}})
		}
		out, err := s.callTool(ctx, caller, t, call.Arguments)
		if err != nil {
			return rpcFailure(req.ID, toolFailure(t.name, err))
		}
		return rpcResult(req.ID, out)

	default:
		return rpcFailure(req.ID, &rpcError{Code: codeMethodNotFound, Message: "method not found"})
	}
}

func (s *Server) toolsList() []map[string]any {
	out := make([]map[string]any, 0, len(s.tools))
	for _, t := range s.tools {
		out = append(out, map[string]any{
			"name":        t.name,
			"description": t.description,
			"inputSchema": t.schema,
		})
	}
	return out
}

type toolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolResult struct {
	Content           []toolContent `json:"content"`
	StructuredContent any           `json:"structuredContent,omitempty"`
}

func (s *Server) callTool(ctx context.Context, caller string, t *tool, args json.RawMessage) (toolResult, error) {
	start := time.Now()
	out, err := s.invoke(ctx, t, args)
	took := time.Since(start)
	for _, o := range s.observers {
		o.ObserveCall(t.name, took, err)
	}

	log := s.log.With("tool", t.name, "caller", caller, "req_id", middleware.GetReqID(ctx), "took", took)
	if err != nil {
		log.Info("tool failed", "code", fault.CodeOf(err), "err", err)
		return toolResult{}, err
	}
	log.Debug("tool ok")
	return render(out)
}

func (s *Server) invoke(ctx context.Context, t *tool, args json.RawMessage) (any, error) {
	if err := t.validate(args); err != nil {
		return nil, err
	}
	return t.run(ctx, s, args)
}

func render(v any) (toolResult, error) {
	switch x := v.(type) {
	case string:
		return toolResult{Content: []toolContent{{Type: "text", Text: x}}}, nil
	case reply:
		return toolResult{Content: []toolContent{{Type: "text", Text: x.text}}, StructuredContent: x.data}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return toolResult{}, err
	}
	return toolResult{Content: []toolContent{{Type: "text", Text: string(b)}}, StructuredContent: v}, nil
}
