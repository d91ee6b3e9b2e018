package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	"minepilot.ai/internal/fault"
)

const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeToolFailed     = -32000
)

// codeInternal marks tool failures that carry no fault code.
const codeInternal = "E_INTERNAL"

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// notification reports a request without an id; it gets no response body.
func (r rpcRequest) notification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// faultData is the error data of a failed tool call. Code is a fault code
// or E_INTERNAL.
type faultData struct {
	Code string `json:"code"`
	Tool string `json:"tool"`
}

type toolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// decodeToolCall reads tools/call params. Missing or null arguments become
// an empty object so every tool schema sees an object.
func decodeToolCall(params json.RawMessage) (toolCall, *rpcError) {
	if len(params) == 0 {
		return toolCall{}, &rpcError{Code: codeInvalidParams, Message: "missing params"}
	}
	var c toolCall
	if err := json.Unmarshal(params, &c); err != nil {
		return toolCall{}, &rpcError{Code: codeInvalidParams, Message: "bad params", Data: err.Error()}
	}
	if c.Name == "" {
		return toolCall{}, &rpcError{Code: codeInvalidParams, Message: "missing tool name"}
	}
	if len(c.Arguments) == 0 || string(c.Arguments) == "null" {
		c.Arguments = json.RawMessage(`{}`)
	}
	return c, nil
}

// toolFailure renders a tool error. Argument problems are invalid params;
// everything else is a tool failure tagged with its fault code.
func toolFailure(tool string, err error) *rpcError {
	code := fault.CodeOf(err)
	if code == "" {
		code = codeInternal
	}
	rc := codeToolFailed
	if errors.Is(err, fault.ErrBadRequest) {
		rc = codeInvalidParams
	}
	return &rpcError{Code: rc, Message: err.Error(), Data: faultData{Code: code, Tool: tool}}
}

func rpcResult(id json.RawMessage, result any) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func rpcFailure(id json.RawMessage, e *rpcError) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Error: e}
}

func parseRPCRequest(body []byte) (rpcRequest, error) {
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return rpcRequest{}, err
	}
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return rpcRequest{}, fmt.Errorf("unsupported jsonrpc version %q", req.JSONRPC)
	}
	if req.Method == "" {
		return rpcRequest{}, fmt.Errorf("missing method")
	}
	return req, nil
}
