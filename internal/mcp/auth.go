package mcp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	headerAgentID   = "x-agent-id"
	headerTS        = "x-ts"
	headerSignature = "x-signature"
	headerNonce     = "x-nonce"

	signatureWindow = 5 * time.Minute
)

// canonicalString is what callers sign:
// ts \n METHOD \n path \n agent id \n nonce \n body.
func canonicalString(ts, method, pathname, agentID, nonce string, rawBody []byte) string {
	return ts + "\n" + strings.ToUpper(method) + "\n" + pathname + "\n" +
		strings.TrimSpace(agentID) + "\n" + strings.TrimSpace(nonce) + "\n" + string(rawBody)
}

func signHMAC(secret []byte, canonical string) string {
	h := hmac.New(sha256.New, secret)
	_, _ = h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}

type hmacVerifyResult struct {
	AgentID    string
	Signature  string
	HTTPStatus int
	Message    string
}

func verifyHMAC(r *http.Request, rawBody []byte, secret []byte, now time.Time) hmacVerifyResult {
	deny := func(msg string) hmacVerifyResult {
		return hmacVerifyResult{HTTPStatus: http.StatusUnauthorized, Message: msg}
	}
	agentID := strings.TrimSpace(r.Header.Get(headerAgentID))
	if agentID == "" {
		return deny("missing x-agent-id")
	}
	tsStr := strings.TrimSpace(r.Header.Get(headerTS))
	if tsStr == "" {
		return deny("missing x-ts")
	}
	sig := strings.ToLower(strings.TrimSpace(r.Header.Get(headerSignature)))
	if sig == "" {
		return deny("missing x-signature")
	}
	nonce := strings.TrimSpace(r.Header.Get(headerNonce))
	if nonce == "" {
		return deny("missing x-nonce")
	}

	tsMS, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return deny("bad x-ts")
	}
	if d := now.UnixMilli() - tsMS; d > signatureWindow.Milliseconds() || d < -signatureWindow.Milliseconds() {
		return deny("x-ts outside window")
	}

	exp := signHMAC(secret, canonicalString(tsStr, r.Method, r.URL.Path, agentID, nonce, rawBody))
	if !hmac.Equal([]byte(sig), []byte(exp)) {
		return deny("bad signature")
	}
	return hmacVerifyResult{AgentID: agentID, Signature: sig}
}

// requireLoopback guards the unauthenticated mode.
func requireLoopback(r *http.Request) error {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("forbidden: non-loopback client")
}

// IsLoopbackListenAddress reports whether addr only accepts local clients.
func IsLoopbackListenAddress(addr string) bool {
	host := strings.TrimSpace(addr)
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = strings.TrimSpace(h)
	}
	host = strings.Trim(host, "[]")
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
