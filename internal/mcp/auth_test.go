package mcp

import (
	"bytes"
	"net/http"
	"testing"
	"time"
)

func signedRequest(t *testing.T, secret []byte, ts, nonce string, body []byte) *http.Request {
	t.Helper()
	req, err := http.NewRequest("POST", "http://example.invalid/mcp", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set(headerAgentID, "agent_1")
	req.Header.Set(headerTS, ts)
	req.Header.Set(headerNonce, nonce)
	req.Header.Set(headerSignature, signHMAC(secret, canonicalString(ts, "POST", "/mcp", "agent_1", nonce, body)))
	return req
}

func TestHMAC_SignAndVerify_Vector(t *testing.T) {
	secret := []byte("topsecret")
	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"list_tools"}`)

	got := signHMAC(secret, canonicalString("1700000000000", "post", "/mcp", " agent_1 ", "n-1", body))
	want := "7f69c7c134cbdd7d85b51d49502e92fe180fa8fd91a74b690792c96cdcb0d6e8"
	if got != want {
		t.Fatalf("signature mismatch: got=%s want=%s", got, want)
	}

	req := signedRequest(t, secret, "1700000000000", "n-1", body)
	vr := verifyHMAC(req, body, secret, time.UnixMilli(1700000000000))
	if vr.HTTPStatus != 0 {
		t.Fatalf("expected ok, got status=%d msg=%s", vr.HTTPStatus, vr.Message)
	}
	if vr.AgentID != "agent_1" || vr.Signature != want {
		t.Fatalf("unexpected result %+v", vr)
	}
}

func TestHMAC_Verify_Rejections(t *testing.T) {
	secret := []byte("topsecret")
	body := []byte(`{"jsonrpc":"2.0"}`)
	now := time.UnixMilli(1700000000000)

	expired := signedRequest(t, secret, "1700000000000", "n-1", body)
	if vr := verifyHMAC(expired, body, secret, now.Add(301*time.Second)); vr.Message != "x-ts outside window" {
		t.Fatalf("expected window rejection, got %+v", vr)
	}

	noNonce := signedRequest(t, secret, "1700000000000", "n-1", body)
	noNonce.Header.Del(headerNonce)
	if vr := verifyHMAC(noNonce, body, secret, now); vr.Message != "missing x-nonce" {
		t.Fatalf("expected missing nonce, got %+v", vr)
	}

	tampered := signedRequest(t, secret, "1700000000000", "n-1", body)
	if vr := verifyHMAC(tampered, []byte(`{"jsonrpc":"2.0","id":2}`), secret, now); vr.HTTPStatus != http.StatusUnauthorized || vr.Message != "bad signature" {
		t.Fatalf("expected bad signature, got %+v", vr)
	}
}

func TestIsLoopbackListenAddress(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:8090": true,
		"localhost:8090": true,
		"[::1]:8090":     true,
		"0.0.0.0:8090":   false,
		":8090":          false,
		"10.1.2.3:8090":  false,
	}
	for addr, want := range cases {
		if got := IsLoopbackListenAddress(addr); got != want {
			t.Fatalf("IsLoopbackListenAddress(%q) = %v, want %v", addr, got, want)
		}
	}
}
