package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mcp-wiki/internal/config"
	"mcp-wiki/internal/dispatch"
	"mcp-wiki/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry() *registry.Registry {
	reg := registry.New()
	_ = reg.Register("echo", registry.HandlerFunc(func(_ context.Context, a registry.Args) (any, error) {
		return map[string]any(a), nil
	}), "Echo the arguments back")
	_ = reg.Register("fail", registry.HandlerFunc(func(context.Context, registry.Args) (any, error) {
		return nil, errors.New("upstream unavailable")
	}), "Always fails")
	return reg
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	reg := testRegistry()
	if cfg.Name == "" {
		cfg.Name = "mcp-wiki-test"
	}
	if cfg.Version == "" {
		cfg.Version = "0.0.1"
	}
	d := dispatch.New(reg, dispatch.Options{Logger: testLogger()})
	return New(cfg, reg, d, testLogger())
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	for _, mode := range []config.Mode{config.ModeHTTP, config.ModeStreamable} {
		s := newTestServer(t, Config{Mode: mode})
		rr := do(s, http.MethodGet, "/health", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", mode, rr.Code)
		}
	}
}

func TestRoot(t *testing.T) {
	s := newTestServer(t, Config{Mode: config.ModeHTTP})
	resp := decode(t, do(s, http.MethodGet, "/", ""))
	if resp["name"] != "mcp-wiki-test" || resp["protocol"] != "mcp" {
		t.Fatalf("unexpected identity %v", resp)
	}
	if resp["tools_count"] != float64(2) {
		t.Fatalf("expected 2 tools, got %v", resp["tools_count"])
	}
	modes, _ := resp["modes"].([]any)
	if len(modes) != 4 {
		t.Fatalf("unexpected modes %v", resp["modes"])
	}
}

func TestListTools(t *testing.T) {
	s := newTestServer(t, Config{Mode: config.ModeHTTP})
	rr := do(s, http.MethodGet, "/tools", "")
	want := `{"jsonrpc":"2.0","result":{"tools":[{"name":"echo","description":"Echo the arguments back"},{"name":"fail","description":"Always fails"}]}}`
	if got := strings.TrimSpace(rr.Body.String()); got != want {
		t.Fatalf("got %s\nwant %s", got, want)
	}
}

func TestCallEcho(t *testing.T) {
	s := newTestServer(t, Config{Mode: config.ModeHTTP})
	rr := do(s, http.MethodPost, "/tools/call", `{"name":"echo","arguments":{"x":1},"id":7}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	want := `{"jsonrpc":"2.0","result":{"content":[{"type":"text","text":"{\"x\":1}"}]},"id":7}`
	if got := strings.TrimSpace(rr.Body.String()); got != want {
		t.Fatalf("got %s\nwant %s", got, want)
	}
}

func TestCallMissingTool(t *testing.T) {
	s := newTestServer(t, Config{Mode: config.ModeHTTP})
	rr := do(s, http.MethodPost, "/tools/call", `{"name":"missing"}`)
	want := `{"jsonrpc":"2.0","error":{"code":-32601,"message":"Tool 'missing' not found"},"id":null}`
	if got := strings.TrimSpace(rr.Body.String()); got != want {
		t.Fatalf("got %s\nwant %s", got, want)
	}
}

func TestCallExecutionError(t *testing.T) {
	s := newTestServer(t, Config{Mode: config.ModeHTTP})
	resp := decode(t, do(s, http.MethodPost, "/tools/call", `{"name":"fail","id":"abc"}`))
	rpcErr, _ := resp["error"].(map[string]any)
	if rpcErr["code"] != float64(-32603) || rpcErr["message"] != "upstream unavailable" {
		t.Fatalf("unexpected error %v", resp)
	}
	if resp["id"] != "abc" {
		t.Fatalf("expected id to be echoed, got %v", resp["id"])
	}
	if _, ok := resp["result"]; ok {
		t.Fatal("error response must not carry a result")
	}
}

func TestCallMalformedBody(t *testing.T) {
	s := newTestServer(t, Config{Mode: config.ModeHTTP})
	resp := decode(t, do(s, http.MethodPost, "/tools/call", `{"name":`))
	rpcErr, _ := resp["error"].(map[string]any)
	if rpcErr["code"] != float64(-32603) {
		t.Fatalf("expected -32603, got %v", resp)
	}
	if msg, _ := rpcErr["message"].(string); msg == "" {
		t.Fatal("expected a message")
	}
	if v, ok := resp["id"]; !ok || v != nil {
		t.Fatalf("expected null id, got %v", resp["id"])
	}
}

func TestCallArgumentsMustBeObject(t *testing.T) {
	s := newTestServer(t, Config{Mode: config.ModeHTTP})
	tests := []struct {
		body string
		code float64
		id   any
	}{
		{`{"name":"echo","arguments":[1,2],"id":9}`, -32603, float64(9)},
		{`{"name":"echo","arguments":"x","id":"abc"}`, -32603, "abc"},
		{`{"name":"missing","arguments":"x","id":3}`, -32601, float64(3)},
		{`{"name":"missing","arguments":[1]}`, -32601, nil},
	}
	for _, tt := range tests {
		resp := decode(t, do(s, http.MethodPost, "/tools/call", tt.body))
		rpcErr, _ := resp["error"].(map[string]any)
		if rpcErr == nil || rpcErr["code"] != tt.code {
			t.Fatalf("%s: expected code %v, got %v", tt.body, tt.code, resp)
		}
		if resp["id"] != tt.id {
			t.Fatalf("%s: expected id %v, got %v", tt.body, tt.id, resp["id"])
		}
	}
}

func TestModesMountDifferentRoutes(t *testing.T) {
	chat := newTestServer(t, Config{Mode: config.ModeStreamable})
	if rr := do(chat, http.MethodGet, "/tools", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("chatgpt mode should not serve /tools, got %d", rr.Code)
	}
	if rr := do(chat, http.MethodGet, "/sse", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("chatgpt mode should not serve /sse, got %d", rr.Code)
	}
	plain := newTestServer(t, Config{Mode: config.ModeSSE})
	if rr := do(plain, http.MethodPost, "/mcp", `{}`); rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("sse mode should not serve /mcp, got %d", rr.Code)
	}
}

func TestCORSConfiguredOrigins(t *testing.T) {
	s := newTestServer(t, Config{Mode: config.ModeHTTP, CORSOrigins: []string{"https://allowed.example"}})

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	req.Header.Set("Origin", "https://allowed.example")
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://allowed.example" {
		t.Fatalf("expected allowed origin, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/tools", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header, got %q", got)
	}
}

func TestCORSStreamableAllowsAnyOrigin(t *testing.T) {
	s := newTestServer(t, Config{Mode: config.ModeStreamable, CORSOrigins: []string{"https://only.example"}})
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader([]byte(`{"jsonrpc":"2.0","method":"ping","id":1}`)))
	req.Header.Set("Origin", "https://chat.openai.com")
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://chat.openai.com" {
		t.Fatalf("expected the request origin to be reflected, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials to be allowed, got %q", got)
	}
}

func TestCORSWildcardReflectsOrigin(t *testing.T) {
	s := newTestServer(t, Config{Mode: config.ModeHTTP, CORSOrigins: []string{"*"}})
	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://anywhere.example" {
		t.Fatalf("credentialed CORS must not answer with *, got %q", got)
	}
}

func TestRequestTimeoutBoundsCall(t *testing.T) {
	reg := registry.New()
	_ = reg.Register("slow", registry.HandlerFunc(func(ctx context.Context, _ registry.Args) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return "late", nil
		}
	}), "")
	d := dispatch.New(reg, dispatch.Options{Logger: testLogger()})
	s := New(Config{Mode: config.ModeHTTP, Name: "t", RequestTimeout: 20 * time.Millisecond}, reg, d, testLogger())

	start := time.Now()
	resp := decode(t, do(s, http.MethodPost, "/tools/call", `{"name":"slow"}`))
	if time.Since(start) > 2*time.Second {
		t.Fatal("request deadline was not applied")
	}
	if _, ok := resp["error"]; !ok {
		t.Fatalf("expected error envelope, got %v", resp)
	}
}
