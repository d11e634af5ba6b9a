package server

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mcp-wiki/internal/config"
)

// readEvent reads one "data: <json>\n\n" frame.
func readEvent(br *bufio.Reader) (map[string]any, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if _, err := br.ReadString('\n'); err != nil {
		return nil, err
	}
	var ev map[string]any
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func splitEvents(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, frame := range strings.Split(strings.TrimSpace(body), "\n\n") {
		if !strings.HasPrefix(frame, "data: ") {
			t.Fatalf("frame without data prefix: %q", frame)
		}
		var ev map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &ev); err != nil {
			t.Fatalf("invalid frame %q: %v", frame, err)
		}
		out = append(out, ev)
	}
	return out
}

func openStream(t *testing.T, ts *httptest.Server) (*http.Response, *bufio.Reader) {
	t.Helper()
	resp, err := http.Get(ts.URL + "/sse")
	if err != nil {
		t.Fatalf("get /sse: %v", err)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		resp.Body.Close()
		t.Fatalf("unexpected content type %q", ct)
	}
	return resp, bufio.NewReader(resp.Body)
}

func TestSSEConnectedThenCatalog(t *testing.T) {
	s := newTestServer(t, Config{Mode: config.ModeSSE, Heartbeat: time.Hour})
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, br := openStream(t, ts)
	defer resp.Body.Close()

	first, err := readEvent(br)
	if err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if first["type"] != "connected" {
		t.Fatalf("expected connected, got %v", first)
	}

	second, err := readEvent(br)
	if err != nil {
		t.Fatalf("second frame: %v", err)
	}
	if second["type"] != "tools_list" {
		t.Fatalf("expected tools_list, got %v", second)
	}
	tools, _ := second["tools"].([]any)
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %v", second["tools"])
	}
	for i, name := range []string{"echo", "fail"} {
		if tools[i].(map[string]any)["name"] != name {
			t.Fatalf("tool %d: expected %s, got %v", i, name, tools[i])
		}
	}

	third := make(chan struct{})
	go func() {
		_, _ = readEvent(br)
		close(third)
	}()
	select {
	case <-third:
		t.Fatal("no frame should arrive before the heartbeat interval")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestSSEHeartbeat(t *testing.T) {
	s := newTestServer(t, Config{Mode: config.ModeSSE, Heartbeat: 20 * time.Millisecond})
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, br := openStream(t, ts)
	defer resp.Body.Close()

	var last float64
	for i := 0; i < 4; i++ {
		ev, err := readEvent(br)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if i < 2 {
			continue
		}
		if ev["type"] != "heartbeat" {
			t.Fatalf("frame %d: expected heartbeat, got %v", i, ev)
		}
		stamp, ok := ev["timestamp"].(float64)
		if !ok || stamp < last {
			t.Fatalf("frame %d: timestamp %v not monotonic after %v", i, ev["timestamp"], last)
		}
		last = stamp
	}
}

func TestSSEStopsOnDisconnect(t *testing.T) {
	s := newTestServer(t, Config{Mode: config.ModeSSE, Heartbeat: 10 * time.Millisecond})
	done := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Router().ServeHTTP(w, r)
		if r.URL.Path == "/sse" {
			close(done)
		}
	}))
	defer ts.Close()

	resp, br := openStream(t, ts)
	if _, err := readEvent(br); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	resp.Body.Close()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("stream handler kept running after the client disconnected")
	}
}

func TestSSECallSuccess(t *testing.T) {
	s := newTestServer(t, Config{Mode: config.ModeSSE})
	rr := do(s, http.MethodPost, "/sse/call", `{"name":"echo","arguments":{}}`)
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	events := splitEvents(t, rr.Body.String())
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %v", len(events), events)
	}
	for i, typ := range []string{"tool_start", "tool_result", "tool_complete"} {
		if events[i]["type"] != typ {
			t.Fatalf("event %d: expected %s, got %v", i, typ, events[i])
		}
	}
	if events[0]["tool"] != "echo" {
		t.Fatalf("tool_start should name the tool, got %v", events[0])
	}
	if events[1]["result"] != "{}" {
		t.Fatalf("unexpected result %v", events[1]["result"])
	}
}

func TestSSECallFailure(t *testing.T) {
	s := newTestServer(t, Config{Mode: config.ModeSSE})
	events := splitEvents(t, do(s, http.MethodPost, "/sse/call", `{"name":"fail"}`).Body.String())
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", events)
	}
	if events[0]["type"] != "tool_start" || events[1]["type"] != "tool_error" {
		t.Fatalf("unexpected sequence %v", events)
	}
	if events[1]["error"] != "upstream unavailable" {
		t.Fatalf("unexpected error %v", events[1])
	}
}

func TestSSECallUnknownTool(t *testing.T) {
	s := newTestServer(t, Config{Mode: config.ModeSSE})
	rr := do(s, http.MethodPost, "/sse/call", `{"name":"nope","arguments":{}}`)
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected plain json, got %q", ct)
	}
	resp := decode(t, rr)
	if resp["error"] != "Tool 'nope' not found" {
		t.Fatalf("unexpected body %v", resp)
	}
}

func TestSSECallNonObjectArguments(t *testing.T) {
	s := newTestServer(t, Config{Mode: config.ModeSSE})

	resp := decode(t, do(s, http.MethodPost, "/sse/call", `{"name":"nope","arguments":[1]}`))
	if resp["error"] != "Tool 'nope' not found" {
		t.Fatalf("unexpected body %v", resp)
	}

	events := splitEvents(t, do(s, http.MethodPost, "/sse/call", `{"name":"echo","arguments":[1]}`).Body.String())
	if len(events) != 2 || events[0]["type"] != "tool_start" || events[1]["type"] != "tool_error" {
		t.Fatalf("unexpected sequence %v", events)
	}
}

func TestSSECallMalformedBody(t *testing.T) {
	s := newTestServer(t, Config{Mode: config.ModeSSE})
	resp := decode(t, do(s, http.MethodPost, "/sse/call", `not json`))
	if msg, _ := resp["error"].(string); msg == "" {
		t.Fatalf("expected error message, got %v", resp)
	}
}
