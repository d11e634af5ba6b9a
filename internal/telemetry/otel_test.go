package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

const traceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

func TestSetupNoopWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "mcp-wiki", "test", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupWithEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "mcp-wiki", "test", "http://127.0.0.1:4318")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected shutdown function")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestMiddlewareExtractsTraceContext(t *testing.T) {
	if _, err := Setup(context.Background(), "mcp-wiki", "test", ""); err != nil {
		t.Fatalf("setup: %v", err)
	}
	var got trace.SpanContext
	h := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = trace.SpanContextFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("traceparent", traceparent)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !got.IsRemote() || got.TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("unexpected span context %+v", got)
	}
}

func TestInjectRoundTrip(t *testing.T) {
	if _, err := Setup(context.Background(), "mcp-wiki", "test", ""); err != nil {
		t.Fatalf("setup: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	req.Header.Set("traceparent", traceparent)
	var ctx context.Context
	Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctx = r.Context()
	})).ServeHTTP(httptest.NewRecorder(), req)

	out := http.Header{}
	Inject(ctx, out)
	if got := out.Get("traceparent"); got != traceparent {
		t.Fatalf("traceparent = %q, want %q", got, traceparent)
	}
}

func TestInjectWithoutTrace(t *testing.T) {
	h := http.Header{}
	Inject(context.Background(), h)
	if got := h.Get("traceparent"); got != "" {
		t.Fatalf("unexpected traceparent %q", got)
	}
}
