package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, map[string]string{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerMode() != ModeStdio {
		t.Fatalf("expected stdio, got %q", cfg.Mode)
	}
	if cfg.Addr() != "127.0.0.1:8000" {
		t.Fatalf("unexpected addr %q", cfg.Addr())
	}
	if cfg.Heartbeat != 30*time.Second {
		t.Fatalf("expected 30s heartbeat, got %v", cfg.Heartbeat)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.Name != "mcp-wiki" {
		t.Fatalf("unexpected name %q", cfg.Name)
	}
	if cfg.Wiki.DefaultLanguage != "en" || cfg.Wiki.MaxResults != 20 || cfg.Wiki.CacheEntries != 1024 {
		t.Fatalf("unexpected wiki defaults %+v", cfg.Wiki)
	}
}

func TestLoadEnvironment(t *testing.T) {
	cfg, err := Load(nil, map[string]string{
		"MCP_SERVER_MODE":   "SSE",
		"MCP_SERVER_PORT":   "9001",
		"MCP_CORS_ORIGINS":  "https://a.example,https://b.example",
		"MCP_SSE_HEARTBEAT": "5s",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerMode() != ModeSSE {
		t.Fatalf("expected sse, got %q", cfg.Mode)
	}
	if cfg.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", cfg.Port)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.Heartbeat != 5*time.Second {
		t.Fatalf("expected 5s, got %v", cfg.Heartbeat)
	}
}

func TestLoadFlagsOverrideEnvironment(t *testing.T) {
	cfg, err := Load(
		[]string{"--mode", "streamable", "--port", "7000", "--heartbeat", "1s"},
		map[string]string{"MCP_SERVER_MODE": "http", "MCP_SERVER_PORT": "9001"},
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerMode() != ModeStreamable {
		t.Fatalf("expected chatgpt mode, got %q", cfg.Mode)
	}
	if cfg.Port != 7000 || cfg.Heartbeat != time.Second {
		t.Fatalf("flags not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"mode":      {"MCP_SERVER_MODE": "carrier-pigeon"},
		"port":      {"MCP_SERVER_PORT": "70000"},
		"heartbeat": {"MCP_SSE_HEARTBEAT": "0s"},
		"tls":       {"MCP_TLS_CERT_FILE": "cert.pem"},
	}
	for name, environ := range cases {
		if _, err := Load(nil, environ); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"":                ModeStdio,
		"HTTP":            ModeHTTP,
		"chatgpt":         ModeStreamable,
		"streamable-http": ModeStreamable,
	} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
}
