package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(&buf, Options{Level: "debug", Format: "json"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer closeFn()
	logger.Debug("hello", "tool", "echo")
	if !strings.Contains(buf.String(), `"tool":"echo"`) {
		t.Fatalf("expected json attribute, got %q", buf.String())
	}
}

func TestNewFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(&buf, Options{Level: "warn"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("quiet")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}
}

func TestNewTeesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	var buf bytes.Buffer
	logger, closeFn, err := New(&buf, Options{File: path})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("started")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "started") || !strings.Contains(buf.String(), "started") {
		t.Fatalf("expected both sinks to receive the record")
	}
}

func TestNewRejectsUnknown(t *testing.T) {
	if _, _, err := New(nil, Options{Level: "loud"}); err == nil {
		t.Fatal("expected level error")
	}
	if _, _, err := New(nil, Options{Format: "xml"}); err == nil {
		t.Fatal("expected format error")
	}
}
