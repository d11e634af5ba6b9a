// Package config loads the process configuration from the environment and
// command-line flags. The result is read once at startup and passed
// explicitly to every component that needs it.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
)

// Mode selects the transport binding the process serves.
type Mode string

const (
	ModeStdio      Mode = "stdio"
	ModeHTTP       Mode = "http"
	ModeSSE        Mode = "sse"
	ModeStreamable Mode = "chatgpt"
)

// ParseMode accepts the configured spelling of a mode. "streamable" and
// "streamable-http" are aliases of the chatgpt mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stdio":
		return ModeStdio, nil
	case "http":
		return ModeHTTP, nil
	case "sse":
		return ModeSSE, nil
	case "chatgpt", "streamable", "streamable-http":
		return ModeStreamable, nil
	default:
		return "", fmt.Errorf("unknown server mode %q (want stdio, http, sse or chatgpt)", s)
	}
}

// Config is the full process configuration.
type Config struct {
	Mode           string        `env:"MCP_SERVER_MODE" envDefault:"stdio"`
	Host           string        `env:"MCP_SERVER_HOST" envDefault:"127.0.0.1"`
	Port           int           `env:"MCP_SERVER_PORT" envDefault:"8000"`
	CORSOrigins    []string      `env:"MCP_CORS_ORIGINS" envDefault:"*" envSeparator:","`
	Name           string        `env:"MCP_SERVER_NAME" envDefault:"mcp-wiki"`
	Version        string        `env:"MCP_SERVER_VERSION" envDefault:"1.0.0"`
	Heartbeat      time.Duration `env:"MCP_SSE_HEARTBEAT" envDefault:"30s"`
	RequestTimeout time.Duration `env:"MCP_REQUEST_TIMEOUT" envDefault:"60s"`
	ToolTimeout    time.Duration `env:"MCP_TOOL_TIMEOUT" envDefault:"0s"`
	TLSCertFile    string        `env:"MCP_TLS_CERT_FILE"`
	TLSKeyFile     string        `env:"MCP_TLS_KEY_FILE"`

	LogLevel  string `env:"MCP_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"MCP_LOG_FORMAT" envDefault:"text"`
	LogFile   string `env:"MCP_LOG_FILE"`

	OTelEndpoint string `env:"MCP_OTEL_ENDPOINT"`

	Wiki Wiki
}

// Wiki configures the outbound Wikipedia and Wikidata clients.
type Wiki struct {
	UserAgent       string        `env:"WIKIPEDIA_USER_AGENT" envDefault:"MCP-Wiki/1.0 (https://github.com/mcp-wiki/mcp-wiki)"`
	DefaultLanguage string        `env:"WIKIPEDIA_DEFAULT_LANGUAGE" envDefault:"en"`
	MaxResults      int           `env:"WIKIPEDIA_MAX_RESULTS" envDefault:"20"`
	HTTPTimeout     time.Duration `env:"WIKI_HTTP_TIMEOUT" envDefault:"30s"`
	CacheTTL        time.Duration `env:"WIKI_CACHE_TTL" envDefault:"10m"`
	CacheEntries    int           `env:"WIKI_CACHE_ENTRIES" envDefault:"1024"`
}

// Load parses environ (the process environment when nil) and then args.
// Flags override environment values.
func Load(args []string, environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{Environment: environ}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := pflag.NewFlagSet("mcp-wiki", pflag.ContinueOnError)
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "transport mode: stdio, http, sse or chatgpt")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "bind host for HTTP modes")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "bind port for HTTP modes")
	fs.StringSliceVar(&cfg.CORSOrigins, "cors-origins", cfg.CORSOrigins, "allowed CORS origins (http and sse modes)")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "server name reported to clients")
	fs.DurationVar(&cfg.Heartbeat, "heartbeat", cfg.Heartbeat, "SSE heartbeat interval")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "deadline for non-streaming HTTP requests")
	fs.DurationVar(&cfg.ToolTimeout, "tool-timeout", cfg.ToolTimeout, "deadline for a single tool invocation (0 disables)")
	fs.StringVar(&cfg.TLSCertFile, "tls-cert", cfg.TLSCertFile, "TLS certificate file")
	fs.StringVar(&cfg.TLSKeyFile, "tls-key", cfg.TLSKeyFile, "TLS key file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "also append logs to this file")
	fs.StringVar(&cfg.OTelEndpoint, "otel-endpoint", cfg.OTelEndpoint, "OTLP/HTTP traces endpoint")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if _, err := ParseMode(c.Mode); err != nil {
		return err
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Heartbeat <= 0 {
		return errors.New("heartbeat interval must be positive")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("TLS requires both a certificate and a key file")
	}
	if c.Name == "" {
		return errors.New("server name must not be empty")
	}
	return nil
}

// ServerMode returns the validated transport mode.
func (c Config) ServerMode() Mode {
	m, _ := ParseMode(c.Mode)
	return m
}

// Addr is the host:port the HTTP modes listen on.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// TLS reports whether HTTPS is configured.
func (c Config) TLS() bool { return c.TLSCertFile != "" && c.TLSKeyFile != "" }
