// Package server provides the HTTP transport bindings and routing for the MCP
// server: the synchronous tools endpoints, the Server-Sent-Events stream and
// the streamable JSON-RPC endpoint used by ChatGPT-style clients.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"mcp-wiki/internal/config"
	"mcp-wiki/internal/dispatch"
	"mcp-wiki/internal/registry"
	"mcp-wiki/internal/telemetry"
)

// maxBodyBytes bounds request bodies on every POST route.
const maxBodyBytes = 1 << 20

// Config contains the values the HTTP bindings need.
type Config struct {
	Mode           config.Mode
	Name           string
	Version        string
	CORSOrigins    []string
	Heartbeat      time.Duration
	RequestTimeout time.Duration
}

// Catalog is the read side of the tool registry.
type Catalog interface {
	List() []registry.Entry
	Has(name string) bool
	Len() int
}

// Invoker runs a tool and reports its outcome.
type Invoker interface {
	Invoke(ctx context.Context, name string, args registry.Args) dispatch.Outcome
}

// Server contains the configured router, tool catalog and dispatcher.
type Server struct {
	cfg     Config
	router  *chi.Mux
	tools   Catalog
	invoker Invoker
	logger  *slog.Logger
	started time.Time
}

// New constructs a Server with middleware and the routes of cfg.Mode.
func New(cfg Config, tools Catalog, invoker Invoker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	if cfg.Mode == "" {
		cfg.Mode = config.ModeHTTP
	}
	s := &Server{
		cfg:     cfg,
		router:  chi.NewRouter(),
		tools:   tools,
		invoker: invoker,
		logger:  logger,
		started: time.Now(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	s.router.Use(middleware.Recoverer)
	s.router.Use(telemetry.Middleware)
	s.router.Use(s.cors())

	s.router.Get("/health", s.handleHealth)

	// Streaming routes stay outside the request deadline.
	s.router.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}
		switch cfg.Mode {
		case config.ModeStreamable:
			r.Get("/", s.handleStreamableRoot)
			r.Get("/mcp", s.handleMCPDiscovery)
			r.Post("/mcp", s.handleMCP)
		default:
			r.Get("/", s.handleRoot)
			r.Get("/tools", s.handleListTools)
			r.Post("/tools/call", s.handleCall)
		}
	})
	if cfg.Mode != config.ModeStreamable {
		s.router.Get("/sse", s.handleSSE)
		s.router.Post("/sse/call", s.handleSSECall)
	}

	return s
}

// Router exposes the root HTTP handler for the server.
func (s *Server) Router() http.Handler { return s.router }

// cors allows the configured origins, or every origin for the streamable
// binding whose clients cannot present a fixed origin. Credentialed requests
// forbid a literal "*", so allowing everything reflects the request origin.
func (s *Server) cors() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions, http.MethodHead},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
	if s.cfg.Mode == config.ModeStreamable || len(opts.AllowedOrigins) == 0 || slices.Contains(opts.AllowedOrigins, "*") {
		opts.AllowedOrigins = nil
		opts.AllowOriginFunc = func(*http.Request, string) bool { return true }
	}
	return cors.Handler(opts)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type rootDocument struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Protocol   string   `json:"protocol"`
	Modes      []string `json:"modes"`
	ToolsCount int      `json:"tools_count"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootDocument{
		Name:     s.cfg.Name,
		Version:  s.cfg.Version,
		Protocol: "mcp",
		Modes: []string{
			string(config.ModeStdio),
			string(config.ModeHTTP),
			string(config.ModeSSE),
			string(config.ModeStreamable),
		},
		ToolsCount: s.tools.Len(),
	})
}

// decodeBody reads a bounded JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
