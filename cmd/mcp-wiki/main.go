// Command mcp-wiki serves the Wikipedia and Wikidata tools over stdio, plain
// HTTP, server-sent events or the streamable JSON-RPC endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mcp-wiki/internal/config"
	"mcp-wiki/internal/dispatch"
	"mcp-wiki/internal/logging"
	"mcp-wiki/internal/registry"
	"mcp-wiki/internal/server"
	"mcp-wiki/internal/stdio"
	"mcp-wiki/internal/telemetry"
	"mcp-wiki/internal/tools"
	"mcp-wiki/internal/wiki"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-wiki: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:], nil)
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.New(os.Stderr, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Name, cfg.Version, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	client := wiki.New(wiki.Options{
		UserAgent:    cfg.Wiki.UserAgent,
		HTTP:         &http.Client{Timeout: cfg.Wiki.HTTPTimeout},
		CacheTTL:     cfg.Wiki.CacheTTL,
		CacheEntries: cfg.Wiki.CacheEntries,
	})
	reg := registry.New()
	toolset := tools.New(client, client, client, tools.Options{
		DefaultLanguage: cfg.Wiki.DefaultLanguage,
		MaxResults:      cfg.Wiki.MaxResults,
		Logger:          logger,
	})
	if err := tools.Register(reg, toolset); err != nil {
		return err
	}
	disp := dispatch.New(reg, dispatch.Options{Logger: logger, Timeout: cfg.ToolTimeout})

	mode := cfg.ServerMode()
	logger.Info("starting mcp-wiki", "mode", mode, "tools", reg.Len(), "version", cfg.Version)
	if mode == config.ModeStdio {
		err := stdio.New(cfg.Name, cfg.Version, reg, disp, logger).Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	srv := server.New(server.Config{
		Mode:           mode,
		Name:           cfg.Name,
		Version:        cfg.Version,
		CORSOrigins:    cfg.CORSOrigins,
		Heartbeat:      cfg.Heartbeat,
		RequestTimeout: cfg.RequestTimeout,
	}, reg, disp, logger)
	return serveHTTP(ctx, cfg, srv.Router(), logger)
}

// serveHTTP listens until ctx is cancelled, then drains in-flight requests.
// Open SSE streams end with ctx because it is every request's base context.
func serveHTTP(ctx context.Context, cfg config.Config, h http.Handler, logger *slog.Logger) error {
	hs := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", hs.Addr, "tls", cfg.TLS())
		if cfg.TLS() {
			errc <- hs.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
			return
		}
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := hs.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
