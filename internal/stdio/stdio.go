// Package stdio serves the tool registry as an MCP session over the process's
// standard input and output. The protocol is handled by the official MCP Go
// SDK behind a line transport that answers malformed frames with JSON-RPC
// errors. Tool calls are routed through the shared dispatcher.
package stdio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"mcp-wiki/internal/dispatch"
	"mcp-wiki/internal/registry"
)

// Catalog is the read side of the tool registry.
type Catalog interface {
	List() []registry.Entry
}

// Invoker runs a tool and reports its outcome.
type Invoker interface {
	Invoke(ctx context.Context, name string, args registry.Args) dispatch.Outcome
}

// Binding is one MCP server exposing a snapshot of the catalog.
type Binding struct {
	server  *mcp.Server
	invoker Invoker
	logger  *slog.Logger
}

// New builds an MCP server named name advertising every tool in tools.
func New(name, version string, tools Catalog, invoker Invoker, logger *slog.Logger) *Binding {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Binding{
		server:  mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		invoker: invoker,
		logger:  logger,
	}
	for _, e := range tools.List() {
		b.server.AddTool(&mcp.Tool{
			Name:        e.Name,
			Description: e.Description,
			InputSchema: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{},
				"additionalProperties": true,
			},
		}, b.handler(e.Name))
	}
	return b
}

// Run serves one session on stdin/stdout until the peer disconnects or ctx
// is cancelled.
func (b *Binding) Run(ctx context.Context) error {
	return b.Serve(ctx, &LineTransport{
		Reader: os.Stdin,
		Writer: nopWriteCloser{os.Stdout},
		Logger: b.logger,
	})
}

// nopWriteCloser keeps stdout open after the session ends.
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// Serve serves one session on t.
func (b *Binding) Serve(ctx context.Context, t mcp.Transport) error {
	b.logger.Info("stdio session starting")
	err := b.server.Run(ctx, t)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio session: %w", err)
	}
	return nil
}

func (b *Binding) handler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args registry.Args
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return textResult(fmt.Sprintf("invalid arguments: %v", err), true), nil
			}
		}
		out := b.invoker.Invoke(ctx, name, args)
		switch out.Kind {
		case dispatch.Success:
			return textResult(dispatch.Render(out.Value), false), nil
		case dispatch.ToolNotFound:
			return nil, errors.New(out.Message)
		default:
			return textResult(out.Message, true), nil
		}
	}
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}
