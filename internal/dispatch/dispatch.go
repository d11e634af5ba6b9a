// Package dispatch invokes registered tools and normalizes their results into
// transport-agnostic outcomes.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mcp-wiki/internal/registry"
)

const tracerName = "mcp-wiki/dispatch"

// maxLoggedArgs bounds the argument JSON attached to fault logs.
const maxLoggedArgs = 256

// Kind tags an Outcome.
type Kind int

const (
	Success Kind = iota
	ToolNotFound
	ExecutionError
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case ToolNotFound:
		return "tool_not_found"
	case ExecutionError:
		return "execution_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of one invocation. Value is set for Success; Message
// is set for the two failure kinds.
type Outcome struct {
	Kind    Kind
	Tool    string
	Value   any
	Message string
}

// OK reports whether the invocation succeeded.
func (o Outcome) OK() bool { return o.Kind == Success }

// Catalog is the read side of the tool registry.
type Catalog interface {
	Lookup(name string) (registry.Descriptor, error)
}

// Options configures a Dispatcher.
type Options struct {
	// Logger receives invocation faults. Defaults to slog.Default().
	Logger *slog.Logger
	// Timeout bounds a single invocation. Zero means no bound beyond the
	// caller's context.
	Timeout time.Duration
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Dispatcher looks up tools and runs them.
type Dispatcher struct {
	tools   Catalog
	logger  *slog.Logger
	timeout time.Duration
	tracer  trace.Tracer
}

// New returns a Dispatcher reading tools from c.
func New(c Catalog, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Dispatcher{
		tools:   c,
		logger:  logger,
		timeout: opts.Timeout,
		tracer:  tp.Tracer(tracerName),
	}
}

type callResult struct {
	value any
	err   error
}

// Invoke runs the tool called name with args. It never panics and never
// returns a handler fault directly: every failure is folded into the Outcome.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args registry.Args) Outcome {
	desc, err := d.tools.Lookup(name)
	if err != nil {
		d.logger.Warn("tool not found", "tool", name)
		return Outcome{Kind: ToolNotFound, Tool: name, Message: fmt.Sprintf("Tool '%s' not found", name)}
	}
	if args == nil {
		args = registry.Args{}
	}

	ctx, span := d.tracer.Start(ctx, "tool "+name, trace.WithAttributes(
		attribute.String("mcp.tool.name", name),
	))
	defer span.End()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- callResult{err: fmt.Errorf("tool %s panicked: %v", name, p)}
			}
		}()
		v, err := desc.Handler.Call(ctx, args)
		done <- callResult{value: v, err: err}
	}()

	var res callResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = callResult{err: ctx.Err()}
	}
	elapsed := time.Since(start)

	if res.err != nil {
		msg := res.err.Error()
		if msg == "" {
			msg = fmt.Sprintf("tool %s failed", name)
		}
		d.logger.Error("tool execution failed",
			"tool", name,
			"args", truncateArgs(args),
			"elapsed", elapsed,
			"err", res.err,
		)
		span.RecordError(res.err)
		span.SetStatus(codes.Error, msg)
		return Outcome{Kind: ExecutionError, Tool: name, Message: msg}
	}

	d.logger.Debug("tool invoked", "tool", name, "elapsed", elapsed)
	return Outcome{Kind: Success, Tool: name, Value: res.value}
}

func truncateArgs(args registry.Args) string {
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("<unencodable: %v>", err)
	}
	if len(b) > maxLoggedArgs {
		return string(b[:maxLoggedArgs]) + "..."
	}
	return string(b)
}
