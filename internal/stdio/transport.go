package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// LineTransport is an mcp.Transport over newline-delimited JSON. Unlike the
// SDK's stdio transport it answers an undecodable line with a JSON-RPC error
// frame and keeps reading, so one bad frame does not end the session.
type LineTransport struct {
	Reader io.ReadCloser
	Writer io.WriteCloser
	Logger *slog.Logger
}

// Connect implements mcp.Transport.
func (t *LineTransport) Connect(context.Context) (mcp.Connection, error) {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &lineConn{
		r:        t.Reader,
		w:        t.Writer,
		logger:   logger,
		incoming: make(chan readResult),
		closed:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

type readResult struct {
	msg jsonrpc.Message
	err error
}

type lineConn struct {
	r      io.ReadCloser
	w      io.WriteCloser
	logger *slog.Logger

	writeMu sync.Mutex

	incoming chan readResult

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// errorFrame is written for lines that never reach the protocol layer, so
// the id is always null.
type errorFrame struct {
	JSONRPC string          `json:"jsonrpc"`
	Error   frameError      `json:"error"`
	ID      json.RawMessage `json:"id"`
}

type frameError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *lineConn) readLoop() {
	br := bufio.NewReader(c.r)
	for {
		line, err := br.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			msg, decodeErr := jsonrpc.DecodeMessage(line)
			if decodeErr != nil {
				c.reject(line, decodeErr)
			} else if !c.deliver(readResult{msg: msg}) {
				return
			}
		}
		if err != nil {
			c.deliver(readResult{err: err})
			return
		}
	}
}

func (c *lineConn) deliver(r readResult) bool {
	select {
	case c.incoming <- r:
		return true
	case <-c.closed:
		return false
	}
}

// reject answers a line that is not a JSON-RPC message: -32700 when it is
// not JSON at all, -32600 when it is JSON but not a valid message.
func (c *lineConn) reject(line []byte, cause error) {
	code, message := jsonrpc.CodeInvalidRequest, "Invalid Request"
	if !json.Valid(line) {
		code, message = jsonrpc.CodeParseError, "Parse error"
	}
	c.logger.Warn("rejected stdio frame", "code", code, "error", cause)
	data, err := json.Marshal(errorFrame{
		JSONRPC: "2.0",
		Error:   frameError{Code: code, Message: message + ": " + cause.Error()},
		ID:      json.RawMessage("null"),
	})
	if err != nil {
		return
	}
	if err := c.writeLine(data); err != nil {
		c.logger.Warn("write error frame", "error", err)
	}
}

// Read implements mcp.Connection.
func (c *lineConn) Read(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-c.incoming:
		return r.msg, r.err
	case <-c.closed:
		return nil, io.EOF
	}
}

// Write implements mcp.Connection.
func (c *lineConn) Write(ctx context.Context, msg jsonrpc.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return err
	}
	return c.writeLine(data)
}

func (c *lineConn) writeLine(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	_, err := c.w.Write(append(data, '\n'))
	return err
}

// Close implements mcp.Connection.
func (c *lineConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = errors.Join(c.r.Close(), c.w.Close())
		close(c.closed)
	})
	return c.closeErr
}

// SessionID implements mcp.Connection.
func (c *lineConn) SessionID() string { return "" }
