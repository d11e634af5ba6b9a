package server

import (
	"encoding/json"
	"net/http"

	"mcp-wiki/internal/dispatch"
)

const jsonrpcVersion = "2.0"

// JSON-RPC 2.0 error codes used by the HTTP bindings. Malformed bodies are
// reported as internal errors.
const (
	codeMethodNotFound = -32601
	codeInternalError  = -32603
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcResponse always carries id, as null when the request had none.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callToolResult struct {
	Content []textContent `json:"content"`
}

func rpcResult(id json.RawMessage, result any) rpcResponse {
	return rpcResponse{JSONRPC: jsonrpcVersion, Result: result, ID: normalizeID(id)}
}

func rpcFailure(id json.RawMessage, code int, msg string) rpcResponse {
	return rpcResponse{JSONRPC: jsonrpcVersion, Error: &rpcError{Code: code, Message: msg}, ID: normalizeID(id)}
}

func hasID(id json.RawMessage) bool {
	return len(id) > 0 && string(id) != "null"
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if !hasID(id) {
		return json.RawMessage("null")
	}
	return id
}

// outcomeResponse shapes a dispatch outcome the same way for /tools/call and
// the streamable tools/call method.
func outcomeResponse(id json.RawMessage, out dispatch.Outcome) rpcResponse {
	switch out.Kind {
	case dispatch.Success:
		return rpcResult(id, callToolResult{
			Content: []textContent{{Type: "text", Text: dispatch.Render(out.Value)}},
		})
	case dispatch.ToolNotFound:
		return rpcFailure(id, codeMethodNotFound, out.Message)
	default:
		return rpcFailure(id, codeInternalError, out.Message)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
