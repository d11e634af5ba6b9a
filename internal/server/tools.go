package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"mcp-wiki/internal/dispatch"
	"mcp-wiki/internal/registry"
)

type toolsList struct {
	Tools []registry.Entry `json:"tools"`
}

// listResponse is the id-less envelope of GET /tools.
type listResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  toolsList `json:"result"`
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, listResponse{JSONRPC: jsonrpcVersion, Result: toolsList{Tools: s.tools.List()}})
}

// handleCall serves POST /tools/call. Every response is a JSON-RPC envelope
// with status 200; failures travel in the error member.
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.logger.Warn("malformed tools/call body", "err", err)
		writeJSON(w, http.StatusOK, rpcFailure(nil, codeInternalError, err.Error()))
		return
	}
	out := s.invoke(r.Context(), req.Name, req.Arguments)
	writeJSON(w, http.StatusOK, outcomeResponse(req.ID, out))
}

// invoke resolves the tool before decoding its arguments, so an unknown tool
// is reported as such whatever the arguments look like.
func (s *Server) invoke(ctx context.Context, name string, raw json.RawMessage) dispatch.Outcome {
	if !s.tools.Has(name) {
		return s.invoker.Invoke(ctx, name, nil)
	}
	args, err := decodeArgs(raw)
	if err != nil {
		s.logger.Warn("invalid tool arguments", "tool", name, "err", err)
		return dispatch.Outcome{Kind: dispatch.ExecutionError, Tool: name, Message: err.Error()}
	}
	return s.invoker.Invoke(ctx, name, args)
}

// decodeArgs decodes an arguments member. Absent or null arguments are nil.
func decodeArgs(raw json.RawMessage) (registry.Args, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var args registry.Args
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	return args, nil
}
