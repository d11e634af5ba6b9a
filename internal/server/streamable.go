package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// protocolVersion is the MCP revision announced by initialize.
const protocolVersion = "2024-11-05"

const streamableTransport = "streamable-http"

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

type toolsListResult struct {
	Tools []Tool `json:"tools"`
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type discoveryDocument struct {
	Name              string       `json:"name"`
	Version           string       `json:"version"`
	Protocol          string       `json:"protocol"`
	Transport         string       `json:"transport"`
	Capabilities      Capabilities `json:"capabilities"`
	ToolsCount        int          `json:"tools_count"`
	ChatGPTCompatible bool         `json:"chatgpt_compatible,omitempty"`
}

func (s *Server) discovery() discoveryDocument {
	return discoveryDocument{
		Name:         s.cfg.Name,
		Version:      s.cfg.Version,
		Protocol:     "mcp",
		Transport:    streamableTransport,
		Capabilities: Capabilities{Tools: true},
		ToolsCount:   s.tools.Len(),
	}
}

// handleStreamableRoot serves GET / in chatgpt mode.
func (s *Server) handleStreamableRoot(w http.ResponseWriter, _ *http.Request) {
	doc := s.discovery()
	no := false
	doc.Capabilities.Resources = &no
	doc.Capabilities.Prompts = &no
	doc.ChatGPTCompatible = true
	writeJSON(w, http.StatusOK, doc)
}

// handleMCPDiscovery serves GET /mcp for clients that inspect the endpoint before posting.
func (s *Server) handleMCPDiscovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.discovery())
}

// handleMCP serves POST /mcp, routing on the JSON-RPC method.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.logger.Warn("malformed mcp request", "err", err)
		writeJSON(w, http.StatusOK, rpcFailure(nil, codeInternalError, err.Error()))
		return
	}

	// Notifications carry no id (or a null one) and get no response body.
	if !hasID(req.ID) && strings.HasPrefix(req.Method, "notifications/") {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	switch req.Method {
	case "initialize":
		writeJSON(w, http.StatusOK, rpcResult(req.ID, initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      ServerInfo{Name: s.cfg.Name, Version: s.cfg.Version},
		}))
	case "ping":
		writeJSON(w, http.StatusOK, rpcResult(req.ID, struct{}{}))
	case "tools/list":
		entries := s.tools.List()
		tools := make([]Tool, 0, len(entries))
		for _, e := range entries {
			tools = append(tools, Tool{Name: e.Name, Description: e.Description, InputSchema: permissiveSchema()})
		}
		writeJSON(w, http.StatusOK, rpcResult(req.ID, toolsListResult{Tools: tools}))
	case "tools/call":
		var p callParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &p); err != nil {
				writeJSON(w, http.StatusOK, rpcFailure(req.ID, codeInternalError, err.Error()))
				return
			}
		}
		out := s.invoke(r.Context(), p.Name, p.Arguments)
		writeJSON(w, http.StatusOK, outcomeResponse(req.ID, out))
	default:
		writeJSON(w, http.StatusOK, rpcFailure(req.ID, codeMethodNotFound, fmt.Sprintf("Method '%s' not found", req.Method)))
	}
}
