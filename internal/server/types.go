package server

import (
	"encoding/json"
)

// Tool is a catalog entry as advertised by the streamable binding.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// CallRequest is the body of POST /tools/call and POST /sse/call. Arguments
// stay raw until the tool is known to exist.
type CallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	ID        json.RawMessage `json:"id,omitempty"`
}

// ServerInfo identifies the server in the initialize result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities of the discovery documents.
type Capabilities struct {
	Tools     bool  `json:"tools"`
	Resources *bool `json:"resources,omitempty"`
	Prompts   *bool `json:"prompts,omitempty"`
}

// permissiveSchema accepts any argument object; handlers validate their own
// arguments.
func permissiveSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": true,
	}
}
