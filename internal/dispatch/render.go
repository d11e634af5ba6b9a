package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Render is the canonical stringification of a tool result, shared by every
// binding for content blocks and SSE tool_result events. Strings pass through
// unchanged; other values are encoded as compact JSON, so {"x": 1} renders as
// {"x":1}.
func Render(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case []byte:
		return string(t)
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
