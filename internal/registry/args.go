package registry

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ArgumentError reports a missing or mistyped tool argument.
type ArgumentError struct {
	Name   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %q: %s", e.Name, e.Reason)
}

// Args is the named-argument mapping of one invocation. Values are whatever
// the wire decoder produced (JSON numbers arrive as float64).
type Args map[string]any

func (a Args) value(name string) (any, bool) {
	v, ok := a[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// String returns the string argument name, or def when it is absent.
func (a Args) String(name, def string) (string, error) {
	v, ok := a.value(name)
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &ArgumentError{Name: name, Reason: fmt.Sprintf("expected string, got %T", v)}
	}
	return s, nil
}

// RequiredString returns a non-blank string argument.
func (a Args) RequiredString(name string) (string, error) {
	s, err := a.String(name, "")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", &ArgumentError{Name: name, Reason: "is required and cannot be empty"}
	}
	return s, nil
}

// Int returns the integer argument name, or def when it is absent.
func (a Args) Int(name string, def int) (int, error) {
	v, ok := a.value(name)
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, &ArgumentError{Name: name, Reason: fmt.Sprintf("expected integer, got %v", n)}
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, &ArgumentError{Name: name, Reason: fmt.Sprintf("expected integer, got %s", n)}
		}
		return int(i), nil
	default:
		return 0, &ArgumentError{Name: name, Reason: fmt.Sprintf("expected integer, got %T", v)}
	}
}

// Bool returns the boolean argument name, or def when it is absent.
func (a Args) Bool(name string, def bool) (bool, error) {
	v, ok := a.value(name)
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, &ArgumentError{Name: name, Reason: fmt.Sprintf("expected boolean, got %T", v)}
	}
	return b, nil
}

// Strings returns a non-empty list-of-strings argument.
func (a Args) Strings(name string) ([]string, error) {
	v, ok := a.value(name)
	if !ok {
		return nil, &ArgumentError{Name: name, Reason: "must be a non-empty list of strings"}
	}
	var out []string
	switch list := v.(type) {
	case []string:
		out = append(out, list...)
	case []any:
		out = make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, &ArgumentError{Name: name, Reason: fmt.Sprintf("item %d: expected string, got %T", i, item)}
			}
			out = append(out, s)
		}
	default:
		return nil, &ArgumentError{Name: name, Reason: fmt.Sprintf("expected list of strings, got %T", v)}
	}
	if len(out) == 0 {
		return nil, &ArgumentError{Name: name, Reason: "must be a non-empty list of strings"}
	}
	return out, nil
}
