package backend

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is a non-2xx reply from either service, already reduced to
// one human-readable line.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorText reduces an HTTP failure to a single human-readable line.
// Precedence: field-level validation errors joined with "; ", then a
// string detail/error field, then a string message field, then
// "<code> <status text>", then a generic line. Never returns a
// serialized object.
func ErrorText(statusCode int, statusText string, body []byte) string {
	var payload map[string]interface{}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &payload)
	}

	if payload != nil {
		for _, key := range []string{"detail", "errors"} {
			if items, ok := payload[key].([]interface{}); ok && len(items) > 0 {
				if joined := joinFieldErrors(items); joined != "" {
					return joined
				}
			}
		}
		for _, key := range []string{"detail", "error"} {
			if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
		if s, ok := payload["message"].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}

	if statusCode > 0 {
		return fmt.Sprintf("%d %s", statusCode, statusText)
	}
	return "request failed"
}

// joinFieldErrors renders a FastAPI-style validation error array as
// "loc.path: message" entries joined with "; ".
func joinFieldErrors(items []interface{}) string {
	var parts []string
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		loc := dottedLocation(m["loc"])
		msg, _ := m["msg"].(string)
		if msg == "" {
			msg, _ = m["type"].(string)
		}
		switch {
		case loc != "" && msg != "":
			parts = append(parts, loc+": "+msg)
		case msg != "":
			parts = append(parts, msg)
		case loc != "":
			parts = append(parts, loc)
		}
	}
	return strings.Join(parts, "; ")
}

// dottedLocation joins a validation error location list like
// ["body", "requirement"] into "body.requirement".
func dottedLocation(v interface{}) string {
	items, ok := v.([]interface{})
	if !ok {
		return ""
	}
	var parts []string
	for _, item := range items {
		switch t := item.(type) {
		case string:
			parts = append(parts, t)
		case float64:
			parts = append(parts, fmt.Sprintf("%d", int64(t)))
		}
	}
	return strings.Join(parts, ".")
}
