package api

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Error is the decoded failure body of the invoicing backend. The backend
// reports either a flat message or a field→message map under the same
// "error" key; exactly one of Message/Fields is set.
type Error struct {
	StatusCode int
	Message    string
	Fields     map[string]string
	Details    string
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		return strings.Join(parts, "; ")
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("estado HTTP inesperado: %d", e.StatusCode)
}

// errorBody mirrors the backend envelope {"error": ..., "details": ...}.
// The error value is dynamically shaped, hence the RawMessage.
type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Details any             `json:"details,omitempty"`
}

// decodeError turns a non-2xx response body into *Error. A body that is not
// the known envelope still yields a usable error carrying the status code.
func decodeError(status int, body []byte) *Error {
	apiErr := &Error{StatusCode: status}
	var env errorBody
	if err := json.Unmarshal(body, &env); err != nil || len(env.Error) == 0 {
		return apiErr
	}
	if env.Details != nil {
		apiErr.Details = fmt.Sprint(env.Details)
	}
	var msg string
	if err := json.Unmarshal(env.Error, &msg); err == nil {
		apiErr.Message = msg
		return apiErr
	}
	var fields map[string]string
	if err := json.Unmarshal(env.Error, &fields); err == nil && len(fields) > 0 {
		apiErr.Fields = fields
		return apiErr
	}
	// Unknown shape: keep it visible rather than dropping it.
	apiErr.Message = string(env.Error)
	return apiErr
}
