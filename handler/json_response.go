package handler

import (
	"encoding/json"
	"net/http"
)

// jsonResponse renders an arbitrary value as the response body.
type jsonResponse struct {
	status int
	body   any
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	if j.body == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures a JSON response.
type JSONOption func(*jsonResponse)

// WithJSONStatus sets a custom HTTP status code.
func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) {
		r.status = status
	}
}

// JSON renders v as is with status 200 unless overridden.
// The body shape is owned by the caller: API routes in this service
// expose their own envelopes rather than a framework-wide one.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{
		status: http.StatusOK,
		body:   v,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ErrorBody is the JSON body written for failed requests.
type ErrorBody struct {
	Error    string `json:"error"`
	Details  string `json:"details,omitempty"`
	Critical bool   `json:"critical,omitempty"`
}

// JSONError renders an ErrorBody with the given status.
func JSONError(status int, body ErrorBody) Response {
	return &jsonResponse{status: status, body: body}
}
