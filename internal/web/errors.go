package web

// errors.go maps pipeline errors onto HTTP responses.
//
// Every error is logged with its full text and the request ID. Clients get a
// JSON body {"error": ..., "code": ...} whose code is stable and safe to
// match on; the message is the error text for client mistakes and a generic
// sentence for server-side failures. An operation that failed after writing
// some records also reports that count.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/stagepipe/internal/database"
	"github.com/JonMunkholm/stagepipe/internal/logging"
	"github.com/JonMunkholm/stagepipe/internal/pipeline"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Records *int   `json:"records,omitempty"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	exposed bool
}

var errorMappings = []errorMapping{
	{pipeline.ErrInvalidSource, http.StatusBadRequest, "INVALID_SOURCE", true},
	{pipeline.ErrMalformedInput, http.StatusBadRequest, "MALFORMED_INPUT", true},
	{pipeline.ErrUpstream, http.StatusBadGateway, "UPSTREAM_FAILED", true},
	{pipeline.ErrMalformedPayload, http.StatusUnprocessableEntity, "MALFORMED_PAYLOAD", true},
	{ErrTooBusy, http.StatusTooManyRequests, "TOO_BUSY", true},
	{database.ErrUnparameterized, http.StatusInternalServerError, "UNSAFE_QUERY", false},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT", false},
	{context.Canceled, 499, "CANCELED", false},
}

// mapError picks the status and code for err. Unknown errors are 500s.
func mapError(err error) (int, ErrorResponse) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := http.StatusText(m.status)
			if m.exposed {
				msg = err.Error()
			}
			if msg == "" {
				msg = "request canceled"
			}
			return m.status, ErrorResponse{Error: msg, Code: m.code}
		}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "INTERNAL"}
}

// respondError logs err and writes the mapped JSON error.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	respondPartialError(w, r, err, 0)
}

// respondPartialError is respondError for an operation that had already
// written records when it failed. A zero count is left out of the body.
func respondPartialError(w http.ResponseWriter, r *http.Request, err error, records int) {
	status, body := mapError(err)
	if records > 0 {
		body.Records = &records
	}

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", body.Code,
		"records", records,
		"error", err.Error(),
	)

	writeJSON(w, status, body)
}

// badRequest writes a 400 for problems found before reaching the pipeline.
func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "BAD_REQUEST"})
}
