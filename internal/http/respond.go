package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jhonier182/lista-mercado/internal/core"
	"github.com/jhonier182/lista-mercado/internal/log"
)

// Error kinds that exist only at the HTTP boundary.
const (
	kindBadRequest       core.ErrorKind = "bad_request"
	kindRateLimited      core.ErrorKind = "rate_limited"
	kindMethodNotAllowed core.ErrorKind = "method_not_allowed"
)

// envelope wraps every JSON body the API writes.
type envelope struct {
	Data  any        `json:"data"`
	Error *errorBody `json:"error"`
}

type errorBody struct {
	Kind    core.ErrorKind `json:"kind"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
}

// badRequest marks a request the API could not read at all, as opposed to
// one whose values failed validation.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func errBadRequest(msg string) error { return &badRequest{msg: msg} }

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).
			ErrorContext(r.Context(), "Failed to encode JSON response", log.FieldError, err)
	}
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, r, status, envelope{Data: data})
}

// statusFor maps an error to its HTTP status and public body. Backend
// failures never expose the underlying error text.
func statusFor(err error) (int, errorBody) {
	var br *badRequest
	if errors.As(err, &br) {
		return http.StatusBadRequest, errorBody{Kind: kindBadRequest, Message: br.msg}
	}

	switch kind := core.KindOf(err); kind {
	case core.KindAuthRequired:
		return http.StatusUnauthorized, errorBody{Kind: kind, Message: err.Error()}
	case core.KindValidation:
		body := errorBody{Kind: kind, Message: err.Error()}
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			body.Field = ve.Field
		}
		return http.StatusUnprocessableEntity, body
	case core.KindNotFound:
		return http.StatusNotFound, errorBody{Kind: kind, Message: "record not found"}
	default:
		return http.StatusServiceUnavailable, errorBody{Kind: core.KindBackend, Message: "storage backend unavailable, try again later"}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	if status >= 500 {
		log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).ErrorContext(r.Context(), "Request failed",
			log.FieldErrorKind, string(body.Kind),
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
	}
	writeJSON(w, r, status, envelope{Error: &body})
}

func writeNotFoundRoute(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusNotFound, envelope{Error: &errorBody{Kind: core.KindNotFound, Message: "no such route"}})
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusMethodNotAllowed, envelope{Error: &errorBody{Kind: kindMethodNotAllowed, Message: "method not allowed"}})
}

func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusTooManyRequests, envelope{Error: &errorBody{Kind: kindRateLimited, Message: "rate limit exceeded, try again later"}})
}
