package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/imf-gadgets/gadget-core/internal/auth"
	"github.com/imf-gadgets/gadget-core/internal/gadget"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Error codes.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeValidation         = "validation_error"
	ErrCodeAuthRequired       = "authentication_required"
	ErrCodeInvalidCredential  = "invalid_credential"
	ErrCodeNotFound           = "not_found"
	ErrCodeRegistrationFailed = "registration_failed"
	ErrCodeDuplicateName      = "duplicate_name"
	ErrCodeInvalidTransition  = "invalid_transition"
	ErrCodeConflict           = "conflict"
	ErrCodeUnavailable        = "service_unavailable"
	ErrCodeInternal           = "internal_error"
)

// writeJSON writes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // best-effort write; the client may have gone
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	writeError(w, http.StatusUnauthorized, code, message)
}

func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
}

// writeGadgetError maps gadget errors onto responses. Anything unrecognised
// is logged and reported as a bare 500.
func (s *Server) writeGadgetError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case gadget.IsValidationError(err):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, gadget.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "gadget not found")
	case errors.Is(err, gadget.ErrDuplicateName):
		writeError(w, http.StatusBadRequest, ErrCodeDuplicateName, "gadget name already in use")
	case errors.Is(err, gadget.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidTransition, err.Error())
	case errors.Is(err, gadget.ErrConcurrentUpdate):
		writeError(w, http.StatusConflict, ErrCodeConflict, "gadget was modified by another request, retry")
	default:
		s.logger.Error("gadget operation failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
			"error", err,
		)
		writeInternalError(w)
	}
}

// writeAuthError maps credential errors onto responses.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, auth.ErrUsernameExists):
		writeError(w, http.StatusBadRequest, ErrCodeRegistrationFailed, "registration failed")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeUnauthorized(w, ErrCodeInvalidCredential, "invalid credentials")
	default:
		s.logger.Error("auth operation failed",
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
			"error", err,
		)
		writeInternalError(w)
	}
}
