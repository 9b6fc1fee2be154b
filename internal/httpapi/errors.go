package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/foxseedlab/callinsight/internal/ai"
	"github.com/foxseedlab/callinsight/internal/bulk"
	"github.com/foxseedlab/callinsight/internal/repository"
)

const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeAuthentication = "AUTHENTICATION_ERROR"
	CodeAuthorization  = "AUTHORIZATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeUpstream       = "UPSTREAM_ERROR"
	CodeInternal       = "INTERNAL_ERROR"
)

var (
	errUnauthenticated = errors.New("missing or invalid bearer token")
	errForbidden       = errors.New("resource belongs to another user")
	errUpstream        = errors.New("upstream AI service failed")
)

// ValidationError carries a message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps an error to its HTTP status and envelope.
func classify(err error, exposeInternal bool) (int, errorBody) {
	var ve *ValidationError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorBody{Error: "validation failed", Code: CodeValidation, Details: ve.Fields}
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, errorBody{
			Error: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
			Code:  CodeValidation,
		}
	case errors.Is(err, bulk.ErrNoFiles), errors.Is(err, bulk.ErrUnsupportedLanguage):
		return http.StatusBadRequest, errorBody{Error: err.Error(), Code: CodeValidation}
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized, errorBody{Error: err.Error(), Code: CodeAuthentication}
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, errorBody{Error: err.Error(), Code: CodeAuthorization}
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "resource not found", Code: CodeNotFound}
	case errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict, errorBody{Error: "resource already exists", Code: CodeConflict}
	case errors.Is(err, errUpstream), errors.Is(err, ai.ErrAllKeysFailed), errors.Is(err, ai.ErrNoAPIKeys):
		body := errorBody{Error: errUpstream.Error(), Code: CodeUpstream}
		if exposeInternal {
			body.Error = err.Error()
		}
		return http.StatusBadGateway, body
	default:
		body := errorBody{Error: "internal server error", Code: CodeInternal}
		if exposeInternal {
			body.Error = err.Error()
		}
		return http.StatusInternalServerError, body
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err, !s.cfg.IsProduction())
	entry := s.log.WithRequest(r).WithField("status", status).WithField("error", err.Error())
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	writeJSON(w, status, body)
}
