// Package httpx holds the HTTP plumbing shared by the marketplace
// handlers: JSON responses, error mapping, middleware and outbound JSON
// calls.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/marketplace-orderflow/internal/apperr"
)

// sensitiveHeaders are never written to logs.
var sensitiveHeaders = []string{"Authorization", "Cookie", "X-Api-Key"}

type errorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func WriteJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// WriteError maps err onto a status code, logs it at the severity of its
// class and writes the caller-facing message.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := apperr.StatusCode(err)

	attrs := []any{
		"error", err.Error(),
		"status", status,
		"method", r.Method,
		"path", r.URL.Path,
		"query", r.URL.RawQuery,
		"headers", loggableHeaders(r.Header),
	}

	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindAuthentication, apperr.KindForbidden:
		logger.WarnContext(r.Context(), "request rejected", attrs...)
	case apperr.KindNotFound:
		logger.InfoContext(r.Context(), "item not found", attrs...)
	default:
		logger.ErrorContext(r.Context(), "request failed", attrs...)
	}

	WriteJSON(w, logger, status, errorResponse{Message: apperr.Message(err), Status: status})
}

func loggableHeaders(h http.Header) http.Header {
	clean := h.Clone()
	for _, name := range sensitiveHeaders {
		clean.Del(name)
	}
	return clean
}

// DecodeJSON decodes the request body into v. An empty or malformed body
// is a validation error.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Wrap(apperr.Validation("invalid request body"), err)
	}
	return nil
}
