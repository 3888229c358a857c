// Package http provides HTTP server and handler implementations.
//
// This file implements a small builder for JSON responses and maps domain
// errors onto status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"finman/internal/core"
	"finman/internal/log"
)

const internalErrorMessage = "An unexpected error occurred on the server."

// JSONResponseBuilder provides a fluent API for building JSON responses.
// A response carries either a payload set with Data or an object assembled
// from Message and Field.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	fields     map[string]any
	data       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
		fields:     make(map[string]any),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	return b.Field("message", msg)
}

func (b *JSONResponseBuilder) Field(name string, value any) *JSONResponseBuilder {
	b.fields[name] = value
	return b
}

// Data replaces the body with v. Fields set earlier are ignored.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.data = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	body := b.data
	if body == nil {
		body = b.fields
	}
	payload, err := json.Marshal(body)
	if err != nil {
		http.Error(w, `{"error":"`+internalErrorMessage+`"}`, http.StatusInternalServerError)
		return
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n"))
}

// ErrorResponse creates a {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Field("error", message)
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func ValidationError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, internalErrorMessage)
}

// statusFor maps an error returned by parsing or a service call.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case isMalformed(err):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidArgument):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return log.ErrorTypeValidation
	case http.StatusNotFound:
		return log.ErrorTypeNotFound
	default:
		return log.ErrorTypeInternal
	}
}

// writeError logs err with the request logger and answers with the mapped
// status. Internal failures never leak their message to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := log.FromContext(r.Context())
	args := []any{
		log.FieldError, err,
		log.FieldStatusCode, status,
		log.FieldPath, r.URL.Path,
		"error_type", errorType(status),
	}

	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", args...)
		InternalServerError().Write(w)
		return
	}
	logger.WarnContext(r.Context(), "Request rejected", args...)
	ErrorResponse(status, err.Error()).Write(w)
}
