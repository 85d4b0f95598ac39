package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/tendant/simple-todo/pkg/domain"
)

const (
	msgEmailDelivery = "Failed to send email. Please try again later."
	msgGeneric       = "An unexpected error occurred"
)

var (
	// ErrInvalidBody reports a request body that is not valid JSON for the endpoint.
	ErrInvalidBody = errors.New("invalid request body")
	// ErrBodyTooLarge reports a request body over the configured limit.
	ErrBodyTooLarge = errors.New("request body too large")
)

// statusByKind is the single mapping from error kind to HTTP status.
var statusByKind = map[domain.Kind]int{
	domain.KindValidation:         http.StatusBadRequest,
	domain.KindAlreadyExists:      http.StatusConflict,
	domain.KindInvalidCredentials: http.StatusUnauthorized,
	domain.KindNotVerified:        http.StatusForbidden,
	domain.KindLocked:             http.StatusLocked,
	domain.KindTokenExpired:       http.StatusUnauthorized,
	domain.KindInvalidToken:       http.StatusUnauthorized,
	domain.KindNotFound:           http.StatusNotFound,
	domain.KindEmailDelivery:      http.StatusInternalServerError,
	domain.KindConflict:           http.StatusConflict,
	domain.KindPasswordMismatch:   http.StatusBadRequest,
	domain.KindUnauthenticated:    http.StatusUnauthorized,
	domain.KindForbidden:          http.StatusForbidden,
	domain.KindGeneric:            http.StatusInternalServerError,
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Message   string            `json:"message"`
	Status    int               `json:"status"`
	Timestamp string            `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// MessageResponse is the body of operations that only report an outcome.
type MessageResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Message writes a {message, success:true} response.
func Message(w http.ResponseWriter, status int, message string) {
	JSON(w, status, MessageResponse{Message: message, Success: true})
}

// Error writes the error envelope with a fixed status and message.
func Error(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, message, nil)
}

// WriteError classifies err and writes the matching envelope. Only the
// public message of a known error is exposed; unknown errors are logged and
// reported generically.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		writeEnvelope(w, http.StatusRequestEntityTooLarge, ErrBodyTooLarge.Error(), nil)
		return
	case errors.Is(err, ErrInvalidBody):
		writeEnvelope(w, http.StatusBadRequest, ErrInvalidBody.Error(), nil)
		return
	}

	kind, sentinel := domain.Classify(err)
	status := statusByKind[kind]

	switch kind {
	case domain.KindValidation:
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeEnvelope(w, status, domain.ErrValidation.Error(), verr.Fields)
			return
		}
		writeEnvelope(w, status, sentinel.Error(), nil)
	case domain.KindEmailDelivery:
		logError(r, logger, "email delivery failed", err)
		writeEnvelope(w, status, msgEmailDelivery, nil)
	case domain.KindGeneric:
		logError(r, logger, "unhandled error", err)
		writeEnvelope(w, status, msgGeneric, nil)
	default:
		writeEnvelope(w, status, sentinel.Error(), nil)
	}
}

// DecodeJSON decodes the request body into dst. A Validate method on dst is
// run afterwards and its failures are returned as *domain.ValidationError.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ErrBodyTooLarge
		}
		return ErrInvalidBody
	}
	if v, ok := dst.(validation.Validatable); ok {
		if err := v.Validate(); err != nil {
			return FromValidation(err)
		}
	}
	return nil
}

// FromValidation converts ozzo-validation errors into a domain validation error.
func FromValidation(err error) error {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}
	fields := make(map[string]string, len(errs))
	for field, fieldErr := range errs {
		if fieldErr == nil {
			continue
		}
		fields[field] = capitalize(fieldErr.Error())
	}
	if len(fields) == 0 {
		return nil
	}
	return &domain.ValidationError{Fields: fields}
}

func writeEnvelope(w http.ResponseWriter, status int, message string, details map[string]string) {
	JSON(w, status, ErrorResponse{
		Message:   message,
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Details:   details,
	})
}

func logError(r *http.Request, logger *slog.Logger, msg string, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(r.Context(), msg, "method", r.Method, "path", r.URL.Path, "error", err)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
