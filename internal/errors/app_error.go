package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/audio-translator/translator/sdk/translator"
)

// Error codes returned by the HTTP API.
const (
	CodeInvalidRequest      = "invalid_request"
	CodeStrategyNotFound    = "strategy_not_found"
	CodeStrategyExists      = "strategy_exists"
	CodeMissingAPIKey       = "missing_api_key"
	CodeUnknownStrategyType = "unknown_strategy_type"
	CodeConfig              = "config_error"
	CodeProvider            = "provider_error"
	CodeInternal            = "internal_error"
)

// AppError represents a structured application error.
type AppError struct {
	// HTTPStatusCode is the HTTP status code to return.
	HTTPStatusCode int `json:"-"`
	// Code is an internal error code string.
	Code string `json:"code"`
	// Message is the user-facing error message.
	Message string `json:"message"`
	// Details provides additional error context (optional).
	Details map[string]any `json:"details,omitempty"`
	// Err is the underlying error (not marshaled to JSON).
	Err error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// ToJSON returns the JSON byte representation of the error.
func (e *AppError) ToJSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// WithDetail attaches a key to Details and returns e.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError.
func New(statusCode int, code, message string, err error) *AppError {
	return &AppError{
		HTTPStatusCode: statusCode,
		Code:           code,
		Message:        message,
		Err:            err,
	}
}

// NewInvalidRequestError reports a malformed API request.
func NewInvalidRequestError(message string, err error) *AppError {
	return New(http.StatusBadRequest, CodeInvalidRequest, message, err)
}

// NewConfigError reports an unusable strategy or service configuration.
func NewConfigError(message string) *AppError {
	return New(http.StatusBadRequest, CodeConfig, message, nil)
}

// NewMissingAPIKeyError reports a key-requiring strategy configured without a key.
func NewMissingAPIKeyError(strategy string) *AppError {
	return New(http.StatusBadRequest, CodeMissingAPIKey,
		fmt.Sprintf("strategy %s requires an api_key", strategy), nil).
		WithDetail("strategy", strategy)
}

// NewUnknownStrategyTypeError reports a declarative entry whose type has no factory.
func NewUnknownStrategyTypeError(typ string) *AppError {
	return New(http.StatusBadRequest, CodeUnknownStrategyType,
		fmt.Sprintf("unknown strategy type %q", typ), nil).
		WithDetail("type", typ)
}

// FromError maps err onto an AppError, keeping existing AppErrors as they are.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	var perr *translator.ProviderError
	switch {
	case stderrors.Is(err, translator.ErrStrategyNotFound), stderrors.Is(err, translator.ErrNoDefaultStrategy):
		return New(http.StatusNotFound, CodeStrategyNotFound, "strategy not found", err)
	case stderrors.Is(err, translator.ErrStrategyExists):
		return New(http.StatusConflict, CodeStrategyExists, "strategy already registered", err)
	case stderrors.Is(err, translator.ErrInvalidStrategy):
		return New(http.StatusBadRequest, CodeInvalidRequest, "invalid strategy", err)
	case stderrors.As(err, &perr):
		return New(http.StatusBadGateway, CodeProvider, "provider request failed", err).
			WithDetail("strategy", perr.Strategy)
	}
	return New(http.StatusInternalServerError, CodeInternal, "internal error", err)
}
