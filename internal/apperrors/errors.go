package apperrors

import (
	"errors"
	"net/http"
)

// ErrorCode is the machine-readable code clients switch on.
type ErrorCode string

const (
	ErrorCodeInternalError       ErrorCode = "INTERNAL_ERROR"
	ErrorCodeValidationError     ErrorCode = "VALIDATION_ERROR"
	ErrorCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrorCodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrorCodeForbidden           ErrorCode = "FORBIDDEN"
	ErrorCodeRateLimited         ErrorCode = "RATE_LIMITED"
	ErrorCodeAmpliPiTimeout      ErrorCode = "AMPLIPI_TIMEOUT"
	ErrorCodeAmpliPiUnreachable  ErrorCode = "AMPLIPI_UNREACHABLE"
	ErrorCodeAmpliPiRejected     ErrorCode = "AMPLIPI_REJECTED"
	ErrorCodeKeypadQueueFull     ErrorCode = "KEYPAD_QUEUE_FULL"
	ErrorCodeKeypadNotReady      ErrorCode = "KEYPAD_NOT_READY"
	ErrorCodeEventNotFound       ErrorCode = "EVENT_NOT_FOUND"
	ErrorCodeAuthPairingExpired  ErrorCode = "AUTH_PAIRING_EXPIRED"
	ErrorCodeAuthPairingInvalid  ErrorCode = "AUTH_PAIRING_INVALID"
	ErrorCodeAuthPairingLocked   ErrorCode = "AUTH_PAIRING_LOCKED"
	ErrorCodeAuthTokenExpired    ErrorCode = "AUTH_TOKEN_EXPIRED"
	ErrorCodeAuthTokenInvalid    ErrorCode = "AUTH_TOKEN_INVALID"
	ErrorCodeAuthScopeDenied     ErrorCode = "AUTH_SCOPE_DENIED"
	ErrorCodeCalibrationNotFound ErrorCode = "CALIBRATION_NOT_FOUND"
)

// Remediation tells a client what to do about an error.
type Remediation struct {
	Action     string `json:"action"`
	Endpoint   string `json:"endpoint,omitempty"`
	UserAction string `json:"user_action,omitempty"`
}

// ErrorType groups codes the way Stripe-style clients expect.
type ErrorType string

const (
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	ErrorTypeAPIError       ErrorType = "api_error"
	ErrorTypeAuthError      ErrorType = "authentication_error"
	ErrorTypeUpstreamError  ErrorType = "upstream_error"
)

// Body is the payload under "error" in every error response:
// {"type": "invalid_request_error", "code": "NOT_FOUND", "message": "..."}.
type Body struct {
	Type        ErrorType      `json:"type"`
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details,omitempty"`
	Remediation *Remediation   `json:"remediation,omitempty"`
}

// AppError is an error with an HTTP status attached.
type AppError struct {
	Code        ErrorCode
	Message     string
	StatusCode  int
	Details     map[string]any
	Remediation *Remediation
}

func (err *AppError) Error() string {
	return err.Message
}

// Body renders the error for the response envelope.
func (err *AppError) Body() Body {
	errType := ErrorTypeAPIError
	switch {
	case err.StatusCode == http.StatusUnauthorized || err.StatusCode == http.StatusForbidden:
		errType = ErrorTypeAuthError
	case err.StatusCode == http.StatusBadGateway || err.StatusCode == http.StatusGatewayTimeout:
		errType = ErrorTypeUpstreamError
	case err.StatusCode >= 400 && err.StatusCode < 500:
		errType = ErrorTypeInvalidRequest
	}

	return Body{
		Type:        errType,
		Code:        string(err.Code),
		Message:     err.Message,
		Details:     err.Details,
		Remediation: err.Remediation,
	}
}

func NewAppError(code ErrorCode, message string, statusCode int, details map[string]any, remediation *Remediation) *AppError {
	return &AppError{
		Code:        code,
		Message:     message,
		StatusCode:  statusCode,
		Details:     details,
		Remediation: remediation,
	}
}

func NewValidationError(message string, details map[string]any) *AppError {
	return NewAppError(ErrorCodeValidationError, message, http.StatusBadRequest, details, nil)
}

func NewUnauthorizedError(message string, code ...ErrorCode) *AppError {
	return NewAppError(pick(ErrorCodeUnauthorized, code), message, http.StatusUnauthorized, nil, nil)
}

// NewForbiddenError is for authenticated callers whose token does not cover
// the request.
func NewForbiddenError(message string, code ...ErrorCode) *AppError {
	return NewAppError(pick(ErrorCodeForbidden, code), message, http.StatusForbidden, nil, nil)
}

func NewNotFoundResource(resource, id string) *AppError {
	message := resource + " not found"
	details := map[string]any{
		"resource": resource,
	}
	if id != "" {
		message = resource + " not found: " + id
		details["id"] = id
	}
	return NewAppError(ErrorCodeNotFound, message, http.StatusNotFound, details, nil)
}

func NewRateLimitError(message string, code ...ErrorCode) *AppError {
	return NewAppError(pick(ErrorCodeRateLimited, code), message, http.StatusTooManyRequests, nil, nil)
}

func NewServiceUnavailableError(code ErrorCode, message string) *AppError {
	return NewAppError(code, message, http.StatusServiceUnavailable, nil, nil)
}

// NewUpstreamError reports a failed call to the AmpliPi. status is 502 when
// the AmpliPi answered badly and 504 when it did not answer in time.
func NewUpstreamError(code ErrorCode, message string, status int, remediation *Remediation) *AppError {
	return NewAppError(code, message, status, nil, remediation)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrorCodeInternalError, message, http.StatusInternalServerError, nil, nil)
}

// EnsureAppError unwraps an AppError from err, hiding anything else behind
// a generic 500.
func EnsureAppError(err error) *AppError {
	if err == nil {
		return NewInternalError("Unknown error")
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError("Internal server error")
}

func pick(fallback ErrorCode, code []ErrorCode) ErrorCode {
	if len(code) > 0 {
		return code[0]
	}
	return fallback
}
