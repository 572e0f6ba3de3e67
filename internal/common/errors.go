package common

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a failure for the user-facing boundary.
type Kind string

const (
	KindExtraction     Kind = "EXTRACTION_ERROR"
	KindAuthentication Kind = "AUTHENTICATION_ERROR"
	KindRateLimit      Kind = "RATE_LIMIT_ERROR"
	KindModel          Kind = "MODEL_ERROR"
	KindFormatting     Kind = "FORMATTING_ERROR"
	KindInvalidInput   Kind = "INVALID_INPUT"
	KindInternal       Kind = "INTERNAL_ERROR"
)

// AppError represents application-specific errors
type AppError struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match the Kind sentinels below.
func (e *AppError) Is(target error) bool {
	k, ok := target.(kindSentinel)
	return ok && e.Kind == Kind(k)
}

// GRPCStatus maps the error onto a gRPC status so status.Code(err) works on wrapped AppErrors.
func (e *AppError) GRPCStatus() *status.Status {
	return status.New(CodeForKind(e.Kind), e.Message)
}

type kindSentinel Kind

func (k kindSentinel) Error() string { return string(k) }

// Sentinels usable with errors.Is.
var (
	ErrExtraction     error = kindSentinel(KindExtraction)
	ErrAuthentication error = kindSentinel(KindAuthentication)
	ErrRateLimit      error = kindSentinel(KindRateLimit)
	ErrModel          error = kindSentinel(KindModel)
	ErrFormatting     error = kindSentinel(KindFormatting)
	ErrInvalidInput   error = kindSentinel(KindInvalidInput)
	ErrInternal       error = kindSentinel(KindInternal)
)

// Error constructors
func NewAppError(kind Kind, code, message string, cause error) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func ExtractionError(message string, cause error) *AppError {
	return NewAppError(KindExtraction, "EXTRACTION_FAILED", message, cause)
}

func AuthenticationError(message string, cause error) *AppError {
	return NewAppError(KindAuthentication, "AUTHENTICATION_FAILED", message, cause)
}

func RateLimitError(message string, cause error) *AppError {
	return NewAppError(KindRateLimit, "RATE_LIMITED", message, cause)
}

func ModelError(message string, cause error) *AppError {
	return NewAppError(KindModel, "MODEL_FAILED", message, cause)
}

func FormattingError(message string, cause error) *AppError {
	return NewAppError(KindFormatting, "FORMATTING_FAILED", message, cause)
}

func InvalidInputError(message string) *AppError {
	return NewAppError(KindInvalidInput, "INVALID_INPUT", message, nil)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// KindOf returns the Kind of the first AppError in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// UserMessage renders err as the short message shown to a user.
func UserMessage(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "An unexpected error occurred during processing."
}

// CodeForKind is the gRPC code for each Kind.
func CodeForKind(k Kind) codes.Code {
	switch k {
	case KindExtraction, KindInvalidInput:
		return codes.InvalidArgument
	case KindAuthentication:
		return codes.Unauthenticated
	case KindRateLimit:
		return codes.ResourceExhausted
	case KindModel:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// HTTPStatus maps err to an HTTP status through its gRPC code.
func HTTPStatus(err error) int {
	switch status.Code(err) {
	case codes.InvalidArgument:
		return http.StatusUnprocessableEntity
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
