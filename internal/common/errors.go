package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
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

// Error kinds. Every failure leaving the extraction pipeline matches exactly one of
// these through errors.Is; callers pick user-facing wording from the kind.
var (
	ErrValidation         = errors.New("validation failed")
	ErrConfiguration      = errors.New("service not configured")
	ErrTimeout            = errors.New("request timed out")
	ErrRateLimit          = errors.New("vision service rate limit exceeded")
	ErrAuthentication     = errors.New("vision service authentication failed")
	ErrServiceUnavailable = errors.New("vision model unavailable")
	ErrNetwork            = errors.New("cannot reach vision service")
	ErrExternalService    = errors.New("vision service error")
	ErrParse              = errors.New("unrecognized model response")
	ErrUploadRateLimited  = errors.New("upload rate limit exceeded")
	ErrInternal           = errors.New("internal error")
)

// Codes carried in AppError.Code, one per kind.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeConfiguration      = "CONFIGURATION_ERROR"
	CodeTimeout            = "TIMEOUT"
	CodeRateLimit          = "RATE_LIMITED"
	CodeAuthentication     = "AUTHENTICATION_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeNetwork            = "NETWORK_ERROR"
	CodeExternalService    = "EXTERNAL_SERVICE_ERROR"
	CodeParse              = "PARSE_ERROR"
	CodeUploadRateLimited  = "UPLOAD_RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
)

var kindByCode = map[string]error{
	CodeValidation:         ErrValidation,
	CodeConfiguration:      ErrConfiguration,
	CodeTimeout:            ErrTimeout,
	CodeRateLimit:          ErrRateLimit,
	CodeAuthentication:     ErrAuthentication,
	CodeServiceUnavailable: ErrServiceUnavailable,
	CodeNetwork:            ErrNetwork,
	CodeExternalService:    ErrExternalService,
	CodeParse:              ErrParse,
	CodeUploadRateLimited:  ErrUploadRateLimited,
	CodeInternal:           ErrInternal,
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewKindError builds an AppError whose Cause joins the kind sentinel for code with the
// underlying error, so both errors.Is(err, kind) and errors.As on the original work.
func NewKindError(code, message string, cause error) *AppError {
	kind, ok := kindByCode[code]
	if !ok {
		kind = ErrInternal
	}
	if cause == nil {
		return NewAppError(code, message, kind)
	}
	return NewAppError(code, message, fmt.Errorf("%w: %w", kind, cause))
}

// CodeOf returns the AppError code carried by err, or CodeInternal.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	var ve ValidationError
	if errors.As(err, &ve) {
		return CodeValidation
	}
	return CodeInternal
}

// GRPCCode maps an error kind onto the closest gRPC status code.
func GRPCCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, ErrUploadRateLimited), errors.Is(err, ErrRateLimit):
		return codes.ResourceExhausted
	case errors.Is(err, ErrTimeout):
		return codes.DeadlineExceeded
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrAuthentication):
		return codes.FailedPrecondition
	case errors.Is(err, ErrServiceUnavailable), errors.Is(err, ErrNetwork):
		return codes.Unavailable
	case errors.Is(err, ErrParse):
		return codes.DataLoss
	case errors.Is(err, ErrExternalService):
		return codes.Unknown
	default:
		return codes.Internal
	}
}

// ToStatus converts err into a gRPC status error with a caller-safe message.
func ToStatus(err error, message string) error {
	if err == nil {
		return nil
	}
	return status.Error(GRPCCode(err), message)
}
