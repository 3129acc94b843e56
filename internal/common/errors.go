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

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")

	// ErrUpstreamClassification marks a failed or unparsable external classifier call.
	// It must never be collapsed into an empty claim set.
	ErrUpstreamClassification = errors.New("upstream classification failed")
)

// Error codes carried by AppError.
const (
	CodeConfig                 = "CONFIG_ERROR"
	CodeUpstreamClassification = "UPSTREAM_CLASSIFICATION"
	CodeStorage                = "STORAGE_ERROR"
	CodeIngest                 = "INGEST_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// UpstreamError wraps a classifier failure so callers can tell it apart from "no claims".
func UpstreamError(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrUpstreamClassification
	} else if !errors.Is(cause, ErrUpstreamClassification) {
		cause = fmt.Errorf("%w: %w", ErrUpstreamClassification, cause)
	}
	return NewAppError(CodeUpstreamClassification, message, cause)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// ToStatus maps application errors onto gRPC status codes at the transport boundary.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrUpstreamClassification):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
