package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer. Retry classification is derived
// from these: InvalidArgument and the permanent channel sentinels are
// discarded, everything else raised by the Slack API is retried unless
// the classifier says otherwise.
var (
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrNotInChannel    = fmt.Errorf("bot is not a member of the channel")
	ErrChannelNotFound = fmt.Errorf("channel not found")
	ErrChannelArchived = fmt.Errorf("channel is archived")
	ErrRateLimited     = fmt.Errorf("rate limited")
	ErrConfiguration   = fmt.Errorf("configuration error")
	ErrProfileNotFound = fmt.Errorf("profile not found")
	ErrDisabled        = fmt.Errorf("delivery disabled")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g., "delivery.Validate")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown         ErrorCode = "UNKNOWN"
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	CodeNotInChannel    ErrorCode = "NOT_IN_CHANNEL"
	CodeChannelNotFound ErrorCode = "CHANNEL_NOT_FOUND"
	CodeChannelArchived ErrorCode = "CHANNEL_ARCHIVED"
	CodeRateLimited     ErrorCode = "RATE_LIMITED"
	CodeConfiguration   ErrorCode = "CONFIGURATION"
	CodeProfileNotFound ErrorCode = "PROFILE_NOT_FOUND"
	CodeDisabled        ErrorCode = "DISABLED"
	CodeAPIError        ErrorCode = "API_ERROR"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrInvalidArgument: CodeInvalidArgument,
	ErrNotInChannel:    CodeNotInChannel,
	ErrChannelNotFound: CodeChannelNotFound,
	ErrChannelArchived: CodeChannelArchived,
	ErrRateLimited:     CodeRateLimited,
	ErrConfiguration:   CodeConfiguration,
	ErrProfileNotFound: CodeProfileNotFound,
	ErrDisabled:        CodeDisabled,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError/APIError and uses errors.Is to match sentinels.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if code, ok := errorCodeMap[apiErr.sentinel()]; ok {
			return code
		}
		return CodeAPIError
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}
