package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAPIErrorSentinels(t *testing.T) {
	tests := []struct {
		kind APIErrorKind
		want error
	}{
		{APIErrNotInChannel, ErrNotInChannel},
		{APIErrChannelNotFound, ErrChannelNotFound},
		{APIErrChannelArchived, ErrChannelArchived},
		{APIErrRateLimited, ErrRateLimited},
	}
	for _, tt := range tests {
		err := &APIError{Kind: tt.kind, Code: "x"}
		assert.ErrorIs(t, err, tt.want, tt.kind.HumanName())
	}

	generic := &APIError{Kind: APIErrGeneric, Code: "fatal_error"}
	assert.False(t, errors.Is(generic, ErrNotInChannel))
	assert.False(t, errors.Is(generic, ErrRateLimited))
}

func TestAPIErrorHumanName(t *testing.T) {
	assert.Equal(t, "API Error", APIErrGeneric.HumanName())
	assert.Equal(t, "Not In Channel", APIErrNotInChannel.HumanName())
	assert.Equal(t, "Rate Limited", APIErrRateLimited.HumanName())
}

func TestErrorCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{nil, CodeUnknown},
		{ErrInvalidArgument, CodeInvalidArgument},
		{NewDomainError("op", ErrConfiguration, "detail"), CodeConfiguration},
		{fmt.Errorf("wrap: %w", ErrProfileNotFound), CodeProfileNotFound},
		{&APIError{Kind: APIErrNotInChannel, Code: "not_in_channel"}, CodeNotInChannel},
		{&APIError{Kind: APIErrGeneric, Code: "fatal_error"}, CodeAPIError},
		{fmt.Errorf("plain"), CodeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCodeOf(tt.err), "err=%v", tt.err)
	}
}

func TestAPIErrorRetryAfter(t *testing.T) {
	err := &APIError{Kind: APIErrRateLimited, Code: "rate_limited", RetryAfter: 30 * time.Second}
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 30*time.Second, err.RetryAfter)
}

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("delivery.Validate", ErrInvalidArgument, "Provided blocks were invalid")
	assert.Equal(t, "delivery.Validate: Provided blocks were invalid: invalid argument", err.Error())
	assert.ErrorIs(t, err, ErrInvalidArgument)

	bare := NewDomainError("registry.Find", ErrProfileNotFound, "")
	assert.Equal(t, "registry.Find: profile not found", bare.Error())
}

func TestWrapOp(t *testing.T) {
	assert.NoError(t, WrapOp("op", nil))
	wrapped := WrapOp("delivery client", ErrConfiguration)
	assert.ErrorIs(t, wrapped, ErrConfiguration)
	assert.Contains(t, wrapped.Error(), "delivery client")
}
