package slackapi

import (
	"errors"

	"github.com/slack-go/slack"

	"slackline/internal/domain"
)

// mapError converts slack-go errors into *domain.APIError so the rest
// of the pipeline never sees client types. Unrecognized errors (network
// failures, context cancellation) pass through unchanged.
//
// slack-go does not surface the needed/provided scopes or extra
// response fields from error payloads, so Needed, Provided and Extra
// stay empty on errors produced by this transport.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return &domain.APIError{
			Kind:       domain.APIErrRateLimited,
			Code:       "rate_limited",
			RetryAfter: rl.RetryAfter,
		}
	}

	var ser slack.SlackErrorResponse
	if errors.As(err, &ser) {
		return &domain.APIError{
			Kind:     kindForCode(ser.Err),
			Code:     ser.Err,
			Messages: ser.ResponseMetadata.Messages,
		}
	}

	// Older client paths report bare error-code strings.
	if kind := kindForCode(err.Error()); kind != domain.APIErrGeneric {
		return &domain.APIError{Kind: kind, Code: err.Error()}
	}

	return err
}

func kindForCode(code string) domain.APIErrorKind {
	switch code {
	case "not_in_channel":
		return domain.APIErrNotInChannel
	case "channel_not_found":
		return domain.APIErrChannelNotFound
	case "is_archived":
		return domain.APIErrChannelArchived
	default:
		return domain.APIErrGeneric
	}
}
