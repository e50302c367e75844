package delivery

import (
	"errors"
	"log/slog"
	"time"

	"slackline/internal/domain"
)

// DecisionKind is the retry classification for a failed delivery.
type DecisionKind int

const (
	// Discard means never retry: the failure cannot be fixed by retrying.
	Discard DecisionKind = iota
	// RetryAfter means retry no sooner than the hinted delay.
	RetryAfter
	// RetryDefault means retry on the backend's default schedule; this
	// core declines to override the delay.
	RetryDefault
)

// Decision is consumed by the async backend's scheduler.
type Decision struct {
	Kind  DecisionKind
	Delay time.Duration // set only for RetryAfter
}

// Classify maps a delivery failure to a retry decision.
//
// Validation and resolution failures are pre-classified at the source
// (InvalidArgument, Configuration); permanent channel conditions can
// never be fixed by retrying. A rate-limit with a retry-after hint gets
// that hint; everything else external retries on default backoff.
func Classify(err error) Decision {
	switch {
	case err == nil:
		return Decision{Kind: RetryDefault}
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrConfiguration),
		errors.Is(err, domain.ErrNotInChannel),
		errors.Is(err, domain.ErrChannelNotFound):
		return Decision{Kind: Discard}
	}

	var apiErr *domain.APIError
	if errors.As(err, &apiErr) && apiErr.Kind == domain.APIErrRateLimited && apiErr.RetryAfter > 0 {
		return Decision{Kind: RetryAfter, Delay: apiErr.RetryAfter}
	}

	return Decision{Kind: RetryDefault}
}

// Log prefixes distinguishing permanent channel conditions from the rest.
const (
	logPrefixSendFailed = "SLACK MESSAGE SEND FAILED"
	logPrefixAPIError   = "SLACK API ERROR"
)

// LogFailure emits the one-line diagnostic for an API failure: prefix,
// humanized error name, profile key (omitted for the default profile),
// channel display, and the text or a placeholder when only structured
// content was sent.
func LogFailure(logger *slog.Logger, err error, p *domain.Profile, display, text string) {
	prefix := logPrefixAPIError
	if errors.Is(err, domain.ErrNotInChannel) || errors.Is(err, domain.ErrChannelNotFound) {
		prefix = logPrefixSendFailed
	}

	name := "API Error"
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		name = apiErr.Kind.HumanName()
	}

	attrs := []any{"error", name}
	if p != nil && !p.IsDefault() {
		attrs = append(attrs, "profile", p.Key())
	}
	attrs = append(attrs, "channel", display)
	if text == "" {
		attrs = append(attrs, "message", "(blocks/attachments only)")
	} else {
		attrs = append(attrs, "message", text)
	}

	logger.Warn(prefix, attrs...)
}
