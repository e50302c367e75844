package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// APIErrorKind is the explicit error category returned by the Slack
// transport. The delivery pipeline dispatches on kinds instead of
// matching concrete client error types.
type APIErrorKind int

const (
	// APIErrGeneric covers every Slack error code without dedicated handling.
	APIErrGeneric APIErrorKind = iota
	// APIErrNotInChannel means the bot is not a member of the target channel.
	APIErrNotInChannel
	// APIErrChannelNotFound means the target channel does not exist.
	APIErrChannelNotFound
	// APIErrChannelArchived means the target channel is archived.
	APIErrChannelArchived
	// APIErrRateLimited carries a retry-after hint from Slack.
	APIErrRateLimited
)

// HumanName returns the kind formatted for log lines, e.g. "Not In Channel".
func (k APIErrorKind) HumanName() string {
	switch k {
	case APIErrNotInChannel:
		return "Not In Channel"
	case APIErrChannelNotFound:
		return "Channel Not Found"
	case APIErrChannelArchived:
		return "Channel Archived"
	case APIErrRateLimited:
		return "Rate Limited"
	default:
		return "API Error"
	}
}

// APIError is a failure surfaced by the Slack Web API transport.
// Code is the canonical Slack error string ("not_in_channel",
// "invalid_arguments", ...). Needed/Provided and Messages are optional
// detail fields whose presence varies per error code; Extra holds any
// remaining unrecognized response fields.
type APIError struct {
	Kind       APIErrorKind
	Code       string
	Needed     string
	Provided   string
	Messages   []string
	RetryAfter time.Duration // non-zero only for APIErrRateLimited
	Extra      map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack api error: %s", e.Diagnostic())
}

// Unwrap lets errors.Is match the sentinel corresponding to the kind.
func (e *APIError) Unwrap() error { return e.sentinel() }

func (e *APIError) sentinel() error {
	switch e.Kind {
	case APIErrNotInChannel:
		return ErrNotInChannel
	case APIErrChannelNotFound:
		return ErrChannelNotFound
	case APIErrChannelArchived:
		return ErrChannelArchived
	case APIErrRateLimited:
		return ErrRateLimited
	default:
		return nil
	}
}

// Diagnostic renders the pipe-separated diagnostic string for the error:
// the canonical code, needed/provided when present, response-metadata
// messages joined with "; ", then remaining fields as key=value. Slack's
// error shapes vary per code, so this stays schema-free.
func (e *APIError) Diagnostic() string {
	parts := []string{e.Code}
	if e.Needed != "" {
		parts = append(parts, "needed="+e.Needed)
	}
	if e.Provided != "" {
		parts = append(parts, "provided="+e.Provided)
	}
	if len(e.Messages) > 0 {
		parts = append(parts, strings.Join(e.Messages, "; "))
	}
	if len(e.Extra) > 0 {
		keys := make([]string, 0, len(e.Extra))
		for k := range e.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, k+"="+e.Extra[k])
		}
	}
	return strings.Join(parts, " | ")
}
