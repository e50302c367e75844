package domain

import (
	"fmt"
	"io"
	"strings"
)

// Block is one element of a Slack Block Kit payload. Blocks are kept as
// open maps so callers can express any block shape; the validator only
// requires the "type" key.
type Block map[string]any

// Attachment is one element of a legacy attachment payload.
type Attachment map[string]any

// DeliveryRequest is the transient unit of work handed to the delivery
// pipeline. Constructed per call, consumed once, never persisted.
//
// Text is a pointer so that an explicitly supplied empty string can be
// told apart from text never being set: the former is a deliberate
// no-op, the latter (with no other content) is an error.
type DeliveryRequest struct {
	Profile              *Profile
	Channel              string
	ValidateKnownChannel bool
	Text                 *string
	Blocks               []Block
	Attachments          []Attachment
	IconEmoji            string
	ThreadTS             string
	Files                []FileWrapper
}

// TextValue returns the request text, or "" when unset.
func (r *DeliveryRequest) TextValue() string {
	if r.Text == nil {
		return ""
	}
	return *r.Text
}

// TextBlank reports whether text is unset or blank.
func (r *DeliveryRequest) TextBlank() bool {
	return r.Text == nil || strings.TrimSpace(*r.Text) == ""
}

// ExplicitBlankText reports whether the caller passed text explicitly
// and it was blank.
func (r *DeliveryRequest) ExplicitBlankText() bool {
	return r.Text != nil && strings.TrimSpace(*r.Text) == ""
}

// String is a convenience for building *string request text.
func String(s string) *string { return &s }

// DeliveryResult is produced once per successful (or successfully
// no-op) delivery. ThreadTS is empty when no Slack message was created
// or the created message's timestamp could not be discovered.
type DeliveryResult struct {
	ThreadTS  string
	Delivered bool // false for noop/disabled/silenced outcomes
}

// FileWrapper holds a fully-read upload source. Filename defaults to
// "attachment N" (1-based) when the source carries no name.
type FileWrapper struct {
	Content  []byte
	Filename string
	Index    int
}

// WrapFiles reads each source and wraps it for upload. Sources that
// implement Name() string keep their name.
func WrapFiles(sources []io.Reader) ([]FileWrapper, error) {
	wrapped := make([]FileWrapper, 0, len(sources))
	for i, src := range sources {
		content, err := io.ReadAll(src)
		if err != nil {
			return nil, WrapOp(fmt.Sprintf("read file %d", i), err)
		}
		name := ""
		if named, ok := src.(interface{ Name() string }); ok {
			name = named.Name()
		}
		if name == "" {
			name = fmt.Sprintf("attachment %d", i+1)
		}
		wrapped = append(wrapped, FileWrapper{Content: content, Filename: name, Index: i})
	}
	return wrapped, nil
}
