package delivery

import (
	"slackline/internal/domain"
)

// Validation failure messages. These are user-facing and stable.
const (
	msgNoContent           = "Must provide at least one of: text, blocks, attachments, or files"
	msgInvalidBlocks       = "Provided blocks were invalid"
	msgFilesWithBlocks     = "Cannot provide files with blocks"
	msgFilesWithAttach     = "Cannot provide files with attachments"
	msgFilesWithIconEmoji  = "Cannot provide files with icon_emoji"
	unknownChannelTemplate = "Unknown channel provided: :%s"
)

func invalidArg(detail string) error {
	return domain.NewDomainError("delivery.Validate", domain.ErrInvalidArgument, detail)
}

// Validate rejects invalid requests before any network I/O. The noop
// return is true for the one deliberate success case: text explicitly
// supplied but blank, with no other content. That case must not become
// an error, or interpolated-but-empty message bodies get queued for
// retries they can never satisfy.
func Validate(req *domain.DeliveryRequest) (noop bool, err error) {
	if contentBlank(req) {
		if req.ExplicitBlankText() {
			return true, nil
		}
		return false, invalidArg(msgNoContent)
	}

	if len(req.Files) > 0 {
		if len(req.Blocks) > 0 {
			return false, invalidArg(msgFilesWithBlocks)
		}
		if len(req.Attachments) > 0 {
			return false, invalidArg(msgFilesWithAttach)
		}
		if req.IconEmoji != "" {
			return false, invalidArg(msgFilesWithIconEmoji)
		}
	}

	if len(req.Blocks) > 0 && !blocksValid(req.Blocks) {
		return false, invalidArg(msgInvalidBlocks)
	}

	return false, nil
}

// contentBlank reports whether text, blocks, attachments, and files are
// all blank (nil, empty sequence, or blank string).
func contentBlank(req *domain.DeliveryRequest) bool {
	return req.TextBlank() &&
		len(req.Blocks) == 0 &&
		len(req.Attachments) == 0 &&
		len(req.Files) == 0
}

// blocksValid requires every block to carry a "type" key. Keys are
// normalized to strings before this runs.
func blocksValid(blocks []domain.Block) bool {
	if len(blocks) == 0 {
		return false
	}
	for _, b := range blocks {
		if b == nil {
			return false
		}
		if _, ok := b["type"]; !ok {
			return false
		}
	}
	return true
}
