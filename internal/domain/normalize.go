package domain

import "fmt"

// NormalizeKeys walks a nested mapping/sequence structure and
// canonicalizes every mapping key to its string form, so payloads reach
// the transport boundary with a single key representation regardless of
// how callers built them (JSON decoding, YAML decoding, literals).
func NormalizeKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = NormalizeKeys(elem)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[fmt.Sprint(k)] = NormalizeKeys(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = NormalizeKeys(elem)
		}
		return out
	default:
		return v
	}
}

// NormalizeBlocks applies NormalizeKeys to every block.
func NormalizeBlocks(blocks []Block) []Block {
	if blocks == nil {
		return nil
	}
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = Block(NormalizeKeys(map[string]any(b)).(map[string]any))
	}
	return out
}

// NormalizeAttachments applies NormalizeKeys to every attachment.
func NormalizeAttachments(atts []Attachment) []Attachment {
	if atts == nil {
		return nil
	}
	out := make([]Attachment, len(atts))
	for i, a := range atts {
		out[i] = Attachment(NormalizeKeys(map[string]any(a)).(map[string]any))
	}
	return out
}
