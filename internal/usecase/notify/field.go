package notify

import (
	"fmt"

	"slackline/internal/domain"
)

// Context is the payload a notification's fields resolve against.
type Context map[string]any

// Symbol marks a value as a symbolic channel name to be validated
// against the profile's channel map; a plain string is a literal ID
// used as-is.
type Symbol string

// FieldSource is a tagged variant resolved at fire time:
// Literal holds the value itself, MethodRef names a payload field,
// Computed runs a closure. This replaces reflection-based "respond to"
// resolution with explicit dispatch.
type FieldSource interface {
	Resolve(ctx Context) (any, error)
}

// Literal is a fixed value.
type Literal struct {
	Value any
}

func (l Literal) Resolve(Context) (any, error) { return l.Value, nil }

// MethodRef resolves a named field from the payload context.
type MethodRef struct {
	Name string
}

func (m MethodRef) Resolve(ctx Context) (any, error) {
	v, ok := ctx[m.Name]
	if !ok {
		return nil, domain.NewDomainError("notify.Resolve", domain.ErrInvalidArgument,
			fmt.Sprintf("payload has no field %q", m.Name))
	}
	return v, nil
}

// Computed resolves through a caller-supplied closure.
type Computed struct {
	Fn func(ctx Context) (any, error)
}

func (c Computed) Resolve(ctx Context) (any, error) { return c.Fn(ctx) }

// resolveString resolves a source to a string, tolerating nil sources.
func resolveString(src FieldSource, ctx Context) (string, bool, error) {
	if src == nil {
		return "", false, nil
	}
	v, err := src.Resolve(ctx)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, domain.NewDomainError("notify.Resolve", domain.ErrInvalidArgument,
			fmt.Sprintf("expected string, got %T", v))
	}
	return s, true, nil
}

// resolveBlocks accepts the block slice shapes callers build.
func resolveBlocks(src FieldSource, ctx Context) ([]domain.Block, error) {
	if src == nil {
		return nil, nil
	}
	v, err := src.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []domain.Block:
		return val, nil
	case []map[string]any:
		out := make([]domain.Block, len(val))
		for i, m := range val {
			out[i] = domain.Block(m)
		}
		return out, nil
	case []any:
		out := make([]domain.Block, len(val))
		for i, elem := range val {
			m, ok := domain.NormalizeKeys(elem).(map[string]any)
			if !ok {
				return nil, domain.NewDomainError("notify.Resolve", domain.ErrInvalidArgument,
					fmt.Sprintf("block %d is %T, not a mapping", i, elem))
			}
			out[i] = domain.Block(m)
		}
		return out, nil
	default:
		return nil, domain.NewDomainError("notify.Resolve", domain.ErrInvalidArgument,
			fmt.Sprintf("expected block sequence, got %T", v))
	}
}

// resolveAttachments mirrors resolveBlocks for attachments.
func resolveAttachments(src FieldSource, ctx Context) ([]domain.Attachment, error) {
	if src == nil {
		return nil, nil
	}
	v, err := src.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []domain.Attachment:
		return val, nil
	case []map[string]any:
		out := make([]domain.Attachment, len(val))
		for i, m := range val {
			out[i] = domain.Attachment(m)
		}
		return out, nil
	case []any:
		out := make([]domain.Attachment, len(val))
		for i, elem := range val {
			m, ok := domain.NormalizeKeys(elem).(map[string]any)
			if !ok {
				return nil, domain.NewDomainError("notify.Resolve", domain.ErrInvalidArgument,
					fmt.Sprintf("attachment %d is %T, not a mapping", i, elem))
			}
			out[i] = domain.Attachment(m)
		}
		return out, nil
	default:
		return nil, domain.NewDomainError("notify.Resolve", domain.ErrInvalidArgument,
			fmt.Sprintf("expected attachment sequence, got %T", v))
	}
}
