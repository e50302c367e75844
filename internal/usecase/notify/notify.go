// Package notify provides declarative notification definitions: ordered
// immutable rules collected at startup, each holding typed resolution
// thunks for its channel, payload, and condition fields.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"slackline/internal/domain"
	"slackline/internal/infra/config"
	"slackline/internal/usecase/registry"
)

// Condition gates one channel-send. The payload it sees carries the
// resolved channel under the "channel" key.
type Condition func(ctx Context) (bool, error)

// Definition is one immutable notification rule. Channels fire strictly
// in declaration order; each channel is gated independently and one
// channel's failure does not stop the rest.
type Definition struct {
	Name        string
	Profile     string // profile key; empty means the default profile
	Channels    []FieldSource
	Text        FieldSource
	Blocks      FieldSource
	Attachments FieldSource
	IconEmoji   FieldSource
	ThreadTS    FieldSource
	Condition   Condition // nil means always
}

// Builder collects definitions in declaration order.
type Builder struct {
	defs []Definition
	err  error
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// Define appends a definition. The first invalid definition poisons the
// builder; Build reports it.
func (b *Builder) Define(d Definition) *Builder {
	if b.err != nil {
		return b
	}
	if d.Name == "" {
		b.err = domain.NewDomainError("notify.Define", domain.ErrConfiguration, "definition needs a name")
		return b
	}
	if len(d.Channels) == 0 {
		b.err = domain.NewDomainError("notify.Define", domain.ErrConfiguration,
			fmt.Sprintf("definition %q has no channels", d.Name))
		return b
	}
	for _, existing := range b.defs {
		if existing.Name == d.Name {
			b.err = domain.NewDomainError("notify.Define", domain.ErrConfiguration,
				fmt.Sprintf("definition %q declared twice", d.Name))
			return b
		}
	}
	b.defs = append(b.defs, d)
	return b
}

// FromConfig appends the definitions declared in the configuration.
// A ":name" channel entry becomes a symbolic channel resolved against
// the profile; anything else is a literal ID.
func (b *Builder) FromConfig(defs []config.NotificationConfig) *Builder {
	for _, nc := range defs {
		channels := make([]FieldSource, len(nc.Channels))
		for i, ch := range nc.Channels {
			if name, ok := strings.CutPrefix(ch, ":"); ok {
				channels[i] = Literal{Value: Symbol(name)}
			} else {
				channels[i] = Literal{Value: ch}
			}
		}
		def := Definition{Name: nc.Name, Profile: nc.Profile, Channels: channels}
		if nc.Text != "" {
			def.Text = Literal{Value: nc.Text}
		}
		if nc.IconEmoji != "" {
			def.IconEmoji = Literal{Value: nc.IconEmoji}
		}
		b.Define(def)
	}
	return b
}

// Deliverer runs one synchronous delivery. Satisfied by the delivery
// executor and by the queue worker's Enqueue-adapters.
type Deliverer interface {
	Deliver(ctx context.Context, req *domain.DeliveryRequest) (*domain.DeliveryResult, error)
}

// Notifier fires definitions through a Deliverer.
type Notifier struct {
	defs     []Definition
	byName   map[string]int
	profiles *registry.Registry
	deliver  Deliverer
	logger   *slog.Logger
}

// Build finalizes the definitions into a Notifier.
func (b *Builder) Build(profiles *registry.Registry, deliver Deliverer, logger *slog.Logger) (*Notifier, error) {
	if b.err != nil {
		return nil, b.err
	}
	n := &Notifier{
		defs:     append([]Definition(nil), b.defs...),
		byName:   make(map[string]int, len(b.defs)),
		profiles: profiles,
		deliver:  deliver,
		logger:   logger,
	}
	for i, d := range n.defs {
		n.byName[d.Name] = i
	}
	return n, nil
}

// Names returns the definition names in declaration order.
func (n *Notifier) Names() []string {
	names := make([]string, len(n.defs))
	for i, d := range n.defs {
		names[i] = d.Name
	}
	return names
}

// Fire resolves and delivers the named definition against payload.
// Channel sends are issued strictly in declaration order; failures are
// joined and returned after every channel has been attempted.
func (n *Notifier) Fire(ctx context.Context, name string, payload Context) error {
	idx, ok := n.byName[name]
	if !ok {
		return domain.NewDomainError("notify.Fire", domain.ErrInvalidArgument,
			fmt.Sprintf("unknown notification %q", name))
	}
	def := n.defs[idx]

	profileKey := def.Profile
	if profileKey == "" {
		profileKey = domain.DefaultProfileKey
	}
	profile, err := n.profiles.Find(profileKey)
	if err != nil {
		return err
	}

	var errs []error
	for _, channelSrc := range def.Channels {
		if err := n.fireChannel(ctx, def, profile, channelSrc, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) fireChannel(ctx context.Context, def Definition, profile *domain.Profile, channelSrc FieldSource, payload Context) error {
	resolved, err := channelSrc.Resolve(payload)
	if err != nil {
		return err
	}

	var channel string
	var validateKnown bool
	switch c := resolved.(type) {
	case Symbol:
		channel, validateKnown = string(c), true
	case string:
		channel = c
	default:
		return domain.NewDomainError("notify.Fire", domain.ErrInvalidArgument,
			fmt.Sprintf("definition %q resolved channel to %T", def.Name, resolved))
	}

	// Conditions see the payload plus the channel being considered.
	if def.Condition != nil {
		scoped := make(Context, len(payload)+1)
		for k, v := range payload {
			scoped[k] = v
		}
		scoped["channel"] = channel
		send, err := def.Condition(scoped)
		if err != nil {
			return err
		}
		if !send {
			n.logger.Debug("notification gated off", "definition", def.Name, "channel", channel)
			return nil
		}
	}

	req := &domain.DeliveryRequest{
		Profile:              profile,
		Channel:              channel,
		ValidateKnownChannel: validateKnown,
	}
	if text, set, err := resolveString(def.Text, payload); err != nil {
		return err
	} else if set {
		req.Text = domain.String(text)
	}
	if req.Blocks, err = resolveBlocks(def.Blocks, payload); err != nil {
		return err
	}
	if req.Attachments, err = resolveAttachments(def.Attachments, payload); err != nil {
		return err
	}
	icon, _, err := resolveString(def.IconEmoji, payload)
	if err != nil {
		return err
	}
	req.IconEmoji = icon
	threadTS, _, err := resolveString(def.ThreadTS, payload)
	if err != nil {
		return err
	}
	req.ThreadTS = threadTS

	_, err = n.deliver.Deliver(ctx, req)
	return err
}
