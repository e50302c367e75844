package delivery

import (
	"fmt"
	"regexp"
	"strings"

	"slackline/internal/domain"
	"slackline/internal/infra/config"
)

// defaultMessagePrefix is the redirect prefix template used when a
// profile sets none. %s is the original channel's display string.
const defaultMessagePrefix = "Sandbox redirect of a message to %s:"

// channelIDPattern matches internal channel/group/DM identifiers.
var channelIDPattern = regexp.MustCompile(`^[CGD][A-Za-z0-9]+$`)

// Resolution is the resolver's output: where to send, what text to
// send, and whether sandbox policy suppresses the send entirely.
type Resolution struct {
	Channel         string                 // effective send channel
	OriginalChannel string                 // resolved channel before sandbox substitution
	Display         string                 // display string of the original channel
	Behavior        domain.SandboxBehavior // effective behavior; empty when sandbox inactive
	Text            string                 // effective text (wrapped under redirect)
	Noop            bool                   // sandbox noop: log, no Slack call
}

// Resolver turns the caller's channel specification into the literal
// destination for the external call, applying sandbox policy.
type Resolver struct {
	cfg *config.Config
}

// NewResolver creates a Resolver bound to the given configuration.
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve computes the effective channel and text for a request.
// validateKnown is set when the channel arrived as a symbolic name and
// must exist in the profile's channel map.
func (r *Resolver) Resolve(p *domain.Profile, channel string, validateKnown bool, text string) (Resolution, error) {
	resolved := channel
	if validateKnown {
		id, ok := p.Channel(channel)
		if !ok {
			return Resolution{}, domain.NewDomainError("delivery.Resolve", domain.ErrInvalidArgument,
				fmt.Sprintf(unknownChannelTemplate, channel))
		}
		resolved = id
	}

	res := Resolution{
		Channel:         resolved,
		OriginalChannel: resolved,
		Display:         ChannelDisplay(resolved),
		Text:            text,
	}

	if !r.cfg.SandboxActive() {
		return res, nil
	}

	res.Behavior = r.effectiveBehavior(p)
	switch res.Behavior {
	case domain.SandboxRedirect:
		sandbox := p.Sandbox()
		if sandbox.Channel.ReplaceWith == "" {
			// Redirect without a replacement channel has nowhere to
			// go; degrade to noop instead of posting to "".
			res.Behavior = domain.SandboxNoop
			res.Noop = true
			return res, nil
		}
		res.Channel = sandbox.Channel.ReplaceWith
		res.Text = wrapRedirectText(text, res.Display, sandbox.Channel.MessagePrefix)
	case domain.SandboxNoop:
		res.Noop = true
	}
	return res, nil
}

// effectiveBehavior applies the precedence chain: explicit profile
// behavior, then inferred redirect from a configured replacement
// channel, then the global default.
func (r *Resolver) effectiveBehavior(p *domain.Profile) domain.SandboxBehavior {
	sandbox := p.Sandbox()
	if sandbox.Behavior != "" {
		return sandbox.Behavior
	}
	if sandbox.Channel.ReplaceWith != "" {
		return domain.SandboxRedirect
	}
	return domain.SandboxBehavior(r.cfg.SandboxDefaultBehavior)
}

// ResolveUserGroup looks up a symbolic user-group name, substituting the
// sandbox replacement group while sandbox mode is active.
func (r *Resolver) ResolveUserGroup(p *domain.Profile, name string) (string, error) {
	id, ok := p.UserGroup(name)
	if !ok {
		return "", domain.NewDomainError("delivery.ResolveUserGroup", domain.ErrInvalidArgument,
			fmt.Sprintf("Unknown user group provided: :%s", name))
	}
	if r.cfg.SandboxActive() {
		if replace := p.Sandbox().UserGroup.ReplaceWith; replace != "" {
			return replace, nil
		}
	}
	return id, nil
}

// ChannelDisplay renders a channel value for prefixes and log lines: an
// internal ID becomes a clickable reference, anything else an inline
// code literal.
func ChannelDisplay(channel string) string {
	if channelIDPattern.MatchString(channel) {
		return "<#" + channel + ">"
	}
	return "`" + channel + "`"
}

// UserGroupMention renders a user-group ID as a Slack mention.
func UserGroupMention(id string) string {
	return "<!subteam^" + id + ">"
}

// wrapRedirectText prepends the templated prefix line and quotes every
// line of the original text, separated by a blank line.
func wrapRedirectText(text, display, prefixTemplate string) string {
	if prefixTemplate == "" {
		prefixTemplate = defaultMessagePrefix
	}
	prefix := fmt.Sprintf(prefixTemplate, display)

	var quoted strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			quoted.WriteString("\n")
		}
		quoted.WriteString("> ")
		quoted.WriteString(line)
	}
	return prefix + "\n\n" + quoted.String()
}
