package domain

import (
	"fmt"
	"sync"
)

// DefaultProfileKey names the profile used when callers do not pick one.
const DefaultProfileKey = "default"

// SandboxBehavior controls what happens to a send while sandbox mode is active.
type SandboxBehavior string

const (
	// SandboxRedirect reroutes the send to the profile's sandbox channel.
	SandboxRedirect SandboxBehavior = "redirect"
	// SandboxNoop logs the send and skips the Slack call entirely.
	SandboxNoop SandboxBehavior = "noop"
	// SandboxPassthrough sends to the real destination despite sandbox mode.
	SandboxPassthrough SandboxBehavior = "passthrough"
)

// ParseSandboxBehavior converts a config string to a SandboxBehavior.
// The empty string is valid and means "not set" (fall back to defaults).
func ParseSandboxBehavior(s string) (SandboxBehavior, error) {
	switch SandboxBehavior(s) {
	case SandboxRedirect, SandboxNoop, SandboxPassthrough, "":
		return SandboxBehavior(s), nil
	default:
		return "", NewDomainError("domain.ParseSandboxBehavior", ErrConfiguration,
			fmt.Sprintf("unknown sandbox behavior %q", s))
	}
}

// SandboxChannel configures channel substitution under redirect.
type SandboxChannel struct {
	ReplaceWith   string
	MessagePrefix string // template with a %s placeholder for the channel display
}

// SandboxUserGroup configures user-group substitution under sandbox mode.
type SandboxUserGroup struct {
	ReplaceWith string
}

// SandboxPolicy is a profile's sandbox configuration. An empty Behavior
// means the behavior is resolved at send time (inferred redirect when
// Channel.ReplaceWith is set, otherwise the global default).
type SandboxPolicy struct {
	Behavior  SandboxBehavior
	Channel   SandboxChannel
	UserGroup SandboxUserGroup
}

// TokenProvider supplies a workspace token on demand. It is invoked at
// most once per Profile; the result is memoized.
type TokenProvider func() (string, error)

// ProfileParams collects the inputs for NewProfile. Exactly one of Token
// and TokenProvider should be set.
type ProfileParams struct {
	Token         string
	TokenProvider TokenProvider
	Channels      map[string]string
	UserGroups    map[string]string
	Sandbox       SandboxPolicy
}

// Profile is a named bundle of credentials, channel/group name maps, and
// sandbox policy for one Slack workspace connection. Profiles are
// immutable after construction; the resolved token and the underlying
// client handle are the only deferred, memoized fields.
type Profile struct {
	key        string
	channels   map[string]string
	userGroups map[string]string
	sandbox    SandboxPolicy

	tokenFn   TokenProvider
	tokenOnce sync.Once
	token     string
	tokenErr  error

	clientOnce sync.Once
	client     any
}

// NewProfile builds an immutable Profile. The redirect invariant is
// enforced here, not at send time: Behavior==redirect requires
// Channel.ReplaceWith.
func NewProfile(key string, params ProfileParams) (*Profile, error) {
	if key == "" {
		return nil, NewDomainError("domain.NewProfile", ErrConfiguration, "profile key is required")
	}
	if _, err := ParseSandboxBehavior(string(params.Sandbox.Behavior)); err != nil {
		return nil, err
	}
	if params.Sandbox.Behavior == SandboxRedirect && params.Sandbox.Channel.ReplaceWith == "" {
		return nil, NewDomainError("domain.NewProfile", ErrConfiguration,
			fmt.Sprintf("profile %q: sandbox behavior is redirect but channel.replace_with is empty", key))
	}
	if params.Token == "" && params.TokenProvider == nil {
		return nil, NewDomainError("domain.NewProfile", ErrConfiguration,
			fmt.Sprintf("profile %q: token or token provider is required", key))
	}

	p := &Profile{
		key:        key,
		channels:   make(map[string]string, len(params.Channels)),
		userGroups: make(map[string]string, len(params.UserGroups)),
		sandbox:    params.Sandbox,
		tokenFn:    params.TokenProvider,
	}
	for name, id := range params.Channels {
		p.channels[name] = id
	}
	for name, id := range params.UserGroups {
		p.userGroups[name] = id
	}
	if params.Token != "" {
		static := params.Token
		p.tokenFn = func() (string, error) { return static, nil }
	}
	return p, nil
}

// Key returns the profile's unique identifier.
func (p *Profile) Key() string { return p.key }

// IsDefault reports whether this is the default profile.
func (p *Profile) IsDefault() bool { return p.key == DefaultProfileKey }

// Token resolves the workspace token. The provider runs at most once;
// later calls return the memoized value or error.
func (p *Profile) Token() (string, error) {
	p.tokenOnce.Do(func() {
		p.token, p.tokenErr = p.tokenFn()
	})
	return p.token, p.tokenErr
}

// Channel looks up a symbolic channel name.
func (p *Profile) Channel(name string) (string, bool) {
	id, ok := p.channels[name]
	return id, ok
}

// UserGroup looks up a symbolic user-group name.
func (p *Profile) UserGroup(name string) (string, bool) {
	id, ok := p.userGroups[name]
	return id, ok
}

// Sandbox returns the profile's sandbox policy.
func (p *Profile) Sandbox() SandboxPolicy { return p.sandbox }

// ClientHandle memoizes the underlying API client for this profile.
// build runs at most once; a concurrent first access observing a
// duplicate build is benign since construction is idempotent.
func (p *Profile) ClientHandle(build func() any) any {
	p.clientOnce.Do(func() {
		p.client = build()
	})
	return p.client
}
