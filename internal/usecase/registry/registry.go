// Package registry holds the process-wide profile registry. Profiles
// are registered once at startup and never removed during the process
// lifetime; tests reset the registry between cases.
package registry

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"slackline/internal/domain"
	"slackline/internal/infra/config"
)

// Registry maps profile keys to immutable Profile instances.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*domain.Profile
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{profiles: make(map[string]*domain.Profile)}
}

// Register constructs and stores a profile. Re-registering an existing
// key is a configuration mistake and fails.
func (r *Registry) Register(key string, params domain.ProfileParams) (*domain.Profile, error) {
	p, err := domain.NewProfile(key, params)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.profiles[key]; exists {
		return nil, domain.NewDomainError("registry.Register", domain.ErrConfiguration,
			fmt.Sprintf("profile %q already registered", key))
	}
	r.profiles[key] = p
	return p, nil
}

// Find returns the profile for key, or ErrProfileNotFound.
func (r *Registry) Find(key string) (*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[key]
	if !ok {
		return nil, domain.NewDomainError("registry.Find", domain.ErrProfileNotFound, key)
	}
	return p, nil
}

// Default returns the default profile.
func (r *Registry) Default() (*domain.Profile, error) {
	return r.Find(domain.DefaultProfileKey)
}

// Keys returns the registered profile keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.profiles))
	for k := range r.profiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reset removes every profile. Test use only.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = make(map[string]*domain.Profile)
}

// LoadConfig registers every profile from the configuration. Tokens
// referenced via token_env resolve lazily on first use, so a missing
// variable surfaces at send time for that profile only.
func (r *Registry) LoadConfig(cfg *config.Config) error {
	for _, pc := range cfg.Profiles {
		params := domain.ProfileParams{
			Token:      pc.Token,
			Channels:   pc.Channels,
			UserGroups: pc.UserGroups,
		}
		if pc.Token == "" && pc.TokenEnv != "" {
			envName := pc.TokenEnv
			profileKey := pc.Key
			params.TokenProvider = func() (string, error) {
				v := os.Getenv(envName)
				if v == "" {
					return "", domain.NewDomainError("registry.token", domain.ErrConfiguration,
						fmt.Sprintf("profile %q: environment variable %s is empty", profileKey, envName))
				}
				return v, nil
			}
		}

		behavior, err := domain.ParseSandboxBehavior(pc.Sandbox.Behavior)
		if err != nil {
			return err
		}
		params.Sandbox = domain.SandboxPolicy{
			Behavior: behavior,
			Channel: domain.SandboxChannel{
				ReplaceWith:   pc.Sandbox.Channel.ReplaceWith,
				MessagePrefix: pc.Sandbox.Channel.MessagePrefix,
			},
			UserGroup: domain.SandboxUserGroup{ReplaceWith: pc.Sandbox.UserGroup.ReplaceWith},
		}

		if _, err := r.Register(pc.Key, params); err != nil {
			return err
		}
	}
	return nil
}

// shared is the process-wide registry.
var shared = New()

// Shared returns the process-wide registry.
func Shared() *Registry { return shared }
