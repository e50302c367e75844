package config

import (
	"fmt"
	"time"
)

var validBehaviors = map[string]bool{
	"": true, "redirect": true, "noop": true, "passthrough": true,
}

// Validate checks the configuration for contradictions that would
// otherwise only surface at send time.
func (c *Config) Validate() error {
	if !validBehaviors[c.SandboxDefaultBehavior] {
		return fmt.Errorf("config: invalid sandbox_default_behavior %q", c.SandboxDefaultBehavior)
	}
	if c.Queue.Backend != "memory" {
		return fmt.Errorf("config: unknown queue backend %q", c.Queue.Backend)
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("config: history enabled but no path set")
	}
	for name, v := range map[string]string{
		"breaker.timeout":  c.Breaker.Timeout,
		"breaker.interval": c.Breaker.Interval,
	} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("config: %s is not a positive duration: %q", name, v)
		}
	}

	seen := make(map[string]bool, len(c.Profiles))
	for i, p := range c.Profiles {
		if p.Key == "" {
			return fmt.Errorf("config: profile %d has no key", i)
		}
		if seen[p.Key] {
			return fmt.Errorf("config: duplicate profile key %q", p.Key)
		}
		seen[p.Key] = true
		if p.Token == "" && p.TokenEnv == "" {
			return fmt.Errorf("config: profile %q needs token or token_env", p.Key)
		}
		if !validBehaviors[p.Sandbox.Behavior] {
			return fmt.Errorf("config: profile %q: invalid sandbox behavior %q", p.Key, p.Sandbox.Behavior)
		}
		if p.Sandbox.Behavior == "redirect" && p.Sandbox.Channel.ReplaceWith == "" {
			return fmt.Errorf("config: profile %q: sandbox behavior is redirect but channel.replace_with is empty", p.Key)
		}
	}

	seenNotif := make(map[string]bool, len(c.Notifications))
	for i, n := range c.Notifications {
		if n.Name == "" {
			return fmt.Errorf("config: notification %d has no name", i)
		}
		if seenNotif[n.Name] {
			return fmt.Errorf("config: duplicate notification %q", n.Name)
		}
		seenNotif[n.Name] = true
		if len(n.Channels) == 0 {
			return fmt.Errorf("config: notification %q has no channels", n.Name)
		}
	}

	for _, t := range c.Scheduler.Tasks {
		if t.Name == "" || t.Schedule == "" || t.Notification == "" {
			return fmt.Errorf("config: scheduler task needs name, schedule, and notification (got %+v)", t)
		}
	}

	return nil
}
