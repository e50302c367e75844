package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable consulted when sandbox_mode is
// not set explicitly: any value other than "production" means sandbox
// mode is active.
const EnvVar = "SLACKLINE_ENV"

// Config is the top-level library configuration. It is passed explicitly
// to the components that need it; there is no mutable global.
type Config struct {
	// Enabled is the global kill switch. nil means true.
	Enabled *bool `yaml:"enabled"`
	// SandboxMode gates redirect/noop/passthrough substitution. nil means
	// "infer from the SLACKLINE_ENV environment variable".
	SandboxMode *bool `yaml:"sandbox_mode"`
	// SandboxDefaultBehavior applies when a profile's sandbox policy sets
	// no behavior and no redirect channel. Defaults to "noop".
	SandboxDefaultBehavior string `yaml:"sandbox_default_behavior"`
	// SilenceArchivedChannelExceptions converts archived-channel failures
	// into successful no-ops.
	SilenceArchivedChannelExceptions bool `yaml:"silence_archived_channel_exceptions"`

	Logger        LoggerConfig         `yaml:"logger"`
	Tracer        TracerConfig         `yaml:"tracer"`
	Breaker       BreakerConfig        `yaml:"breaker"`
	Queue         QueueConfig          `yaml:"queue"`
	History       HistoryConfig        `yaml:"history"`
	Profiles      []ProfileConfig      `yaml:"profiles"`
	Notifications []NotificationConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig      `yaml:"scheduler"`
}

// LoggerConfig holds slog settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
	Output string `yaml:"output"` // stdout|stderr|<path>
}

// TracerConfig holds OpenTelemetry settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // stdout|noop
}

// BreakerConfig guards the Slack transport with a circuit breaker.
// Durations are strings ("30s", "1m"); zero values fall back to the
// adapter's defaults.
type BreakerConfig struct {
	// Enabled gates the breaker. nil means true.
	Enabled *bool `yaml:"enabled"`
	// MaxFailures is the consecutive-failure count that opens the circuit.
	MaxFailures uint32 `yaml:"max_failures"`
	// Timeout is how long the circuit stays open before a trial request.
	Timeout string `yaml:"timeout"`
	// Interval is the closed-state period for clearing failure counts.
	Interval string `yaml:"interval"`
}

// Active reports whether the breaker should wrap the transport.
func (b BreakerConfig) Active() bool {
	return b.Enabled == nil || *b.Enabled
}

// QueueConfig holds async backend settings.
type QueueConfig struct {
	// Backend selects the async backend. "memory" is the only built-in;
	// empty is invalid when async delivery is used.
	Backend string `yaml:"backend"`
	// SpillDir persists undelivered jobs as JSON files across restarts.
	// Empty disables spilling.
	SpillDir string `yaml:"spill_dir"`
	// MaxRetries caps attempts for retry-classified failures (default 10).
	MaxRetries int `yaml:"max_retries"`
	// RatePerSec paces outbound sends (default 1.0, Slack's posting tier).
	RatePerSec float64 `yaml:"rate_per_sec"`
}

// HistoryConfig holds the sqlite delivery-history settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ProfileConfig defines one workspace profile.
type ProfileConfig struct {
	Key        string            `yaml:"key"`
	Token      string            `yaml:"token"`
	TokenEnv   string            `yaml:"token_env"` // resolved lazily at first use
	Channels   map[string]string `yaml:"channels"`
	UserGroups map[string]string `yaml:"user_groups"`
	Sandbox    SandboxConfig     `yaml:"sandbox"`
}

// SandboxConfig mirrors domain.SandboxPolicy in YAML form.
type SandboxConfig struct {
	Behavior string `yaml:"behavior"` // redirect|noop|passthrough
	Channel  struct {
		ReplaceWith   string `yaml:"replace_with"`
		MessagePrefix string `yaml:"message_prefix"`
	} `yaml:"channel"`
	UserGroup struct {
		ReplaceWith string `yaml:"replace_with"`
	} `yaml:"user_group"`
}

// NotificationConfig declares one notification definition in YAML form.
/// A channel entry starting with ':' names a profile channel to be
// validated at send time; anything else is a literal channel ID.
type NotificationConfig struct {
	Name      string   `yaml:"name"`
	Profile   string   `yaml:"profile"` // empty means the default profile
	Channels  []string `yaml:"channels"`
	Text      string   `yaml:"text"`
	IconEmoji string   `yaml:"icon_emoji"`
}

// SchedulerConfig holds recurring-notification settings.
type SchedulerConfig struct {
	Enabled bool                  `yaml:"enabled"`
	Tasks   []ScheduledTaskConfig `yaml:"tasks"`
}

// ScheduledTaskConfig defines a single scheduled notification send.
type ScheduledTaskConfig struct {
	Name         string `yaml:"name"`
	Schedule     string `yaml:"schedule"` // cron expression or duration string
	Notification string `yaml:"notification"`
	OneShot      bool   `yaml:"one_shot,omitempty"`
}

// Default returns a Config with defaults applied and no profiles.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SandboxDefaultBehavior == "" {
		c.SandboxDefaultBehavior = "noop"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "text"
	}
	if c.Queue.Backend == "" {
		c.Queue.Backend = "memory"
	}
	if c.Queue.MaxRetries == 0 {
		c.Queue.MaxRetries = 10
	}
	if c.Queue.RatePerSec == 0 {
		c.Queue.RatePerSec = 1.0
	}
}

// IsEnabled reports the global kill switch state.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// SandboxActive reports whether sandbox mode is on. Unset sandbox_mode
// is inferred from the environment: anything but "production" (including
// an unset variable) counts as sandboxed.
func (c *Config) SandboxActive() bool {
	if c.SandboxMode != nil {
		return *c.SandboxMode
	}
	return strings.ToLower(os.Getenv(EnvVar)) != "production"
}
