package slackapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"slackline/internal/domain"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the circuit breaker behavior.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32 `yaml:"max_failures"`
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration `yaml:"timeout"`
	// Interval is the cyclic period of the closed state for clearing failure counts.
	// If 0, failures never reset until the circuit opens.
	Interval time.Duration `yaml:"interval"`
}

// BreakerClient wraps an API with circuit breaker protection. When Slack
// fails repeatedly, the circuit opens and subsequent calls fail fast
// without reaching the network, preventing retry storms.
type BreakerClient struct {
	inner   API
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

// NewBreakerClient wraps inner with a circuit breaker.
// If cfg is zero-valued, sensible defaults are used.
func NewBreakerClient(name string, inner API, cfg BreakerConfig, logger *slog.Logger) *BreakerClient {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "slack:" + name,
		MaxRequests: 1, // allow 1 trial request in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: isTransportHealthy,
	})

	return &BreakerClient{inner: inner, breaker: cb, logger: logger}
}

// isTransportHealthy decides which errors count against the circuit.
// Permanent channel conditions are caller mistakes, not transport
// failures, and must not open the circuit.
func isTransportHealthy(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, domain.ErrNotInChannel) ||
		errors.Is(err, domain.ErrChannelNotFound) ||
		errors.Is(err, domain.ErrChannelArchived)
}

func (c *BreakerClient) PostMessage(ctx context.Context, p PostParams) (string, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		return c.inner.PostMessage(ctx, p)
	})
	if err != nil {
		return "", c.wrapBreakerErr(err)
	}
	return res.(string), nil
}

func (c *BreakerClient) UploadFiles(ctx context.Context, p UploadParams) ([]string, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		return c.inner.UploadFiles(ctx, p)
	})
	if err != nil {
		return nil, c.wrapBreakerErr(err)
	}
	return res.([]string), nil
}

func (c *BreakerClient) FileInfo(ctx context.Context, fileID string) (FileShares, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		return c.inner.FileInfo(ctx, fileID)
	})
	if err != nil {
		return FileShares{}, c.wrapBreakerErr(err)
	}
	return res.(FileShares), nil
}

func (c *BreakerClient) wrapBreakerErr(err error) error {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return fmt.Errorf("slack circuit open: %w", err)
	}
	return err
}
