// Package queue is the built-in async delivery backend: an in-process
// worker that owns scheduling and consumes retry decisions from the
// delivery pipeline's classifier. Delivery guarantees are best-effort;
// jobs pending at shutdown spill to disk when a spill directory is
// configured.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"slackline/internal/domain"
	"slackline/internal/infra/config"
	"slackline/internal/usecase/delivery"
)

// Deliverer runs one delivery attempt.
type Deliverer interface {
	Deliver(ctx context.Context, req *domain.DeliveryRequest) (*domain.DeliveryResult, error)
}

// RetryPolicy maps a failed attempt to a scheduling decision.
type RetryPolicy func(attempt int, err error) delivery.Decision

// DefaultRetryPolicy delegates to the delivery classifier regardless of
// attempt count.
func DefaultRetryPolicy(_ int, err error) delivery.Decision {
	return delivery.Classify(err)
}

// ProfileLookup re-resolves a profile key when loading spilled jobs.
type ProfileLookup func(key string) (*domain.Profile, error)

type job struct {
	id       string
	req      *domain.DeliveryRequest
	attempts int
	bo       *backoff.ExponentialBackOff
}

// nextBackoff returns the default-backoff delay for the next retry.
func (j *job) nextBackoff() time.Duration {
	if j.bo == nil {
		j.bo = backoff.NewExponentialBackOff()
		j.bo.MaxElapsedTime = 0 // attempts are capped by MaxRetries instead
	}
	return j.bo.NextBackOff()
}

// Worker is the in-process async backend. One job is one delivery
// attempt; jobs run strictly one at a time, paced by a rate limiter.
type Worker struct {
	cfg     config.QueueConfig
	deliver Deliverer
	policy  RetryPolicy
	lookup  ProfileLookup
	logger  *slog.Logger
	limiter *rate.Limiter
	spill   *spill

	jobs    chan *job
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
}

// NewWorker creates the backend. An unknown backend name is a
// configuration error surfaced immediately, never retried.
func NewWorker(cfg config.QueueConfig, d Deliverer, policy RetryPolicy, lookup ProfileLookup, logger *slog.Logger) (*Worker, error) {
	if cfg.Backend != "memory" {
		return nil, domain.NewDomainError("queue.NewWorker", domain.ErrConfiguration,
			"unknown async backend "+cfg.Backend)
	}
	if policy == nil {
		policy = DefaultRetryPolicy
	}
	ratePerSec := cfg.RatePerSec
	if ratePerSec <= 0 {
		ratePerSec = 1.0
	}
	w := &Worker{
		cfg:     cfg,
		deliver: d,
		policy:  policy,
		lookup:  lookup,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
		jobs:    make(chan *job, 1024),
	}
	if cfg.SpillDir != "" {
		w.spill = newSpill(cfg.SpillDir)
	}
	return w, nil
}

// Enqueue schedules a request for async delivery and returns the job
// ID. File uploads are synchronous-only: their payloads must not
// outlive the request.
func (w *Worker) Enqueue(req *domain.DeliveryRequest) (string, error) {
	if len(req.Files) > 0 {
		return "", domain.NewDomainError("queue.Enqueue", domain.ErrConfiguration,
			"async delivery of files is not supported")
	}
	j := &job{id: ulid.Make().String(), req: req}
	if err := w.push(j); err != nil {
		return "", err
	}
	return j.id, nil
}

func (w *Worker) push(j *job) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return w.spillOrDrop(j)
	}
	select {
	case w.jobs <- j:
		return nil
	default:
		return domain.NewDomainError("queue.Enqueue", domain.ErrConfiguration, "queue is full")
	}
}

// Start loads any spilled jobs and begins processing. It returns
// immediately; processing stops when ctx is canceled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	if w.spill != nil && w.lookup != nil {
		w.restoreSpilled()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case j := <-w.jobs:
				w.process(ctx, j)
			}
		}
	}()
}

// Stop halts processing and spills pending jobs to disk.
func (w *Worker) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	for {
		select {
		case j := <-w.jobs:
			w.mu.Lock()
			_ = w.spillOrDrop(j)
			w.mu.Unlock()
		default:
			return
		}
	}
}

func (w *Worker) process(ctx context.Context, j *job) {
	if err := w.limiter.Wait(ctx); err != nil {
		w.mu.Lock()
		_ = w.spillOrDrop(j)
		w.mu.Unlock()
		return
	}

	_, err := w.deliver.Deliver(ctx, j.req)
	if err == nil {
		w.logger.Debug("async delivery complete", "job", j.id, "attempts", j.attempts+1)
		return
	}

	j.attempts++
	decision := w.policy(j.attempts, err)

	var delay time.Duration
	switch decision.Kind {
	case delivery.Discard:
		w.logger.Warn("discarding undeliverable job", "job", j.id, "error", err)
		return
	case delivery.RetryAfter:
		delay = decision.Delay
	default:
		delay = j.nextBackoff()
		if delay == backoff.Stop {
			w.logger.Error("job backoff exhausted", "job", j.id, "attempts", j.attempts)
			return
		}
	}

	if j.attempts >= w.cfg.MaxRetries {
		w.logger.Error("job retries exhausted", "job", j.id, "attempts", j.attempts, "error", err)
		return
	}

	w.logger.Info("rescheduling job", "job", j.id, "attempt", j.attempts, "delay", delay)
	time.AfterFunc(delay, func() {
		if err := w.push(j); err != nil {
			w.logger.Warn("requeue failed", "job", j.id, "error", err)
		}
	})
}

// spillOrDrop must be called with w.mu held.
func (w *Worker) spillOrDrop(j *job) error {
	if w.spill == nil {
		w.logger.Warn("dropping job, no spill dir configured", "job", j.id)
		return nil
	}
	return w.spill.save(j)
}

func (w *Worker) restoreSpilled() {
	spilled, err := w.spill.drain()
	if err != nil {
		w.logger.Warn("spill drain failed", "error", err)
		return
	}
	for _, sj := range spilled {
		p, err := w.lookup(sj.Profile)
		if err != nil {
			w.logger.Warn("dropping spilled job, profile gone", "job", sj.ID, "profile", sj.Profile)
			continue
		}
		j := &job{
			id:       sj.ID,
			attempts: sj.Attempts,
			req: &domain.DeliveryRequest{
				Profile:              p,
				Channel:              sj.Channel,
				ValidateKnownChannel: sj.ValidateKnownChannel,
				Text:                 sj.Text,
				Blocks:               sj.Blocks,
				Attachments:          sj.Attachments,
				IconEmoji:            sj.IconEmoji,
				ThreadTS:             sj.ThreadTS,
			},
		}
		if err := w.push(j); err != nil {
			w.logger.Warn("requeue of spilled job failed", "job", sj.ID, "error", err)
		}
	}
	if len(spilled) > 0 {
		w.logger.Info("restored spilled jobs", "count", len(spilled))
	}
}
