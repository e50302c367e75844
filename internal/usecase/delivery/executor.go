package delivery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"slackline/internal/adapter/slackapi"
	"slackline/internal/domain"
	"slackline/internal/infra/config"
	"slackline/internal/infra/tracer"
)

const previewLen = 80

// archivedSilencedDiagnostic is the fixed message logged when an
// archived-channel failure is converted to a successful no-op.
const archivedSilencedDiagnostic = "channel is archived; message silently dropped"

// APIFactory builds (or fetches the memoized) Slack client for a profile.
type APIFactory func(p *domain.Profile) (slackapi.API, error)

// Attempt is one delivery outcome handed to the optional Recorder.
type Attempt struct {
	Profile   string
	Channel   string
	Outcome   string // sent|noop|failed
	ErrorCode string
	ThreadTS  string
	At        time.Time
}

// Recorder persists delivery attempts. Implementations must tolerate
// being called from the worker goroutine.
type Recorder interface {
	Record(ctx context.Context, a Attempt) error
}

// Executor drives a request through validation, resolution, sandbox
// gating, and the external Slack call.
type Executor struct {
	cfg      *config.Config
	logger   *slog.Logger
	resolver *Resolver
	apiFor   APIFactory
	recorder Recorder
}

// Option configures an Executor.
type Option func(*Executor)

// WithAPIFactory replaces the client construction, mainly for tests.
func WithAPIFactory(f APIFactory) Option {
	return func(e *Executor) { e.apiFor = f }
}

// WithRecorder attaches a delivery-history recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// NewExecutor creates an Executor. By default clients come from the
// profile's memoized handle, wrapped in the transport circuit breaker.
func NewExecutor(cfg *config.Config, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		cfg:      cfg,
		logger:   logger,
		resolver: NewResolver(cfg),
		apiFor:   defaultAPIFactory(cfg, logger),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// defaultAPIFactory builds profile clients and, unless disabled, wraps
// them in a circuit breaker. Breakers are memoized per profile so
// failure counts survive across deliveries.
func defaultAPIFactory(cfg *config.Config, logger *slog.Logger) APIFactory {
	var mu sync.Mutex
	breakers := make(map[string]slackapi.API)

	return func(p *domain.Profile) (slackapi.API, error) {
		client, err := slackapi.ForProfile(p, logger)
		if err != nil {
			return nil, err
		}
		if !cfg.Breaker.Active() {
			return client, nil
		}

		mu.Lock()
		defer mu.Unlock()
		if api, ok := breakers[p.Key()]; ok {
			return api, nil
		}
		bc := slackapi.BreakerConfig{MaxFailures: cfg.Breaker.MaxFailures}
		// Validated as positive durations at config load.
		if d, err := time.ParseDuration(cfg.Breaker.Timeout); err == nil {
			bc.Timeout = d
		}
		if d, err := time.ParseDuration(cfg.Breaker.Interval); err == nil {
			bc.Interval = d
		}
		api := slackapi.NewBreakerClient(p.Key(), client, bc, logger)
		breakers[p.Key()] = api
		return api, nil
	}
}

// Resolver exposes the executor's resolver for callers that format
// mentions or displays themselves.
func (e *Executor) Resolver() *Resolver { return e.resolver }

// Deliver runs the pipeline synchronously. A nil error with
// Delivered=false marks the deliberate no-op outcomes (kill switch,
// blank text, sandbox noop, silenced archived channel).
func (e *Executor) Deliver(ctx context.Context, req *domain.DeliveryRequest) (*domain.DeliveryResult, error) {
	ctx, span := tracer.StartSpan(ctx, "delivery.Deliver")
	defer span.End()

	if !e.cfg.IsEnabled() {
		e.logger.Debug("slack delivery disabled, skipping", "channel", req.Channel)
		return &domain.DeliveryResult{}, nil
	}

	req.Blocks = domain.NormalizeBlocks(req.Blocks)
	req.Attachments = domain.NormalizeAttachments(req.Attachments)

	noop, err := Validate(req)
	if err != nil {
		tracer.RecordError(span, err)
		e.record(ctx, req, "", Attempt{Outcome: "failed", ErrorCode: string(domain.ErrorCodeOf(err))})
		return nil, err
	}
	if noop {
		e.logger.Info("explicit blank text, skipping delivery", "channel", req.Channel)
		return &domain.DeliveryResult{}, nil
	}

	res, err := e.resolver.Resolve(req.Profile, req.Channel, req.ValidateKnownChannel, req.TextValue())
	if err != nil {
		tracer.RecordError(span, err)
		e.record(ctx, req, "", Attempt{Outcome: "failed", ErrorCode: string(domain.ErrorCodeOf(err))})
		return nil, err
	}

	span.SetAttributes(
		tracer.StringAttr("slack.channel", res.Channel),
		tracer.StringAttr("slack.profile", req.Profile.Key()),
	)

	if res.Noop {
		e.logger.Info("sandbox noop, skipping delivery",
			"profile", req.Profile.Key(),
			"channel", res.Display,
			"text", truncate(res.Text, previewLen),
		)
		e.record(ctx, req, res.Channel, Attempt{Outcome: "noop"})
		return &domain.DeliveryResult{}, nil
	}

	api, err := e.apiFor(req.Profile)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("delivery client", err)
	}

	var ts string
	if len(req.Files) > 0 {
		ts, err = e.uploadFiles(ctx, api, req, res)
	} else {
		ts, err = e.postMessage(ctx, api, req, res)
	}
	if err != nil {
		if silenced := e.silenceArchived(err, res); silenced {
			e.record(ctx, req, res.Channel, Attempt{Outcome: "noop", ErrorCode: string(domain.CodeChannelArchived)})
			return &domain.DeliveryResult{}, nil
		}
		tracer.RecordError(span, err)
		LogFailure(e.logger, err, req.Profile, res.Display, res.Text)
		e.record(ctx, req, res.Channel, Attempt{Outcome: "failed", ErrorCode: string(domain.ErrorCodeOf(err))})
		return nil, err
	}

	tracer.SetOK(span)
	e.record(ctx, req, res.Channel, Attempt{Outcome: "sent", ThreadTS: ts})
	return &domain.DeliveryResult{ThreadTS: ts, Delivered: true}, nil
}

func (e *Executor) postMessage(ctx context.Context, api slackapi.API, req *domain.DeliveryRequest, res Resolution) (string, error) {
	return api.PostMessage(ctx, slackapi.PostParams{
		Channel:     res.Channel,
		Text:        res.Text,
		Blocks:      req.Blocks,
		Attachments: req.Attachments,
		IconEmoji:   req.IconEmoji,
		ThreadTS:    req.ThreadTS,
	})
}

// uploadFiles sends the wrapped files, then looks up where the first
// file landed to recover a thread timestamp. The upload response itself
// carries none; a missing share is not an error.
func (e *Executor) uploadFiles(ctx context.Context, api slackapi.API, req *domain.DeliveryRequest, res Resolution) (string, error) {
	ids, err := api.UploadFiles(ctx, slackapi.UploadParams{
		Files:          req.Files,
		Channel:        res.Channel,
		InitialComment: res.Text,
	})
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", nil
	}

	shares, err := api.FileInfo(ctx, ids[0])
	if err != nil {
		e.logger.Warn("file share lookup failed", "file_id", ids[0], "error", err)
		return "", nil
	}
	if tss := shares.Public[res.Channel]; len(tss) > 0 {
		return tss[0], nil
	}
	if tss := shares.Private[res.Channel]; len(tss) > 0 {
		return tss[0], nil
	}
	return "", nil
}

// silenceArchived converts archived-channel failures to success when
// configured to do so.
func (e *Executor) silenceArchived(err error, res Resolution) bool {
	if !e.cfg.SilenceArchivedChannelExceptions || !errors.Is(err, domain.ErrChannelArchived) {
		return false
	}
	e.logger.Warn(archivedSilencedDiagnostic, "channel", res.Display)
	return true
}

func (e *Executor) record(ctx context.Context, req *domain.DeliveryRequest, channel string, a Attempt) {
	if e.recorder == nil {
		return
	}
	a.Profile = req.Profile.Key()
	if a.Channel == "" {
		a.Channel = channel
		if a.Channel == "" {
			a.Channel = req.Channel
		}
	}
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}
	if err := e.recorder.Record(ctx, a); err != nil {
		e.logger.Warn("delivery history write failed", "error", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back up to a rune boundary so the cut never splits a multi-byte
	// character.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
