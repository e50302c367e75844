// Package scheduling fires notification definitions on recurring
// schedules, cron expressions or plain durations.
package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"slackline/internal/infra/config"
	"slackline/internal/usecase/notify"
)

const taskTimeout = 5 * time.Minute

// Scheduler runs notification sends on a recurring schedule.
type Scheduler struct {
	cron     *cron.Cron
	notifier *notify.Notifier
	logger   *slog.Logger
	mu       sync.Mutex
	started  bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a scheduler bound to a notifier.
func New(notifier *notify.Notifier, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		notifier: notifier,
		logger:   logger,
	}
}

// AddTask schedules a recurring send of a named notification. The
// schedule can be a cron expression or a duration string.
func (s *Scheduler) AddTask(task config.ScheduledTaskConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule, err := parseSchedule(task.Schedule)
	if err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q for task %q: %w", task.Schedule, task.Name, err)
	}

	taskName := task.Name
	notification := task.Notification
	oneShot := task.OneShot
	logger := s.logger

	var entryID cron.EntryID
	entryID = s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()

		if ctx == nil {
			logger.Debug("scheduler stopped, skipping task", "task", taskName)
			return
		}

		taskCtx, cancel := context.WithTimeout(ctx, taskTimeout)
		defer cancel()

		start := time.Now()
		if err := s.notifier.Fire(taskCtx, notification, notify.Context{"scheduled_at": start}); err != nil {
			logger.Warn("scheduled notification failed",
				"task", taskName,
				"notification", notification,
				"error", err,
				"duration", time.Since(start))
		} else {
			logger.Info("scheduled notification sent",
				"task", taskName,
				"notification", notification,
				"duration", time.Since(start))
		}

		if oneShot {
			s.cron.Remove(entryID)
		}
	}))

	logger.Info("task added to scheduler", "name", task.Name, "schedule", task.Schedule, "notification", notification)
	return nil
}

// Start begins running the scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.started = true
}

// Stop signals the scheduler to stop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.started = false
	s.ctx = nil
}

// parseSchedule tries a cron expression first, then falls back to a
// duration string.
func parseSchedule(schedule string) (cron.Schedule, error) {
	if schedule == "" {
		return nil, fmt.Errorf("empty schedule")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if sched, err := parser.Parse(schedule); err == nil {
		return sched, nil
	}

	dur, err := time.ParseDuration(schedule)
	if err != nil {
		return nil, fmt.Errorf("not a valid cron expression or duration: %q", schedule)
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration must be positive: %q", schedule)
	}
	return constantDelay{delay: dur}, nil
}

// constantDelay implements cron.Schedule for a fixed interval,
// supporting sub-second durations unlike cron.Every.
type constantDelay struct {
	delay time.Duration
}

func (c constantDelay) Next(t time.Time) time.Time {
	return t.Add(c.delay)
}
