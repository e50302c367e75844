package scheduling

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slackline/internal/domain"
	"slackline/internal/infra/config"
	"slackline/internal/infra/logger"
	"slackline/internal/usecase/notify"
	"slackline/internal/usecase/registry"
)

type countingDeliverer struct {
	count atomic.Int32
}

func (c *countingDeliverer) Deliver(context.Context, *domain.DeliveryRequest) (*domain.DeliveryResult, error) {
	c.count.Add(1)
	return &domain.DeliveryResult{Delivered: true}, nil
}

func testNotifier(t *testing.T, d notify.Deliverer) *notify.Notifier {
	t.Helper()
	r := registry.New()
	_, err := r.Register(domain.DefaultProfileKey, domain.ProfileParams{Token: "xoxb-test"})
	require.NoError(t, err)

	n, err := notify.NewBuilder().
		Define(notify.Definition{
			Name:     "heartbeat",
			Channels: []notify.FieldSource{notify.Literal{Value: "C111"}},
			Text:     notify.Literal{Value: "still alive"},
		}).
		Build(r, d, logger.Discard())
	require.NoError(t, err)
	return n
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"0 9 * * 1-5", true},
		{"@daily", true},
		{"30s", true},
		{"50ms", true},
		{"", false},
		{"not-a-schedule", false},
		{"-5s", false},
	}
	for _, tt := range tests {
		_, err := parseSchedule(tt.in)
		if tt.ok {
			assert.NoError(t, err, tt.in)
		} else {
			assert.Error(t, err, tt.in)
		}
	}
}

func TestConstantDelayNext(t *testing.T) {
	now := time.Now()
	next := constantDelay{delay: 250 * time.Millisecond}.Next(now)
	assert.Equal(t, now.Add(250*time.Millisecond), next)
}

func TestAddTaskInvalidSchedule(t *testing.T) {
	s := New(testNotifier(t, &countingDeliverer{}), logger.Discard())
	err := s.AddTask(config.ScheduledTaskConfig{Name: "bad", Schedule: "whenever", Notification: "heartbeat"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}

func TestSchedulerFiresDurationTask(t *testing.T) {
	d := &countingDeliverer{}
	s := New(testNotifier(t, d), logger.Discard())
	require.NoError(t, s.AddTask(config.ScheduledTaskConfig{
		Name: "fast", Schedule: "20ms", Notification: "heartbeat",
	}))

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if d.count.Load() >= 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("scheduled task fired %d times, want at least 2", d.count.Load())
}

func TestSchedulerOneShot(t *testing.T) {
	d := &countingDeliverer{}
	s := New(testNotifier(t, d), logger.Discard())
	require.NoError(t, s.AddTask(config.ScheduledTaskConfig{
		Name: "once", Schedule: "20ms", Notification: "heartbeat", OneShot: true,
	}))

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && d.count.Load() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	require.EqualValues(t, 1, d.count.Load())

	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 1, d.count.Load(), "one-shot task must not fire again")
}

func TestSchedulerStopIdempotent(t *testing.T) {
	s := New(testNotifier(t, &countingDeliverer{}), logger.Discard())
	s.Stop() // never started
	s.Start(context.Background())
	s.Start(context.Background()) // second start is a no-op
	s.Stop()
	s.Stop()
}
