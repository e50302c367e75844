package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slackline/internal/usecase/delivery"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	at := time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.Record(ctx, delivery.Attempt{
		Profile: "default", Channel: "C111", Outcome: "sent", ThreadTS: "1.2", At: at,
	}))
	require.NoError(t, s.Record(ctx, delivery.Attempt{
		Profile: "billing", Channel: "C222", Outcome: "failed", ErrorCode: "NOT_IN_CHANNEL", At: at.Add(time.Minute),
	}))

	attempts, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, attempts, 2)

	// Newest first.
	assert.Equal(t, "billing", attempts[0].Profile)
	assert.Equal(t, "failed", attempts[0].Outcome)
	assert.Equal(t, "NOT_IN_CHANNEL", attempts[0].ErrorCode)
	assert.Equal(t, "default", attempts[1].Profile)
	assert.Equal(t, "1.2", attempts[1].ThreadTS)
	assert.True(t, attempts[1].At.Equal(at))
}

func TestRecentLimit(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, s.Record(ctx, delivery.Attempt{
			Profile: "default", Channel: "C111", Outcome: "sent", At: time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	attempts, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, attempts, 3)
}

func TestRecordFillsMissingTimestamp(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, delivery.Attempt{Profile: "default", Channel: "C111", Outcome: "noop"}))

	attempts, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.WithinDuration(t, time.Now().UTC(), attempts[0].At, time.Minute)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Record(context.Background(), delivery.Attempt{Profile: "p", Channel: "C1", Outcome: "sent"}))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	attempts, err := s2.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}
