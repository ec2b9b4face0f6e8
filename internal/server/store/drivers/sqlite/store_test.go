package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/soundlab/soundlab/internal/server/domain"
	"github.com/soundlab/soundlab/internal/server/store/drivers/sqlite"
	"github.com/soundlab/soundlab/pkg/idx"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "soundlab_test.db")
	s, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestEventRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	ev := domain.SecurityEvent{
		ID:         idx.NewAt(at),
		Kind:       domain.EventReplayDetected,
		Detail:     "token replay detected",
		Identity:   "abc123hash",
		Endpoint:   "/api/status",
		RemoteAddr: "192.0.2.1",
		CreatedAt:  at,
	}

	require.NoError(t, s.Events().Insert(ctx, ev))

	got, err := s.Events().ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, ev.ID, got[0].ID)
	require.Equal(t, ev.Kind, got[0].Kind)
	require.Equal(t, ev.Identity, got[0].Identity)
	require.True(t, ev.CreatedAt.Equal(got[0].CreatedAt))
}

func TestListRecentOrdersNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	for i := range 5 {
		at := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Events().Insert(ctx, domain.SecurityEvent{
			ID:        idx.NewAt(at),
			Kind:      domain.EventRateLimitExceeded,
			CreatedAt: at,
		}))
	}

	got, err := s.Events().ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// ULIDs embed the timestamp, so ID order is time order.
	require.True(t, got[0].CreatedAt.After(got[1].CreatedAt))
	require.True(t, got[1].CreatedAt.After(got[2].CreatedAt))
}

func TestDeleteBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	for i := range 4 {
		at := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.Events().Insert(ctx, domain.SecurityEvent{
			ID:        idx.NewAt(at),
			Kind:      domain.EventCSRFMismatch,
			CreatedAt: at,
		}))
	}

	n, err := s.Events().DeleteBefore(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	got, err := s.Events().ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
}
