package store

import (
	"context"
	"time"

	"github.com/soundlab/soundlab/internal/server/domain"
)

// Store is the persistence boundary for the telemetry server. Today that is
// just the security audit trail; the interface keeps the SQLite driver
// swappable for a shared store in multi-instance deployments.
type Store interface {
	Events() EventRepository

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// EventRepository persists security audit events.
type EventRepository interface {
	Insert(ctx context.Context, ev domain.SecurityEvent) error

	// ListRecent returns up to limit events, newest first.
	ListRecent(ctx context.Context, limit int) ([]domain.SecurityEvent, error)

	// DeleteBefore removes events created before cutoff and reports how
	// many were removed. Used by housekeeping.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
