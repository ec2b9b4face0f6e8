package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/soundlab/soundlab/internal/server/domain"
	"github.com/soundlab/soundlab/internal/server/store"
	"github.com/soundlab/soundlab/pkg/idx"
)

// AuditService records security events for operator forensics. Recording is
// best-effort: a store failure is logged and swallowed, never surfaced to
// the request path that triggered the event.
type AuditService struct {
	Store  store.Store
	Logger *slog.Logger
}

// Record persists one security event stamped now.
func (s *AuditService) Record(ctx context.Context, kind, detail, identity, endpoint, remoteAddr string) {
	now := time.Now().UTC()
	ev := domain.SecurityEvent{
		ID:         idx.NewAt(now),
		Kind:       kind,
		Detail:     detail,
		Identity:   identity,
		Endpoint:   endpoint,
		RemoteAddr: remoteAddr,
		CreatedAt:  now,
	}

	if err := s.Store.Events().Insert(ctx, ev); err != nil {
		s.Logger.Error("failed to record security event", "kind", kind, "error", err)
	}
}

// Recent returns up to limit events, newest first.
func (s *AuditService) Recent(ctx context.Context, limit int) ([]domain.SecurityEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.Store.Events().ListRecent(ctx, limit)
}

// Hook adapts Record to the middleware audit signature; the remote address
// is unknown at that layer and left empty.
func (s *AuditService) Hook() func(ctx context.Context, kind, detail, identity, endpoint string) {
	return func(ctx context.Context, kind, detail, identity, endpoint string) {
		s.Record(ctx, kind, detail, identity, endpoint, "")
	}
}
