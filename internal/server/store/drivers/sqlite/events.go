package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/soundlab/soundlab/internal/server/domain"
	"github.com/soundlab/soundlab/pkg/idx"
)

type eventRepo struct {
	db *sql.DB
}

func (r *eventRepo) Insert(ctx context.Context, ev domain.SecurityEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO security_events (id, kind, detail, identity, endpoint, remote_addr, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID.String(), ev.Kind, ev.Detail, ev.Identity, ev.Endpoint, ev.RemoteAddr,
		ev.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (r *eventRepo) ListRecent(ctx context.Context, limit int) ([]domain.SecurityEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, detail, identity, endpoint, remote_addr, created_at
		FROM security_events
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.SecurityEvent
	for rows.Next() {
		var (
			ev        domain.SecurityEvent
			id, stamp string
		)
		if err := rows.Scan(&id, &ev.Kind, &ev.Detail, &ev.Identity, &ev.Endpoint, &ev.RemoteAddr, &stamp); err != nil {
			return nil, err
		}

		ev.ID = idx.ID(id)
		if ev.CreatedAt, err = time.Parse(time.RFC3339Nano, stamp); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *eventRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM security_events WHERE created_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
