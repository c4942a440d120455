package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hamed0406/tileping/internal/domain"
	"github.com/hamed0406/tileping/internal/repo"
)

func (s *Store) Get(ctx context.Context, key string) (*repo.AlertRecord, error) {
	const q = `SELECT last_status, last_sent_at FROM alerts WHERE endpoint_key=$1`
	r := repo.AlertRecord{EndpointKey: key}
	var (
		status   string
		lastSent *time.Time
	)
	err := s.pool.QueryRow(ctx, q, key).Scan(&status, &lastSent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	r.LastStatus = domain.Status(status)
	r.LastSentAt = lastSent
	return &r, nil
}

func (s *Store) Set(ctx context.Context, key string, status domain.Status, sentAt time.Time) error {
	const q = `
		INSERT INTO alerts (endpoint_key, last_status, last_sent_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (endpoint_key)
		DO UPDATE SET last_status=EXCLUDED.last_status, last_sent_at=COALESCE(EXCLUDED.last_sent_at, alerts.last_sent_at)
	`
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	_, err := s.pool.Exec(ctx, q, key, string(status), ts)
	return err
}
