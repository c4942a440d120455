package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/tileping/internal/domain"
	"github.com/hamed0406/tileping/internal/repo"
)

var _ repo.RunStore = (*Store)(nil)
var _ repo.AlertStore = (*Store)(nil)

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
  id              BIGSERIAL PRIMARY KEY,
  started_at      TIMESTAMPTZ NOT NULL,
  finished_at     TIMESTAMPTZ NOT NULL,
  base_server_url TEXT NOT NULL,
  server_url      TEXT NOT NULL,
  webconf_root    TEXT NOT NULL,
  summary         JSONB NOT NULL,
  results         JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs (finished_at DESC);

CREATE TABLE IF NOT EXISTS alerts (
  endpoint_key TEXT PRIMARY KEY,
  last_status  TEXT NOT NULL,
  last_sent_at TIMESTAMPTZ NULL
);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

// Migrate creates the tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ---- RunStore ----

func (s *Store) Save(ctx context.Context, run *domain.Run) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	results, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO runs
		   (started_at, finished_at, base_server_url, server_url, webconf_root, summary, results)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		run.StartedAt, run.FinishedAt, run.BaseServerURL, run.ServerURL, run.WebconfRoot, summary, results,
	).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	s.log.Debug("run_saved", zap.Int64("run_id", run.ID))
	return nil
}

const runColumns = `id, started_at, finished_at, base_server_url, server_url, webconf_root, summary, results`

func (s *Store) Latest(ctx context.Context) (*domain.Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return r, nil
}

func (s *Store) ByID(ctx context.Context, id int64) (*domain.Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("run %d: %w", id, err)
	}
	return r, nil
}

func (s *Store) List(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []domain.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRun(row pgx.Row) (*domain.Run, error) {
	var (
		r       domain.Run
		summary []byte
		results []byte
	)
	if err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.BaseServerURL, &r.ServerURL, &r.WebconfRoot, &summary, &results); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(summary, &r.Summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	if err := json.Unmarshal(results, &r.Results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	r.Timestamp = float64(r.FinishedAt.UnixNano()) / float64(time.Second)
	return &r, nil
}
