package repo

import (
	"context"
	"errors"

	"github.com/hamed0406/tileping/internal/domain"
)

var ErrNotFound = errors.New("not found")

// RunStore keeps the history of completed ping runs.
type RunStore interface {
	// Save assigns run.ID.
	Save(ctx context.Context, run *domain.Run) error
	// Latest returns nil, nil when no run was stored yet.
	Latest(ctx context.Context) (*domain.Run, error)
	// List returns up to limit runs, newest first.
	List(ctx context.Context, limit int) ([]domain.Run, error)
	ByID(ctx context.Context, id int64) (*domain.Run, error)
}
