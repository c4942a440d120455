package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hamed0406/tileping/internal/domain"
	"github.com/hamed0406/tileping/internal/repo"
)

const DefaultKeep = 100

// Store keeps the most recent runs and alert state in process memory.
type Store struct {
	mu     sync.RWMutex
	keep   int
	nextID int64
	runs   []domain.Run // oldest first
	alerts map[string]repo.AlertRecord
}

// New keeps at most keep runs; keep <= 0 means DefaultKeep.
func New(keep int) *Store {
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &Store{
		keep:   keep,
		runs:   make([]domain.Run, 0, keep),
		alerts: make(map[string]repo.AlertRecord),
	}
}

func (m *Store) Save(ctx context.Context, run *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	run.ID = m.nextID
	m.runs = append(m.runs, *run)
	if over := len(m.runs) - m.keep; over > 0 {
		m.runs = append(m.runs[:0:0], m.runs[over:]...)
	}
	return nil
}

func (m *Store) Latest(ctx context.Context) (*domain.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.runs) == 0 {
		return nil, nil
	}
	r := m.runs[len(m.runs)-1]
	return &r, nil
}

func (m *Store) List(ctx context.Context, limit int) ([]domain.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.runs) {
		limit = len(m.runs)
	}
	out := make([]domain.Run, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

func (m *Store) ByID(ctx context.Context, id int64) (*domain.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.runs {
		if m.runs[i].ID == id {
			r := m.runs[i]
			return &r, nil
		}
	}
	return nil, repo.ErrNotFound
}

// ---- AlertStore ----

func (m *Store) Get(ctx context.Context, key string) (*repo.AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.alerts[key]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Store) Set(ctx context.Context, key string, status domain.Status, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	} else if prev, ok := m.alerts[key]; ok {
		ts = prev.LastSentAt
	}
	m.alerts[key] = repo.AlertRecord{EndpointKey: key, LastStatus: status, LastSentAt: ts}
	return nil
}
