package repo

import (
	"context"
	"time"

	"github.com/hamed0406/tileping/internal/domain"
)

// AlertRecord holds the last status seen for an endpoint and the last time a
// notification went out for it (used for cooldown).
type AlertRecord struct {
	EndpointKey string
	LastStatus  domain.Status
	LastSentAt  *time.Time
}

type AlertStore interface {
	// Get returns nil, nil if there's no record yet.
	Get(ctx context.Context, key string) (*AlertRecord, error)
	// Set upserts the record. A zero sentAt keeps the previous send time.
	Set(ctx context.Context, key string, status domain.Status, sentAt time.Time) error
}
