package port

import (
	"context"

	"github.com/phantom-eng/bytefood-web/internal/core/domain"
)

type LineRepository interface {
	// Load returns the persisted entries for key; a missing snapshot is (nil, nil)
	Load(ctx context.Context, key string) ([]domain.LineEntry, error)

	// Save replaces the snapshot for key with entries, keeping their order
	Save(ctx context.Context, key string, entries []domain.LineEntry) error

	// Delete removes the snapshot for key
	Delete(ctx context.Context, key string) error
}
