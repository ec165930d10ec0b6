package ports

import (
	"context"
	"errors"
	"iter"

	"fx-blockstream/internal/core/domain"
)

var (
	// ErrNotFound is returned by a conditional write whose document no longer exists.
	ErrNotFound = errors.New("document not found")
	// ErrVersionConflict is returned by a conditional write that lost a race.
	ErrVersionConflict = errors.New("document version conflict")
)

// Repository defines persistence operations for one document collection.
// Save is conditional when the entity carries a non-zero version.
type Repository[E domain.Document] interface {
	Save(ctx context.Context, entity E) (E, error)
	FindByID(ctx context.Context, id string) (E, bool, error)
	FindAll(ctx context.Context, page domain.PageRequest) ([]E, error)
	// Stream yields every document ordered by id, fetching one batch at a time.
	Stream(ctx context.Context, desc bool) iter.Seq2[E, error]
	ExistsByID(ctx context.Context, id string) (bool, error)
	DeleteByID(ctx context.Context, id string) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}
