package ports

import (
	"context"
	"iter"
	"time"

	"fx-blockstream/internal/core/domain"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// IdempotencyCache stores create responses keyed by client Idempotency-Key.
// A create first reserves its key; only the holder of the reservation
// creates, then completes it with Set or gives it back with Release.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) // nil when absent
	Reserve(ctx context.Context, key string, lease time.Duration) (bool, error)
	Set(ctx context.Context, record *domain.IdempotencyRecord, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// RateLimiter counts requests per client in a fixed window.
type RateLimiter interface {
	// Allow reports whether another request fits into the window and how many remain.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error)
}

// HealthChecker reports whether one backing store answers. Name keys the
// store in the /health body ("redis", "postgresql", "sqlite").
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

// --- Service Ports (Business Logic) ---

// ResourceService implements the create/replace/merge/list/get/delete
// contract for one entity type.
type ResourceService[E domain.Document] interface {
	Create(ctx context.Context, entity E) (E, error)
	Replace(ctx context.Context, id string, entity E) (E, error)
	Merge(ctx context.Context, id string, patch E) (E, error)
	List(ctx context.Context, page domain.PageRequest) ([]E, int64, error)
	Stream(ctx context.Context, desc bool) iter.Seq2[E, error]
	Get(ctx context.Context, id string) (E, bool, error)
	Delete(ctx context.Context, id string) error
}

// AuditService records successful writes.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
