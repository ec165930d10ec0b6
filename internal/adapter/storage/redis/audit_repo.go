package redis

import (
	"context"
	"fmt"
	"time"

	"fx-blockstream/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// AuditRepo appends audit entries to a capped Redis stream.
type AuditRepo struct {
	client *goredis.Client
	stream string
	maxLen int64
}

// NewAuditRepo creates an audit repository writing to stream, trimmed to
// roughly maxLen entries.
func NewAuditRepo(client *goredis.Client, stream string, maxLen int64) *AuditRepo {
	return &AuditRepo{client: client, stream: stream, maxLen: maxLen}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	err := r.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":            log.ID.String(),
			"action":        string(log.Action),
			"resource_type": log.ResourceType,
			"resource_id":   log.ResourceID,
			"request_id":    log.RequestID,
			"ip_address":    log.IPAddress,
			"created_at":    log.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis audit xadd: %w", err)
	}
	return nil
}
