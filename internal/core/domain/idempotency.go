package domain

import "time"

// IdempotencyRecord is a cached create response replayed for a repeated
// Idempotency-Key. A pending record marks a create still in flight.
type IdempotencyRecord struct {
	Key       string    `json:"key"`
	Pending   bool      `json:"pending,omitempty"`
	Location  string    `json:"location"`
	Body      []byte    `json:"body"`
	ETag      string    `json:"etag,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BuildIdempotencyKey scopes a client key to a collection.
func BuildIdempotencyKey(collection, clientKey string) string {
	return collection + ":" + clientKey
}
