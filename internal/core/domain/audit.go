package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionPatch  AuditAction = "PATCH"
	AuditActionDelete AuditAction = "DELETE"
)

// AuditLog records a single successful write against a collection.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	RequestID    string      `json:"request_id,omitempty"`
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}

// AuditActionForMethod maps an HTTP write method to its audit action.
func AuditActionForMethod(method string) (AuditAction, bool) {
	switch method {
	case "POST":
		return AuditActionCreate, true
	case "PUT":
		return AuditActionUpdate, true
	case "PATCH":
		return AuditActionPatch, true
	case "DELETE":
		return AuditActionDelete, true
	}
	return "", false
}
