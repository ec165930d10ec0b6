package middleware

import (
	"path"
	"strings"
	"time"

	"fx-blockstream/internal/core/domain"
	"fx-blockstream/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog records every successful write under /api.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		action, ok := domain.AuditActionForMethod(c.Request.Method)
		if !ok {
			return
		}
		resourceType, ok := collectionOf(c.FullPath())
		if !ok {
			return
		}

		id := c.Param("id")
		if id == "" {
			if loc := c.Writer.Header().Get("Location"); loc != "" {
				id = path.Base(loc)
			}
		}

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   id,
			RequestID:    c.GetString(CtxRequestID),
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

// collectionOf extracts the collection segment from a matched route such as
// /api/smart-trades/:id.
func collectionOf(route string) (string, bool) {
	rest, ok := strings.CutPrefix(route, "/api/")
	if !ok {
		return "", false
	}
	collection, _, _ := strings.Cut(rest, "/")
	return collection, collection != ""
}
