package dto

import (
	"strings"

	"fx-blockstream/internal/core/domain"
)

// DefaultPageSize applies when a list request sets page without size.
const DefaultPageSize = 20

// PageQuery is the query string of a collection GET.
//
//	?page=0&size=20&sort=id,desc&eagerload=true
type PageQuery struct {
	Page      *int     `form:"page" binding:"omitempty,min=0,max=1000000"`
	Size      *int     `form:"size" binding:"omitempty,min=1,max=2000"`
	Sort      []string `form:"sort" binding:"omitempty,dive,sortspec"`
	EagerLoad bool     `form:"eagerload"`
}

// ToPageRequest converts the query to a page request. Without page and size
// the request is unbounded.
func (q PageQuery) ToPageRequest() domain.PageRequest {
	var pr domain.PageRequest
	for _, s := range q.Sort {
		pr.Desc = strings.HasSuffix(strings.ToLower(s), ",desc")
	}
	if q.Page == nil && q.Size == nil {
		return pr
	}

	pr.Size = DefaultPageSize
	if q.Size != nil {
		pr.Size = *q.Size
	}
	if q.Page != nil {
		pr.Page = *q.Page
	}
	return pr
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
}

type DependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
