package domain

// PageRequest selects a slice of a collection ordered by id.
// Size 0 means unbounded.
type PageRequest struct {
	Page int
	Size int
	Desc bool
}

// Paged reports whether the request is bounded.
func (p PageRequest) Paged() bool {
	return p.Size > 0
}

// Offset returns the number of documents to skip.
func (p PageRequest) Offset() int64 {
	if !p.Paged() || p.Page <= 0 {
		return 0
	}
	return int64(p.Page) * int64(p.Size)
}

// LastPage returns the index of the last page for total documents.
func (p PageRequest) LastPage(total int64) int {
	if !p.Paged() || total == 0 {
		return 0
	}
	return int((total - 1) / int64(p.Size))
}
