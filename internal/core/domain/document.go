package domain

import (
	"fx-blockstream/internal/core/merge"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as JSON numbers. Decoding accepts both forms.
	decimal.MarshalJSONWithoutQuotes = true
}

// Document is an entity persisted in a document collection.
//
// Identity is absent until the first successful save and is assigned by the
// store. Version is maintained by the store and bumped on every write.
// MarshalDocument and UnmarshalDocument convert the attributes (without
// identity and version) to and from the snake_case storage shape.
type Document interface {
	GetID() string
	SetID(id string)
	GetVersion() int64
	SetVersion(v int64)
	MarshalDocument() ([]byte, error)
	UnmarshalDocument(data []byte) error
}

// SameIdentity reports whether a and b denote the same stored row.
// Entities without identity are never equal to anything.
func SameIdentity[E Document](a, b E) bool {
	id := a.GetID()
	return id != "" && id == b.GetID()
}

// Schema describes one entity type to the generic storage and HTTP layers.
type Schema[E Document] struct {
	// Name is the entity name used in error payloads and alert headers.
	Name string
	// Collection is the document collection in the backing store.
	Collection string
	// Path is the HTTP collection segment under /api.
	Path        string
	New         func() E
	Clone       func(E) E
	MergeFields merge.Fields[E]
	// WriteOnly lists attributes never rendered to clients. A full replace
	// that omits them keeps the stored values.
	WriteOnly merge.Fields[E]
}

func clonePtr[V any](p *V) *V {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
