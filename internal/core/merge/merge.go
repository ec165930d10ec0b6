// Package merge implements merge-patch semantics over declarative field lists.
//
// An entity type declares its merge-eligible attributes once as a Fields list.
// Apply copies every attribute that is present (non-nil) in the patch onto a
// clone of the stored entity and leaves the rest untouched.
package merge

// Field copies one optional attribute between two entities.
type Field[E any] struct {
	Name    string
	present func(E) bool
	copy    func(dst, src E)
}

// Ptr declares a merge field for an optional attribute stored as *V.
// ref must return the address of the attribute inside the given entity.
func Ptr[E, V any](name string, ref func(E) **V) Field[E] {
	return Field[E]{
		Name:    name,
		present: func(e E) bool { return *ref(e) != nil },
		copy: func(dst, src E) {
			v := **ref(src)
			*ref(dst) = &v
		},
	}
}

// Fields is the ordered list of merge-eligible attributes of an entity.
type Fields[E any] []Field[E]

// Names returns the attribute names in declaration order.
func (fs Fields[E]) Names() []string {
	names := make([]string, 0, len(fs))
	for _, f := range fs {
		names = append(names, f.Name)
	}
	return names
}

// Apply returns a new entity built from clone(stored) with every attribute
// present in patch copied over. The second result lists the attributes that
// were taken from the patch. A patch with no present attribute yields an
// unchanged clone.
func Apply[E any](stored, patch E, fields Fields[E], clone func(E) E) (E, []string) {
	out := clone(stored)
	var applied []string
	for _, f := range fields {
		if f.present(patch) {
			f.copy(out, patch)
			applied = append(applied, f.Name)
		}
	}
	return out, applied
}

// Fill copies into dst every listed attribute that dst lacks and src has.
// It returns the names of the filled attributes.
func Fill[E any](dst, src E, fields Fields[E]) []string {
	var filled []string
	for _, f := range fields {
		if !f.present(dst) && f.present(src) {
			f.copy(dst, src)
			filled = append(filled, f.Name)
		}
	}
	return filled
}
