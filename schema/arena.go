package schema

// Arena owns every collection declaration for an instance's lifetime.
// Links reference collections by (collection_id) through the arena
// instead of holding a pointer, so the collection/link graph — which is
// cyclic when a link's source and target are the same collection, or
// when two collections link to each other — never forms a Go reference
// cycle and lives exactly as long as the instance does.
type Arena struct {
	bySlot []Collection
	byID   map[uint16]int
}

// NewArena builds an arena from a schema's ordered collection list,
// assigning no new ids — collection ids are fixed at schema-build time.
func NewArena(s Schema) *Arena {
	a := &Arena{bySlot: s.Collections, byID: make(map[uint16]int, len(s.Collections))}
	for i, c := range s.Collections {
		a.byID[c.ID] = i
	}
	return a
}

// Get resolves a collection_id to its declaration.
func (a *Arena) Get(id uint16) (*Collection, bool) {
	i, ok := a.byID[id]
	if !ok {
		return nil, false
	}
	return &a.bySlot[i], true
}

// ByName resolves a collection by name, used at instance-open time when a
// caller asks for "Person" rather than its numeric id.
func (a *Arena) ByName(name string) (*Collection, bool) {
	for i := range a.bySlot {
		if a.bySlot[i].Name == name {
			return &a.bySlot[i], true
		}
	}
	return nil, false
}

// All returns every collection in declaration order.
func (a *Arena) All() []Collection { return a.bySlot }
