package query

import (
	"github.com/erigontech/objectdb/collection"
	"github.com/erigontech/objectdb/object"
)

// QueryBuilder assembles a Query. Build-time mistakes (unknown property,
// a where-clause built against the wrong collection, offset > limit) are
// reported eagerly as errIllegalArg rather than surfacing during
// execution.
type QueryBuilder struct {
	coll     *collection.Collection
	clauses  []whereClause
	filter   *Filter
	sorts    []SortKey
	distinct []DistinctKey
	offset   int
	limit    int

	getLink func(l *collection.Link, otherID int64) (*object.Record, bool, error)

	err error
}

// NewQueryBuilder starts building a query against coll. getLink resolves
// a linked record for Filter's Link variant and for LinkTarget
// where-clauses; it is supplied by the instance layer, which knows how to
// look a record up in an arbitrary collection by id.
func NewQueryBuilder(coll *collection.Collection, getLink func(l *collection.Link, otherID int64) (*object.Record, bool, error)) *QueryBuilder {
	return &QueryBuilder{coll: coll, getLink: getLink, limit: -1}
}

func (b *QueryBuilder) fail(err error) *QueryBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// AddIDRange adds a full or bounded id-range where-clause. A lo > hi pair
// is accepted and silently swapped with the scan direction reversed,
// mirroring the same narrowing rule AddIndexRange uses.
func (b *QueryBuilder) AddIDRange(lo, hi int64, ascending bool) *QueryBuilder {
	if lo > hi {
		lo, hi = hi, lo
		ascending = !ascending
	}
	b.clauses = append(b.clauses, IDRange(b.coll.Def().ID, lo, hi, ascending))
	return b
}

// AddIndexRange adds a where-clause over one of the collection's
// declared indexes. If lo sorts after hi, the bounds are swapped and the
// scan direction reversed — matching the narrowing rule applied to
// exclusive bound adjustment in the reference implementation.
func (b *QueryBuilder) AddIndexRange(indexName string, lo, hi []byte, ascending, skipDuplicates bool) *QueryBuilder {
	def, ok := b.coll.Def().Index(indexName)
	if !ok {
		return b.fail(errIllegalArg)
	}
	var ix *collection.Index
	for _, candidate := range b.coll.Indexes() {
		if candidate.Def().ID == def.ID {
			ix = candidate
			break
		}
	}
	if ix == nil {
		return b.fail(errIllegalArg)
	}
	if compareBytes(lo, hi) > 0 {
		lo, hi = hi, lo
		ascending = !ascending
	}
	b.clauses = append(b.clauses, IndexRange(ix, lo, hi, ascending, skipDuplicates))
	return b
}

// AddLinkTarget adds a where-clause over linkName's target set for
// ownerID (or source set, when backlink is set).
func (b *QueryBuilder) AddLinkTarget(linkName string, ownerID int64, backlink bool) *QueryBuilder {
	def, ok := b.coll.Def().Link(linkName)
	if !ok {
		return b.fail(errIllegalArg)
	}
	var l *collection.Link
	for _, candidate := range b.coll.Links() {
		if candidate.Def().ID == def.ID {
			l = candidate
			break
		}
	}
	if l == nil {
		return b.fail(errIllegalArg)
	}
	b.clauses = append(b.clauses, LinkTarget(l, ownerID, backlink))
	return b
}

func (b *QueryBuilder) SetFilter(f *Filter) *QueryBuilder {
	b.filter = f
	return b
}

// AddSort appends one sort key; a sort on a non-scalar (list) property is
// an IllegalArg, validated here rather than at execution time.
func (b *QueryBuilder) AddSort(propName string, descending bool) *QueryBuilder {
	p, ok := b.coll.Def().Property(propName)
	if !ok || p.Type.IsList() {
		return b.fail(errIllegalArg)
	}
	b.sorts = append(b.sorts, SortKey{Property: p, Descending: descending})
	return b
}

func (b *QueryBuilder) AddDistinct(propName string, caseSensitive bool) *QueryBuilder {
	p, ok := b.coll.Def().Property(propName)
	if !ok {
		return b.fail(errIllegalArg)
	}
	b.distinct = append(b.distinct, DistinctKey{Property: p, CaseSensitive: caseSensitive})
	return b
}

func (b *QueryBuilder) SetOffset(offset int) *QueryBuilder {
	b.offset = offset
	return b
}

func (b *QueryBuilder) SetLimit(limit int) *QueryBuilder {
	b.limit = limit
	return b
}

// Build finalizes the query. With no where-clause declared, the query
// defaults to a full ascending id-range scan over the whole collection.
func (b *QueryBuilder) Build() (*Query, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.limit >= 0 && b.offset > b.limit {
		return nil, errIllegalArg
	}
	clauses := b.clauses
	if len(clauses) == 0 {
		clauses = []whereClause{FullIDRange(b.coll.Def().ID)}
	}
	return &Query{
		coll:     b.coll,
		clauses:  clauses,
		filter:   b.filter,
		sorts:    b.sorts,
		distinct: b.distinct,
		offset:   b.offset,
		limit:    b.limit,
		getLink:  b.getLink,
	}, nil
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// errIllegalArg is this package's internal sentinel; the instance layer
// maps it to the typed objectdb.IllegalArg kind.
var errIllegalArg = illegalArgError{}

type illegalArgError struct{}

func (illegalArgError) Error() string { return "query: illegal argument" }

func IsIllegalArg(err error) bool {
	_, ok := err.(illegalArgError)
	return ok
}
