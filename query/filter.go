// Package query implements the predicate tree (Filter), the where-clause
// planner and pipeline (Query), and the QueryBuilder that assembles one.
package query

import (
	"math"
	"strings"

	"github.com/erigontech/objectdb/collection"
	"github.com/erigontech/objectdb/object"
	"github.com/erigontech/objectdb/txn"
)

// filterKind is the closed set of predicate variants. A Filter is a
// tagged sum (kind + the fields that variant uses) evaluated by a single
// switch in Evaluate, rather than one interface implementation per
// variant — this keeps the hot path inlinable and the set authoritative,
// since no caller can add a new kind from outside the package.
type filterKind uint8

const (
	fkIDBetween filterKind = iota + 1
	fkScalarBetween
	fkAnyScalarBetween
	fkStringBetween
	fkStringStartsWith
	fkStringEndsWith
	fkStringMatches
	fkNull
	fkAnd
	fkOr
	fkNot
	fkStatic
	fkLink
)

// Filter is an immutable predicate tree node.
type Filter struct {
	kind filterKind

	prop object.Property

	idLo, idHi int64

	numLo, numHi float64 // Int/Long/Float/Double bound, widened to float64
	boundType    object.DataType

	strLo, strHi     *string // nil lower = -inf, nil upper = matches nothing
	caseSensitive    bool
	strPattern       string

	children []*Filter

	link    *collection.Link
	sub     *Filter

	static bool
}

// IDBetween matches ids in [lo, hi] inclusive.
func IDBetween(lo, hi int64) *Filter { return &Filter{kind: fkIDBetween, idLo: lo, idHi: hi} }

// ScalarBetween matches a scalar property in [lo, hi] inclusive, with
// NaN-aware semantics for Float/Double: a NaN bound matches only NaN; a
// lower bound of NaN with a finite upper matches values <= upper or NaN;
// an upper bound of NaN with a finite lower matches nothing.
func ScalarBetween(p object.Property, lo, hi float64) *Filter {
	return &Filter{kind: fkScalarBetween, prop: p, numLo: lo, numHi: hi, boundType: p.Type}
}

// AnyScalarBetween matches a list property if any element satisfies
// ScalarBetween's rule; a null list never matches.
func AnyScalarBetween(p object.Property, lo, hi float64) *Filter {
	return &Filter{kind: fkAnyScalarBetween, prop: p, numLo: lo, numHi: hi, boundType: p.Type}
}

// StringBetween matches a string property with half-open bounds: a nil
// lower bound means "from the beginning"; a nil upper bound means
// "matches nothing" — intentionally asymmetric, mirroring the storage
// layer's "prefix until" semantics.
func StringBetween(p object.Property, lo, hi *string, caseSensitive bool) *Filter {
	return &Filter{kind: fkStringBetween, prop: p, strLo: lo, strHi: hi, caseSensitive: caseSensitive}
}

func StringStartsWith(p object.Property, prefix string, caseSensitive bool) *Filter {
	return &Filter{kind: fkStringStartsWith, prop: p, strPattern: prefix, caseSensitive: caseSensitive}
}

func StringEndsWith(p object.Property, suffix string, caseSensitive bool) *Filter {
	return &Filter{kind: fkStringEndsWith, prop: p, strPattern: suffix, caseSensitive: caseSensitive}
}

// StringMatches evaluates a glob pattern with '?' (any one rune) and '*'
// (any run, including empty).
func StringMatches(p object.Property, pattern string, caseSensitive bool) *Filter {
	return &Filter{kind: fkStringMatches, prop: p, strPattern: pattern, caseSensitive: caseSensitive}
}

func Null(p object.Property) *Filter { return &Filter{kind: fkNull, prop: p} }

func And(children ...*Filter) *Filter { return &Filter{kind: fkAnd, children: children} }
func Or(children ...*Filter) *Filter  { return &Filter{kind: fkOr, children: children} }
func Not(f *Filter) *Filter           { return &Filter{kind: fkNot, sub: f} }

// Static always returns v, regardless of the record — used as a
// placeholder for an always-true/always-false branch.
func Static(v bool) *Filter { return &Filter{kind: fkStatic, static: v} }

// LinkFilter matches iff any record reachable via l from the current
// record's id satisfies sub. It requires a transaction (to walk the link
// table) and fails with VersionError if evaluated without one.
func LinkFilter(l *collection.Link, sub *Filter) *Filter {
	return &Filter{kind: fkLink, link: l, sub: sub}
}

// evalCtx carries the pieces a filter needs beyond the record itself:
// the id (for IDBetween), and the transaction + a way to read a linked
// record (for Link filters).
type evalCtx struct {
	id      int64
	t       *txn.Txn
	getLink func(l *collection.Link, otherID int64) (*object.Record, bool, error)
}

// ErrVersion is returned when a Link filter evaluates without a
// transaction context.
var ErrVersion = versionError{}

type versionError struct{}

func (versionError) Error() string { return "query: link filter evaluated without a transaction" }

// Evaluate runs the filter against one record, given its id. t may be nil
// if the filter tree contains no Link node; evaluating a Link node with a
// nil t returns ErrVersion.
func (f *Filter) Evaluate(r *object.Record, id int64, t *txn.Txn, getLink func(l *collection.Link, otherID int64) (*object.Record, bool, error)) (bool, error) {
	return f.eval(r, evalCtx{id: id, t: t, getLink: getLink})
}

func (f *Filter) eval(r *object.Record, ctx evalCtx) (bool, error) {
	switch f.kind {
	case fkIDBetween:
		return ctx.id >= f.idLo && ctx.id <= f.idHi, nil
	case fkScalarBetween:
		if r.IsNull(f.prop) {
			return false, nil
		}
		return evalScalarBetween(r, f.prop, f.numLo, f.numHi), nil
	case fkAnyScalarBetween:
		return anyScalarBetween(r, f.prop, f.numLo, f.numHi), nil
	case fkStringBetween:
		if r.IsNull(f.prop) {
			return false, nil
		}
		s, _ := r.ReadString(f.prop)
		return stringBetween(s, f.strLo, f.strHi, f.caseSensitive), nil
	case fkStringStartsWith:
		if r.IsNull(f.prop) {
			return false, nil
		}
		s, _ := r.ReadString(f.prop)
		return stringHasAffix(s, f.strPattern, f.caseSensitive, true), nil
	case fkStringEndsWith:
		if r.IsNull(f.prop) {
			return false, nil
		}
		s, _ := r.ReadString(f.prop)
		return stringHasAffix(s, f.strPattern, f.caseSensitive, false), nil
	case fkStringMatches:
		if r.IsNull(f.prop) {
			return false, nil
		}
		s, _ := r.ReadString(f.prop)
		if !f.caseSensitive {
			s = strings.ToLower(s)
		}
		return globMatch(f.strPattern, s, f.caseSensitive), nil
	case fkNull:
		return r.IsNull(f.prop), nil
	case fkAnd:
		for _, c := range f.children {
			ok, err := c.eval(r, ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case fkOr:
		for _, c := range f.children {
			ok, err := c.eval(r, ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case fkNot:
		ok, err := f.sub.eval(r, ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case fkStatic:
		return f.static, nil
	case fkLink:
		if ctx.t == nil || ctx.getLink == nil {
			return false, ErrVersion
		}
		matched := false
		err := f.link.Iter(ctx.t, ctx.id, false, func(otherID int64) (bool, error) {
			linkedRec, ok, err := ctx.getLink(f.link, otherID)
			if err != nil {
				return false, err
			}
			if !ok {
				return true, nil
			}
			ok2, err := f.sub.eval(linkedRec, evalCtx{id: otherID, t: ctx.t, getLink: ctx.getLink})
			if err != nil {
				return false, err
			}
			if ok2 {
				matched = true
				return false, nil // found one, stop scanning
			}
			return true, nil
		})
		return matched, err
	default:
		return false, nil
	}
}

// readScalarAsFloat reads a Float/Double property's native value. It is
// never used for Byte/Int/Long: widening those to float64 would silently
// merge or misorder distinct values once a Long crosses 2^53, so integer
// properties stay in native int64 arithmetic end to end (readScalarAsInt,
// intBetween) and only reach float64 for Aggregate's float-shaped
// accumulator, converted once at the very end rather than per record.
func readScalarAsFloat(r *object.Record, p object.Property) float64 {
	switch p.Type {
	case object.Float:
		return float64(r.ReadFloat(p))
	case object.Double:
		return r.ReadDouble(p)
	default:
		return 0
	}
}

// readScalarAsInt reads a Byte/Int/Long property as its native int64
// value; ok is false for any other property type.
func readScalarAsInt(r *object.Record, p object.Property) (v int64, ok bool) {
	switch p.Type {
	case object.Byte:
		return int64(r.ReadByte(p)), true
	case object.Int:
		return int64(r.ReadInt(p)), true
	case object.Long:
		return r.ReadLong(p), true
	default:
		return 0, false
	}
}

// boundToInt64 converts a Between bound given as float64 to int64 for an
// integer-typed comparison, clamping out-of-range bounds instead of
// producing an implementation-defined result and treating a NaN bound
// (never meaningful for an integer property) as 0.
func boundToInt64(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(v)
	}
}

func intBetween(v, lo, hi int64) bool { return v >= lo && v <= hi }

// scalarBetween implements NaN-aware between semantics for Float/Double
// properties: a NaN bound matches only NaN; [NaN, hi]
// matches values <= hi or NaN; [lo, NaN] matches nothing unless lo is
// also NaN.
func scalarBetween(v, lo, hi float64) bool {
	loNaN, hiNaN := math.IsNaN(lo), math.IsNaN(hi)
	vNaN := math.IsNaN(v)
	switch {
	case loNaN && hiNaN:
		return vNaN
	case loNaN:
		return vNaN || v <= hi
	case hiNaN:
		return false
	default:
		return v >= lo && v <= hi
	}
}

// evalScalarBetween dispatches a single record's property to the integer
// or float comparison path by its declared type.
func evalScalarBetween(r *object.Record, p object.Property, lo, hi float64) bool {
	if iv, ok := readScalarAsInt(r, p); ok {
		return intBetween(iv, boundToInt64(lo), boundToInt64(hi))
	}
	return scalarBetween(readScalarAsFloat(r, p), lo, hi)
}

func anyScalarBetween(r *object.Record, p object.Property, lo, hi float64) bool {
	elemType, ok := p.Type.ElementType()
	if !ok {
		return false
	}
	switch elemType {
	case object.Byte:
		v, ok := r.ReadByteList(p)
		if !ok {
			return false
		}
		iLo, iHi := boundToInt64(lo), boundToInt64(hi)
		for _, x := range v {
			if intBetween(int64(x), iLo, iHi) {
				return true
			}
		}
	case object.Int:
		v, ok := r.ReadIntList(p)
		if !ok {
			return false
		}
		iLo, iHi := boundToInt64(lo), boundToInt64(hi)
		for _, x := range v {
			if intBetween(int64(x), iLo, iHi) {
				return true
			}
		}
	case object.Long:
		v, ok := r.ReadLongList(p)
		if !ok {
			return false
		}
		iLo, iHi := boundToInt64(lo), boundToInt64(hi)
		for _, x := range v {
			if intBetween(x, iLo, iHi) {
				return true
			}
		}
	case object.Float:
		v, ok := r.ReadFloatList(p)
		if !ok {
			return false
		}
		for _, x := range v {
			if scalarBetween(float64(x), lo, hi) {
				return true
			}
		}
	case object.Double:
		v, ok := r.ReadDoubleList(p)
		if !ok {
			return false
		}
		for _, x := range v {
			if scalarBetween(x, lo, hi) {
				return true
			}
		}
	}
	return false
}

// stringBetween applies caseSensitive folding then the asymmetric bound
// rule: missing lo means -inf, missing hi means "matches nothing".
func stringBetween(s string, lo, hi *string, caseSensitive bool) bool {
	if hi == nil {
		return false
	}
	cmp := s
	h := *hi
	if !caseSensitive {
		cmp = strings.ToLower(cmp)
		h = strings.ToLower(h)
	}
	if cmp > h {
		return false
	}
	if lo == nil {
		return true
	}
	l := *lo
	if !caseSensitive {
		l = strings.ToLower(l)
	}
	return cmp >= l
}

func stringHasAffix(s, affix string, caseSensitive, prefix bool) bool {
	if !caseSensitive {
		s = strings.ToLower(s)
		affix = strings.ToLower(affix)
	}
	if prefix {
		return strings.HasPrefix(s, affix)
	}
	return strings.HasSuffix(s, affix)
}

// globMatch matches s against pattern where '?' matches exactly one rune
// and '*' matches any run (including empty). When caseSensitive is false
// the caller has already lowercased s and globMatch lowercases pattern.
func globMatch(pattern, s string, caseSensitive bool) bool {
	if !caseSensitive {
		pattern = strings.ToLower(pattern)
	}
	return globMatchRunes([]rune(pattern), []rune(s))
}

func globMatchRunes(pattern, s []rune) bool {
	if len(pattern) == 0 {
		return len(s) == 0
	}
	switch pattern[0] {
	case '*':
		for i := 0; i <= len(s); i++ {
			if globMatchRunes(pattern[1:], s[i:]) {
				return true
			}
		}
		return false
	case '?':
		if len(s) == 0 {
			return false
		}
		return globMatchRunes(pattern[1:], s[1:])
	default:
		if len(s) == 0 || s[0] != pattern[0] {
			return false
		}
		return globMatchRunes(pattern[1:], s[1:])
	}
}
