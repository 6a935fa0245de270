package query

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/erigontech/objectdb/collection"
	"github.com/erigontech/objectdb/indexkey"
	"github.com/erigontech/objectdb/object"
	"github.com/erigontech/objectdb/txn"
)

// SortKey orders results by one property, ascending or descending.
type SortKey struct {
	Property   object.Property
	Descending bool
}

// DistinctKey suppresses results whose normalized value for Property has
// already been seen.
type DistinctKey struct {
	Property      object.Property
	CaseSensitive bool
}

// AggOp is the closed set of aggregate operations Aggregate supports.
type AggOp uint8

const (
	AggMin AggOp = iota + 1
	AggMax
	AggSum
	AggAvg
)

// Result is one matched record, decoded lazily by the caller via Record.
type Result struct {
	ID  int64
	Raw []byte
}

func (r Result) Record() *object.Record { return object.NewRecord(r.Raw) }

// Query bundles an ordered list of where-clauses, an optional filter,
// sort/distinct keys, and offset/limit, built by QueryBuilder.Build.
type Query struct {
	coll     *collection.Collection
	clauses  []whereClause
	filter   *Filter
	sorts    []SortKey
	distinct []DistinctKey
	offset   int
	limit    int // -1 means unlimited

	// getLink resolves a linked record for Filter's Link variant.
	getLink func(l *collection.Link, otherID int64) (*object.Record, bool, error)
}

// idSource concatenates every where-clause in declared order, deduping
// primary ids across clauses with a roaring64 bitmap — skipped entirely
// when there is exactly one clause, since no cross-clause duplicate is
// possible and the allocation would be wasted.
func (q *Query) idSource(t *txn.Txn, emit func(id int64) (bool, error)) error {
	if len(q.clauses) == 1 {
		return q.clauses[0].scan(t, emit)
	}
	seen := roaring64.New()
	for _, c := range q.clauses {
		cont := true
		err := c.scan(t, func(id int64) (bool, error) {
			if seen.Contains(uint64(id)) {
				return true, nil
			}
			seen.Add(uint64(id))
			ok, err := emit(id)
			cont = ok
			return ok, err
		})
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// accept pulls one accepted (id, raw) pair through the filter and
// distinct stages; distinctSeen is owned by the caller so it persists
// across the whole query execution.
func (q *Query) accept(t *txn.Txn, id int64, distinctSeen map[string]struct{}) (Result, bool, error) {
	raw, ok, err := q.coll.Get(t, id)
	if err != nil || !ok {
		return Result{}, false, err
	}
	rec := object.NewRecord(raw)
	if q.filter != nil {
		match, err := q.filter.Evaluate(rec, id, t, q.getLink)
		if err != nil {
			return Result{}, false, err
		}
		if !match {
			return Result{}, false, nil
		}
	}
	if len(q.distinct) > 0 {
		key := q.distinctKey(rec)
		if _, dup := distinctSeen[key]; dup {
			return Result{}, false, nil
		}
		distinctSeen[key] = struct{}{}
	}
	return Result{ID: id, Raw: raw}, true, nil
}

func (q *Query) distinctKey(r *object.Record) string {
	var out []byte
	for _, d := range q.distinct {
		if r.IsNull(d.Property) {
			out = append(out, 0)
			continue
		}
		out = append(out, indexkey.EncodeScalar(d.Property.Type, r, d.Property, d.CaseSensitive)...)
		out = append(out, '|')
	}
	return string(out)
}

// MatchesForWatch re-checks a single changed record against the query's
// id-range and filter, without re-running the full where-clause scan —
// used by the watch package to decide whether one changed id should wake
// a query watcher. It does not apply distinct/sort/offset/limit, since
// those only affect which rows are returned, not whether the set changed.
// A Link sub-filter needs a transaction to resolve; called with a nil txn
// it reports ErrVersion, which the caller treats as "assume it matches".
func (q *Query) MatchesForWatch(rec *object.Record, id int64) (bool, error) {
	inRange := false
	for _, c := range q.clauses {
		if c.containsID(id) {
			inRange = true
			break
		}
	}
	if !inRange {
		return false, nil
	}
	if q.filter == nil {
		return true, nil
	}
	return q.filter.Evaluate(rec, id, nil, q.getLink)
}

// Find runs the query to completion and returns every accepted record,
// sorted and offset/limited.
func (q *Query) Find(t *txn.Txn) ([]Result, error) {
	var out []Result
	distinctSeen := make(map[string]struct{})
	if len(q.sorts) == 0 {
		skipped := 0
		emitted := 0
		err := q.idSource(t, func(id int64) (bool, error) {
			res, ok, err := q.accept(t, id, distinctSeen)
			if err != nil || !ok {
				return err == nil, err
			}
			if skipped < q.offset {
				skipped++
				return true, nil
			}
			out = append(out, res)
			emitted++
			if q.limit >= 0 && emitted >= q.limit {
				return false, nil
			}
			return true, nil
		})
		return out, err
	}
	err := q.idSource(t, func(id int64) (bool, error) {
		res, ok, err := q.accept(t, id, distinctSeen)
		if err != nil || !ok {
			return err == nil, err
		}
		out = append(out, res)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	q.applySort(out)
	return applyOffsetLimit(out, q.offset, q.limit), nil
}

// FindWhile streams accepted, sorted results to pred, stopping as soon as
// pred returns false. Offset/limit still apply before pred ever sees a
// result.
func (q *Query) FindWhile(t *txn.Txn, pred func(Result) (bool, error)) error {
	results, err := q.Find(t)
	if err != nil {
		return err
	}
	for _, r := range results {
		cont, err := pred(r)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// DeleteWhile removes every record pred accepts (after filter/sort/
// offset/limit), cleaning up the collection's indexes and links for each.
func (q *Query) DeleteWhile(t *txn.Txn, pred func(Result) (bool, error)) (int, error) {
	results, err := q.Find(t)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range results {
		cont, err := pred(r)
		if err != nil {
			return n, err
		}
		if !cont {
			break
		}
		ok, err := q.coll.Delete(t, r.ID)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// Count is Find without materializing the records' bytes beyond what
// filtering itself needs.
func (q *Query) Count(t *txn.Txn) (int, error) {
	results, err := q.Find(t)
	return len(results), err
}

// ExportJSON writes the query's matched records as a JSON array. Each
// element is a record's raw encoded bytes, which encoding/json writes as
// a base64 string followed by a newline; records are not decoded into
// property-named documents.
func (q *Query) ExportJSON(t *txn.Txn, w io.Writer) error {
	results, err := q.Find(t)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("[")); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for i, r := range results {
		if i > 0 {
			if _, err := w.Write([]byte(",")); err != nil {
				return err
			}
		}
		if err := enc.Encode(r.Raw); err != nil {
			return err
		}
	}
	_, err = w.Write([]byte("]"))
	return err
}

// Aggregate computes min/max/sum/avg over a scalar property across every
// matched record; null values are skipped. Byte/Int/Long accumulate in
// native int64 arithmetic and only convert to the float64 return type
// once, at the end — never per record — so a Long sum or min/max
// comparison never loses precision to an intermediate float64 widening.
func (q *Query) Aggregate(t *txn.Txn, op AggOp, p object.Property) (float64, error) {
	results, err := q.Find(t)
	if err != nil {
		return 0, err
	}
	isInt := p.Type == object.Byte || p.Type == object.Int || p.Type == object.Long
	var sum float64
	var sumInt int64
	var count int
	var best float64
	var bestInt int64
	haveBest := false
	for _, r := range results {
		rec := r.Record()
		if rec.IsNull(p) {
			continue
		}
		if isInt {
			v, _ := readScalarAsInt(rec, p)
			sumInt += v
			count++
			switch op {
			case AggMin:
				if !haveBest || v < bestInt {
					bestInt, haveBest = v, true
				}
			case AggMax:
				if !haveBest || v > bestInt {
					bestInt, haveBest = v, true
				}
			}
			continue
		}
		v := readScalarAsFloat(rec, p)
		sum += v
		count++
		switch op {
		case AggMin:
			if !haveBest || v < best {
				best, haveBest = v, true
			}
		case AggMax:
			if !haveBest || v > best {
				best, haveBest = v, true
			}
		}
	}
	switch op {
	case AggSum:
		if isInt {
			return float64(sumInt), nil
		}
		return sum, nil
	case AggAvg:
		if count == 0 {
			return 0, nil
		}
		if isInt {
			return float64(sumInt) / float64(count), nil
		}
		return sum / float64(count), nil
	default:
		if isInt {
			return float64(bestInt), nil
		}
		return best, nil
	}
}

func (q *Query) applySort(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := results[i].Record(), results[j].Record()
		for _, s := range q.sorts {
			if s.Property.Type == object.String {
				si, _ := ri.ReadString(s.Property)
				sj, _ := rj.ReadString(s.Property)
				if si == sj {
					continue
				}
				if s.Descending {
					return si > sj
				}
				return si < sj
			}
			// Byte/Int/Long compare in native int64 space so two distinct
			// Long values past 2^53 never collapse to the same float64 and
			// sort as equal.
			if vi, ok := readScalarAsInt(ri, s.Property); ok {
				vj, _ := readScalarAsInt(rj, s.Property)
				if vi == vj {
					continue
				}
				if s.Descending {
					return vi > vj
				}
				return vi < vj
			}
			vi := readScalarAsFloat(ri, s.Property)
			vj := readScalarAsFloat(rj, s.Property)
			if vi == vj {
				continue
			}
			if s.Descending {
				return vi > vj
			}
			return vi < vj
		}
		return results[i].ID < results[j].ID
	})
}

func applyOffsetLimit(results []Result, offset, limit int) []Result {
	if offset >= len(results) {
		return nil
	}
	results = results[offset:]
	if limit >= 0 && limit < len(results) {
		results = results[:limit]
	}
	return results
}
