package engine

import (
	"sort"

	"github.com/samirrijal/lplace/internal/core/domain"
)

// record is one owner's strokes plus the indexes kept alongside them.
type record struct {
	owner   string
	strokes []domain.Stroke
	ids     map[string]struct{}
	grid    *grid
}

func newRecord(owner string) *record {
	return &record{owner: owner, ids: make(map[string]struct{}), grid: newGrid()}
}

func (r *record) append(s domain.Stroke) bool {
	if _, dup := r.ids[s.ID]; dup {
		return false
	}
	r.ids[s.ID] = struct{}{}
	r.strokes = append(r.strokes, s)
	r.grid.insert(s)
	return true
}

// Store holds every known owner's DrawingRecord. It is not safe for
// concurrent use; a Session only touches it from its Loop.
type Store struct {
	order   []string
	records map[string]*record
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{records: make(map[string]*record)}
}

func (st *Store) recordFor(owner string) *record {
	r, ok := st.records[owner]
	if !ok {
		r = newRecord(owner)
		st.records[owner] = r
		st.order = append(st.order, owner)
	}
	return r
}

// admit prepares an incoming stroke for owner's record. A stroke with no
// owner is stamped with owner; a stroke naming someone else is refused.
func admit(owner string, s domain.Stroke) (domain.Stroke, bool) {
	if owner == "" {
		return domain.Stroke{}, false
	}
	if s.Owner == "" {
		s.Owner = owner
	}
	if s.Owner != owner {
		return domain.Stroke{}, false
	}
	return s.Clone().Normalized(), true
}

// Append adds s to the end of owner's record, creating the record if needed.
// It reports false, leaving the store untouched, when the owner is empty,
// the stroke belongs to someone else, or a stroke with the same id is
// already present.
func (st *Store) Append(owner string, s domain.Stroke) bool {
	s, ok := admit(owner, s)
	if !ok {
		return false
	}
	return st.recordFor(owner).append(s)
}

// Erase applies the erase resolver to owner's record only and returns the
// number of points removed. Unknown owners are a no-op.
func (st *Store) Erase(owner string, epicenter domain.Point, radius, zoom float64) int {
	r, ok := st.records[owner]
	if !ok {
		return 0
	}
	return r.erase(epicenter, radius, zoom)
}

// Replace swaps owner's record for rec. Strokes naming another owner are skipped.
func (st *Store) Replace(owner string, rec domain.DrawingRecord) {
	if owner == "" {
		return
	}
	r := st.recordFor(owner)
	fresh := newRecord(owner)
	for _, s := range rec.Strokes {
		if s, ok := admit(owner, s); ok {
			fresh.append(s)
		}
	}
	*r = *fresh
}

// ReplaceAll discards everything and loads snapshot. Owners are ordered by
// name so every client paints a fetched snapshot in the same order.
func (st *Store) ReplaceAll(snapshot domain.Snapshot) {
	st.order = nil
	st.records = make(map[string]*record, len(snapshot))

	owners := make([]string, 0, len(snapshot))
	for owner := range snapshot {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	for _, owner := range owners {
		st.Replace(owner, snapshot[owner])
	}
}

// Reset empties the store.
func (st *Store) Reset() {
	st.ReplaceAll(nil)
}

// Owners returns owners in paint order.
func (st *Store) Owners() []string {
	return append([]string(nil), st.order...)
}

// Record returns a copy of owner's record.
func (st *Store) Record(owner string) (domain.DrawingRecord, bool) {
	r, ok := st.records[owner]
	if !ok {
		return domain.EmptyRecord(), false
	}
	out := domain.DrawingRecord{Strokes: make([]domain.Stroke, len(r.strokes))}
	for i, s := range r.strokes {
		out.Strokes[i] = s.Clone()
	}
	return out, true
}

// Snapshot returns a deep copy of every record.
func (st *Store) Snapshot() domain.Snapshot {
	out := make(domain.Snapshot, len(st.records))
	for _, owner := range st.order {
		out[owner], _ = st.Record(owner)
	}
	return out
}

// StrokeCount returns the number of strokes across all owners.
func (st *Store) StrokeCount() int {
	n := 0
	for _, r := range st.records {
		n += len(r.strokes)
	}
	return n
}

// each visits every stroke in paint order. fn must not retain or mutate s.
func (st *Store) each(fn func(owner string, s domain.Stroke)) {
	for _, owner := range st.order {
		for _, s := range st.records[owner].strokes {
			fn(owner, s)
		}
	}
}
