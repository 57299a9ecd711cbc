package migration

import (
	"sort"

	"github.com/loykin/schemarun/internal/driver"
)

// Registry is the immutable, version-ordered index over a catalog. Selection
// runs in O(log n) lookups plus O(k) emission.
type Registry struct {
	list  []*Migration // ascending by version
	index map[int64]int
}

// NewRegistry sorts and indexes the catalog. Versions must be unique and
// positive; collisions fail with DuplicateVersionError.
func NewRegistry(migrations []*Migration) (*Registry, error) {
	list := make([]*Migration, len(migrations))
	copy(list, migrations)
	sort.Slice(list, func(i, j int) bool { return list[i].Version < list[j].Version })

	index := make(map[int64]int, len(list))
	for i, m := range list {
		if prev, ok := index[m.Version]; ok {
			return nil, &DuplicateVersionError{Version: m.Version, A: list[prev].Description, B: m.Description}
		}
		index[m.Version] = i
	}
	return &Registry{list: list, index: index}, nil
}

// Len reports the catalog size.
func (r *Registry) Len() int { return len(r.list) }

// All returns the catalog in ascending order. The slice is shared; callers
// must not mutate it.
func (r *Registry) All() []*Migration { return r.list }

// Get returns the migration at exactly version v.
func (r *Registry) Get(v int64) (*Migration, bool) {
	i, ok := r.index[v]
	if !ok {
		return nil, false
	}
	return r.list[i], true
}

// firstAbove returns the index of the first entry with version > v.
func (r *Registry) firstAbove(v int64) int {
	return sort.Search(len(r.list), func(i int) bool { return r.list[i].Version > v })
}

// NextAfter returns migrations with version strictly greater than v in
// ascending order, up to limit (limit <= 0 means all). v == driver.NilVersion
// starts from the beginning.
func (r *Registry) NextAfter(v int64, limit int) []*Migration {
	i := 0
	if v != driver.NilVersion {
		i = r.firstAbove(v)
	}
	out := r.list[i:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// AtOrBelow returns migrations with version <= v in descending order, up to
// limit (limit <= 0 means all).
func (r *Registry) AtOrBelow(v int64, limit int) []*Migration {
	i := r.firstAbove(v) // entries [0, i) have version <= v
	out := make([]*Migration, 0, i)
	for j := i - 1; j >= 0; j-- {
		out = append(out, r.list[j])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// PreviousOf returns the version immediately preceding v in the registry, or
// driver.NilVersion when v is the first entry.
func (r *Registry) PreviousOf(v int64) int64 {
	i := sort.Search(len(r.list), func(i int) bool { return r.list[i].Version >= v })
	if i == 0 {
		return driver.NilVersion
	}
	return r.list[i-1].Version
}

// CountBetween counts registry entries with lowerExclusive < version <=
// upperInclusive. lowerExclusive == driver.NilVersion counts from the start.
func (r *Registry) CountBetween(lowerExclusive, upperInclusive int64) int {
	lo := 0
	if lowerExclusive != driver.NilVersion {
		lo = r.firstAbove(lowerExclusive)
	}
	hi := r.firstAbove(upperInclusive)
	if hi < lo {
		return 0
	}
	return hi - lo
}
