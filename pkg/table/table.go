// Package table implements the open-addressed hash table smog uses for the
// string-intern set, the global-variable name index, class method tables,
// and instance field bags.
//
// Grounded on the teacher's (kristofer/smog) preference for a single
// general-purpose keyed container reused across subsystems rather than a
// bespoke map type per use site (it used Go's builtin map for that role;
// here we need tombstone-aware deletion and find-by-content string
// deduplication that Go's map cannot express, so we implement the
// open-addressing scheme spec.md §4.2 describes directly).
package table

import "github.com/kristofer/smog/pkg/value"

// entry is one slot in the table's backing array.
//
// Empty slot:     Key.Kind == value.KindEmpty, Value == value.Nil
// Tombstone slot: Key.Kind == value.KindEmpty, Value == value.FromBool(true)
// Occupied slot:  Key.Kind != value.KindEmpty
type entry struct {
	Key   value.Value
	Value value.Value
}

func (e entry) isEmptySlot() bool {
	return e.Key.Kind == value.KindEmpty && e.Value.Kind == value.KindNil
}

func (e entry) isTombstone() bool {
	return e.Key.Kind == value.KindEmpty && e.Value.Kind == value.KindBool && e.Value.Bool
}

const (
	minCapacity = 8
	maxLoad     = 0.75
)

// Table is an open-addressed, linear-probing hash table keyed by
// value.Value. count includes tombstones, so the table grows before
// probe-sequence length degrades even under heavy delete/insert churn.
type Table struct {
	count   int
	entries []entry
}

// New returns an empty table. The backing array is allocated lazily on the
// first Put, matching clox's initTable/zero-state table.
func New() *Table { return &Table{} }

// Len reports the number of live (non-tombstone) entries.
func (t *Table) Len() int {
	if t.entries == nil {
		return 0
	}
	live := 0
	for _, e := range t.entries {
		if !e.isEmptySlot() && !e.isTombstone() {
			live++
		}
	}
	return live
}

// Put inserts or overwrites key -> v. It reports true iff key was not
// already present (a tombstone being reused still counts as "new").
//
// key must not be the Empty sentinel; Empty is reserved to mark unoccupied
// slots internally.
func (t *Table) Put(key, v value.Value) bool {
	if key.Kind == value.KindEmpty {
		panic("table: empty sentinel is not a valid key")
	}
	if t.entries == nil || t.count+1 > int(float64(len(t.entries))*maxLoad) {
		t.grow()
	}
	e, isNew := t.findSlot(t.entries, key)
	if isNew {
		t.count++
	}
	e.Key = key
	e.Value = v
	return isNew
}

// Get looks up key, returning (value, true) if present.
func (t *Table) Get(key value.Value) (value.Value, bool) {
	if t.entries == nil {
		return value.Nil, false
	}
	e, found := t.probe(t.entries, key)
	if !found {
		return value.Nil, false
	}
	return e.Value, true
}

// Remove converts key's entry into a tombstone, leaving count unchanged (the
// slot stays occupied from the probe sequence's point of view, so later
// lookups for other keys that hashed into the same bucket still find them).
func (t *Table) Remove(key value.Value) bool {
	if t.entries == nil {
		return false
	}
	e, found := t.probe(t.entries, key)
	if !found {
		return false
	}
	e.Key = value.Empty
	e.Value = value.FromBool(true)
	return true
}

// FindString is a specialized lookup used only during string interning: it
// compares the candidate's hash and then its bytes against every string
// already in the table, without allocating a Value/object for the
// candidate first.
func (t *Table) FindString(chars string, hash uint32) (value.Value, bool) {
	if t.entries == nil {
		return value.Nil, false
	}
	mask := uint32(len(t.entries) - 1)
	index := hash & mask
	for {
		e := &t.entries[index]
		if e.isEmptySlot() {
			return value.Nil, false
		}
		if !e.isTombstone() && e.Key.Kind == value.KindObject {
			if sv, ok := e.Key.Obj.(value.StringHeapObject); ok && sv.StringHash() == hash && sv.StringChars() == chars {
				return e.Key, true
			}
		}
		index = (index + 1) & mask
	}
}

// RemoveWhite deletes every entry whose key object is unmarked. Called by
// the collector after marking, to evict interned strings nothing
// references anymore.
func (t *Table) RemoveWhite() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.isEmptySlot() || e.isTombstone() {
			continue
		}
		if e.Key.Kind == value.KindObject {
			if m, ok := e.Key.Obj.(value.Markable); ok && !m.IsMarked() {
				e.Key = value.Empty
				e.Value = value.FromBool(true)
			}
		}
	}
}

// Each calls fn for every live entry, in table order. Order is unspecified
// and may change across Puts; callers (class method tables, field bags)
// must not rely on iteration order.
func (t *Table) Each(fn func(key, v value.Value)) {
	for _, e := range t.entries {
		if !e.isEmptySlot() && !e.isTombstone() {
			fn(e.Key, e.Value)
		}
	}
}

// CopyInto copies every live entry of t into dst, used by OP_INHERIT to
// seed a subclass's method table from its superclass.
func (t *Table) CopyInto(dst *Table) {
	t.Each(func(k, v value.Value) { dst.Put(k, v) })
}

func (t *Table) grow() {
	newCap := minCapacity
	if t.entries != nil {
		newCap = len(t.entries) * 2
	}
	newEntries := make([]entry, newCap)
	for i := range newEntries {
		newEntries[i].Key = value.Empty
	}
	oldCount := 0
	for _, e := range t.entries {
		if e.isEmptySlot() || e.isTombstone() {
			continue
		}
		dst, _ := t.findSlot(newEntries, e.Key)
		dst.Key = e.Key
		dst.Value = e.Value
		oldCount++
	}
	t.entries = newEntries
	t.count = oldCount
}

// findSlot locates the slot key belongs in within entries: either an
// existing occupied slot with an equal key, or the first tombstone seen
// along the probe sequence (reused in preference to a later empty slot), or
// else the first true empty slot. Returns the slot and whether key was not
// already present as an occupied (non-tombstone) entry.
func (t *Table) findSlot(entries []entry, key value.Value) (*entry, bool) {
	mask := uint32(len(entries) - 1)
	index := value.Hash(key) & mask
	var tombstone *entry
	for {
		e := &entries[index]
		if e.isEmptySlot() {
			if tombstone != nil {
				return tombstone, true
			}
			return e, true
		}
		if e.isTombstone() {
			if tombstone == nil {
				tombstone = e
			}
		} else if value.Equal(e.Key, key) {
			return e, false
		}
		index = (index + 1) & mask
	}
}

// probe finds an occupied, non-tombstone slot matching key.
func (t *Table) probe(entries []entry, key value.Value) (*entry, bool) {
	mask := uint32(len(entries) - 1)
	index := value.Hash(key) & mask
	for {
		e := &entries[index]
		if e.isEmptySlot() {
			return nil, false
		}
		if !e.isTombstone() && value.Equal(e.Key, key) {
			return e, true
		}
		index = (index + 1) & mask
	}
}
