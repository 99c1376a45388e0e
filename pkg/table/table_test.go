package table_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/smog/pkg/table"
	"github.com/kristofer/smog/pkg/value"
)

func key(s string) value.Value {
	return value.FromNumber(float64(value.HashString(s)))
}

func TestPutGet(t *testing.T) {
	tb := table.New()
	assert.Equal(t, 0, tb.Len())

	isNew := tb.Put(key("a"), value.FromNumber(1))
	assert.True(t, isNew)
	assert.Equal(t, 1, tb.Len())

	isNew = tb.Put(key("a"), value.FromNumber(2))
	assert.False(t, isNew, "overwriting an existing key is not new")
	assert.Equal(t, 1, tb.Len())

	v, ok := tb.Get(key("a"))
	require.True(t, ok)
	assert.Equal(t, 2.0, v.Number)

	_, ok = tb.Get(key("missing"))
	assert.False(t, ok)
}

func TestRemoveLeavesTombstoneReusableByProbe(t *testing.T) {
	tb := table.New()
	tb.Put(key("a"), value.FromNumber(1))
	tb.Put(key("b"), value.FromNumber(2))

	removed := tb.Remove(key("a"))
	assert.True(t, removed)

	_, ok := tb.Get(key("a"))
	assert.False(t, ok, "removed key should not be found")

	// b must still be reachable even though its probe sequence may have
	// passed through a's now-tombstoned slot.
	v, ok := tb.Get(key("b"))
	require.True(t, ok)
	assert.Equal(t, 2.0, v.Number)

	removed = tb.Remove(key("a"))
	assert.False(t, removed, "removing an already-removed key reports false")
}

func TestGrowPreservesAllEntries(t *testing.T) {
	tb := table.New()
	const n = 100
	for i := 0; i < n; i++ {
		tb.Put(key(fmt.Sprintf("key-%d", i)), value.FromNumber(float64(i)))
	}
	assert.Equal(t, n, tb.Len())
	for i := 0; i < n; i++ {
		v, ok := tb.Get(key(fmt.Sprintf("key-%d", i)))
		require.True(t, ok)
		assert.Equal(t, float64(i), v.Number)
	}
}

func TestPutEmptyKeyPanics(t *testing.T) {
	tb := table.New()
	assert.Panics(t, func() { tb.Put(value.Empty, value.Nil) })
}

func TestEachVisitsEveryLiveEntry(t *testing.T) {
	tb := table.New()
	tb.Put(key("a"), value.FromNumber(1))
	tb.Put(key("b"), value.FromNumber(2))
	tb.Remove(key("a"))

	seen := map[float64]bool{}
	tb.Each(func(_, v value.Value) { seen[v.Number] = true })
	assert.Equal(t, map[float64]bool{2: true}, seen)
}

func TestCopyInto(t *testing.T) {
	src := table.New()
	src.Put(key("a"), value.FromNumber(1))
	src.Put(key("b"), value.FromNumber(2))

	dst := table.New()
	dst.Put(key("b"), value.FromNumber(99)) // pre-existing, should be overwritten
	src.CopyInto(dst)

	assert.Equal(t, 2, dst.Len())
	v, _ := dst.Get(key("b"))
	assert.Equal(t, 2.0, v.Number)
}

// stringObj is a minimal value.StringHeapObject for FindString/RemoveWhite tests.
type stringObj struct {
	chars  string
	hash   uint32
	marked bool
}

func (s *stringObj) ObjType() value.ObjType { return value.TypeString }
func (s *stringObj) HashCode() uint32       { return s.hash }
func (s *stringObj) StringChars() string    { return s.chars }
func (s *stringObj) StringHash() uint32     { return s.hash }
func (s *stringObj) IsMarked() bool         { return s.marked }
func (s *stringObj) SetMarked(m bool)       { s.marked = m }

func TestFindString(t *testing.T) {
	tb := table.New()
	so := &stringObj{chars: "hello", hash: value.HashString("hello")}
	tb.Put(value.FromObject(so), value.Nil)

	found, ok := tb.FindString("hello", value.HashString("hello"))
	require.True(t, ok)
	assert.Same(t, so, found.Obj)

	_, ok = tb.FindString("nope", value.HashString("nope"))
	assert.False(t, ok)
}

func TestRemoveWhiteEvictsUnmarked(t *testing.T) {
	tb := table.New()
	live := &stringObj{chars: "live", hash: value.HashString("live"), marked: true}
	dead := &stringObj{chars: "dead", hash: value.HashString("dead"), marked: false}
	tb.Put(value.FromObject(live), value.Nil)
	tb.Put(value.FromObject(dead), value.Nil)

	tb.RemoveWhite()

	_, ok := tb.FindString("live", live.hash)
	assert.True(t, ok)
	_, ok = tb.FindString("dead", dead.hash)
	assert.False(t, ok)
}
