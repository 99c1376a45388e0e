package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kristofer/smog/pkg/value"
)

type fakeObj struct {
	kind value.ObjType
	hash uint32
}

func (f *fakeObj) ObjType() value.ObjType { return f.kind }
func (f *fakeObj) HashCode() uint32       { return f.hash }

func TestIsFalsey(t *testing.T) {
	assert.True(t, value.Nil.IsFalsey())
	assert.True(t, value.FromBool(false).IsFalsey())
	assert.False(t, value.FromBool(true).IsFalsey())
	assert.False(t, value.FromNumber(0).IsFalsey())
	assert.False(t, value.FromObject(&fakeObj{}).IsFalsey())
}

func TestEqual(t *testing.T) {
	assert.True(t, value.Equal(value.Nil, value.Nil))
	assert.False(t, value.Equal(value.Nil, value.FromBool(false)))
	assert.True(t, value.Equal(value.FromNumber(1), value.FromNumber(1)))
	assert.False(t, value.Equal(value.FromNumber(1), value.FromNumber(2)))

	a := &fakeObj{}
	b := &fakeObj{}
	assert.True(t, value.Equal(value.FromObject(a), value.FromObject(a)))
	assert.False(t, value.Equal(value.FromObject(a), value.FromObject(b)))
}

func TestHashNumberDistinguishesCloseValues(t *testing.T) {
	h1 := value.Hash(value.FromNumber(1))
	h2 := value.Hash(value.FromNumber(1.0000001))
	assert.NotEqual(t, h1, h2)
}

func TestHashStringIsFNV1a(t *testing.T) {
	// Known FNV-1a 32-bit hash of "" is the offset basis itself.
	assert.Equal(t, uint32(2166136261), value.HashString(""))
	assert.Equal(t, value.HashString("abc"), value.HashString("abc"))
	assert.NotEqual(t, value.HashString("abc"), value.HashString("abd"))
}

func TestFormatNumber(t *testing.T) {
	cases := map[float64]string{
		1:     "1",
		1.5:   "1.5",
		1.25:  "1.25",
		0:     "0",
		-0.5:  "-0.5",
		100.0: "100",
	}
	for n, want := range cases {
		assert.Equal(t, want, value.FormatNumber(n), "FormatNumber(%v)", n)
	}
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "nil", value.Stringify(value.Nil))
	assert.Equal(t, "true", value.Stringify(value.FromBool(true)))
	assert.Equal(t, "false", value.Stringify(value.FromBool(false)))
	assert.Equal(t, "1.5", value.Stringify(value.FromNumber(1.5)))
}

func TestObjTypeString(t *testing.T) {
	assert.Equal(t, "string", value.TypeString.String())
	assert.Equal(t, "bound method", value.TypeBoundMethod.String())
}
