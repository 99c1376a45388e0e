// Package value defines smog's runtime value representation.
//
// A Value is a small tagged variant over the handful of types smog code can
// hold directly: nil, booleans, numbers (always float64), and references to
// heap-allocated objects (strings, functions, closures, classes, instances,
// and the rest - see pkg/object). Object itself lives in a separate package
// so that pkg/value, pkg/chunk, and pkg/table can all depend on Value
// without a dependency cycle back through the object heap.
//
// Design Philosophy:
//
// Rather than imitate clox's NaN-boxing or tagged-union-via-C-struct tricks,
// Value is an explicit Go struct with a type tag and a payload. This costs a
// few more bytes per Value than NaN-boxing would, but it is transparent,
// reflect-free, and keeps the switch-on-tag dispatch idiomatic Go.
package value

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies which case of the Value variant is populated.
type Kind byte

const (
	// KindNil is the user-visible absence of a value.
	KindNil Kind = iota
	// KindBool holds Bool.
	KindBool
	// KindNumber holds Number, a float64.
	KindNumber
	// KindObject holds a reference to a heap object.
	KindObject
	// KindEmpty is the internal sentinel for "no entry" / "uninitialized
	// global slot". It is never observable from smog source code.
	KindEmpty
)

// ObjType tags which case of the object variant a HeapObject implements.
// Declared here (rather than in pkg/object) so pkg/value's Hash/Equal and
// pkg/table's key handling can ask a HeapObject what it is without
// importing pkg/object.
type ObjType byte

const (
	TypeString ObjType = iota
	TypeFunction
	TypeNative
	TypeClosure
	TypeUpvalue
	TypeClass
	TypeInstance
	TypeBoundMethod
)

func (t ObjType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeFunction:
		return "function"
	case TypeNative:
		return "native"
	case TypeClosure:
		return "closure"
	case TypeUpvalue:
		return "upvalue"
	case TypeClass:
		return "class"
	case TypeInstance:
		return "instance"
	case TypeBoundMethod:
		return "bound method"
	default:
		return "unknown"
	}
}

// HeapObject is implemented by *object.Object. It is declared as an
// interface here, not a concrete struct, so that pkg/value never has to
// import pkg/object (which in turn imports pkg/chunk and pkg/table, both of
// which hold Values).
type HeapObject interface {
	// ObjType reports which object variant this is.
	ObjType() ObjType
	// HashCode returns the hash pkg/table uses when this object is used as
	// a table key: the cached FNV hash for strings, identity for anything
	// else.
	HashCode() uint32
}

// StringHeapObject is the subset of HeapObject a TypeString object
// satisfies, used by pkg/table.FindString to compare candidate string
// bytes during interning without constructing a throwaway Value first.
type StringHeapObject interface {
	HeapObject
	StringChars() string
	StringHash() uint32
}

// Markable is implemented by *object.Object so the collector (and
// pkg/table.RemoveWhite, which evicts unreachable interned strings) can
// query and flip the mark bit without pkg/table importing pkg/object.
type Markable interface {
	IsMarked() bool
	SetMarked(bool)
}

// Value is smog's tagged runtime value.
//
// Only one of Bool, Number, Obj is meaningful, selected by Kind. Nil and
// Empty carry no payload.
type Value struct {
	Kind   Kind
	Bool   bool
	Number float64
	Obj    HeapObject
}

// Nil is the canonical nil value.
var Nil = Value{Kind: KindNil}

// Empty is the canonical empty sentinel. It is distinct from Nil and is used
// to mark uninitialized global slots and empty hash-table keys.
var Empty = Value{Kind: KindEmpty}

// FromBool wraps a boolean.
func FromBool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// FromNumber wraps a float64.
func FromNumber(n float64) Value { return Value{Kind: KindNumber, Number: n} }

// FromObject wraps a heap object reference.
func FromObject(o HeapObject) Value { return Value{Kind: KindObject, Obj: o} }

// IsNil reports whether v is the nil value.
func (v Value) IsNil() bool { return v.Kind == KindNil }

// IsEmpty reports whether v is the internal empty sentinel.
func (v Value) IsEmpty() bool { return v.Kind == KindEmpty }

// IsObjType reports whether v holds an object of the given type.
func (v Value) IsObjType(t ObjType) bool { return v.Kind == KindObject && v.Obj.ObjType() == t }

// IsFalsey implements smog's truthiness rule: nil and false are falsey,
// everything else (including 0 and "") is truthy.
func (v Value) IsFalsey() bool {
	switch v.Kind {
	case KindNil:
		return true
	case KindBool:
		return !v.Bool
	default:
		return false
	}
}

// Equal implements smog's `==` semantics: values of different kinds are
// never equal; two object references are equal iff they point at the same
// underlying object (which, thanks to string interning, makes content
// equality for strings a pointer comparison).
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil, KindEmpty:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindNumber:
		return a.Number == b.Number
	case KindObject:
		return a.Obj == b.Obj
	default:
		return false
	}
}

// Hash computes a table-bucket hash for v. Used only by pkg/table, and only
// ever called with a Kind the table accepts as a key (Empty is disallowed
// as a key by the table itself).
func Hash(v Value) uint32 {
	switch v.Kind {
	case KindBool:
		if v.Bool {
			return 1
		}
		return 0
	case KindNil:
		return 3
	case KindNumber:
		return hashNumber(v.Number)
	case KindObject:
		return v.Obj.HashCode()
	default:
		return 0
	}
}

// hashNumber mixes the two 32-bit halves of a float64's bit pattern after a
// small constant offset, matching clox's hashDouble.
func hashNumber(n float64) uint32 {
	bits := math.Float64bits(n + 1.0)
	return uint32(bits) ^ uint32(bits>>32)
}

// HashString computes clox's FNV-1a hash over s's bytes. Exported so the
// VM's string interner can look a candidate string up in the intern table
// by its raw bytes before any object for it exists.
func HashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// Printable is implemented by *object.Object to supply PRINT and
// disassembler-preview text for heap objects ("<fn foo>", a class's bare
// name such as "Foo", the string's own content, ...).
type Printable interface {
	PrintString() string
}

// Stringify renders v the way smog's `print` statement and the
// disassembler's constant previews do.
//
// Numbers use FormatNumber (six-digit fixed notation, then no trailing
// zeros and no trailing decimal point). Everything else defers to the
// object's own PrintString, or a Go %v fallback for kinds that somehow lack
// one (never expected to trigger outside a disassembler preview of a
// malformed constant).
func Stringify(v Value) string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNumber:
		return FormatNumber(v.Number)
	case KindObject:
		if p, ok := v.Obj.(Printable); ok {
			return p.PrintString()
		}
		return "<object>"
	default:
		return ""
	}
}

// FormatNumber renders n the way spec.md §6 requires: format with fixed
// decimal notation and six fractional digits (C's "%f"), then trim trailing zeros after the decimal point, and
// the point itself if nothing remains (1.0 -> "1", 1.25 -> "1.25",
// 0 -> "0").
func FormatNumber(n float64) string {
	s := strconv.FormatFloat(n, 'f', 6, 64)
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
