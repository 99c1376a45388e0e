// Package object implements smog's garbage-collected heap: strings,
// functions, natives, closures, upvalues, classes, instances, and bound
// methods.
//
// Every Object begins with a shared header (Type, Marked, Next) the way
// clox's ObjString/ObjFunction/... all begin with a common Obj header.
// Go has no struct subclassing, so instead of separate pointer-castable
// structs we use one Object struct with a closed set of payload fields
// selected by Type - a sum type in everything but name, the "closed sum
// type" DESIGN.md's pkg/object section describes. Next threads every
// live object onto the VM's intrusive heap list; that list is the
// collector's sweep set.
package object

import (
	"unsafe"

	"github.com/kristofer/smog/pkg/chunk"
	"github.com/kristofer/smog/pkg/table"
	"github.com/kristofer/smog/pkg/value"
)

// Object is the concrete type behind every value.HeapObject smog's VM
// allocates.
type Object struct {
	Type   value.ObjType
	Marked bool
	Next   *Object // intrusive heap list, not a domain linked-list

	str    stringPayload
	fn     functionPayload
	native nativePayload
	clos   closurePayload
	upval  upvaluePayload
	class  classPayload
	inst   instancePayload
	bound  boundMethodPayload
}

type stringPayload struct {
	Chars      string
	Hash       uint32
	IsConstant bool // true: Chars borrows the source buffer, never "free" it
}

type functionPayload struct {
	Arity        int
	UpvalueCount int
	Chunk        *chunk.Chunk
	Name         *Object // TypeString, or nil for the implicit top-level script
}

type nativePayload struct {
	Name  string
	Arity int
	Fn    func(args []value.Value) (value.Value, error)
}

type closurePayload struct {
	Function *Object   // TypeFunction
	Upvalues []*Object // each TypeUpvalue, len == Function.fn.UpvalueCount
}

type upvaluePayload struct {
	Location *value.Value
	Closed   value.Value
	Next     *Object // TypeUpvalue; open-upvalue list, sorted by descending slot address
}

type classPayload struct {
	Name    *Object // TypeString
	Methods *table.Table
}

type instancePayload struct {
	Class  *Object // TypeClass
	Fields *table.Table
}

type boundMethodPayload struct {
	Receiver value.Value
	Method   *Object // TypeClosure
}

// --- value.HeapObject -----------------------------------------------------

// ObjType reports which variant o holds.
func (o *Object) ObjType() value.ObjType { return o.Type }

// HashCode implements value.HeapObject: the cached FNV hash for strings,
// object identity for everything else.
func (o *Object) HashCode() uint32 {
	if o.Type == value.TypeString {
		return o.str.Hash
	}
	p := uintptr(unsafe.Pointer(o))
	return uint32(p) ^ uint32(p>>32)
}

// IsMarked / SetMarked implement value.Markable for the collector and for
// pkg/table.RemoveWhite's intern-table eviction pass.
func (o *Object) IsMarked() bool     { return o.Marked }
func (o *Object) SetMarked(m bool)   { o.Marked = m }

// StringChars / StringHash implement value.StringHeapObject, used by
// pkg/table.FindString during interning.
func (o *Object) StringChars() string { return o.str.Chars }
func (o *Object) StringHash() uint32  { return o.str.Hash }

// UpvalueCountHint implements the optional interface pkg/chunk's
// disassembler uses to know how many per-upvalue operand pairs follow a
// CLOSURE instruction.
func (o *Object) UpvalueCountHint() int {
	if o.Type != value.TypeFunction {
		return 0
	}
	return o.fn.UpvalueCount
}

// PrintString implements value.Printable: the text smog's `print`
// statement and the disassembler's constant previews show for this object.
func (o *Object) PrintString() string {
	switch o.Type {
	case value.TypeString:
		return o.str.Chars
	case value.TypeFunction:
		if o.fn.Name == nil {
			return "<script>"
		}
		return "<fn " + o.fn.Name.str.Chars + ">"
	case value.TypeNative:
		return "<native fn " + o.native.Name + ">"
	case value.TypeClosure:
		return o.clos.Function.PrintString()
	case value.TypeUpvalue:
		return "<upvalue>"
	case value.TypeClass:
		return o.class.Name.str.Chars
	case value.TypeInstance:
		return o.inst.Class.class.Name.str.Chars + " instance"
	case value.TypeBoundMethod:
		return o.bound.Method.PrintString()
	default:
		return "<object>"
	}
}

// --- constructors -----------------------------------------------------

func newObject(t value.ObjType) *Object { return &Object{Type: t} }

// NewString wraps chars as a TypeString object. Callers (the VM's intern
// table) are responsible for dedup; NewString itself always allocates.
func NewString(chars string, hash uint32, isConstant bool) *Object {
	o := newObject(value.TypeString)
	o.str = stringPayload{Chars: chars, Hash: hash, IsConstant: isConstant}
	return o
}

// NewFunction allocates an empty function object; its Chunk and Name are
// filled in by the compiler as it compiles the body.
func NewFunction() *Object {
	o := newObject(value.TypeFunction)
	o.fn = functionPayload{Chunk: chunk.New()}
	return o
}

// NewNative wraps a Go function as a callable native.
func NewNative(name string, arity int, fn func(args []value.Value) (value.Value, error)) *Object {
	o := newObject(value.TypeNative)
	o.native = nativePayload{Name: name, Arity: arity, Fn: fn}
	return o
}

// NewClosure allocates a closure over fn with upvalCount empty upvalue
// slots, to be filled in by the VM's CLOSURE instruction handler.
func NewClosure(fn *Object, upvalCount int) *Object {
	o := newObject(value.TypeClosure)
	o.clos = closurePayload{Function: fn, Upvalues: make([]*Object, upvalCount)}
	return o
}

// NewUpvalue allocates an open upvalue pointing at slot.
func NewUpvalue(slot *value.Value) *Object {
	o := newObject(value.TypeUpvalue)
	o.upval = upvaluePayload{Location: slot}
	return o
}

// NewClass allocates a class named name with an empty method table.
func NewClass(name *Object) *Object {
	o := newObject(value.TypeClass)
	o.class = classPayload{Name: name, Methods: table.New()}
	return o
}

// NewInstance allocates an instance of class with an empty field bag.
func NewInstance(class *Object) *Object {
	o := newObject(value.TypeInstance)
	o.inst = instancePayload{Class: class, Fields: table.New()}
	return o
}

// NewBoundMethod pairs receiver with method.
func NewBoundMethod(receiver value.Value, method *Object) *Object {
	o := newObject(value.TypeBoundMethod)
	o.bound = boundMethodPayload{Receiver: receiver, Method: method}
	return o
}

// --- typed views ----------------------------------------------------------
//
// Each accessor assumes the caller already switched on Type (the same
// discipline clox's AS_STRING/AS_FUNCTION macros rely on); calling the
// wrong one panics on a zero-value payload instead of silently misreading.

// Function exposes a TypeFunction object's fields.
func (o *Object) Function() (arity, upvalueCount int, ch *chunk.Chunk, name *Object) {
	return o.fn.Arity, o.fn.UpvalueCount, o.fn.Chunk, o.fn.Name
}

// SetFunctionArity sets a TypeFunction object's declared parameter count.
func (o *Object) SetFunctionArity(n int) { o.fn.Arity = n }

// SetFunctionUpvalueCount sets a TypeFunction object's upvalue count.
func (o *Object) SetFunctionUpvalueCount(n int) { o.fn.UpvalueCount = n }

// SetFunctionName names a TypeFunction object (nil for the top-level script).
func (o *Object) SetFunctionName(name *Object) { o.fn.Name = name }

// FunctionChunk returns a TypeFunction object's chunk.
func (o *Object) FunctionChunk() *chunk.Chunk { return o.fn.Chunk }

// FunctionArity returns a TypeFunction object's declared parameter count.
func (o *Object) FunctionArity() int { return o.fn.Arity }

// FunctionName returns a TypeFunction object's name object, or nil.
func (o *Object) FunctionName() *Object { return o.fn.Name }

// Native returns a TypeNative object's fields.
func (o *Object) Native() (name string, arity int, fn func([]value.Value) (value.Value, error)) {
	return o.native.Name, o.native.Arity, o.native.Fn
}

// ClosureFunction returns a TypeClosure object's underlying function.
func (o *Object) ClosureFunction() *Object { return o.clos.Function }

// ClosureUpvalues returns a TypeClosure object's upvalue slice (mutable:
// CLOSURE fills each entry in as it captures or inherits an upvalue).
func (o *Object) ClosureUpvalues() []*Object { return o.clos.Upvalues }

// UpvalueLocation returns a TypeUpvalue object's current location (points
// into the VM stack while open, or at &Closed once closed).
func (o *Object) UpvalueLocation() *value.Value { return o.upval.Location }

// SetUpvalueLocation retargets a TypeUpvalue object's location.
func (o *Object) SetUpvalueLocation(loc *value.Value) { o.upval.Location = loc }

// UpvalueClosedSlot returns the storage a closed TypeUpvalue object's location
// points at once closed.
func (o *Object) UpvalueClosedSlot() *value.Value { return &o.upval.Closed }

// UpvalueNext returns the next open upvalue in the VM's sorted list.
func (o *Object) UpvalueNext() *Object { return o.upval.Next }

// SetUpvalueNext links o to next in the VM's open-upvalue list.
func (o *Object) SetUpvalueNext(next *Object) { o.upval.Next = next }

// ClassName returns a TypeClass object's name object.
func (o *Object) ClassName() *Object { return o.class.Name }

// ClassMethods returns a TypeClass object's method table.
func (o *Object) ClassMethods() *table.Table { return o.class.Methods }

// InstanceClass returns a TypeInstance object's class.
func (o *Object) InstanceClass() *Object { return o.inst.Class }

// InstanceFields returns a TypeInstance object's field bag.
func (o *Object) InstanceFields() *table.Table { return o.inst.Fields }

// BoundReceiver returns a TypeBoundMethod object's receiver.
func (o *Object) BoundReceiver() value.Value { return o.bound.Receiver }

// BoundMethodClosure returns a TypeBoundMethod object's underlying closure.
func (o *Object) BoundMethodClosure() *Object { return o.bound.Method }

// IsStringConstant reports whether a TypeString object's bytes are borrowed
// from the source buffer rather than owned - informational only in Go,
// where the garbage collector (not manual free()) reclaims objects; no code
// in this repository branches on it (see SPEC_FULL.md §1 Scanner note for
// the source-buffer lifetime it records).
func (o *Object) IsStringConstant() bool { return o.str.IsConstant }
