package object_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/smog/pkg/chunk"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
)

func TestStringPrintString(t *testing.T) {
	s := object.NewString("hi", value.HashString("hi"), true)
	assert.Equal(t, "hi", s.PrintString())
	assert.Equal(t, "hi", s.StringChars())
}

func TestFunctionPrintString(t *testing.T) {
	fn := object.NewFunction()
	assert.Equal(t, "<script>", fn.PrintString())

	name := object.NewString("add", value.HashString("add"), true)
	fn.SetFunctionName(name)
	assert.Equal(t, "<fn add>", fn.PrintString())
}

func TestClassAndInstancePrintString(t *testing.T) {
	name := object.NewString("Point", value.HashString("Point"), true)
	class := object.NewClass(name)
	assert.Equal(t, "Point", class.PrintString())

	inst := object.NewInstance(class)
	assert.Equal(t, "Point instance", inst.PrintString())
}

func TestClosureAndBoundMethodPrintStringDeferToFunction(t *testing.T) {
	fn := object.NewFunction()
	fn.SetFunctionName(object.NewString("greet", value.HashString("greet"), true))
	closure := object.NewClosure(fn, 0)
	assert.Equal(t, "<fn greet>", closure.PrintString())

	bound := object.NewBoundMethod(value.Nil, closure)
	assert.Equal(t, "<fn greet>", bound.PrintString())
}

func TestHashCodeUsesCachedHashForStringsAndIdentityOtherwise(t *testing.T) {
	s := object.NewString("abc", value.HashString("abc"), true)
	assert.Equal(t, value.HashString("abc"), s.HashCode())

	a := object.NewFunction()
	b := object.NewFunction()
	assert.NotEqual(t, a.HashCode(), b.HashCode())
}

func TestMarked(t *testing.T) {
	o := object.NewFunction()
	assert.False(t, o.IsMarked())
	o.SetMarked(true)
	assert.True(t, o.IsMarked())
}

func TestUpvalueCountHintOnlyAppliesToFunctions(t *testing.T) {
	fn := object.NewFunction()
	fn.SetFunctionUpvalueCount(3)
	assert.Equal(t, 3, fn.UpvalueCountHint())

	s := object.NewString("x", 0, true)
	assert.Equal(t, 0, s.UpvalueCountHint())
}

func TestSerializeRoundTripFlatFunction(t *testing.T) {
	fn := object.NewFunction()
	fn.SetFunctionArity(2)
	fn.SetFunctionUpvalueCount(1)
	fn.SetFunctionName(object.NewString("add", value.HashString("add"), true))

	ch := fn.FunctionChunk()
	ch.WriteOp(chunk.OpGetLocal, 1)
	ch.Write(0, 1)
	ch.WriteOp(chunk.OpReturn, 2)
	ch.AddConstant(value.FromNumber(3.5))
	ch.AddConstant(value.Nil)
	ch.AddConstant(value.FromBool(true))
	ch.AddConstant(value.FromObject(object.NewString("hello", value.HashString("hello"), true)))

	var buf bytes.Buffer
	require.NoError(t, object.Encode(fn, &buf))

	decoded, err := object.Decode(&buf)
	require.NoError(t, err)

	arity, upvalueCount, dch, name := decoded.Function()
	assert.Equal(t, 2, arity)
	assert.Equal(t, 1, upvalueCount)
	require.NotNil(t, name)
	assert.Equal(t, "add", name.StringChars())
	assert.Equal(t, ch.Code, dch.Code)
	assert.Equal(t, ch.Lines(), dch.Lines())

	require.Len(t, dch.Constants, 4)
	assert.Equal(t, 3.5, dch.Constants[0].Number)
	assert.True(t, dch.Constants[1].IsNil())
	assert.True(t, dch.Constants[2].Bool)
	assert.Equal(t, "hello", dch.Constants[3].Obj.(*object.Object).StringChars())
}

func TestSerializeRoundTripNestedFunction(t *testing.T) {
	inner := object.NewFunction()
	inner.SetFunctionArity(0)
	inner.FunctionChunk().WriteOp(chunk.OpReturn, 1)

	outer := object.NewFunction()
	outer.SetFunctionName(nil)
	outer.FunctionChunk().AddConstant(value.FromObject(inner))
	outer.FunctionChunk().WriteOp(chunk.OpReturn, 1)

	var buf bytes.Buffer
	require.NoError(t, object.Encode(outer, &buf))

	decoded, err := object.Decode(&buf)
	require.NoError(t, err)

	_, _, dch, name := decoded.Function()
	assert.Nil(t, name)
	require.Len(t, dch.Constants, 1)

	nestedObj := dch.Constants[0].Obj.(*object.Object)
	assert.Equal(t, value.TypeFunction, nestedObj.ObjType())
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := object.Decode(bytes.NewReader([]byte{0, 0, 0, 0, 0, 0, 0, 1}))
	assert.Error(t, err)
}
