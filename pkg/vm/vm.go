// Package vm implements smog's stack-based bytecode virtual machine: the
// dispatch loop, call frames, closures/upvalues, classes and instances,
// and (folded in alongside it, in gc.go) the mark-sweep garbage collector.
//
// Grounded on the teacher's pkg/vm/vm.go (frame/stack shape, RuntimeError
// reporting style) generalized from its message-send interpreter loop to
// clox's opcode dispatch loop, since the teacher interprets an AST of
// message sends rather than a flat instruction stream.
package vm

import (
	"fmt"
	"io"
	"math"
	"os"
	"unsafe"

	"github.com/kristofer/smog/pkg/chunk"
	"github.com/kristofer/smog/pkg/compiler"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/table"
	"github.com/kristofer/smog/pkg/value"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	framesMax = compiler.MaxCallDepth
	stackMax  = framesMax * (compiler.MaxLocals + 1)
)

// callFrame is one active call's window into the VM's shared value stack.
type callFrame struct {
	closure *object.Object // TypeClosure
	ip      int
	base    int // index into vm.stack of this frame's slot 0
}

// VM executes compiled smog chunks.
type VM struct {
	stack    [stackMax]value.Value
	stackTop int

	frames     [framesMax]callFrame
	frameCount int

	globalSlots   map[string]int
	globalNames   []string
	globalValues  []value.Value
	globalDefined []bool
	globalConst   []bool

	strings *table.Table // intern table: Key == Value(*object.Object string), Value unused

	objects      *object.Object // intrusive heap list, for the collector's sweep
	openUpvalues *object.Object // sorted descending by stack address

	bytesAllocated int64
	nextGC         int64
	heapGrowFactor int64
	gcStress       bool

	out    io.Writer
	log    zerolog.Logger
	hasLog bool

	debugger *Debugger
}

// Debugger lazily attaches (if needed) and returns this VM's interactive
// breakpoint/step debugger. Disabled by default - the run loop only pays
// the per-instruction breakpoint check once something has called Enable.
func (vm *VM) Debugger() *Debugger {
	if vm.debugger == nil {
		vm.debugger = NewDebugger(vm)
	}
	return vm.debugger
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithOutput redirects `print` statement output, default os.Stdout -
// tests use this to capture output instead of scraping stdout.
func WithOutput(w io.Writer) Option { return func(vm *VM) { vm.out = w } }

// WithLogger attaches structured GC-cycle logging, off by default.
func WithLogger(l zerolog.Logger) Option {
	return func(vm *VM) { vm.log = l; vm.hasLog = true }
}

// WithGCStress forces a collection before every allocation, surfacing
// GC-related bugs (missing roots, premature frees) far more often than
// the default threshold-triggered cadence.
func WithGCStress(on bool) Option { return func(vm *VM) { vm.gcStress = on } }

// WithHeapGrowFactor overrides the default 2x post-collection heap growth
// factor that sets nextGC.
func WithHeapGrowFactor(f int64) Option {
	return func(vm *VM) {
		if f > 0 {
			vm.heapGrowFactor = f
		}
	}
}

// New constructs a ready-to-use VM with its global table, intern table, and
// native functions installed.
func New(opts ...Option) *VM {
	vm := &VM{
		globalSlots:    map[string]int{},
		strings:        table.New(),
		out:            os.Stdout,
		nextGC:         1 << 20,
		heapGrowFactor: 2,
	}
	for _, o := range opts {
		o(vm)
	}
	vm.defineNatives()
	return vm
}

// Interpret compiles and runs source in this VM's shared global/intern
// namespace - the unit the REPL calls once per line, and `smog run` calls
// once for a whole file.
func (vm *VM) Interpret(source string) error {
	fn, err := compiler.Compile(source, vm)
	if err != nil {
		return err
	}
	vm.push(value.FromObject(fn)) // root fn before registering it, which can trigger a collection
	vm.registerHeapObject(fn)
	closure := object.NewClosure(fn, fn.UpvalueCountHint())
	vm.stack[vm.stackTop-1] = value.FromObject(closure) // closure keeps fn reachable from here on
	vm.registerHeapObject(closure)
	if err := vm.call(closure, 0); err != nil {
		return err
	}
	return vm.run()
}

// CompileOnly compiles source against this VM's global/intern namespace
// without running it, for `smog compile`'s source-to-.sg path. Global slot
// numbers come from this VM's own name-to-slot table: natives take the
// first slots, then each new global name gets the next slot in the order
// the compiler first meets it.
func (vm *VM) CompileOnly(source string) (*object.Object, error) {
	return compiler.Compile(source, vm)
}

// Run executes an already-compiled top-level function - used by `smog
// disassemble`/`smog compile`'s sibling "load a .sg file and run it" path.
func (vm *VM) Run(fn *object.Object) error {
	closure := object.NewClosure(fn, fn.UpvalueCountHint())
	vm.push(value.FromObject(closure)) // root closure before registering it, which can trigger a collection
	vm.registerHeapObject(closure)
	if err := vm.call(closure, 0); err != nil {
		return err
	}
	return vm.run()
}

// --- stack ---------------------------------------------------------------

func (vm *VM) push(v value.Value) { vm.stack[vm.stackTop] = v; vm.stackTop++ }

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value { return vm.stack[vm.stackTop-1-distance] }

func (vm *VM) popN(n int) { vm.stackTop -= n }

// --- calling ---------------------------------------------------------------

func (vm *VM) callValue(callee value.Value, argCount int) error {
	if callee.Kind != value.KindObject {
		return vm.runtimeError("Can only call functions and classes.")
	}
	o, ok := callee.Obj.(*object.Object)
	if !ok {
		return vm.runtimeError("Can only call functions and classes.")
	}
	switch o.ObjType() {
	case value.TypeClosure:
		return vm.call(o, argCount)
	case value.TypeNative:
		return vm.callNative(o, argCount)
	case value.TypeClass:
		inst := object.NewInstance(o)
		vm.stack[vm.stackTop-argCount-1] = value.FromObject(inst) // root inst before registering it
		vm.registerHeapObject(inst)
		if initVal, ok := o.ClassMethods().Get(vm.nameValue("init")); ok {
			return vm.call(initVal.Obj.(*object.Object), argCount)
		}
		if argCount != 0 {
			return vm.runtimeError("Expected 0 arguments but got %d.", argCount)
		}
		return nil
	case value.TypeBoundMethod:
		vm.stack[vm.stackTop-argCount-1] = o.BoundReceiver()
		return vm.call(o.BoundMethodClosure(), argCount)
	default:
		return vm.runtimeError("Can only call functions and classes.")
	}
}

func (vm *VM) callNative(nativeObj *object.Object, argCount int) error {
	_, arity, fn := nativeObj.Native()
	if arity >= 0 && argCount != arity {
		return vm.runtimeError("Expected %d arguments but got %d.", arity, argCount)
	}
	args := vm.stack[vm.stackTop-argCount : vm.stackTop]
	result, err := fn(args)
	if err != nil {
		return vm.runtimeError("%s", err.Error())
	}
	vm.popN(argCount + 1)
	vm.push(result)
	return nil
}

func (vm *VM) call(closure *object.Object, argCount int) error {
	fn := closure.ClosureFunction()
	if argCount != fn.FunctionArity() {
		return vm.runtimeError("Expected %d arguments but got %d.", fn.FunctionArity(), argCount)
	}
	if vm.frameCount == framesMax {
		return vm.runtimeError("Stack overflow.")
	}
	vm.frames[vm.frameCount] = callFrame{closure: closure, ip: 0, base: vm.stackTop - argCount - 1}
	vm.frameCount++
	return nil
}

func (vm *VM) invoke(name string, argCount int) error {
	receiver := vm.peek(argCount)
	if receiver.Kind != value.KindObject {
		return vm.runtimeError("Only instances have methods.")
	}
	inst, ok := receiver.Obj.(*object.Object)
	if !ok || inst.ObjType() != value.TypeInstance {
		return vm.runtimeError("Only instances have methods.")
	}
	if field, ok := inst.InstanceFields().Get(vm.nameValue(name)); ok {
		vm.stack[vm.stackTop-argCount-1] = field
		return vm.callValue(field, argCount)
	}
	return vm.invokeFromClass(inst.InstanceClass(), name, argCount)
}

func (vm *VM) invokeFromClass(class *object.Object, name string, argCount int) error {
	methodVal, ok := class.ClassMethods().Get(vm.nameValue(name))
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name)
	}
	return vm.call(methodVal.Obj.(*object.Object), argCount)
}

func (vm *VM) bindMethod(class *object.Object, name string) error {
	methodVal, ok := class.ClassMethods().Get(vm.nameValue(name))
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name)
	}
	bound := object.NewBoundMethod(vm.peek(0), methodVal.Obj.(*object.Object))
	vm.stack[vm.stackTop-1] = value.FromObject(bound) // root bound before registering it
	vm.registerHeapObject(bound)
	return nil
}

// nameValue wraps a method/property name as the interned-string Value the
// class and instance tables are keyed by. It returns the existing intern
// table entry when there is one; otherwise (for example "init" looked up on
// a class that never declared it, or a name a collection has evicted from
// the intern table) internString allocates a new string object.
func (vm *VM) nameValue(name string) value.Value {
	return value.FromObject(vm.internString(name, false))
}

// --- upvalues --------------------------------------------------------------

func ptrGreater(a, b *value.Value) bool { return uintptr(unsafe.Pointer(a)) > uintptr(unsafe.Pointer(b)) }

func (vm *VM) captureUpvalue(local *value.Value) *object.Object {
	var prev *object.Object
	up := vm.openUpvalues
	for up != nil && ptrGreater(up.UpvalueLocation(), local) {
		prev = up
		up = up.UpvalueNext()
	}
	if up != nil && up.UpvalueLocation() == local {
		return up
	}
	created := object.NewUpvalue(local)
	created.SetUpvalueNext(up)
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.SetUpvalueNext(created)
	}
	vm.registerHeapObject(created) // link into openUpvalues (a GC root) before registering
	return created
}

func (vm *VM) closeUpvalues(from *value.Value) {
	for vm.openUpvalues != nil && !ptrGreater(from, vm.openUpvalues.UpvalueLocation()) {
		up := vm.openUpvalues
		*up.UpvalueClosedSlot() = *up.UpvalueLocation()
		up.SetUpvalueLocation(up.UpvalueClosedSlot())
		vm.openUpvalues = up.UpvalueNext()
	}
}

// --- run loop --------------------------------------------------------------

func (vm *VM) run() error {
	frame := &vm.frames[vm.frameCount-1]
	ch := frame.closure.ClosureFunction().FunctionChunk()

	readByte := func() byte {
		b := ch.Code[frame.ip]
		frame.ip++
		return b
	}
	readUint16 := func() int {
		hi, lo := ch.Code[frame.ip], ch.Code[frame.ip+1]
		frame.ip += 2
		return int(hi)<<8 | int(lo)
	}
	readConstant := func(idx int) value.Value { return ch.Constants[idx] }

	for {
		if vm.debugger.shouldPause(frame.ip) {
			if !vm.debugger.interact(frame, ch) {
				return nil
			}
		}

		op := chunk.Op(readByte())
		switch op {
		case chunk.OpConstant:
			vm.push(readConstant(int(readByte())))
		case chunk.OpConstantLong:
			vm.push(readConstant(readUint16()))
		case chunk.OpNil:
			vm.push(value.Nil)
		case chunk.OpTrue:
			vm.push(value.FromBool(true))
		case chunk.OpFalse:
			vm.push(value.FromBool(false))
		case chunk.OpPop:
			vm.pop()
		case chunk.OpPopN:
			vm.popN(readUint16())
		case chunk.OpDup:
			vm.push(vm.peek(0))

		case chunk.OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(value.FromBool(value.Equal(a, b)))
		case chunk.OpNotEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(value.FromBool(!value.Equal(a, b)))
		case chunk.OpGreater, chunk.OpGreaterEqual, chunk.OpLess, chunk.OpLessEqual:
			if err := vm.numericCompare(op); err != nil {
				return vm.wrapStackTrace(err)
			}

		case chunk.OpNegate:
			if vm.peek(0).Kind != value.KindNumber {
				return vm.wrapStackTrace(vm.runtimeError("Operand must be a number."))
			}
			vm.push(value.FromNumber(-vm.pop().Number))
		case chunk.OpNot:
			vm.push(value.FromBool(vm.pop().IsFalsey()))

		case chunk.OpAdd:
			if err := vm.add(); err != nil {
				return vm.wrapStackTrace(err)
			}
		case chunk.OpSub, chunk.OpMul, chunk.OpDiv, chunk.OpMod:
			if err := vm.arith(op); err != nil {
				return vm.wrapStackTrace(err)
			}

		case chunk.OpPrint:
			fmt.Fprintln(vm.out, value.Stringify(vm.pop()))

		case chunk.OpDefineGlobal:
			vm.defineGlobal(int(readByte()))
		case chunk.OpDefineGlobalLong:
			vm.defineGlobal(readUint16())
		case chunk.OpGetGlobal:
			if err := vm.getGlobal(int(readByte())); err != nil {
				return vm.wrapStackTrace(err)
			}
		case chunk.OpGetGlobalLong:
			if err := vm.getGlobal(readUint16()); err != nil {
				return vm.wrapStackTrace(err)
			}
		case chunk.OpSetGlobal:
			if err := vm.setGlobal(int(readByte())); err != nil {
				return vm.wrapStackTrace(err)
			}
		case chunk.OpSetGlobalLong:
			if err := vm.setGlobal(readUint16()); err != nil {
				return vm.wrapStackTrace(err)
			}

		case chunk.OpGetLocal:
			vm.push(vm.stack[frame.base+int(readByte())])
		case chunk.OpSetLocal:
			vm.stack[frame.base+int(readByte())] = vm.peek(0)

		case chunk.OpGetUpvalue:
			vm.push(*frame.closure.ClosureUpvalues()[readByte()].UpvalueLocation())
		case chunk.OpSetUpvalue:
			slot := frame.closure.ClosureUpvalues()[readByte()]
			*slot.UpvalueLocation() = vm.peek(0)
		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(&vm.stack[vm.stackTop-1])
			vm.pop()

		case chunk.OpJump:
			frame.ip += readUint16()
		case chunk.OpJumpBack:
			frame.ip -= readUint16()
		case chunk.OpJumpTrue:
			off := readUint16()
			if !vm.peek(0).IsFalsey() {
				frame.ip += off
			}
		case chunk.OpJumpFalse:
			off := readUint16()
			if vm.peek(0).IsFalsey() {
				frame.ip += off
			}

		case chunk.OpCall:
			argc := int(readByte())
			if err := vm.callValue(vm.peek(argc), argc); err != nil {
				return vm.wrapStackTrace(err)
			}
			frame = &vm.frames[vm.frameCount-1]
			ch = frame.closure.ClosureFunction().FunctionChunk()

		case chunk.OpInvoke:
			nameIdx := int(readByte())
			argc := int(readByte())
			name := readConstant(nameIdx).Obj.(*object.Object).StringChars()
			if err := vm.invoke(name, argc); err != nil {
				return vm.wrapStackTrace(err)
			}
			frame = &vm.frames[vm.frameCount-1]
			ch = frame.closure.ClosureFunction().FunctionChunk()

		case chunk.OpSuperInvoke:
			nameIdx := int(readByte())
			argc := int(readByte())
			name := readConstant(nameIdx).Obj.(*object.Object).StringChars()
			superclass := vm.pop().Obj.(*object.Object)
			if err := vm.invokeFromClass(superclass, name, argc); err != nil {
				return vm.wrapStackTrace(err)
			}
			frame = &vm.frames[vm.frameCount-1]
			ch = frame.closure.ClosureFunction().FunctionChunk()

		case chunk.OpClosure:
			fnIdx := readUint16()
			fnObj := readConstant(fnIdx).Obj.(*object.Object)
			_, upCount, _, _ := fnObj.Function()
			closure := object.NewClosure(fnObj, upCount)
			vm.push(value.FromObject(closure)) // root closure before registering it or capturing upvalues can allocate
			vm.registerHeapObject(closure)
			for i := 0; i < upCount; i++ {
				isLocal := readByte()
				index := readUint16()
				if isLocal != 0 {
					closure.ClosureUpvalues()[i] = vm.captureUpvalue(&vm.stack[frame.base+index])
				} else {
					closure.ClosureUpvalues()[i] = frame.closure.ClosureUpvalues()[index]
				}
			}

		case chunk.OpClass:
			nameIdx := int(readByte())
			nameObj := readConstant(nameIdx).Obj.(*object.Object)
			class := object.NewClass(nameObj)
			vm.push(value.FromObject(class)) // root class before registering it
			vm.registerHeapObject(class)

		case chunk.OpMethod:
			nameIdx := int(readByte())
			name := readConstant(nameIdx).Obj.(*object.Object).StringChars()
			method := vm.pop()
			class := vm.peek(0).Obj.(*object.Object)
			class.ClassMethods().Put(vm.nameValue(name), method)

		case chunk.OpInherit:
			subclass := vm.peek(0).Obj.(*object.Object)
			superVal := vm.peek(1)
			superObj, ok := superVal.Obj.(*object.Object)
			if !ok || superObj.ObjType() != value.TypeClass {
				return vm.wrapStackTrace(vm.runtimeError("Superclass must be a class."))
			}
			superObj.ClassMethods().CopyInto(subclass.ClassMethods())
			vm.pop() // subclass; the superclass stays below it as the `super` local

		case chunk.OpGetProperty:
			nameIdx := int(readByte())
			name := readConstant(nameIdx).Obj.(*object.Object).StringChars()
			if err := vm.getProperty(name); err != nil {
				return vm.wrapStackTrace(err)
			}

		case chunk.OpSetProperty:
			nameIdx := int(readByte())
			name := readConstant(nameIdx).Obj.(*object.Object).StringChars()
			inst, ok := vm.peek(1).Obj.(*object.Object)
			if !ok || inst.ObjType() != value.TypeInstance {
				return vm.wrapStackTrace(vm.runtimeError("Only instances have fields."))
			}
			inst.InstanceFields().Put(vm.nameValue(name), vm.peek(0))
			v := vm.pop()
			vm.pop()
			vm.push(v)

		case chunk.OpGetSuper:
			nameIdx := int(readByte())
			name := readConstant(nameIdx).Obj.(*object.Object).StringChars()
			superclass := vm.pop().Obj.(*object.Object)
			if err := vm.bindMethod(superclass, name); err != nil {
				return vm.wrapStackTrace(err)
			}

		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(&vm.stack[frame.base])
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop() // the implicit top-level script closure
				return nil
			}
			vm.stackTop = frame.base
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]
			ch = frame.closure.ClosureFunction().FunctionChunk()

		default:
			return vm.wrapStackTrace(vm.runtimeError("Unknown opcode %d.", byte(op)))
		}
	}
}

func (vm *VM) getProperty(name string) error {
	recv, ok := vm.peek(0).Obj.(*object.Object)
	if !ok || recv.ObjType() != value.TypeInstance {
		return vm.runtimeError("Only instances have properties.")
	}
	if field, ok := recv.InstanceFields().Get(vm.nameValue(name)); ok {
		vm.pop()
		vm.push(field)
		return nil
	}
	return vm.bindMethod(recv.InstanceClass(), name)
}

func (vm *VM) defineGlobal(slot int) {
	vm.globalValues[slot] = vm.pop()
	vm.globalDefined[slot] = true
}

func (vm *VM) getGlobal(slot int) error {
	if !vm.globalDefined[slot] {
		return vm.runtimeError("Undefined variable '%s'.", vm.globalNames[slot])
	}
	vm.push(vm.globalValues[slot])
	return nil
}

func (vm *VM) setGlobal(slot int) error {
	if !vm.globalDefined[slot] {
		return vm.runtimeError("Undefined variable '%s'.", vm.globalNames[slot])
	}
	vm.globalValues[slot] = vm.peek(0)
	return nil
}

func (vm *VM) numericCompare(op chunk.Op) error {
	if vm.peek(0).Kind != value.KindNumber || vm.peek(1).Kind != value.KindNumber {
		return vm.runtimeError("Operands must be numbers.")
	}
	b, a := vm.pop().Number, vm.pop().Number
	var r bool
	switch op {
	case chunk.OpGreater:
		r = a > b
	case chunk.OpGreaterEqual:
		r = a >= b
	case chunk.OpLess:
		r = a < b
	case chunk.OpLessEqual:
		r = a <= b
	}
	vm.push(value.FromBool(r))
	return nil
}

func (vm *VM) add() error {
	bIsStr := vm.peek(0).Kind == value.KindObject && vm.peek(0).Obj.ObjType() == value.TypeString
	aIsStr := vm.peek(1).Kind == value.KindObject && vm.peek(1).Obj.ObjType() == value.TypeString
	switch {
	case aIsStr && bIsStr:
		b, a := vm.pop(), vm.pop()
		as := a.Obj.(*object.Object).StringChars()
		bs := b.Obj.(*object.Object).StringChars()
		vm.push(value.FromObject(vm.internString(as+bs, false)))
		return nil
	case vm.peek(0).Kind == value.KindNumber && vm.peek(1).Kind == value.KindNumber:
		b, a := vm.pop(), vm.pop()
		vm.push(value.FromNumber(a.Number + b.Number))
		return nil
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
}

func (vm *VM) arith(op chunk.Op) error {
	if vm.peek(0).Kind != value.KindNumber || vm.peek(1).Kind != value.KindNumber {
		return vm.runtimeError("Operands must be numbers.")
	}
	b, a := vm.pop().Number, vm.pop().Number
	var r float64
	switch op {
	case chunk.OpSub:
		r = a - b
	case chunk.OpMul:
		r = a * b
	case chunk.OpDiv:
		if b == 0 {
			return vm.runtimeError("Division by zero.")
		}
		r = a / b
	case chunk.OpMod:
		r = math.Mod(a, b)
	}
	vm.push(value.FromNumber(r))
	return nil
}

// --- errors ------------------------------------------------------------

func (vm *VM) runtimeError(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

// wrapStackTrace turns a plain runtime error into a RuntimeError carrying
// the call stack, walked innermost-first the way the teacher's errors.go
// does, then resets the value stack, call frames, and open-upvalue list so
// the next Interpret call on this VM starts from a clean stack.
func (vm *VM) wrapStackTrace(err error) error {
	trace := make([]StackFrame, 0, vm.frameCount)
	for i := vm.frameCount - 1; i >= 0; i-- {
		f := &vm.frames[i]
		fn := f.closure.ClosureFunction()
		name := "<script>"
		if fn.FunctionName() != nil {
			name = fn.FunctionName().StringChars()
		}
		line := fn.FunctionChunk().LineAt(f.ip - 1)
		trace = append(trace, StackFrame{Name: name, Line: line})
	}
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
	return newRuntimeError(err.Error(), trace)
}
