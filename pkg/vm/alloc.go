package vm

import (
	"unsafe"

	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
)

// objectSize is a fixed per-object accounting unit for bytesAllocated.
// object.Object is a single flat struct covering every variant (see its
// package doc), so every allocation costs the same regardless of which
// variant it is - cheaper to account for than trying to size each payload
// separately, and precise enough to drive nextGC's growth heuristic.
var objectSize = int64(unsafe.Sizeof(object.Object{}))

// registerHeapObject links o onto the VM's heap list and accounts for its
// size, collecting first if --gc-stress is set or the byte threshold has
// been crossed - mirrors clox's reallocate() triggering collectGarbage().
//
// markRoots only walks the stack, call frames, the open-upvalue chain, and
// globals - not vm.objects itself - so o must already be reachable from one
// of those before this call, or a collection triggered here sweeps it right
// back off the list it was just linked onto. Every caller pushes o (or
// whatever already-rooted value now points to it) before calling this.
func (vm *VM) registerHeapObject(o *object.Object) {
	o.Next = vm.objects
	vm.objects = o
	vm.bytesAllocated += objectSize

	if vm.gcStress {
		vm.collectGarbage()
	} else if vm.bytesAllocated > vm.nextGC {
		vm.collectGarbage()
	}
}

// internString returns the canonical string object for s, allocating one
// only if the intern table doesn't already have an equal string. isConstant
// marks whether the caller's bytes are guaranteed to outlive the returned
// object without copying (source-literal lexemes are; runtime-built
// strings such as concatenation results are not, though in Go this only
// matters for documentation purposes - see object.IsStringConstant).
func (vm *VM) internString(s string, isConstant bool) *object.Object {
	hash := value.HashString(s)
	if existing, ok := vm.strings.FindString(s, hash); ok {
		return existing.Obj.(*object.Object)
	}
	o := object.NewString(s, hash, isConstant)
	v := value.FromObject(o)
	vm.push(v) // root o: callers intern strings before they've rooted the result themselves
	vm.registerHeapObject(o)
	vm.strings.Put(v, v)
	vm.pop()
	return o
}
