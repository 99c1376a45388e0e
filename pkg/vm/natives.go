package vm

import (
	"time"

	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
)

// start records process start time so clock() can report elapsed seconds -
// grounded on original_source/src/native/native.c's clock_native, which
// wraps C's clock()/CLOCKS_PER_SEC (processor time); Go has no direct
// equivalent exposed portably outside the runtime/testing packages, so
// wall-clock elapsed time since process start is the closest idiomatic
// substitute.
var start = time.Now()

// defineNatives installs every built-in native function as a predefined
// global, the way clox's defineNative seeds vm.globals before any user
// code runs.
func (vm *VM) defineNatives() {
	vm.defineNative("clock", 0, func(args []value.Value) (value.Value, error) {
		return value.FromNumber(time.Since(start).Seconds()), nil
	})
}

func (vm *VM) defineNative(name string, arity int, fn func([]value.Value) (value.Value, error)) {
	slot := vm.ResolveGlobal(name)
	nativeObj := object.NewNative(name, arity, fn)
	vm.globalValues[slot] = value.FromObject(nativeObj) // root nativeObj before registering it
	vm.globalDefined[slot] = true
	vm.registerHeapObject(nativeObj)
}
