package vm

import (
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
)

// This file implements compiler.Host on *VM, so a single VM instance can
// drive several Compile calls (the REPL compiles one line at a time) while
// keeping one interned-string table and one global-variable slot space
// shared across all of them, the same way clox's single global vm
// instance backs both compiler.c and vm.c.

// InternString implements compiler.Host.
func (vm *VM) InternString(s string) *object.Object {
	return vm.internString(s, true)
}

// ResolveGlobal implements compiler.Host.
func (vm *VM) ResolveGlobal(name string) int {
	if slot, ok := vm.globalSlots[name]; ok {
		return slot
	}
	slot := len(vm.globalValues)
	vm.globalSlots[name] = slot
	vm.globalNames = append(vm.globalNames, name)
	vm.globalValues = append(vm.globalValues, value.Empty)
	vm.globalDefined = append(vm.globalDefined, false)
	vm.globalConst = append(vm.globalConst, false)
	return slot
}

// MarkGlobalConst implements compiler.Host.
func (vm *VM) MarkGlobalConst(slot int) { vm.globalConst[slot] = true }

// IsGlobalConst implements compiler.Host.
func (vm *VM) IsGlobalConst(slot int) bool { return vm.globalConst[slot] }
