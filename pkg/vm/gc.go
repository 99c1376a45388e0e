package vm

import (
	"github.com/dustin/go-humanize"

	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/table"
	"github.com/kristofer/smog/pkg/value"
)

// collectGarbage runs one full stop-the-world mark-sweep cycle: mark every
// object reachable from a root, evict now-unreachable strings from the
// intern table (so sweep doesn't leave it holding dangling pointers), then
// free every object that didn't get marked.
//
// Folded into pkg/vm rather than split out as its own package: the
// collector needs direct access to the stack, frames, globals, and intern
// table, all VM-private state, the same way clox's mark-sweep lives in
// vm.c/memory.c rather than a separate translation unit (see DESIGN.md).
//
// This is a plain recursive mark rather than clox's explicit gray-stack
// worklist - Go's goroutine stack grows on demand, and object graphs deep
// enough to matter here are not realistic for a teaching VM.
func (vm *VM) collectGarbage() {
	before := vm.bytesAllocated
	if vm.hasLog {
		vm.log.Debug().Str("heap", humanize.Bytes(uint64(before))).Msg("gc begin")
	}

	vm.markRoots()
	vm.strings.RemoveWhite()
	freed := vm.sweep()

	vm.nextGC = vm.bytesAllocated * vm.heapGrowFactor
	if vm.nextGC < 1<<10 {
		vm.nextGC = 1 << 10
	}
	if vm.hasLog {
		vm.log.Debug().
			Str("heap", humanize.Bytes(uint64(vm.bytesAllocated))).
			Int("objects_freed", freed).
			Str("next_gc", humanize.Bytes(uint64(vm.nextGC))).
			Msg("gc end")
	}
}

func (vm *VM) markRoots() {
	for i := 0; i < vm.stackTop; i++ {
		vm.markValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		vm.markObject(vm.frames[i].closure)
	}
	for up := vm.openUpvalues; up != nil; up = up.UpvalueNext() {
		vm.markObject(up)
	}
	for _, v := range vm.globalValues {
		vm.markValue(v)
	}
}

func (vm *VM) markValue(v value.Value) {
	if v.Kind != value.KindObject || v.Obj == nil {
		return
	}
	if o, ok := v.Obj.(*object.Object); ok {
		vm.markObject(o)
	}
}

func (vm *VM) markObject(o *object.Object) {
	if o == nil || o.Marked {
		return
	}
	o.Marked = true

	switch o.ObjType() {
	case value.TypeFunction:
		_, _, ch, name := o.Function()
		vm.markObject(name)
		for _, c := range ch.Constants {
			vm.markValue(c)
		}
	case value.TypeClosure:
		vm.markObject(o.ClosureFunction())
		for _, u := range o.ClosureUpvalues() {
			vm.markObject(u)
		}
	case value.TypeUpvalue:
		vm.markValue(*o.UpvalueClosedSlot())
	case value.TypeClass:
		vm.markObject(o.ClassName())
		vm.markTable(o.ClassMethods())
	case value.TypeInstance:
		vm.markObject(o.InstanceClass())
		vm.markTable(o.InstanceFields())
	case value.TypeBoundMethod:
		vm.markValue(o.BoundReceiver())
		vm.markObject(o.BoundMethodClosure())
	case value.TypeString, value.TypeNative:
		// no outgoing references
	}
}

func (vm *VM) markTable(t *table.Table) {
	t.Each(func(k, v value.Value) {
		vm.markValue(k)
		vm.markValue(v)
	})
}

// sweep unlinks and drops every unmarked object from the heap list,
// clearing the mark bit on survivors for the next cycle, and returns how
// many objects were freed.
func (vm *VM) sweep() int {
	freed := 0
	var prev *object.Object
	cur := vm.objects
	for cur != nil {
		if cur.Marked {
			cur.Marked = false
			prev = cur
			cur = cur.Next
			continue
		}
		unreached := cur
		cur = cur.Next
		if prev == nil {
			vm.objects = cur
		} else {
			prev.Next = cur
		}
		unreached.Next = nil
		vm.bytesAllocated -= objectSize
		freed++
	}
	return freed
}
