package compiler

import "github.com/kristofer/smog/pkg/chunk"

// beginScope/endScope bracket a block's local lifetime. Leaving a scope
// pops every local declared in it - captured locals get OP_CLOSE_UPVALUE
// (closing over the stack slot before it's reused), plain locals get a
// cheap OP_POP/OP_POP_N.
func (c *Compiler) beginScope() { c.cf.scopeDepth++ }

func (c *Compiler) endScope() {
	c.cf.scopeDepth--
	f := c.cf
	n := 0
	for len(f.locals) > 0 && f.locals[len(f.locals)-1].depth > f.scopeDepth {
		last := f.locals[len(f.locals)-1]
		if last.isCaptured {
			if n > 0 {
				c.emitPopN(n)
				n = 0
			}
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			n++
		}
		f.locals = f.locals[:len(f.locals)-1]
	}
	if n > 0 {
		c.emitPopN(n)
	}
}

func (c *Compiler) emitPopN(n int) {
	if n == 1 {
		c.emitOp(chunk.OpPop)
		return
	}
	c.emitOp(chunk.OpPopN)
	c.emitByte(byte(n >> 8))
	c.emitByte(byte(n))
}

// declareVariable registers name as a new local in the current scope (a
// no-op at global scope, where variables live by name in the VM's global
// table instead of a stack slot). Reports a redeclaration error if name
// already names a local declared in this exact block.
func (c *Compiler) declareVariable(name string, isConst bool) {
	if c.cf.scopeDepth == 0 {
		return
	}
	f := c.cf
	for i := len(f.locals) - 1; i >= 0; i-- {
		l := f.locals[i]
		if l.depth != -1 && l.depth < f.scopeDepth {
			break
		}
		if l.name == name {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name, isConst)
}

func (c *Compiler) addLocal(name string, isConst bool) {
	if len(c.cf.locals) >= MaxLocals {
		c.error("Too many local variables in function.")
		return
	}
	c.cf.locals = append(c.cf.locals, local{name: name, depth: -1, isConst: isConst})
}

// markInitialized promotes the most recently declared local from "declared"
// to "ready to read" - done after its initializer expression compiles, so
// `var a = a;` can't observe its own uninitialized slot.
func (c *Compiler) markInitialized() {
	if c.cf.scopeDepth == 0 {
		return
	}
	c.cf.locals[len(c.cf.locals)-1].depth = c.cf.scopeDepth
}

// resolveLocal finds name among f's locals, searching innermost-first. A
// local found but not yet marked initialized means its own initializer
// expression is trying to read it (`var a = a;`) - reported here rather
// than left for the caller, since only here do we know which case applies.
func (c *Compiler) resolveLocal(f *frame, name string) (slot int, isConst bool, found bool) {
	for i := len(f.locals) - 1; i >= 0; i-- {
		if f.locals[i].name == name {
			if f.locals[i].depth == -1 {
				c.error("Can't read local variable in its own initializer.")
				return 0, false, false
			}
			return i, f.locals[i].isConst, true
		}
	}
	return 0, false, false
}

// resolveUpvalue finds name in an enclosing frame and threads an upvalue
// descriptor through every intermediate frame between here and there, the
// way clox's resolveUpvalue recursively does.
func (c *Compiler) resolveUpvalue(f *frame, name string) (slot int, found bool) {
	if f.enclosing == nil {
		return 0, false
	}
	if localSlot, _, ok := c.resolveLocal(f.enclosing, name); ok {
		f.enclosing.locals[localSlot].isCaptured = true
		return c.addUpvalue(f, localSlot, true), true
	}
	if up, ok := c.resolveUpvalue(f.enclosing, name); ok {
		return c.addUpvalue(f, up, false), true
	}
	return 0, false
}

func (c *Compiler) addUpvalue(f *frame, index int, isLocal bool) int {
	for i, u := range f.upvalues {
		if u.index == index && u.isLocal == isLocal {
			return i
		}
	}
	if len(f.upvalues) >= MaxUpvalues {
		c.error("Too many closure variables in function.")
		return 0
	}
	f.upvalues = append(f.upvalues, upvalueDesc{index: index, isLocal: isLocal})
	return len(f.upvalues) - 1
}
