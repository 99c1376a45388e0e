package vm

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/kristofer/smog/pkg/value"
)

// Debugger is an interactive breakpoint/step debugger attached to a VM,
// adapted from the teacher's pkg/vm/debugger.go (breakpoint set, step
// mode, an interactive prompt with stack/locals/globals/call-stack
// inspection commands) onto this VM's actual frame/stack/global shape -
// the teacher's version walks a bytecode.Bytecode/Instruction slice and a
// d.vm.callStack of message sends; this one walks a chunk.Chunk's byte
// offsets and the vm.frames/vm.globalNames arrays instead.
type Debugger struct {
	vm          *VM
	breakpoints map[int]bool
	stepMode    bool
	enabled     bool
}

// NewDebugger returns a debugger attached to vm, initially disabled.
func NewDebugger(vm *VM) *Debugger {
	return &Debugger{vm: vm, breakpoints: make(map[int]bool)}
}

// Enable turns on breakpoint/step checking in the run loop.
func (d *Debugger) Enable() { d.enabled = true }

// Disable turns off breakpoint/step checking; the run loop no longer pauses.
func (d *Debugger) Disable() { d.enabled = false }

// SetStepMode toggles pause-after-every-instruction.
func (d *Debugger) SetStepMode(on bool) { d.stepMode = on }

// AddBreakpoint pauses execution before the instruction at byte offset ip.
func (d *Debugger) AddBreakpoint(ip int) { d.breakpoints[ip] = true }

// RemoveBreakpoint clears a previously set breakpoint.
func (d *Debugger) RemoveBreakpoint(ip int) { delete(d.breakpoints, ip) }

func (d *Debugger) shouldPause(ip int) bool {
	if d == nil || !d.enabled {
		return false
	}
	return d.stepMode || d.breakpoints[ip]
}

// interact shows the current instruction and reads debugger commands from
// stdin until the user resumes execution (continue/step/next) or quits.
// Returns false if execution should abort.
func (d *Debugger) interact(frame *callFrame, ch interface {
	DisassembleInstruction(*strings.Builder, int) int
}) bool {
	d.showCurrentInstruction(frame, ch)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("debug> ")
		if !scanner.Scan() {
			return false
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)

		switch parts[0] {
		case "help", "h", "?":
			d.printHelp()
		case "continue", "c":
			d.SetStepMode(false)
			return true
		case "step", "s", "next", "n":
			d.SetStepMode(true)
			return true
		case "stack", "st":
			d.ShowStack()
		case "locals", "l":
			d.ShowLocals(frame)
		case "globals", "g":
			d.ShowGlobals()
		case "callstack", "cs":
			d.ShowCallStack()
		case "dump":
			d.Dump()
		case "break", "b":
			if len(parts) < 2 {
				fmt.Println("usage: break <offset>")
				continue
			}
			ip, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("invalid offset")
				continue
			}
			d.AddBreakpoint(ip)
		case "delete", "d":
			if len(parts) < 2 {
				fmt.Println("usage: delete <offset>")
				continue
			}
			ip, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("invalid offset")
				continue
			}
			d.RemoveBreakpoint(ip)
		case "quit", "q":
			return false
		default:
			fmt.Printf("unknown command %q (try 'help')\n", parts[0])
		}
	}
}

func (d *Debugger) showCurrentInstruction(frame *callFrame, ch interface {
	DisassembleInstruction(*strings.Builder, int) int
}) {
	var b strings.Builder
	ch.DisassembleInstruction(&b, frame.ip)
	fmt.Print(b.String())
}

// ShowStack prints the VM's value stack, top first.
func (d *Debugger) ShowStack() {
	vm := d.vm
	fmt.Println("stack (top to bottom):")
	if vm.stackTop == 0 {
		fmt.Println("  (empty)")
		return
	}
	for i := vm.stackTop - 1; i >= 0; i-- {
		fmt.Printf("  [%d] %s\n", i, value.Stringify(vm.stack[i]))
	}
}

// ShowLocals prints frame's local slots (everything from its base up to
// the current stack top).
func (d *Debugger) ShowLocals(frame *callFrame) {
	vm := d.vm
	fmt.Println("locals:")
	if frame.base >= vm.stackTop {
		fmt.Println("  (none set)")
		return
	}
	for i := frame.base; i < vm.stackTop; i++ {
		fmt.Printf("  [%d] %s\n", i-frame.base, value.Stringify(vm.stack[i]))
	}
}

// ShowGlobals prints every defined global variable.
func (d *Debugger) ShowGlobals() {
	vm := d.vm
	fmt.Println("globals:")
	any := false
	for i, name := range vm.globalNames {
		if !vm.globalDefined[i] {
			continue
		}
		any = true
		fmt.Printf("  %s = %s\n", name, value.Stringify(vm.globalValues[i]))
	}
	if !any {
		fmt.Println("  (none)")
	}
}

// ShowCallStack prints the active call frames, innermost first.
func (d *Debugger) ShowCallStack() {
	vm := d.vm
	fmt.Println("call stack (innermost first):")
	if vm.frameCount == 0 {
		fmt.Println("  (empty)")
		return
	}
	for i := vm.frameCount - 1; i >= 0; i-- {
		f := vm.frames[i]
		fn := f.closure.ClosureFunction()
		name := "<script>"
		if n := fn.FunctionName(); n != nil {
			name = n.StringChars()
		}
		line := fn.FunctionChunk().LineAt(f.ip)
		fmt.Printf("  %s [line %d]\n", name, line)
	}
}

// Dump spew.Dumps the VM's live stack and global slots - a deep, raw Go
// representation useful when Stringify's user-facing formatting hides the
// detail a debugging session needs (object identity, nested field tables).
func (d *Debugger) Dump() {
	vm := d.vm
	spew.Dump(vm.stack[:vm.stackTop])
	spew.Dump(vm.globalValues)
}

func (d *Debugger) printHelp() {
	fmt.Println(`debugger commands:
  help, h, ?        show this help
  continue, c       resume execution
  step, s, next, n  execute one instruction and pause again
  stack, st         show the value stack
  locals, l         show the current frame's locals
  globals, g        show global variables
  callstack, cs     show the call stack
  dump              spew.Dump the stack and globals
  break <n>, b <n>  set a breakpoint at byte offset n
  delete <n>, d <n> remove a breakpoint
  quit, q           abort execution`)
}
