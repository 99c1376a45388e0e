// Command smog is the command-line front end for the smog bytecode
// compiler and virtual machine: run source or pre-compiled bytecode,
// compile to .sg, disassemble a .sg file, or drop into a REPL.
package main

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kristofer/smog/pkg/chunk"
	"github.com/kristofer/smog/pkg/compiler"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
	"github.com/kristofer/smog/pkg/vm"
)

// sysexits.h exit codes runFile's errors are classified into, so a caller
// scripting against `smog run` can tell a bad program from one that failed
// while running instead of getting exit 1 for both.
const (
	exitDataErr  = 65 // EX_DATAERR: the program itself is bad (compile error)
	exitSoftware = 70 // EX_SOFTWARE: the program failed while running
)

// exitCodeFor maps an error returned from root.Execute() to the process
// exit status: 65 for a compile error, 70 for a runtime error, 1 for
// anything else (bad CLI usage, file I/O failures).
func exitCodeFor(err error) int {
	var compileErrs compiler.Errors
	if stderrors.As(err, &compileErrs) {
		return exitDataErr
	}
	var runtimeErr *vm.RuntimeError
	if stderrors.As(err, &runtimeErr) {
		return exitSoftware
	}
	return 1
}

const version = "0.1.0"

var (
	verbose        bool
	gcStress       bool
	heapGrowFactor int64
	dumpConstants  bool
	debugStep      bool
)

func main() {
	root := &cobra.Command{
		Use:     "smog [file]",
		Short:   "smog - a bytecode-compiled scripting language",
		Version: version,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runREPL()
			}
			return runFile(args[0])
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log GC activity to stderr")
	root.PersistentFlags().BoolVar(&gcStress, "gc-stress", false, "collect garbage before every allocation")
	root.PersistentFlags().Int64Var(&heapGrowFactor, "heap-grow-factor", 2, "multiplier applied to nextGC after each collection")
	root.PersistentFlags().BoolVar(&debugStep, "debug", false, "pause before every instruction in an interactive debugger")

	runCmd := &cobra.Command{
		Use:   "run <file>",
		Short: "run a .smog source file or a compiled .sg bytecode file",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return runFile(args[0]) },
	}

	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "start an interactive read-eval-print loop",
		RunE:  func(cmd *cobra.Command, args []string) error { return runREPL() },
	}

	compileCmd := &cobra.Command{
		Use:   "compile <in> [out]",
		Short: "compile a .smog source file to .sg bytecode",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := ""
			if len(args) == 2 {
				out = args[1]
			}
			return compileFile(args[0], out)
		},
	}

	disasmCmd := &cobra.Command{
		Use:     "disassemble <file.sg>",
		Aliases: []string{"disasm"},
		Short:   "print a human-readable disassembly of a .sg bytecode file",
		Args:    cobra.ExactArgs(1),
		RunE:    func(cmd *cobra.Command, args []string) error { return disassembleFile(args[0]) },
	}
	disasmCmd.Flags().BoolVar(&dumpConstants, "dump-constants", false, "also spew.Dump each top-level constant's raw Go representation")

	root.AddCommand(runCmd, replCmd, compileCmd, disasmCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(exitCodeFor(err))
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.Disabled
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: !isatty.IsTerminal(os.Stderr.Fd())}).
		Level(level).With().Timestamp().Logger()
}

func newVM() *vm.VM {
	v := vm.New(
		vm.WithLogger(newLogger()),
		vm.WithGCStress(gcStress),
		vm.WithHeapGrowFactor(heapGrowFactor),
	)
	if debugStep {
		d := v.Debugger()
		d.Enable()
		d.SetStepMode(true)
	}
	return v
}

// runFile runs a source or bytecode file, picking the path by extension:
// .sg loads pre-compiled bytecode directly, anything else is treated as
// smog source and compiled first.
func runFile(filename string) error {
	if filepath.Ext(filename) == ".sg" {
		return runBytecodeFile(filename)
	}
	return runSourceFile(filename)
}

func runSourceFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrap(err, "reading source file")
	}
	v := newVM()
	if err := v.Interpret(string(data)); err != nil {
		return err
	}
	return nil
}

func runBytecodeFile(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "opening bytecode file")
	}
	defer f.Close()

	fn, err := object.Decode(f)
	if err != nil {
		return errors.Wrap(err, "decoding bytecode")
	}

	v := newVM()
	return v.Run(fn)
}

func compileFile(inputFile, outputFile string) error {
	if outputFile == "" {
		if filepath.Ext(inputFile) == ".smog" {
			outputFile = strings.TrimSuffix(inputFile, ".smog") + ".sg"
		} else {
			outputFile = inputFile + ".sg"
		}
	}

	data, err := os.ReadFile(inputFile)
	if err != nil {
		return errors.Wrap(err, "reading source file")
	}

	v := newVM()
	fn, err := v.CompileOnly(string(data))
	if err != nil {
		return err
	}

	out, err := os.Create(outputFile)
	if err != nil {
		return errors.Wrap(err, "creating output file")
	}
	defer out.Close()

	if err := object.Encode(fn, out); err != nil {
		return errors.Wrap(err, "encoding bytecode")
	}
	fmt.Printf("compiled %s -> %s\n", inputFile, outputFile)
	return nil
}

func disassembleFile(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "opening bytecode file")
	}
	defer f.Close()

	fn, err := object.Decode(f)
	if err != nil {
		return errors.Wrap(err, "decoding bytecode")
	}

	_, _, ch, name := fn.Function()
	title := "<script>"
	if name != nil {
		title = name.StringChars()
	}
	fmt.Printf("%s (%s)\n", filename, title)
	disassembleRecursive(ch, title, map[*chunk.Chunk]bool{})

	if dumpConstants {
		fmt.Println("\nconstant pool (raw):")
		spew.Dump(ch.Constants)
	}
	return nil
}

// disassembleRecursive prints ch and then, depth-first, every nested
// function chunk reachable through its constant pool - a .sg file's
// constants can themselves be TypeFunction objects (one per nested
// `fun`/method), so a full disassembly has to walk them recursively.
func disassembleRecursive(ch *chunk.Chunk, title string, seen map[*chunk.Chunk]bool) {
	if seen[ch] {
		return
	}
	seen[ch] = true
	fmt.Print(ch.Disassemble(title))
	for _, c := range ch.Constants {
		if o, ok := c.Obj.(interface {
			Function() (int, int, *chunk.Chunk, *object.Object)
			ObjType() value.ObjType
		}); ok && o.ObjType() == value.TypeFunction {
			_, _, nested, name := o.Function()
			nestedTitle := "<script>"
			if name != nil {
				nestedTitle = name.StringChars()
			}
			fmt.Println()
			disassembleRecursive(nested, nestedTitle, seen)
		}
	}
}

// runREPL runs an interactive session against a single persistent VM, so
// globals, interned strings, and const-declarations all carry forward from
// one line to the next.
func runREPL() error {
	fmt.Printf("smog %s\n", version)
	fmt.Println("Type an expression or statement. Ctrl-D to exit.")

	v := newVM()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	prompt := "smog> "
	if isatty.IsTerminal(os.Stdout.Fd()) {
		prompt = color.CyanString("smog> ")
	}

	for {
		input, err := line.Prompt(prompt)
		if err != nil {
			fmt.Println()
			return nil
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		if err := v.Interpret(input); err != nil {
			fmt.Fprintln(os.Stderr, color.RedString(err.Error()))
		}
	}
}
