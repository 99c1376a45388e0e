package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/smog/pkg/vm"
)

func run(t *testing.T, source string) string {
	t.Helper()
	var buf bytes.Buffer
	v := vm.New(vm.WithOutput(&buf))
	err := v.Interpret(source)
	require.NoError(t, err, "output so far: %s", buf.String())
	return buf.String()
}

func TestArithmeticPrecedence(t *testing.T) {
	out := run(t, `print 1 + 2 * 3;`)
	assert.Equal(t, "7\n", out)
}

func TestStringConcatenation(t *testing.T) {
	out := run(t, `print "foo" + "bar";`)
	assert.Equal(t, "foobar\n", out)
}

func TestModulo(t *testing.T) {
	out := run(t, `print 7 % 3;`)
	assert.Equal(t, "1\n", out)
}

func TestDivisionByZeroIsRuntimeError(t *testing.T) {
	var buf bytes.Buffer
	v := vm.New(vm.WithOutput(&buf))
	err := v.Interpret(`print 1 / 0;`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Division by zero")
}

func TestZeroDividedByZeroIsRuntimeError(t *testing.T) {
	var buf bytes.Buffer
	v := vm.New(vm.WithOutput(&buf))
	err := v.Interpret(`print 0 / 0;`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Division by zero")
}

// ModuloByZero is deliberately NOT a runtime error: math.Mod's NaN result
// propagates out, matching fmod's behavior for the % operator.
func TestModuloByZeroProducesNaNNotError(t *testing.T) {
	out := run(t, `print 5 % 0;`)
	assert.Equal(t, "NaN\n", out)
}

func TestGlobalVariableReassignment(t *testing.T) {
	out := run(t, `var x = 10; x = 20; print x;`)
	assert.Equal(t, "20\n", out)
}

func TestIfElse(t *testing.T) {
	out := run(t, `
		if (1 < 2) { print "yes"; } else { print "no"; }
	`)
	assert.Equal(t, "yes\n", out)
}

func TestWhileLoop(t *testing.T) {
	out := run(t, `
		var i = 0;
		var sum = 0;
		while (i < 5) {
			sum = sum + i;
			i = i + 1;
		}
		print sum;
	`)
	assert.Equal(t, "10\n", out)
}

func TestForLoopWithBreakAndContinue(t *testing.T) {
	out := run(t, `
		var sum = 0;
		for (var i = 0; i < 10; i = i + 1) {
			if (i == 5) { break; }
			if (i % 2 == 0) { continue; }
			sum = sum + i;
		}
		print sum;
	`)
	// 1 + 3 = 4 (0,2,4 skipped by continue; loop breaks before 5 is added)
	assert.Equal(t, "4\n", out)
}

func TestSwitchStatement(t *testing.T) {
	out := run(t, `
		var x = 2;
		switch (x) {
			case 1: print "one"; break;
			case 2: print "two"; break;
			default: print "other";
		}
	`)
	assert.Equal(t, "two\n", out)
}

func TestClosureCapturesByReference(t *testing.T) {
	out := run(t, `
		fun makeCounter() {
			var i = 0;
			fun count() {
				i = i + 1;
				return i;
			}
			return count;
		}
		var counter = makeCounter();
		print counter();
		print counter();
		print counter();
	`)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestClassesFieldsAndMethods(t *testing.T) {
	out := run(t, `
		class Point {
			init(x, y) {
				this.x = x;
				this.y = y;
			}
			sum() {
				return this.x + this.y;
			}
		}
		var p = Point(3, 4);
		print p.sum();
	`)
	assert.Equal(t, "7\n", out)
}

func TestInheritanceAndSuper(t *testing.T) {
	out := run(t, `
		class Animal {
			speak() {
				return "...";
			}
		}
		class Dog < Animal {
			speak() {
				return "Woof, " + super.speak();
			}
		}
		var d = Dog();
		print d.speak();
	`)
	assert.Equal(t, "Woof, ...\n", out)
}

func TestRuntimeErrorUndefinedVariable(t *testing.T) {
	var buf bytes.Buffer
	v := vm.New(vm.WithOutput(&buf))
	err := v.Interpret(`print undefinedVar;`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Undefined variable")
}

func TestRuntimeErrorIncludesStackTrace(t *testing.T) {
	var buf bytes.Buffer
	v := vm.New(vm.WithOutput(&buf))
	err := v.Interpret(`
		fun boom() {
			return 1 + "nope";
		}
		boom();
	`)
	require.Error(t, err)
	rerr, ok := err.(*vm.RuntimeError)
	require.True(t, ok)
	assert.NotEmpty(t, rerr.StackTrace)
	assert.Equal(t, "boom", rerr.StackTrace[0].Name)
}

func TestNativeClockReturnsNonNegativeNumber(t *testing.T) {
	out := run(t, `print clock() >= 0;`)
	assert.Equal(t, "true\n", out)
}

func TestGCStressDoesNotCorruptLiveValues(t *testing.T) {
	var buf bytes.Buffer
	v := vm.New(vm.WithOutput(&buf), vm.WithGCStress(true))
	err := v.Interpret(`
		var s = "";
		for (var i = 0; i < 50; i = i + 1) {
			s = s + "x";
		}
		print s;
	`)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 50)+"\n", buf.String())
}

func TestCompileOnlyThenRunRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	v := vm.New(vm.WithOutput(&buf))
	fn, err := v.CompileOnly(`print 1 + 1;`)
	require.NoError(t, err)
	require.NoError(t, v.Run(fn))
	assert.Equal(t, "2\n", buf.String())
}

func TestConstGlobalPersistsAcrossRepeatedInterpretCalls(t *testing.T) {
	var buf bytes.Buffer
	v := vm.New(vm.WithOutput(&buf))
	require.NoError(t, v.Interpret(`const x = 1;`))
	err := v.Interpret(`x = 2;`)
	require.Error(t, err, "reassigning a const global declared on a prior REPL line must still fail")
}
