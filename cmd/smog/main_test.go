package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kristofer/smog/pkg/compiler"
	"github.com/kristofer/smog/pkg/vm"
)

func TestExitCodeForCompileErrorIsDataErr(t *testing.T) {
	err := compiler.Errors{&compiler.CompileError{Line: 1, Message: "Expect expression."}}
	assert.Equal(t, exitDataErr, exitCodeFor(err))
}

func TestExitCodeForRuntimeErrorIsSoftware(t *testing.T) {
	err := &vm.RuntimeError{Message: "Division by zero."}
	assert.Equal(t, exitSoftware, exitCodeFor(err))
}

func TestExitCodeForOtherErrorIsOne(t *testing.T) {
	assert.Equal(t, 1, exitCodeFor(errors.New("no such file or directory")))
}
