package vm

import (
	"fmt"
	"strings"

	"matl/internal/bytecode"
	"matl/internal/value"
)

// BacktraceLine is one line of a runtime error's back-trace: the source
// file and the nearest preceding Quark's line number (spec.md §4.5 "Back
// traces"). Grounded on internal/errors.StackFrame's shape, trimmed to the
// two fields this language's back-trace actually reports.
type BacktraceLine struct {
	Source string
	Line   int
}

// RuntimeError is raised from VM dispatch or from an operator/intrinsic
// via Env.Throwf (spec.md §7, taxon 3). Trace is innermost-first.
type RuntimeError struct {
	Message string
	Trace   []BacktraceLine
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.Message)
	for i, l := range e.Trace {
		if i == 0 {
			fmt.Fprintf(&b, "\n\tin %s at line %d", l.Source, l.Line)
		} else {
			fmt.Fprintf(&b, "\n\tcalled by %s at line %d", l.Source, l.Line)
		}
	}
	return b.String()
}

// lineAt scans backward from idx for the nearest Quark, returning its line
// number, or 0 if the body has none before idx (can happen for a failure
// inside the implicit top-level entry sequence, which carries no quarks).
func lineAt(code []bytecode.Instr, idx int) int {
	if idx >= len(code) {
		idx = len(code) - 1
	}
	for i := idx; i >= 0; i-- {
		if code[i].Cmd == bytecode.Quark {
			return code[i].Line
		}
	}
	return 0
}

// backtrace walks the active frame outward: the currently executing
// position first, then each caller, matching spec.md §4.5's "in <source>
// at line N" / "called by <source> at line N" presentation.
func (vm *VM) backtrace() []BacktraceLine {
	lines := []BacktraceLine{{Source: vm.source, Line: lineAt(vm.code, vm.ip)}}
	for i := len(vm.frames) - 1; i >= 0; i-- {
		fr := vm.frames[i]
		lines = append(lines, BacktraceLine{Source: fr.source, Line: lineAt(fr.code, fr.returnIP-1)})
	}
	return lines
}

// fail builds a RuntimeError positioned at the VM's current state and
// releases every value left on the stack — the Go re-expression of
// "the VM cleans up both stacks" from spec.md §7's protected-section
// design note (see DESIGN.md: here the unwind is an ordinary Go return of
// a typed error rather than a longjmp to a saved suspend point).
func (vm *VM) fail(format string, args ...any) *RuntimeError {
	err := &RuntimeError{Message: fmt.Sprintf(format, args...), Trace: vm.backtrace()}
	for _, v := range vm.stack {
		value.Release(v)
	}
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	return err
}
