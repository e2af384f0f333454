package vm

import (
	"testing"

	"matl/internal/bytecode"
	"matl/internal/value"
)

func runChunk(t *testing.T, code []bytecode.Instr) *VM {
	t.Helper()
	machine := New(NewGlobals())
	chunk := &bytecode.Chunk{Code: code, Source: "<test>"}
	if err := machine.Run(chunk); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return machine
}

func addOp(env value.Env, a, b value.Value) (value.Value, error) {
	return value.Scalar(a.Scalar + b.Scalar), nil
}

func TestLoadScalarAndExit(t *testing.T) {
	code := []bytecode.Instr{
		{Cmd: bytecode.LoadScalar, Scalar: 5},
		{Cmd: bytecode.Exit},
	}
	m := runChunk(t, code)
	if len(m.stack) != 1 || m.stack[0].Scalar != 5 {
		t.Fatalf("final stack = %+v, want one scalar 5", m.stack)
	}
}

func TestOpBinaryAdd(t *testing.T) {
	code := []bytecode.Instr{
		{Cmd: bytecode.LoadScalar, Scalar: 2},
		{Cmd: bytecode.LoadScalar, Scalar: 3},
		{Cmd: bytecode.OpBinary, Binary: value.BinaryOp(addOp)},
		{Cmd: bytecode.Exit},
	}
	m := runChunk(t, code)
	if len(m.stack) != 1 || m.stack[0].Scalar != 5 {
		t.Fatalf("2+3 = %+v, want scalar 5", m.stack)
	}
}

func TestStoreAndLoadGlobal(t *testing.T) {
	code := []bytecode.Instr{
		{Cmd: bytecode.LoadScalar, Scalar: 7},
		{Cmd: bytecode.Store, Str: "x"},
		{Cmd: bytecode.Load, Str: "x"},
		{Cmd: bytecode.Exit},
	}
	m := runChunk(t, code)
	if len(m.stack) != 1 || m.stack[0].Scalar != 7 {
		t.Fatalf("load-after-store = %+v, want scalar 7", m.stack)
	}
}

func TestLoadUndefinedGlobalFails(t *testing.T) {
	machine := New(NewGlobals())
	chunk := &bytecode.Chunk{
		Code: []bytecode.Instr{
			{Cmd: bytecode.Load, Str: "nope"},
			{Cmd: bytecode.Exit},
		},
		Source: "<test>",
	}
	if err := machine.Run(chunk); err == nil {
		t.Fatal("loading an undefined global should fail")
	}
}

// Jump skips the LoadScalar 99 and lands directly on Exit.
func TestJumpSkipsInstructions(t *testing.T) {
	code := []bytecode.Instr{
		{Cmd: bytecode.Jump, Offset: 2}, // at index 0: 0+2 = 2
		{Cmd: bytecode.LoadScalar, Scalar: 99},
		{Cmd: bytecode.Exit},
	}
	m := runChunk(t, code)
	if len(m.stack) != 0 {
		t.Fatalf("jump should have skipped the LoadScalar, stack = %+v", m.stack)
	}
}

func TestJumpUnlessTakenWhenFalsy(t *testing.T) {
	code := []bytecode.Instr{
		{Cmd: bytecode.LoadScalar, Scalar: 0},
		{Cmd: bytecode.JumpUnless, Offset: 3}, // at index 1: 1+3 = 4
		{Cmd: bytecode.LoadScalar, Scalar: 1},
		{Cmd: bytecode.Exit},
		{Cmd: bytecode.LoadScalar, Scalar: 2},
		{Cmd: bytecode.Exit},
	}
	m := runChunk(t, code)
	if len(m.stack) != 1 || m.stack[0].Scalar != 2 {
		t.Fatalf("falsy JumpUnless should have jumped to the else-branch, got %+v", m.stack)
	}
}

func TestJumpUnlessNotTakenWhenTruthy(t *testing.T) {
	code := []bytecode.Instr{
		{Cmd: bytecode.LoadScalar, Scalar: 1},
		{Cmd: bytecode.JumpUnless, Offset: 3},
		{Cmd: bytecode.LoadScalar, Scalar: 1},
		{Cmd: bytecode.Exit},
		{Cmd: bytecode.LoadScalar, Scalar: 2},
		{Cmd: bytecode.Exit},
	}
	m := runChunk(t, code)
	if len(m.stack) != 1 || m.stack[0].Scalar != 1 {
		t.Fatalf("truthy JumpUnless should fall through to the then-branch, got %+v", m.stack)
	}
}

// Builds a tiny function `fu(a) a+a end` inline, calls it with argument 4,
// and checks the Call/Return frame arithmetic.
func TestCallUserFunction(t *testing.T) {
	// Function body (indices relative to the body start, copied by the
	// Function instruction): LoadFast 0; LoadFast 0; OpBinary add; Return.
	body := []bytecode.Instr{
		{Cmd: bytecode.LoadFast, Index: 0},
		{Cmd: bytecode.LoadFast, Index: 0},
		{Cmd: bytecode.OpBinary, Binary: value.BinaryOp(addOp)},
		{Cmd: bytecode.Return},
	}
	code := []bytecode.Instr{
		// 0: Function header, FnOffset = len(body)+1 instructions total
		{Cmd: bytecode.Function, FnNArgs: 1, FnNLocals: 1, FnOffset: len(body) + 1},
		body[0], body[1], body[2], body[3],
		// 5: push the argument, then call with 1 arg
		{Cmd: bytecode.LoadScalar, Scalar: 4},
		{Cmd: bytecode.Call, NArgs: 1},
		{Cmd: bytecode.Exit},
	}
	m := runChunk(t, code)
	if len(m.stack) != 1 || m.stack[0].Scalar != 8 {
		t.Fatalf("fu(a) a+a end applied to 4 = %+v, want scalar 8", m.stack)
	}
}

func TestCallArityMismatchFails(t *testing.T) {
	body := []bytecode.Instr{{Cmd: bytecode.Return}}
	code := []bytecode.Instr{
		{Cmd: bytecode.Function, FnNArgs: 1, FnNLocals: 1, FnOffset: len(body) + 1},
		body[0],
		{Cmd: bytecode.Call, NArgs: 0}, // wrong arg count
		{Cmd: bytecode.Exit},
	}
	machine := New(NewGlobals())
	chunk := &bytecode.Chunk{Code: code, Source: "<test>"}
	if err := machine.Run(chunk); err == nil {
		t.Fatal("calling with the wrong argument count should fail")
	}
}

func TestMatrixLiteralRowMajor(t *testing.T) {
	code := []bytecode.Instr{
		{Cmd: bytecode.LoadScalar, Scalar: 1},
		{Cmd: bytecode.LoadScalar, Scalar: 2},
		{Cmd: bytecode.LoadScalar, Scalar: 3},
		{Cmd: bytecode.LoadScalar, Scalar: 4},
		{Cmd: bytecode.Matrix, Height: 2, Width: 2},
		{Cmd: bytecode.Exit},
	}
	m := runChunk(t, code)
	if len(m.stack) != 1 || m.stack[0].Kind != value.KindMatrix {
		t.Fatalf("expected a single matrix value, got %+v", m.stack)
	}
	got := m.stack[0].Mat.Elems
	want := []float64{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("matrix elems = %v, want %v", got, want)
		}
	}
}

func TestLoadAtStoreAtRoundTrip(t *testing.T) {
	mat := value.NewMatrix(2, 2)
	globals := NewGlobals()
	globals.Set("m", value.FromMatrix(mat))
	machine := New(globals)

	code := []bytecode.Instr{
		// m[1,2] = 9
		{Cmd: bytecode.Load, Str: "m"},
		{Cmd: bytecode.LoadScalar, Scalar: 1},
		{Cmd: bytecode.LoadScalar, Scalar: 2},
		{Cmd: bytecode.LoadScalar, Scalar: 9},
		{Cmd: bytecode.StoreAt, NIndices: 2},
		// m[1,2]
		{Cmd: bytecode.Load, Str: "m"},
		{Cmd: bytecode.LoadScalar, Scalar: 1},
		{Cmd: bytecode.LoadScalar, Scalar: 2},
		{Cmd: bytecode.LoadAt, NIndices: 2},
		{Cmd: bytecode.Exit},
	}
	chunk := &bytecode.Chunk{Code: code, Source: "<test>"}
	if err := machine.Run(chunk); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(machine.stack) != 1 || machine.stack[0].Scalar != 9 {
		t.Fatalf("m[1,2] after store = %+v, want scalar 9", machine.stack)
	}
}

func TestRunningOffTheEndFails(t *testing.T) {
	machine := New(NewGlobals())
	chunk := &bytecode.Chunk{Code: []bytecode.Instr{{Cmd: bytecode.LoadScalar, Scalar: 1}}, Source: "<test>"}
	if err := machine.Run(chunk); err == nil {
		t.Fatal("a chunk with no terminating Exit/Return should fail, not hang")
	}
}

func TestRuntimeErrorCarriesBacktrace(t *testing.T) {
	machine := New(NewGlobals())
	chunk := &bytecode.Chunk{
		Code: []bytecode.Instr{
			{Cmd: bytecode.Quark, Line: 3},
			{Cmd: bytecode.Load, Str: "undefined"},
			{Cmd: bytecode.Exit},
		},
		Source: "script.mat",
	}
	err := machine.Run(chunk)
	if err == nil {
		t.Fatal("loading an undefined global should fail")
	}
	re, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("error type = %T, want *RuntimeError", err)
	}
	if len(re.Trace) != 1 || re.Trace[0].Source != "script.mat" || re.Trace[0].Line != 3 {
		t.Fatalf("Trace = %+v, want a single frame at script.mat:3", re.Trace)
	}
}
