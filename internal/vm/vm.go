// Package vm implements the stack-based bytecode interpreter: a value
// stack, an explicit call-frame stack, and a single dispatch loop switching
// on bytecode.Cmd (spec.md §4.5, §7). There is no separate "current frame"
// struct for the executing context — code/source/ip live directly on VM and
// are swapped with a frame's saved fields across Call/Return, the same
// shape as the teacher's EnhancedVM frame-swap, re-expressed over
// value.Value instead of interface{} (see DESIGN.md).
package vm

import (
	"fmt"

	"matl/internal/bytecode"
	"matl/internal/value"
)

// frame is a suspended caller: the code/source it was executing, the
// instruction to resume at, and the stack index its locals begin at.
type frame struct {
	code     []bytecode.Instr
	source   string
	returnIP int
	base     int
}

// VM holds one program's execution state. code/source/ip always describe
// the innermost active frame; frames holds every suspended caller,
// outermost first.
type VM struct {
	stack  []value.Value
	frames []frame

	globals *Globals

	code   []bytecode.Instr
	ip     int
	source string
}

func New(globals *Globals) *VM {
	return &VM{globals: globals}
}

// Throwf implements value.Env for operators and intrinsics the VM hands
// itself to: it has no position of its own, so it returns a plain error
// and lets the dispatch loop's fail() attach the backtrace (spec.md §9's
// "typed result propagation" design note).
func (vm *VM) Throwf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// Run executes chunk from its first instruction to the outermost Exit
// (spec.md §4.4: the compiler always wraps a program in an implicit
// top-level function and appends Call/Print/Exit, so a well-formed chunk
// always terminates this way rather than by falling off the end).
func (vm *VM) Run(chunk *bytecode.Chunk) error {
	vm.code = chunk.Code
	vm.source = chunk.Source
	vm.ip = 0
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]

	for {
		at := vm.ip
		if at >= len(vm.code) {
			return vm.fail("ran off the end of %s", vm.source)
		}
		in := vm.code[at]
		vm.ip = at + 1

		switch in.Cmd {
		case bytecode.Quark:
			// line marker only; lineAt() finds it by scanning, nothing to do

		case bytecode.Print:
			v := vm.pop()
			fmt.Println(value.Sprint(v))
			value.Release(v)

		case bytecode.LoadScalar:
			vm.push(value.Scalar(in.Scalar))

		case bytecode.LoadStr:
			// in.Str carries the token text verbatim, quotes included
			// (lexer.go's scanString spans opening to closing '"').
			interior := in.Str[1 : len(in.Str)-1]
			vm.push(value.FromString(value.NewString(value.Unescape(interior))))

		case bytecode.Load:
			v, ok := vm.globals.Get(in.Str)
			if !ok {
				return vm.fail("undefined variable '%s'", in.Str)
			}
			value.Ref(v)
			vm.push(v)

		case bytecode.LoadFast:
			v := vm.stack[vm.base()+in.Index]
			value.Ref(v)
			vm.push(v)

		case bytecode.Store:
			vm.globals.Set(in.Str, vm.pop())

		case bytecode.StoreFast:
			v := vm.pop()
			slot := vm.base() + in.Index
			value.Release(vm.stack[slot])
			vm.stack[slot] = v

		case bytecode.LoadAt:
			v, err := vm.loadAt(in.NIndices)
			if err != nil {
				return vm.failErr(err)
			}
			vm.push(v)

		case bytecode.StoreAt:
			if err := vm.storeAt(in.NIndices); err != nil {
				return vm.failErr(err)
			}

		case bytecode.OpUnary:
			v := vm.pop()
			fn := in.Unary.(value.UnaryOp)
			r, err := fn(vm, v)
			value.Release(v)
			if err != nil {
				return vm.failErr(err)
			}
			vm.push(r)

		case bytecode.OpBinary:
			w := vm.pop()
			v := vm.pop()
			fn := in.Binary.(value.BinaryOp)
			r, err := fn(vm, v, w)
			value.Release(v)
			value.Release(w)
			if err != nil {
				return vm.failErr(err)
			}
			vm.push(r)

		case bytecode.Call:
			if err := vm.call(in.NArgs); err != nil {
				return err
			}

		case bytecode.Matrix:
			if err := vm.matrix(in.Height, in.Width); err != nil {
				return vm.failErr(err)
			}

		case bytecode.Jump:
			vm.ip = at + in.Offset

		case bytecode.JumpUnless:
			v := vm.pop()
			t := value.Truthy(v)
			value.Release(v)
			if !t {
				vm.ip = at + in.Offset
			}

		case bytecode.Function:
			bodyLen := in.FnOffset - 1
			code := make([]bytecode.Instr, bodyLen)
			copy(code, vm.code[at+1:at+1+bodyLen])
			fn := value.NewFunction(in.FnNArgs, in.FnNLocals, code, vm.source)
			vm.push(value.FromFunction(fn))
			vm.ip = at + in.FnOffset

		case bytecode.Return:
			vm.doReturn(vm.pop())

		case bytecode.Exit:
			if len(vm.frames) == 0 {
				return nil
			}
			vm.doReturn(value.Nil)

		default:
			return vm.fail("unhandled instruction %s", in.Cmd)
		}
	}
}

// call dispatches a Call instruction: the callee sits nargs slots below
// the top of the stack, with its arguments above it (spec.md §4.5 "Call").
// A builtin runs to completion inline; a user function pushes a frame and
// redirects the dispatch loop at its body.
func (vm *VM) call(nargs int) error {
	calleeIdx := len(vm.stack) - nargs - 1
	if calleeIdx < 0 {
		return vm.fail("call stack underflow")
	}
	callee := vm.stack[calleeIdx]

	switch callee.Kind {
	case value.KindBuiltin:
		args := append([]value.Value(nil), vm.stack[calleeIdx+1:]...)
		result, err := callee.Builtin(vm, args)
		for _, a := range args {
			value.Release(a)
		}
		vm.stack = vm.stack[:calleeIdx]
		if err != nil {
			return vm.failErr(err)
		}
		vm.push(result)
		return nil

	case value.KindFunction:
		fn := callee.Fn
		if nargs != fn.NArgs {
			err := vm.fail("wrong number of arguments")
			value.Release(callee)
			return err
		}
		base := calleeIdx + 1
		for i := 0; i < fn.NLocals; i++ {
			vm.stack = append(vm.stack, value.Nil)
		}
		vm.frames = append(vm.frames, frame{code: vm.code, source: vm.source, returnIP: vm.ip, base: base})
		vm.code = fn.Code
		vm.source = fn.Source
		vm.ip = 0
		return nil

	default:
		err := vm.fail("cannot call %s value", callee.Kind)
		value.Release(callee)
		return err
	}
}

// doReturn closes the active frame: every stack slot from frame.base-1
// upward (the callee value itself, its arguments, its locals) is released,
// the stack is truncated to frame.base-1, and v is pushed in their place —
// so the caller sees exactly one new value where the callee used to sit
// (spec.md §4.5 "Return"/"Exit").
func (vm *VM) doReturn(v value.Value) {
	if len(vm.frames) == 0 {
		// A bare top-level return with no active call frame; nothing to
		// unwind to, so just leave v as the sole stack value.
		for _, s := range vm.stack {
			value.Release(s)
		}
		vm.stack = vm.stack[:0]
		vm.push(v)
		return
	}
	fr := vm.frames[len(vm.frames)-1]
	vm.frames = vm.frames[:len(vm.frames)-1]

	for i := fr.base - 1; i < len(vm.stack); i++ {
		value.Release(vm.stack[i])
	}
	vm.stack = vm.stack[:fr.base-1]
	vm.push(v)

	vm.code = fr.code
	vm.source = fr.source
	vm.ip = fr.returnIP
}

// matrix pops height*width scalars and assembles them into a matrix
// literal's value, row-major in push order (spec.md §4.4's row-parsing
// loop pushes left to right, top row first).
func (vm *VM) matrix(height, width uint) error {
	n := int(height * width)
	if len(vm.stack) < n {
		return fmt.Errorf("matrix literal stack underflow")
	}
	elems := vm.stack[len(vm.stack)-n:]
	m, err := value.ConstructMatrix(elems, height, width)
	vm.stack = vm.stack[:len(vm.stack)-n]
	if err != nil {
		return err
	}
	vm.push(value.FromMatrix(m))
	return nil
}

// loadAt implements LoadAt: the container was pushed before its 1 or 2
// index expressions, so the indices pop first (spec.md §4.4's postfix
// `[...]` parse, §4.5 "LoadAt").
func (vm *VM) loadAt(n uint) (value.Value, error) {
	if n == 2 {
		col := vm.pop()
		row := vm.pop()
		container := vm.pop()
		defer func() {
			value.Release(col)
			value.Release(row)
			value.Release(container)
		}()
		if container.Kind != value.KindMatrix {
			return value.Nil, fmt.Errorf("cannot index %s value", container.Kind)
		}
		return value.Get2(container.Mat, row, col)
	}
	idx := vm.pop()
	container := vm.pop()
	defer func() {
		value.Release(idx)
		value.Release(container)
	}()
	if container.Kind != value.KindMatrix {
		return value.Nil, fmt.Errorf("cannot index %s value", container.Kind)
	}
	return value.Get1(container.Mat, idx)
}

// storeAt implements StoreAt: the rewritten-assignment emission order
// pushes container, then indices, then the RHS value last, so the value
// pops first of all (spec.md §4.4's exprStmt rewrite, §4.5 "StoreAt").
func (vm *VM) storeAt(n uint) error {
	v := vm.pop()
	if n == 2 {
		col := vm.pop()
		row := vm.pop()
		container := vm.pop()
		defer func() {
			value.Release(v)
			value.Release(col)
			value.Release(row)
			value.Release(container)
		}()
		if container.Kind != value.KindMatrix {
			return fmt.Errorf("cannot index %s value", container.Kind)
		}
		return value.Set2(container.Mat, row, col, v)
	}
	idx := vm.pop()
	container := vm.pop()
	defer func() {
		value.Release(v)
		value.Release(idx)
		value.Release(container)
	}()
	if container.Kind != value.KindMatrix {
		return fmt.Errorf("cannot index %s value", container.Kind)
	}
	return value.Set1(container.Mat, idx, v)
}

func (vm *VM) push(v value.Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() value.Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v
}

// base is the current frame's first local-variable slot, or 0 at the
// outermost level (no frame pushed yet — only possible before the entry
// sequence's own Call has run).
func (vm *VM) base() int {
	if len(vm.frames) == 0 {
		return 0
	}
	return vm.frames[len(vm.frames)-1].base
}

// failErr wraps a plain error from an operator/intrinsic/call failure into
// a positioned RuntimeError, passing an already-built one through
// unchanged (vm.call returns fail()'s result directly in some paths).
func (vm *VM) failErr(err error) error {
	if re, ok := err.(*RuntimeError); ok {
		return re
	}
	return vm.fail("%s", err.Error())
}
