// Package value implements the language's tagged value model: a small sum
// type over {nil, scalar, matrix, builtin, function, string} with manual
// reference counting on the heap-backed kinds (matrix, string, function).
//
// There is no garbage collector. Matrices, strings and user functions carry
// an explicit nrefs count; Release drops it to zero exactly once and frees
// the backing storage. The language has no way to construct a reference
// cycle, so counting alone is sufficient (spec §1, §9).
package value

import (
	"fmt"

	"matl/internal/bytecode"
)

// Kind tags the active member of a Value.
type Kind int

const (
	KindNil Kind = iota
	KindScalar
	KindMatrix
	KindBuiltin
	KindFunction
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindScalar:
		return "scalar"
	case KindMatrix:
		return "matrix"
	case KindBuiltin, KindFunction:
		return "function"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Env is the minimal capability a plugged-in operator or intrinsic needs: a
// way to abort the current operation with a formatted runtime error. This is
// the Go re-expression of the original implementation's env_throw longjmp —
// see spec.md §9 ("typed result propagation").
type Env interface {
	Throwf(format string, args ...any) error
}

// Builtin is a host-provided intrinsic: (env, args) -> result | error.
type Builtin func(env Env, args []Value) (Value, error)

// UnaryOp and BinaryOp are operator executors, registered through the
// runtime facade's plug-in contract (spec.md §6).
type UnaryOp func(env Env, v Value) (Value, error)
type BinaryOp func(env Env, v, w Value) (Value, error)

// Matrix is a heap object: height*width row-major scalars. The invariant
// height==0 <=> width==0 holds for every live Matrix.
type Matrix struct {
	nrefs  int
	Height uint
	Width  uint
	Elems  []float64
}

// String is an immutable byte-counted heap blob.
type String struct {
	nrefs int
	Data  []byte
}

// Function is a user-defined function: parameter/local counts plus its own
// copy of the instruction range the compiler emitted for it. The compiler
// builds every function body inline in one shared, growing buffer; a
// nested function resolves only its own locals, and every other name it
// uses is looked up as a global. The VM copies the body out each time the
// enclosing Function instruction executes, rather than keeping a live
// sub-slice, so later
// appends to the parent buffer (sibling statements, sibling functions) can
// never reallocate and invalidate it (spec.md §9's Design Note).
type Function struct {
	nrefs   int
	NArgs   int
	NLocals int
	Code    []bytecode.Instr // owned copy of this function's instruction range
	Source  string           // defining source filename, for back-traces
}

// Value is the tagged union. Only the field matching Kind is meaningful.
type Value struct {
	Kind    Kind
	Scalar  float64
	Mat     *Matrix
	Str     *String
	Fn      *Function
	Builtin Builtin
}

// Nil is the singleton nil value; it has no heap backing.
var Nil = Value{Kind: KindNil}

func Scalar(f float64) Value { return Value{Kind: KindScalar, Scalar: f} }

func FromMatrix(m *Matrix) Value { return Value{Kind: KindMatrix, Mat: m} }

func FromString(s *String) Value { return Value{Kind: KindString, Str: s} }

func FromFunction(f *Function) Value { return Value{Kind: KindFunction, Fn: f} }

func FromBuiltin(b Builtin) Value { return Value{Kind: KindBuiltin, Builtin: b} }

func NewMatrix(height, width uint) *Matrix {
	if height == 0 || width == 0 {
		return &Matrix{nrefs: 1}
	}
	return &Matrix{nrefs: 1, Height: height, Width: width, Elems: make([]float64, height*width)}
}

func NewString(data []byte) *String {
	return &String{nrefs: 1, Data: data}
}

func NewFunction(nargs, nlocals int, code []bytecode.Instr, source string) *Function {
	return &Function{nrefs: 1, NArgs: nargs, NLocals: nlocals, Code: code, Source: source}
}

// Ref takes a reference on v's heap object, if it has one.
func Ref(v Value) {
	switch v.Kind {
	case KindMatrix:
		v.Mat.nrefs++
	case KindString:
		v.Str.nrefs++
	case KindFunction:
		v.Fn.nrefs++
	}
}

// Release drops a reference on v's heap object. When the count reaches
// zero the backing storage is freed and the destructor runs exactly once.
func Release(v Value) {
	switch v.Kind {
	case KindMatrix:
		v.Mat.nrefs--
		if v.Mat.nrefs == 0 {
			v.Mat.Elems = nil
		}
	case KindString:
		v.Str.nrefs--
		if v.Str.nrefs == 0 {
			v.Str.Data = nil
		}
	case KindFunction:
		v.Fn.nrefs--
		if v.Fn.nrefs == 0 {
			v.Fn.Code = nil
		}
	}
}

// NRefs reports the current reference count of v's heap object, or 0 for
// non-heap kinds. Exposed for tests of the refcounting invariant (spec §8).
func NRefs(v Value) int {
	switch v.Kind {
	case KindMatrix:
		return v.Mat.nrefs
	case KindString:
		return v.Str.nrefs
	case KindFunction:
		return v.Fn.nrefs
	default:
		return 0
	}
}

// Truthy implements spec.md §3: nil false; scalar != 0; matrix has a
// nonzero element; string nonempty; functions always true.
func Truthy(v Value) bool {
	switch v.Kind {
	case KindNil:
		return false
	case KindScalar:
		return v.Scalar != 0
	case KindMatrix:
		for _, e := range v.Mat.Elems {
			if e != 0 {
				return true
			}
		}
		return false
	case KindString:
		return len(v.Str.Data) > 0
	case KindBuiltin, KindFunction:
		return true
	default:
		return false
	}
}

// Sprint returns v in the source language's user-facing representation,
// without a trailing newline.
func Sprint(v Value) string {
	switch v.Kind {
	case KindNil:
		return ""
	case KindScalar:
		return fmt.Sprintf("%.15g", v.Scalar)
	case KindMatrix:
		m := v.Mat
		out := "[\n"
		idx := 0
		for i := uint(0); i < m.Height; i++ {
			for j := uint(0); j < m.Width; j++ {
				out += fmt.Sprintf("\t%.15g", m.Elems[idx])
				idx++
			}
			out += "\n"
		}
		out += "]"
		return out
	case KindString:
		return string(v.Str.Data)
	case KindBuiltin:
		return "<built-in function>"
	case KindFunction:
		return fmt.Sprintf("<function %p>", v.Fn)
	default:
		return "<?>"
	}
}
