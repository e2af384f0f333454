// Package stdlib is the set of concrete operators and intrinsic functions
// plugged into a runtime.Runtime through the C7 facade's registration
// calls (spec.md §1 "Out of scope... the concrete set of built-in
// operators and intrinsic functions... the core only defines how they
// plug in; their math is not part of the contract"). Grounded on
// original_source/main.c's X_* executors, re-expressed over value.Value
// instead of a C tagged union.
package stdlib

import (
	"math"

	"matl/internal/compiler"
	"matl/internal/runtime"
	"matl/internal/value"
)

func arithErr(env value.Env, format string, args ...any) (value.Value, error) {
	return value.Nil, env.Throwf(format, args...)
}

func sameDim(x, y *value.Matrix) bool {
	return x.Height == y.Height && x.Width == y.Width
}

func elementwiseMatrix(x, y *value.Matrix, op func(a, b float64) float64) *value.Matrix {
	m := value.NewMatrix(x.Height, x.Width)
	for i := range m.Elems {
		m.Elems[i] = op(x.Elems[i], y.Elems[i])
	}
	return m
}

func scaleMatrix(s float64, x *value.Matrix) *value.Matrix {
	m := value.NewMatrix(x.Height, x.Width)
	for i, e := range x.Elems {
		m.Elems[i] = s * e
	}
	return m
}

// uminus: negate a scalar, or a matrix elementwise (X_uminus).
func uminus(env value.Env, a value.Value) (value.Value, error) {
	switch a.Kind {
	case value.KindScalar:
		return value.Scalar(-a.Scalar), nil
	case value.KindMatrix:
		return value.FromMatrix(scaleMatrix(-1, a.Mat)), nil
	default:
		return arithErr(env, "cannot negate %s value", a.Kind)
	}
}

// bminus: binary subtraction, scalar-scalar or matrix-matrix of equal
// dimensions (X_bminus).
func bminus(env value.Env, a, b value.Value) (value.Value, error) {
	switch {
	case a.Kind == value.KindMatrix && b.Kind == value.KindMatrix:
		if !sameDim(a.Mat, b.Mat) {
			return arithErr(env, "matrices unconformable for subtraction")
		}
		return value.FromMatrix(elementwiseMatrix(a.Mat, b.Mat, func(x, y float64) float64 { return x - y })), nil
	case a.Kind == value.KindScalar && b.Kind == value.KindScalar:
		return value.Scalar(a.Scalar - b.Scalar), nil
	default:
		return arithErr(env, "cannot subtract %s from %s", b.Kind, a.Kind)
	}
}

// plus: binary addition (X_plus).
func plus(env value.Env, a, b value.Value) (value.Value, error) {
	switch {
	case a.Kind == value.KindMatrix && b.Kind == value.KindMatrix:
		if !sameDim(a.Mat, b.Mat) {
			return arithErr(env, "matrices unconformable for addition")
		}
		return value.FromMatrix(elementwiseMatrix(a.Mat, b.Mat, func(x, y float64) float64 { return x + y })), nil
	case a.Kind == value.KindScalar && b.Kind == value.KindScalar:
		return value.Scalar(a.Scalar + b.Scalar), nil
	default:
		return arithErr(env, "cannot add %s to %s", a.Kind, b.Kind)
	}
}

// mul: scalar*scalar, matrix*matrix (true product, inner dimensions must
// agree), or scalar*matrix / matrix*scalar (elementwise scale, X_mul).
func mul(env value.Env, a, b value.Value) (value.Value, error) {
	switch {
	case a.Kind == value.KindMatrix && b.Kind == value.KindMatrix:
		x, y := a.Mat, b.Mat
		if x.Width != y.Height {
			return arithErr(env, "matrices unconformable for multiplication")
		}
		z := value.NewMatrix(x.Height, y.Width)
		for i := uint(0); i < x.Height; i++ {
			for j := uint(0); j < y.Width; j++ {
				var sum float64
				for k := uint(0); k < x.Width; k++ {
					sum += x.Elems[i*x.Width+k] * y.Elems[k*y.Width+j]
				}
				z.Elems[i*y.Width+j] = sum
			}
		}
		return value.FromMatrix(z), nil
	case a.Kind == value.KindScalar && b.Kind == value.KindScalar:
		return value.Scalar(a.Scalar * b.Scalar), nil
	case a.Kind == value.KindScalar && b.Kind == value.KindMatrix:
		return value.FromMatrix(scaleMatrix(a.Scalar, b.Mat)), nil
	case a.Kind == value.KindMatrix && b.Kind == value.KindScalar:
		return value.FromMatrix(scaleMatrix(b.Scalar, a.Mat)), nil
	default:
		return arithErr(env, "cannot multiply %s by %s", a.Kind, b.Kind)
	}
}

func div(env value.Env, a, b value.Value) (value.Value, error) {
	if a.Kind != value.KindScalar || b.Kind != value.KindScalar {
		return arithErr(env, "cannot divide %s by %s", a.Kind, b.Kind)
	}
	return value.Scalar(a.Scalar / b.Scalar), nil
}

func mod(env value.Env, a, b value.Value) (value.Value, error) {
	if a.Kind != value.KindScalar || b.Kind != value.KindScalar {
		return arithErr(env, "cannot calculate remainder of %s divided by %s", a.Kind, b.Kind)
	}
	return value.Scalar(math.Mod(a.Scalar, b.Scalar)), nil
}

func pow(env value.Env, a, b value.Value) (value.Value, error) {
	if a.Kind != value.KindScalar || b.Kind != value.KindScalar {
		return arithErr(env, "cannot raise %s to the power of %s", a.Kind, b.Kind)
	}
	return value.Scalar(math.Pow(a.Scalar, b.Scalar)), nil
}

func boolScalar(b bool) value.Value {
	if b {
		return value.Scalar(1)
	}
	return value.Scalar(0)
}

func compare(name string, cmp func(x, y float64) bool) value.BinaryOp {
	return func(env value.Env, a, b value.Value) (value.Value, error) {
		if a.Kind != value.KindScalar || b.Kind != value.KindScalar {
			return arithErr(env, "cannot compare %s and %s", a.Kind, b.Kind)
		}
		return boolScalar(cmp(a.Scalar, b.Scalar)), nil
	}
}

// valuesEqual implements X_eq/X_ne's by-kind structural comparison: nil
// equals nil, scalars/strings/matrices compare by value, user functions
// compare by identity, and built-in functions never compare equal.
func valuesEqual(a, b value.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case value.KindNil:
		return true
	case value.KindScalar:
		return a.Scalar == b.Scalar
	case value.KindMatrix:
		if !sameDim(a.Mat, b.Mat) {
			return false
		}
		for i := range a.Mat.Elems {
			if a.Mat.Elems[i] != b.Mat.Elems[i] {
				return false
			}
		}
		return true
	case value.KindString:
		return string(a.Str.Data) == string(b.Str.Data)
	case value.KindFunction:
		return a.Fn == b.Fn
	case value.KindBuiltin:
		return false
	default:
		return false
	}
}

func eq(env value.Env, a, b value.Value) (value.Value, error) {
	return boolScalar(valuesEqual(a, b)), nil
}

func ne(env value.Env, a, b value.Value) (value.Value, error) {
	return boolScalar(!valuesEqual(a, b)), nil
}

func not(env value.Env, a value.Value) (value.Value, error) {
	return boolScalar(!value.Truthy(a)), nil
}

func and(env value.Env, a, b value.Value) (value.Value, error) {
	return boolScalar(value.Truthy(a) && value.Truthy(b)), nil
}

func or(env value.Env, a, b value.Value) (value.Value, error) {
	return boolScalar(value.Truthy(a) || value.Truthy(b)), nil
}

// RegisterOperators installs the fixed operator set (spec.md §6's plug-in
// contract; priorities and associativities carried over verbatim from
// original_source/main.c's REG_OP/REG_AMBIG_OP table). "-" is the
// language's one ambiguous symbol: prefix negation binds tighter than
// anything (priority 100, right-assoc so a chain like "- - x" parses),
// infix subtraction sits with "+" at priority 1.
func RegisterOperators(rt *runtime.Runtime) {
	rt.RegisterAmbiguous("-",
		&compiler.Operator{Arity: 1, Assoc: compiler.Right, Priority: 100, Unary: uminus},
		&compiler.Operator{Arity: 2, Assoc: compiler.Left, Priority: 1, Binary: bminus},
	)
	rt.RegisterOperator("+", &compiler.Operator{Arity: 2, Assoc: compiler.Left, Priority: 1, Binary: plus})
	rt.RegisterOperator("*", &compiler.Operator{Arity: 2, Assoc: compiler.Left, Priority: 2, Binary: mul})
	rt.RegisterOperator("/", &compiler.Operator{Arity: 2, Assoc: compiler.Left, Priority: 2, Binary: div})
	rt.RegisterOperator("%", &compiler.Operator{Arity: 2, Assoc: compiler.Left, Priority: 2, Binary: mod})
	rt.RegisterOperator("^", &compiler.Operator{Arity: 2, Assoc: compiler.Right, Priority: 3, Binary: pow})

	rt.RegisterOperator("!", &compiler.Operator{Arity: 1, Assoc: compiler.Right, Priority: 0, Unary: not})
	rt.RegisterOperator("&&", &compiler.Operator{Arity: 2, Assoc: compiler.Left, Priority: 0, Binary: and})
	rt.RegisterOperator("||", &compiler.Operator{Arity: 2, Assoc: compiler.Left, Priority: 0, Binary: or})

	rt.RegisterOperator("<", &compiler.Operator{Arity: 2, Assoc: compiler.Left, Priority: 0, Binary: compare("<", func(x, y float64) bool { return x < y })})
	rt.RegisterOperator("<=", &compiler.Operator{Arity: 2, Assoc: compiler.Left, Priority: 0, Binary: compare("<=", func(x, y float64) bool { return x <= y })})
	rt.RegisterOperator(">", &compiler.Operator{Arity: 2, Assoc: compiler.Left, Priority: 0, Binary: compare(">", func(x, y float64) bool { return x > y })})
	rt.RegisterOperator(">=", &compiler.Operator{Arity: 2, Assoc: compiler.Left, Priority: 0, Binary: compare(">=", func(x, y float64) bool { return x >= y })})
	rt.RegisterOperator("==", &compiler.Operator{Arity: 2, Assoc: compiler.Left, Priority: 0, Binary: eq})
	rt.RegisterOperator("!=", &compiler.Operator{Arity: 2, Assoc: compiler.Left, Priority: 0, Binary: ne})
}
