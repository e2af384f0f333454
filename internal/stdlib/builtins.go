package stdlib

import (
	"fmt"
	"math"
	"strings"

	"matl/internal/bytecode"
	"matl/internal/compiler"
	"matl/internal/runtime"
	"matl/internal/value"
)

// decl1 wraps a float64->float64 math function as a one-argument,
// scalar-only intrinsic (original_source/main.c's DECL1 macro: sin, cos,
// atan, exp, ln, trunc, floor, ceil).
func decl1(name string, f func(float64) float64) value.Builtin {
	return func(env value.Env, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, env.Throwf("'%s' expects exactly one argument", name)
		}
		if args[0].Kind != value.KindScalar {
			return value.Nil, env.Throwf("'%s' can only be applied to a scalar", name)
		}
		return value.Scalar(f(args[0].Scalar)), nil
	}
}

// matBuiltin constructs an empty height x width matrix (X_Mat).
func matBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Nil, env.Throwf("'Mat' expects exactly two arguments")
	}
	if args[0].Kind != value.KindScalar || args[1].Kind != value.KindScalar {
		return value.Nil, env.Throwf("both arguments to 'Mat' must be scalars")
	}
	h, w := uint(args[0].Scalar), uint(args[1].Scalar)
	if (h == 0) != (w == 0) {
		return value.Nil, env.Throwf("invalid matrix dimensions")
	}
	return value.FromMatrix(value.NewMatrix(h, w)), nil
}

// dimBuiltin returns a 1x2 matrix [height, width] (X_Dim).
func dimBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, env.Throwf("'Dim' expects exactly one argument")
	}
	if args[0].Kind != value.KindMatrix {
		return value.Nil, env.Throwf("'Dim' can only be applied to a matrix")
	}
	m := args[0].Mat
	d := value.NewMatrix(1, 2)
	d.Elems[0] = float64(m.Height)
	d.Elems[1] = float64(m.Width)
	return value.FromMatrix(d), nil
}

// transBuiltin transposes a matrix (X_Transpose).
func transBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, env.Throwf("'Trans' expects exactly one argument")
	}
	if args[0].Kind != value.KindMatrix {
		return value.Nil, env.Throwf("'Trans' can only be applied to a matrix")
	}
	x := args[0].Mat
	y := value.NewMatrix(x.Width, x.Height)
	for i := uint(0); i < x.Width; i++ {
		for j := uint(0); j < x.Height; j++ {
			y.Elems[i*x.Height+j] = x.Elems[j*x.Width+i]
		}
	}
	return value.FromMatrix(y), nil
}

// kindBuiltin returns the argument's runtime kind name as a string
// (X_Kind).
func kindBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, env.Throwf("'Kind' expects exactly one argument")
	}
	return value.FromString(value.NewString([]byte(args[0].Kind.String()))), nil
}

// catBuiltin stringifies and concatenates every argument (X_Cat);
// matrices render the same row-major bracketed form as Print.
func catBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	var b strings.Builder
	for _, a := range args {
		switch a.Kind {
		case value.KindNil:
			b.WriteString("nil")
		case value.KindScalar:
			fmt.Fprintf(&b, "%.15g", a.Scalar)
		case value.KindString:
			b.Write(a.Str.Data)
		case value.KindMatrix:
			b.WriteString(value.Sprint(a))
		default:
			b.WriteString(value.Sprint(a))
		}
	}
	return value.FromString(value.NewString([]byte(b.String()))), nil
}

// disAsmBuiltin prints a user function's body (X_DisAsm), using the same
// renderer as the CLI's -d flag.
func disAsmBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, env.Throwf("'DisAsm' expects exactly one argument")
	}
	if args[0].Kind != value.KindFunction {
		return value.Nil, env.Throwf("'DisAsm' can only be applied to a function")
	}
	fn := args[0].Fn
	fmt.Print(compiler.Disassemble(&bytecode.Chunk{Code: fn.Code, Source: fn.Source}))
	return value.Nil, nil
}

// RegisterBuiltins installs the math/matrix intrinsic set (spec.md §1
// "built-in operators and intrinsic functions... not part of the
// contract"; grounded on original_source/main.c's scopes_put calls) plus
// the constant `pi`.
func RegisterBuiltins(rt *runtime.Runtime) {
	rt.DefineIntrinsic("sin", decl1("sin", math.Sin))
	rt.DefineIntrinsic("cos", decl1("cos", math.Cos))
	rt.DefineIntrinsic("atan", decl1("atan", math.Atan))
	rt.DefineIntrinsic("ln", decl1("ln", math.Log))
	rt.DefineIntrinsic("exp", decl1("exp", math.Exp))
	rt.DefineIntrinsic("trunc", decl1("trunc", math.Trunc))
	rt.DefineIntrinsic("floor", decl1("floor", math.Floor))
	rt.DefineIntrinsic("ceil", decl1("ceil", math.Ceil))

	rt.DefineIntrinsic("Mat", matBuiltin)
	rt.DefineIntrinsic("Dim", dimBuiltin)
	rt.DefineIntrinsic("Trans", transBuiltin)
	rt.DefineIntrinsic("Kind", kindBuiltin)
	rt.DefineIntrinsic("Cat", catBuiltin)
	rt.DefineIntrinsic("DisAsm", disAsmBuiltin)
	rt.DefineIntrinsic("Rand", randBuiltin)

	rt.DefineGlobal("pi", value.Scalar(math.Pi))
}
