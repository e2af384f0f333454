package runtime_test

import (
	"testing"

	"matl/internal/compiler"
	"matl/internal/lexer"
	"matl/internal/runtime"
	"matl/internal/value"
)

func TestDefineGlobalVisibleToScript(t *testing.T) {
	rt := runtime.New()
	defer rt.Destroy()
	rt.DefineGlobal("answer", value.Scalar(42))

	result := rt.Execute("<test>", []byte("answer"))
	if result.Status != runtime.Ok {
		t.Fatalf("Execute: status=%v err=%v", result.Status, result.Err)
	}
}

func TestDefineIntrinsicIsCallable(t *testing.T) {
	rt := runtime.New()
	defer rt.Destroy()
	rt.RegisterOperator("+", samplePlus())
	rt.DefineIntrinsic("Double", func(env value.Env, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, env.Throwf("Double expects one argument")
		}
		return value.Scalar(args[0].Scalar * 2), nil
	})

	result := rt.Execute("<test>", []byte("Double(21)"))
	if result.Status != runtime.Ok {
		t.Fatalf("Execute: status=%v err=%v", result.Status, result.Err)
	}
}

func TestStateAccumulatesAcrossExecuteCalls(t *testing.T) {
	rt := runtime.New()
	defer rt.Destroy()

	if r := rt.Execute("<repl:1>", []byte("x = 10")); r.Status != runtime.Ok {
		t.Fatalf("first Execute: status=%v err=%v", r.Status, r.Err)
	}
	// a later call should still see x, the way successive REPL lines do.
	if r := rt.Execute("<repl:2>", []byte("x")); r.Status != runtime.Ok {
		t.Fatalf("second Execute: status=%v err=%v", r.Status, r.Err)
	}
}

func TestCompileErrorCarriesPosition(t *testing.T) {
	rt := runtime.New()
	defer rt.Destroy()
	rt.RegisterOperator("+", samplePlus())

	result := rt.Execute("<test>", []byte("1 +\n"))
	if result.Status != runtime.CompileErrorWithPos {
		t.Fatalf("status = %v, want CompileErrorWithPos", result.Status)
	}
	ce, ok := result.Err.(*compiler.Error)
	if !ok {
		t.Fatalf("Err type = %T, want *compiler.Error", result.Err)
	}
	if ce.Line == 0 {
		t.Fatal("compile error should carry a nonzero line number")
	}
}

func TestDestroyReleasesGlobals(t *testing.T) {
	rt := runtime.New()
	s := value.NewString([]byte("hi"))
	rt.DefineGlobal("greeting", value.FromString(s))
	rt.Destroy()
	if s.Data != nil {
		t.Fatal("Destroy should have released every bound global")
	}
}

func TestRegisterKeywordExtendsTheDefaultSet(t *testing.T) {
	rt := runtime.New()
	defer rt.Destroy()
	rt.RegisterKeyword("print2", lexer.KwIf) // reuse an existing Kind for the test
	// registering an extra keyword shouldn't itself break ordinary parsing
	if r := rt.Execute("<test>", []byte("1")); r.Status != runtime.Ok {
		t.Fatalf("Execute after RegisterKeyword: status=%v err=%v", r.Status, r.Err)
	}
	// "print2" now scans as the 'if' keyword, so on its own it is a syntax
	// error rather than a lookup of an undefined variable.
	if r := rt.Execute("<test>", []byte("print2")); r.Status != runtime.CompileErrorWithPos {
		t.Fatalf("Execute(\"print2\"): status=%v err=%v, want CompileErrorWithPos", r.Status, r.Err)
	}
}

func samplePlus() *compiler.Operator {
	return &compiler.Operator{
		Arity: 2, Assoc: compiler.Left, Priority: 1,
		Binary: func(env value.Env, a, b value.Value) (value.Value, error) {
			return value.Scalar(a.Scalar + b.Scalar), nil
		},
	}
}
