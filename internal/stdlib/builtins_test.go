package stdlib

import (
	"testing"

	"matl/internal/value"
)

func TestMatBuiltinCreatesZeroedMatrix(t *testing.T) {
	result, err := matBuiltin(fakeEnv{}, []value.Value{value.Scalar(2), value.Scalar(3)})
	if err != nil {
		t.Fatalf("Mat: %v", err)
	}
	if result.Mat.Height != 2 || result.Mat.Width != 3 {
		t.Fatalf("dims = %dx%d, want 2x3", result.Mat.Height, result.Mat.Width)
	}
	for _, e := range result.Mat.Elems {
		if e != 0 {
			t.Fatal("Mat should create a zeroed matrix")
		}
	}
}

func TestDimBuiltin(t *testing.T) {
	m := value.FromMatrix(value.NewMatrix(4, 5))
	result, err := dimBuiltin(fakeEnv{}, []value.Value{m})
	if err != nil {
		t.Fatalf("Dim: %v", err)
	}
	if result.Mat.Elems[0] != 4 || result.Mat.Elems[1] != 5 {
		t.Fatalf("Dim = %v, want [4 5]", result.Mat.Elems)
	}
}

func TestTransBuiltin(t *testing.T) {
	m := value.NewMatrix(2, 3)
	copy(m.Elems, []float64{1, 2, 3, 4, 5, 6})
	result, err := transBuiltin(fakeEnv{}, []value.Value{value.FromMatrix(m)})
	if err != nil {
		t.Fatalf("Trans: %v", err)
	}
	if result.Mat.Height != 3 || result.Mat.Width != 2 {
		t.Fatalf("transposed dims = %dx%d, want 3x2", result.Mat.Height, result.Mat.Width)
	}
	want := []float64{1, 4, 2, 5, 3, 6}
	for i, w := range want {
		if result.Mat.Elems[i] != w {
			t.Fatalf("transposed elems = %v, want %v", result.Mat.Elems, want)
		}
	}
}

func TestKindBuiltin(t *testing.T) {
	result, err := kindBuiltin(fakeEnv{}, []value.Value{value.Scalar(1)})
	if err != nil {
		t.Fatalf("Kind: %v", err)
	}
	if string(result.Str.Data) != "scalar" {
		t.Fatalf("Kind(scalar) = %q, want \"scalar\"", result.Str.Data)
	}
}

func TestCatBuiltinConcatenatesMixedKinds(t *testing.T) {
	args := []value.Value{
		value.FromString(value.NewString([]byte("x="))),
		value.Scalar(3),
	}
	result, err := catBuiltin(fakeEnv{}, args)
	if err != nil {
		t.Fatalf("Cat: %v", err)
	}
	if string(result.Str.Data) != "x=3" {
		t.Fatalf("Cat result = %q, want \"x=3\"", result.Str.Data)
	}
}

func TestDecl1RejectsNonScalar(t *testing.T) {
	sin := decl1("sin", func(x float64) float64 { return x })
	if _, err := sin(fakeEnv{}, []value.Value{value.FromMatrix(value.NewMatrix(1, 1))}); err == nil {
		t.Fatal("decl1-wrapped functions should reject non-scalar arguments")
	}
}

func TestDecl1WrongArity(t *testing.T) {
	sin := decl1("sin", func(x float64) float64 { return x })
	if _, err := sin(fakeEnv{}, nil); err == nil {
		t.Fatal("decl1-wrapped functions should reject the wrong argument count")
	}
}
