package stdlib

import (
	"fmt"
	"testing"

	"matl/internal/value"
)

type fakeEnv struct{}

func (fakeEnv) Throwf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

func mustScalar(t *testing.T, v value.Value, err error) float64 {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != value.KindScalar {
		t.Fatalf("result kind = %v, want scalar", v.Kind)
	}
	return v.Scalar
}

func TestPlusScalars(t *testing.T) {
	got := mustScalar(t, plus(fakeEnv{}, value.Scalar(2), value.Scalar(3)))
	if got != 5 {
		t.Fatalf("2+3 = %v, want 5", got)
	}
}

func TestPlusMismatchedKindsFails(t *testing.T) {
	_, err := plus(fakeEnv{}, value.Scalar(1), value.FromString(value.NewString([]byte("x"))))
	if err == nil {
		t.Fatal("adding a scalar and a string should fail")
	}
}

func TestMatrixAddUnconformable(t *testing.T) {
	a := value.FromMatrix(value.NewMatrix(2, 2))
	b := value.FromMatrix(value.NewMatrix(3, 3))
	if _, err := plus(fakeEnv{}, a, b); err == nil {
		t.Fatal("adding matrices of different shape should fail")
	}
}

func TestMulTrueProduct(t *testing.T) {
	a := value.NewMatrix(2, 2)
	copy(a.Elems, []float64{1, 2, 3, 4})
	b := value.NewMatrix(2, 2)
	copy(b.Elems, []float64{5, 6, 7, 8})

	result, err := mul(fakeEnv{}, value.FromMatrix(a), value.FromMatrix(b))
	if err != nil {
		t.Fatalf("mul: %v", err)
	}
	want := []float64{19, 22, 43, 50}
	for i, w := range want {
		if result.Mat.Elems[i] != w {
			t.Fatalf("product elems = %v, want %v", result.Mat.Elems, want)
		}
	}
}

func TestMulScaleByScalar(t *testing.T) {
	m := value.NewMatrix(1, 3)
	copy(m.Elems, []float64{1, 2, 3})
	result, err := mul(fakeEnv{}, value.Scalar(2), value.FromMatrix(m))
	if err != nil {
		t.Fatalf("mul: %v", err)
	}
	want := []float64{2, 4, 6}
	for i, w := range want {
		if result.Mat.Elems[i] != w {
			t.Fatalf("scaled elems = %v, want %v", result.Mat.Elems, want)
		}
	}
}

func TestUminusNegatesScalarAndMatrix(t *testing.T) {
	if got := mustScalar(t, uminus(fakeEnv{}, value.Scalar(4))); got != -4 {
		t.Fatalf("-4 computed as %v", got)
	}
	m := value.NewMatrix(1, 2)
	copy(m.Elems, []float64{1, -2})
	result, err := uminus(fakeEnv{}, value.FromMatrix(m))
	if err != nil {
		t.Fatalf("uminus: %v", err)
	}
	if result.Mat.Elems[0] != -1 || result.Mat.Elems[1] != 2 {
		t.Fatalf("negated elems = %v, want [-1 2]", result.Mat.Elems)
	}
}

func TestDivAndModRequireScalars(t *testing.T) {
	if _, err := div(fakeEnv{}, value.FromMatrix(value.NewMatrix(1, 1)), value.Scalar(2)); err == nil {
		t.Fatal("dividing a matrix should fail")
	}
	got := mustScalar(t, mod(fakeEnv{}, value.Scalar(7), value.Scalar(3)))
	if got != 1 {
		t.Fatalf("7%%3 = %v, want 1", got)
	}
}

func TestComparisonOperators(t *testing.T) {
	lt := compare("<", func(x, y float64) bool { return x < y })
	if got := mustScalar(t, lt(fakeEnv{}, value.Scalar(1), value.Scalar(2))); got != 1 {
		t.Fatalf("1<2 = %v, want 1 (true)", got)
	}
	if got := mustScalar(t, lt(fakeEnv{}, value.Scalar(2), value.Scalar(1))); got != 0 {
		t.Fatalf("2<1 = %v, want 0 (false)", got)
	}
}

func TestEqualityByKind(t *testing.T) {
	if got := mustScalar(t, eq(fakeEnv{}, value.Scalar(1), value.Scalar(1))); got != 1 {
		t.Fatal("1 == 1 should be true")
	}
	if got := mustScalar(t, eq(fakeEnv{}, value.Scalar(1), value.FromString(value.NewString([]byte("1"))))); got != 0 {
		t.Fatal("a scalar and a string should never compare equal")
	}
	s1 := value.FromString(value.NewString([]byte("hi")))
	s2 := value.FromString(value.NewString([]byte("hi")))
	if got := mustScalar(t, eq(fakeEnv{}, s1, s2)); got != 1 {
		t.Fatal("equal strings should compare equal by value")
	}
}

func TestLogicalOperators(t *testing.T) {
	if got := mustScalar(t, and(fakeEnv{}, value.Scalar(1), value.Scalar(0))); got != 0 {
		t.Fatal("1 && 0 should be false")
	}
	if got := mustScalar(t, or(fakeEnv{}, value.Scalar(0), value.Scalar(1))); got != 1 {
		t.Fatal("0 || 1 should be true")
	}
	if got := mustScalar(t, not(fakeEnv{}, value.Scalar(0))); got != 1 {
		t.Fatal("!0 should be true")
	}
}
