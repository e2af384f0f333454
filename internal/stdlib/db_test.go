package stdlib

import (
	"testing"

	"matl/internal/value"
)

func strVal(s string) value.Value { return value.FromString(value.NewString([]byte(s))) }

func TestDbOpenQueryExecClose(t *testing.T) {
	handle := "handle-for-test"
	defer dbCloseBuiltin(fakeEnv{}, []value.Value{strVal(handle)})

	if _, err := dbOpenBuiltin(fakeEnv{}, []value.Value{strVal(handle), strVal("sqlite3"), strVal(":memory:")}); err != nil {
		t.Fatalf("DbOpen: %v", err)
	}

	ddl := "create table items (id integer, qty integer)"
	if _, err := dbExecBuiltin(fakeEnv{}, []value.Value{strVal(handle), strVal(ddl)}); err != nil {
		t.Fatalf("DbExec (create table): %v", err)
	}

	insert := "insert into items (id, qty) values (1, 10), (2, 20)"
	result, err := dbExecBuiltin(fakeEnv{}, []value.Value{strVal(handle), strVal(insert)})
	if err != nil {
		t.Fatalf("DbExec (insert): %v", err)
	}
	if result.Scalar != 2 {
		t.Fatalf("rows affected = %v, want 2", result.Scalar)
	}

	query := "select id, qty from items order by id"
	rows, err := dbQueryBuiltin(fakeEnv{}, []value.Value{strVal(handle), strVal(query)})
	if err != nil {
		t.Fatalf("DbQuery: %v", err)
	}
	if rows.Mat.Height != 2 || rows.Mat.Width != 2 {
		t.Fatalf("result matrix dims = %dx%d, want 2x2", rows.Mat.Height, rows.Mat.Width)
	}
	want := []float64{1, 10, 2, 20}
	for i, w := range want {
		if rows.Mat.Elems[i] != w {
			t.Fatalf("result matrix = %v, want %v", rows.Mat.Elems, want)
		}
	}
}

func TestDbQueryRowReturnsString(t *testing.T) {
	handle := "handle-for-row-test"
	defer dbCloseBuiltin(fakeEnv{}, []value.Value{strVal(handle)})

	if _, err := dbOpenBuiltin(fakeEnv{}, []value.Value{strVal(handle), strVal("sqlite3"), strVal(":memory:")}); err != nil {
		t.Fatalf("DbOpen: %v", err)
	}
	result, err := dbQueryRowBuiltin(fakeEnv{}, []value.Value{strVal(handle), strVal("select 'hello'")})
	if err != nil {
		t.Fatalf("DbQueryRow: %v", err)
	}
	if string(result.Str.Data) != "hello" {
		t.Fatalf("DbQueryRow = %q, want \"hello\"", result.Str.Data)
	}
}

func TestDbQueryUnknownHandleFails(t *testing.T) {
	if _, err := dbQueryBuiltin(fakeEnv{}, []value.Value{strVal("no-such-handle"), strVal("select 1")}); err == nil {
		t.Fatal("querying an unopened handle should fail")
	}
}
