package stdlib

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"matl/internal/runtime"
	"matl/internal/value"
)

// dbManager is a small connection pool keyed by a script-chosen handle
// name, so a script can open a connection once and reuse it across
// several DbQuery/DbExec calls (grounded on
// internal/database/database.go's DatabaseModule.Connections map, trimmed
// to the connect/query/close surface — the security-scanning methods
// around it don't correspond to anything this language exposes).
type dbManager struct {
	mu    sync.Mutex
	conns map[string]*sql.DB
}

var databases = &dbManager{conns: make(map[string]*sql.DB)}

// dbOpenBuiltin opens a connection under handle, using driver and dsn
// (DbOpen("h", "sqlite3", "file.db")).
func dbOpenBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return value.Nil, env.Throwf("'DbOpen' expects (handle, driver, dsn)")
	}
	for _, a := range args {
		if a.Kind != value.KindString {
			return value.Nil, env.Throwf("'DbOpen' arguments must all be strings")
		}
	}
	handle := string(args[0].Str.Data)
	driver := string(args[1].Str.Data)
	dsn := string(args[2].Str.Data)

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return value.Nil, env.Throwf("db_open: %s", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return value.Nil, env.Throwf("db_open: %s", err)
	}

	databases.mu.Lock()
	if old, ok := databases.conns[handle]; ok {
		old.Close()
	}
	databases.conns[handle] = conn
	databases.mu.Unlock()

	return value.Nil, nil
}

// dbCloseBuiltin closes and forgets handle.
func dbCloseBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind != value.KindString {
		return value.Nil, env.Throwf("'DbClose' expects a handle string")
	}
	handle := string(args[0].Str.Data)

	databases.mu.Lock()
	conn, ok := databases.conns[handle]
	delete(databases.conns, handle)
	databases.mu.Unlock()

	if !ok {
		return value.Nil, env.Throwf("db_close: unknown handle %q", handle)
	}
	return value.Nil, conn.Close()
}

// dbQueryBuiltin runs a SELECT and returns an h x w matrix of the result
// set, h = row count, w = column count, non-numeric cells coerced to 0
// (matrices are the language's only container, per spec.md §3 — there is
// no string/row-tuple type for ExecuteQuery's map[string]interface{} rows
// to become, so this intrinsic is necessarily numeric-only; string-valued
// result sets should go through DbQueryRow instead).
func dbQueryBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	if len(args) != 2 || args[0].Kind != value.KindString || args[1].Kind != value.KindString {
		return value.Nil, env.Throwf("'DbQuery' expects (handle, query)")
	}
	conn, err := lookupConn(env, args[0])
	if err != nil {
		return value.Nil, err
	}
	query := string(args[1].Str.Data)

	rows, err := conn.Query(query)
	if err != nil {
		return value.Nil, env.Throwf("db_query: %s", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return value.Nil, env.Throwf("db_query: %s", err)
	}
	width := len(cols)

	var flat []float64
	height := 0
	for rows.Next() {
		vals := make([]any, width)
		ptrs := make([]any, width)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return value.Nil, env.Throwf("db_query: %s", err)
		}
		for _, v := range vals {
			flat = append(flat, toScalar(v))
		}
		height++
	}
	if err := rows.Err(); err != nil {
		return value.Nil, env.Throwf("db_query: %s", err)
	}

	m := value.NewMatrix(uint(height), uint(width))
	copy(m.Elems, flat)
	return value.FromMatrix(m), nil
}

// dbQueryRowBuiltin runs a SELECT expected to return exactly one row and
// one column, and returns it as a string (for text-valued lookups that
// dbQueryBuiltin's numeric matrix can't represent).
func dbQueryRowBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	if len(args) != 2 || args[0].Kind != value.KindString || args[1].Kind != value.KindString {
		return value.Nil, env.Throwf("'DbQueryRow' expects (handle, query)")
	}
	conn, err := lookupConn(env, args[0])
	if err != nil {
		return value.Nil, err
	}
	query := string(args[1].Str.Data)

	var s sql.NullString
	if err := conn.QueryRow(query).Scan(&s); err != nil {
		return value.Nil, env.Throwf("db_query_row: %s", err)
	}
	if !s.Valid {
		return value.Nil, nil
	}
	return value.FromString(value.NewString([]byte(s.String))), nil
}

// dbExecBuiltin runs an INSERT/UPDATE/DELETE and returns the affected row
// count as a scalar.
func dbExecBuiltin(env value.Env, args []value.Value) (value.Value, error) {
	if len(args) != 2 || args[0].Kind != value.KindString || args[1].Kind != value.KindString {
		return value.Nil, env.Throwf("'DbExec' expects (handle, statement)")
	}
	conn, err := lookupConn(env, args[0])
	if err != nil {
		return value.Nil, err
	}
	stmt := string(args[1].Str.Data)

	result, err := conn.Exec(stmt)
	if err != nil {
		return value.Nil, env.Throwf("db_exec: %s", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return value.Nil, env.Throwf("db_exec: %s", err)
	}
	return value.Scalar(float64(n)), nil
}

func lookupConn(env value.Env, handle value.Value) (*sql.DB, error) {
	name := string(handle.Str.Data)
	databases.mu.Lock()
	conn, ok := databases.conns[name]
	databases.mu.Unlock()
	if !ok {
		return nil, env.Throwf("no open database connection %q", name)
	}
	return conn, nil
}

// toScalar coerces a driver-returned column value to a float64, the only
// numeric representation matrices carry; non-numeric cells (strings,
// []byte, nil) become 0 rather than failing the whole query.
func toScalar(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	case bool:
		if x {
			return 1
		}
		return 0
	case []byte:
		var f float64
		fmt.Sscanf(string(x), "%g", &f)
		return f
	case string:
		var f float64
		fmt.Sscanf(x, "%g", &f)
		return f
	default:
		return 0
	}
}

// RegisterDatabase installs the Db* intrinsics.
func RegisterDatabase(rt *runtime.Runtime) {
	rt.DefineIntrinsic("DbOpen", dbOpenBuiltin)
	rt.DefineIntrinsic("DbClose", dbCloseBuiltin)
	rt.DefineIntrinsic("DbQuery", dbQueryBuiltin)
	rt.DefineIntrinsic("DbQueryRow", dbQueryRowBuiltin)
	rt.DefineIntrinsic("DbExec", dbExecBuiltin)
}
