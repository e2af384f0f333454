// Package runtime is the C7 facade of spec.md §4.6: it wires a trie, a
// globals table and a VM behind four operations (register, define,
// execute, destroy) and owns them for the lifetime of a session, so a
// REPL's successive inputs see each other's definitions and the host's
// registered operators/intrinsics stay live across calls. Grounded on
// original_source's runtime_t, re-expressed as a Go struct rather than a
// set of free functions closing over process-global state.
package runtime

import (
	"matl/internal/compiler"
	"matl/internal/lexer"
	"matl/internal/trie"
	"matl/internal/value"
	"matl/internal/vm"
)

// Status classifies the outcome of Execute, mirroring spec.md §4.6's
// "Ok | CompileErrorWithPos | CompileError | RuntimeError" result union.
type Status int

const (
	Ok Status = iota
	CompileErrorWithPos
	CompileErrorNoPos
	RuntimeErrorStatus
)

// Result is the outcome of one Execute call.
type Result struct {
	Status Status
	Err    error
}

// Runtime is one long-lived interpreter session: shared trie, globals and
// VM survive across Execute calls (spec.md §4.6, §5 "state accumulates in
// the globals table").
type Runtime struct {
	trie    *trie.Trie
	globals *vm.Globals
	machine *vm.VM
}

// New builds a Runtime with the language's fixed keywords and punctuation
// already registered; a host then layers its operators, ambiguous
// operators and intrinsics on top before calling Execute.
func New() *Runtime {
	t := trie.New()
	for sym, kind := range lexer.DefaultKeywords() {
		t.Insert(sym, kind, nil)
	}
	for sym, kind := range lexer.DefaultPunctuation() {
		t.Insert(sym, kind, nil)
	}
	globals := vm.NewGlobals()
	return &Runtime{trie: t, globals: globals, machine: vm.New(globals)}
}

// RegisterOperator installs a single-meaning operator symbol (spec.md
// §4.6, §6's plug-in contract).
func (r *Runtime) RegisterOperator(symbol string, op *compiler.Operator) {
	r.trie.Insert(symbol, lexer.Op, op)
}

// RegisterAmbiguous installs a symbol usable both prefix and infix (e.g.
// "-"), resolved by the parser's expr_end heuristic.
func (r *Runtime) RegisterAmbiguous(symbol string, prefix, infix *compiler.Operator) {
	r.trie.Insert(symbol, lexer.AmbigOp, &compiler.AmbigOperator{Prefix: prefix, Infix: infix})
}

// RegisterKeyword installs an additional reserved word beyond the fixed
// set DefaultKeywords already registered by New.
func (r *Runtime) RegisterKeyword(symbol string, kind lexer.Kind) {
	r.trie.Insert(symbol, kind, nil)
}

// DefineGlobal adds or replaces a global binding, transferring ownership
// of v to the runtime's globals table.
func (r *Runtime) DefineGlobal(name string, v value.Value) {
	r.globals.Set(name, v)
}

// DefineIntrinsic is a convenience over DefineGlobal for built-in-function
// globals (spec.md §6's "intrinsic" plug-in kind).
func (r *Runtime) DefineIntrinsic(name string, fn value.Builtin) {
	r.globals.Set(name, value.FromBuiltin(fn))
}

// Execute compiles and runs bytes, attributing diagnostics to sourceName
// (spec.md §4.6). A compile error never reaches the VM; a runtime error
// comes back already carrying its back-trace (vm.RuntimeError).
func (r *Runtime) Execute(sourceName string, bytes []byte) Result {
	chunk, err := compiler.Parse(r.trie, string(bytes), sourceName)
	if err != nil {
		if ce, ok := err.(*compiler.Error); ok && ce.HasPos {
			return Result{Status: CompileErrorWithPos, Err: ce}
		}
		return Result{Status: CompileErrorNoPos, Err: err}
	}
	if err := r.machine.Run(chunk); err != nil {
		return Result{Status: RuntimeErrorStatus, Err: err}
	}
	return Result{Status: Ok}
}

// Disassemble compiles bytes and renders its instructions without
// executing them (the CLI's -d flag, spec.md §6 "CLI").
func (r *Runtime) Disassemble(sourceName string, bytes []byte) (string, error) {
	chunk, err := compiler.Parse(r.trie, string(bytes), sourceName)
	if err != nil {
		return "", err
	}
	return compiler.Disassemble(chunk), nil
}

// Destroy releases every live global (spec.md §4.6's "destroyed on
// runtime teardown"). The trie and VM carry no heap-reference-counted
// state of their own and are simply dropped by the caller.
func (r *Runtime) Destroy() {
	for _, name := range r.globals.Names() {
		if v, ok := r.globals.Get(name); ok {
			value.Release(v)
		}
	}
}
