package compiler

import "matl/internal/value"

// Assoc is an operator's associativity.
type Assoc int

const (
	Left Assoc = iota
	Right
)

// Operator is a registered operator: arity, associativity, precedence and
// its executor (spec.md §6's plug-in contract). Exactly one of Unary/Binary
// is set, matching Arity.
type Operator struct {
	Arity    int // 1 or 2
	Assoc    Assoc
	Priority int
	Unary    value.UnaryOp
	Binary   value.BinaryOp
}

// AmbigOperator is a symbol that is both prefix and infix (e.g. "-"); the
// lexer tags it AmbigOp and the parser resolves it via the preceding-token
// "expr_end" heuristic (GLOSSARY: Ambiguous operator).
type AmbigOperator struct {
	Prefix *Operator
	Infix  *Operator
}
