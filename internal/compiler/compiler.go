// Package compiler is a single-pass recursive-descent parser fused directly
// with bytecode emission: there is no intermediate AST. Expression parsing
// uses operator-precedence (precedence-climbing) resolution driven by the
// Operator/AmbigOperator descriptors a host registers through the runtime
// facade; control flow is emitted with placeholder jumps that are
// back-patched once their target is known (spec.md §4.4). Grounded on
// original_source/parser.c, re-expressed without setjmp/longjmp (parseAbort
// plays that role) and with locals tracked in an internal/strtable.Table per
// nesting level instead of the original's single reused hash table.
package compiler

import (
	"matl/internal/bytecode"
	"matl/internal/lexer"
	"matl/internal/strtable"
	"matl/internal/trie"
	"matl/internal/value"
)

// MaxArgs bounds both call-site argument lists and function parameter
// lists (spec.md §4.4's explicit resource limit, carried over unchanged).
const MaxArgs = 32

// stopTok is what caused expr (or stmt) to return: the token kind that was
// not consumed, reported back to the caller so it can decide whether that
// was expected in its own grammar position.
type stopTok int

const (
	stopOp stopTok = iota
	stopRBrace
	stopRBracket
	stopComma
	stopSemicolon
	stopEq
	stopColonEq
	stopNonsense
	stopThen
	stopDo
	stopEof
	stopElif
	stopElse
	stopEnd
)

// Compiler holds all state for one Parse call: the lexer, the growing
// instruction buffer every nested function is emitted into, the fix-up
// stacks for break/continue/conditional jumps, and the stack of local
// symbol tables (one per function nesting level, innermost last).
type Compiler struct {
	lex     *lexer.Lexer
	exprEnd bool // true when the last token completed an operand

	chunk []bytecode.Instr

	fixupCond     fixupStack
	fixupBreak    fixupStack
	fixupContinue fixupStack

	locals       []*strtable.Table
	bindVarsFrom int

	line   int // source line of the most recently emitted Quark
	source string
}

// Parse compiles source (attributed to filename in back-traces) into a
// top-level Chunk, using t to resolve operator/keyword symbols. The whole
// program is wrapped in an implicit top-level function so the VM can Call
// it uniformly with every other function, then the entry sequence calls
// it, prints its result and exits (spec.md §4.4; grounded on
// original_source/parser.c:parser_parse).
func Parse(t *trie.Trie, source, filename string) (chunk *bytecode.Chunk, err error) {
	c := &Compiler{
		lex:    lexer.New(source, t),
		source: filename,
	}

	defer func() {
		if r := recover(); r != nil {
			pa, ok := r.(parseAbort)
			if !ok {
				panic(r)
			}
			err = pa.err
		}
	}()

	top := c.funcBegin()
	var s stopTok
	for {
		s = c.stmt()
		if s == stopSemicolon {
			continue
		}
		break
	}
	if s != stopEof {
		c.throwHere("expected end of statement")
	}
	c.funcEnd(top)

	c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.Call, NArgs: 0})
	c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.Print})
	c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.Exit})

	return &bytecode.Chunk{Code: c.chunk, Source: filename}, nil
}

func (c *Compiler) throwAt(tok lexer.Token, msg string) {
	panic(parseAbort{&Error{HasPos: true, Line: tok.Line, Col: tok.Col, Lexeme: tok.Text, Msg: msg}})
}

// throwHere re-scans the token the caller last rolled back to and throws
// positioned at it; used where the caller only has a stopTok, not the
// offending Token, in hand.
func (c *Compiler) throwHere(msg string) {
	c.lex.Rollback()
	tok := c.lex.Next()
	c.throwAt(tok, msg)
}

func (c *Compiler) afterExpr(tok lexer.Token) {
	if !c.exprEnd {
		c.throwAt(tok, "expected an expression")
	}
}

func (c *Compiler) thisIsExpr(tok lexer.Token) {
	if c.exprEnd {
		c.throwAt(tok, "expected an operator or the end of the expression")
	}
}

// emit appends in to the active chunk, first emitting a Quark if line
// differs from the line of the last one emitted (spec.md §4.4: quarks mark
// only "primary" expression-level instructions, not control-flow
// scaffolding — callers of emit are exactly those sites).
func (c *Compiler) emit(line int, in bytecode.Instr) int {
	if line != c.line {
		c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.Quark, Line: line})
		c.line = line
	}
	c.chunk = append(c.chunk, in)
	return len(c.chunk) - 1
}

// bindVars rewrites every Load emitted since the last sweep into a
// LoadFast when its name is bound in the current function's local table
// (spec.md §4.4's "sweep", grounded on original_source/parser.c:bind_vars).
// Free identifiers are left as Load, resolved at runtime against globals.
func (c *Compiler) bindVars() {
	n := len(c.chunk)
	h := c.locals[len(c.locals)-1]
	for i := c.bindVarsFrom; i < n; i++ {
		in := &c.chunk[i]
		if in.Cmd != bytecode.Load {
			continue
		}
		if slot, ok := h.Get(in.Str); ok {
			in.Cmd = bytecode.LoadFast
			in.Index = int(slot)
			in.Str = ""
		}
	}
	c.bindVarsFrom = n
}

// funcBegin opens a new function nesting level: sweeps the Loads emitted
// so far at the enclosing level, pushes a fresh local table, and emits a
// placeholder Function instruction whose counts/offset get patched by
// funcEnd once the body is known.
func (c *Compiler) funcBegin() int {
	if len(c.locals) > 0 {
		c.bindVars()
	}
	c.locals = append(c.locals, strtable.New(2))
	idx := len(c.chunk)
	c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.Function})
	c.bindVarsFrom = len(c.chunk)
	return idx
}

// funcEnd closes the function opened at fnInstr: sweeps its remaining
// Loads, appends the implicit trailing Exit (a function that falls off
// its last statement must still stop rather than run into whatever
// follows it in the shared buffer), and patches the Function
// instruction's local count and FnOffset. The argument count is set
// separately by funcStmt once the parameter list is parsed.
func (c *Compiler) funcEnd(fnInstr int) {
	c.bindVars()
	h := c.locals[len(c.locals)-1]
	nlocals := h.Size()
	c.locals = c.locals[:len(c.locals)-1]

	c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.Exit})

	c.chunk[fnInstr].FnOffset = len(c.chunk) - fnInstr
	c.chunk[fnInstr].FnNLocals = nlocals - c.chunk[fnInstr].FnNArgs

	c.bindVarsFrom = len(c.chunk)
}

// assignment resolves the target of a store: declare binds a new local
// slot (or reuses the slot already bound to name at this level — `:=`
// re-binding an existing local is just a second Put of the same key,
// which strtable.Table answers with the original slot); otherwise `=`
// resolves to an existing local slot if one is bound, and falls back to a
// global Store by name.
func (c *Compiler) assignment(name string, declare bool) bytecode.Instr {
	h := c.locals[len(c.locals)-1]
	if declare {
		slot := h.Put(name, uint32(h.Size()))
		return bytecode.Instr{Cmd: bytecode.StoreFast, Index: int(slot)}
	}
	if slot, ok := h.Get(name); ok {
		return bytecode.Instr{Cmd: bytecode.StoreFast, Index: int(slot)}
	}
	return bytecode.Instr{Cmd: bytecode.Store, Str: name}
}

// row parses one matrix-literal row: a comma-separated run of expressions
// terminated by ';' (more rows follow) or ']' (last row).
func (c *Compiler) row() (width int, last bool) {
	width = 1
	for {
		switch c.expr(-1) {
		case stopComma:
			width++
		case stopSemicolon:
			return width, false
		case stopRBracket:
			return width, true
		default:
			c.throwHere("expected ',', ';' or ']'")
		}
	}
}

// expr parses one expression at minimum binding priority minPriority,
// emitting bytecode as it goes (operator-precedence / precedence-climbing
// resolution — spec.md §4.4). It returns the token kind it stopped on,
// consuming no more than the single lookahead needed to recognize it.
func (c *Compiler) expr(minPriority int) stopTok {
	for {
		c.lex.Mark()
		tok := c.lex.Next()

		switch tok.Kind {
		case lexer.Num:
			c.thisIsExpr(tok)
			sc, ok := value.ParseScalar(tok.Text)
			if !ok {
				c.throwAt(tok, "invalid number literal")
			}
			c.emit(tok.Line, bytecode.Instr{Cmd: bytecode.LoadScalar, Scalar: sc})
			c.exprEnd = true

		case lexer.Str:
			c.thisIsExpr(tok)
			c.emit(tok.Line, bytecode.Instr{Cmd: bytecode.LoadStr, Str: tok.Text})
			c.exprEnd = true

		case lexer.Ident:
			c.thisIsExpr(tok)
			c.emit(tok.Line, bytecode.Instr{Cmd: bytecode.Load, Str: tok.Text})
			c.exprEnd = true

		case lexer.AmbigOp, lexer.Op:
			var op *Operator
			if tok.Kind == lexer.AmbigOp {
				amb, _ := tok.Data.(*AmbigOperator)
				if amb == nil {
					c.throwAt(tok, "operator not registered")
				}
				if c.exprEnd {
					op = amb.Infix
				} else {
					op = amb.Prefix
				}
				if op == nil {
					c.throwAt(tok, "operator cannot be used here")
				}
			} else {
				op, _ = tok.Data.(*Operator)
				if op == nil {
					c.throwAt(tok, "operator not registered")
				}
			}

			isPrefixUnary := op.Arity == 1 && op.Assoc == Right
			if op.Priority < minPriority && !isPrefixUnary {
				c.lex.Rollback()
				return stopOp
			}

			if op.Arity == 1 {
				if op.Assoc == Left {
					c.afterExpr(tok)
					c.emit(tok.Line, bytecode.Instr{Cmd: bytecode.OpUnary, Unary: op.Unary})
				} else {
					c.thisIsExpr(tok)
					s := c.expr(op.Priority)
					c.emit(tok.Line, bytecode.Instr{Cmd: bytecode.OpUnary, Unary: op.Unary})
					if s != stopOp {
						return s
					}
					c.exprEnd = true
				}
			} else {
				c.afterExpr(tok)
				c.exprEnd = false
				bumped := op.Priority
				if op.Assoc == Left {
					bumped++
				}
				s := c.expr(bumped)
				c.emit(tok.Line, bytecode.Instr{Cmd: bytecode.OpBinary, Binary: op.Binary})
				if s != stopOp {
					return s
				}
				c.exprEnd = true
			}

		case lexer.LBrace:
			if c.exprEnd {
				c.lex.Mark()
				nargs := 0
				if peek := c.lex.Next(); peek.Kind == lexer.RBrace {
					// empty argument list
				} else {
					c.lex.Rollback()
					nargs = 1
					c.exprEnd = false
					for {
						s := c.expr(-1)
						if s == stopRBrace {
							break
						}
						if s == stopComma {
							nargs++
							if nargs > MaxArgs {
								c.throwHere("too many call arguments")
							}
							continue
						}
						c.throwHere("expected ',' or ')'")
					}
				}
				c.emit(tok.Line, bytecode.Instr{Cmd: bytecode.Call, NArgs: nargs})
				c.exprEnd = true
			} else {
				if c.expr(-1) != stopRBrace {
					c.throwHere("expected ')'")
				}
				c.exprEnd = true
			}

		case lexer.LBracket:
			if c.exprEnd {
				nindices := 1
				c.exprEnd = false
				for {
					s := c.expr(-1)
					if s == stopRBracket {
						break
					}
					if s == stopComma {
						nindices++
						continue
					}
					c.throwHere("expected ',' or ']'")
				}
				if nindices > 2 {
					c.throwAt(tok, "at most two indices are allowed")
				}
				c.emit(tok.Line, bytecode.Instr{Cmd: bytecode.LoadAt, NIndices: uint(nindices)})
				c.exprEnd = true
			} else {
				var height, width int
				c.lex.Mark()
				if peek := c.lex.Next(); peek.Kind == lexer.RBracket {
					height, width = 0, 0
				} else {
					c.lex.Rollback()
					c.exprEnd = false
					height = 1
					w, done := c.row()
					width = w
					for !done {
						cw, d := c.row()
						if cw != width {
							c.throwHere("wrong row length")
						}
						done = d
						height++
					}
				}
				c.emit(tok.Line, bytecode.Instr{Cmd: bytecode.Matrix, Height: uint(height), Width: uint(width)})
				c.exprEnd = true
			}

		case lexer.Comma:
			c.afterExpr(tok)
			c.exprEnd = false
			return stopComma

		case lexer.Semicolon:
			c.afterExpr(tok)
			c.exprEnd = false
			return stopSemicolon

		case lexer.RBrace:
			c.afterExpr(tok)
			return stopRBrace

		case lexer.RBracket:
			c.afterExpr(tok)
			return stopRBracket

		case lexer.Eq:
			c.afterExpr(tok)
			c.exprEnd = false
			return stopEq

		case lexer.ColonEq:
			c.afterExpr(tok)
			c.exprEnd = false
			return stopColonEq

		case lexer.KwThen:
			c.afterExpr(tok)
			c.exprEnd = false
			return stopThen

		case lexer.KwDo:
			c.afterExpr(tok)
			c.exprEnd = false
			return stopDo

		case lexer.Eof:
			c.afterExpr(tok)
			return stopEof

		case lexer.KwElif:
			c.afterExpr(tok)
			c.exprEnd = false
			return stopElif

		case lexer.KwElse:
			c.afterExpr(tok)
			c.exprEnd = false
			return stopElse

		case lexer.KwEnd:
			c.afterExpr(tok)
			c.exprEnd = false
			return stopEnd

		case lexer.KwIf, lexer.KwWhile, lexer.KwFor, lexer.KwBreak, lexer.KwContinue,
			lexer.KwFu, lexer.KwReturn, lexer.KwExit, lexer.Bar:
			c.afterExpr(tok)
			return stopNonsense

		case lexer.Error:
			c.throwAt(tok, tok.Data.(string))

		default:
			c.throwAt(tok, "unexpected token")
		}
	}
}
