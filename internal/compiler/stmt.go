package compiler

import (
	"matl/internal/bytecode"
	"matl/internal/lexer"
)

// endOfStmt requires the next token to terminate a statement (';' or EOF)
// and reports which.
func (c *Compiler) endOfStmt() stopTok {
	tok := c.lex.Next()
	switch tok.Kind {
	case lexer.Semicolon:
		return stopSemicolon
	case lexer.Eof:
		return stopEof
	default:
		c.throwAt(tok, "expected end of statement")
	}
	panic("unreachable")
}

// stmt parses and compiles exactly one statement, returning the stop token
// that ended it (so a block-parsing loop — if/while/for/fu body, or the
// top level — can recognize its own terminator: Elif/Else/End for
// if-bodies, End for while/for/fu bodies, Eof for the top level).
func (c *Compiler) stmt() stopTok {
	c.lex.Mark()
	tok := c.lex.Next()

	switch tok.Kind {
	case lexer.Semicolon:
		return stopSemicolon
	case lexer.Eof:
		return stopEof
	case lexer.KwElif:
		return stopElif
	case lexer.KwElse:
		return stopElse
	case lexer.KwEnd:
		return stopEnd

	case lexer.KwBreak:
		if len(c.fixupBreak) == 0 {
			c.throwAt(tok, "'break' outside of a loop")
		}
		c.fixupBreak.lastPush(len(c.chunk))
		c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.Jump})
		return c.endOfStmt()

	case lexer.KwContinue:
		if len(c.fixupContinue) == 0 {
			c.throwAt(tok, "'continue' outside of a loop")
		}
		c.fixupContinue.lastPush(len(c.chunk))
		c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.Jump})
		return c.endOfStmt()

	case lexer.KwIf:
		return c.ifStmt()

	case lexer.KwWhile:
		return c.whileStmt()

	case lexer.KwFor:
		return c.forStmt()

	case lexer.KwExit:
		c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.Exit})
		return c.endOfStmt()

	case lexer.KwReturn:
		s := c.expr(-1)
		c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.Return})
		switch s {
		case stopSemicolon, stopEof, stopEnd, stopElif, stopElse:
			return s
		default:
			c.throwHere("expected end of statement")
		}

	case lexer.KwFu:
		return c.funcStmt()

	default:
		c.lex.Rollback()
		return c.exprStmt()
	}
	panic("unreachable")
}

// ifStmt parses `if cond then … [elif cond then …]* [else …] end`
// (spec.md §4.4). Each clause's JumpUnless is patched to the start of the
// following clause (or, for the last one with no else, straight to End);
// every clause's trailing "skip to End" Jump is collected in fixupCond and
// patched together once End is known.
func (c *Compiler) ifStmt() stopTok {
	if c.expr(-1) != stopThen {
		c.throwHere("expected 'then'")
	}
	c.fixupCond.push()
	jumpUnless := len(c.chunk)
	c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.JumpUnless})
	elseSeen := false

clauses:
	for {
		var s stopTok
		for {
			s = c.stmt()
			if s != stopSemicolon {
				break
			}
		}
		switch s {
		case stopEnd:
			break clauses
		case stopElif:
			if elseSeen {
				c.throwHere("'elif' after 'else'")
			}
			c.fixupCond.lastPush(len(c.chunk))
			c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.Jump})
			c.chunk[jumpUnless].Offset = len(c.chunk) - jumpUnless
			if c.expr(-1) != stopThen {
				c.throwHere("expected 'then'")
			}
			jumpUnless = len(c.chunk)
			c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.JumpUnless})
		case stopElse:
			if elseSeen {
				c.throwHere("duplicate 'else'")
			}
			c.fixupCond.lastPush(len(c.chunk))
			c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.Jump})
			c.chunk[jumpUnless].Offset = len(c.chunk) - jumpUnless
			jumpUnless = -1
			elseSeen = true
		default:
			c.throwHere("expected 'elif', 'else' or 'end'")
		}
	}

	end := len(c.chunk)
	if jumpUnless != -1 {
		c.chunk[jumpUnless].Offset = end - jumpUnless
	}
	patch(c.chunk, &c.fixupCond, end)
	c.exprEnd = false
	return c.endOfStmt()
}

// whileStmt parses `while cond do … end`. continue re-enters at the
// condition's first instruction (checkPos); break lands past the trailing
// backward jump.
func (c *Compiler) whileStmt() stopTok {
	checkPos := len(c.chunk)
	c.fixupBreak.push()
	c.fixupContinue.push()

	if c.expr(-1) != stopDo {
		c.throwHere("expected 'do'")
	}
	jumpUnless := len(c.chunk)
	c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.JumpUnless})

	var s stopTok
	for {
		s = c.stmt()
		if s != stopSemicolon {
			break
		}
	}
	if s != stopEnd {
		c.throwHere("expected 'end'")
	}

	backPos := len(c.chunk)
	c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.Jump, Offset: checkPos - backPos})

	end := len(c.chunk)
	c.chunk[jumpUnless].Offset = end - jumpUnless
	patch(c.chunk, &c.fixupBreak, end)
	patch(c.chunk, &c.fixupContinue, checkPos)

	c.exprEnd = false
	return c.endOfStmt()
}

// forStmt parses `for var | init ; cond ; step do body end` (spec.md
// §4.4). step is parsed into a separate buffer before the body (so its
// instructions exist before we know where they'll eventually live), then
// spliced in after the body; continue jumps to the splice point so it
// still runs the step before re-checking the condition.
func (c *Compiler) forStmt() stopTok {
	varTok := c.lex.Next()
	if varTok.Kind != lexer.Ident {
		c.throwAt(varTok, "expected a loop variable name")
	}
	if bar := c.lex.Next(); bar.Kind != lexer.Bar {
		c.throwAt(bar, "expected '|'")
	}

	c.fixupBreak.push()
	c.fixupContinue.push()

	if c.expr(-1) != stopSemicolon {
		c.throwHere("expected ';' after loop initializer")
	}
	initStore := c.assignment(varTok.Text, true)
	c.chunk = append(c.chunk, initStore)

	checkPos := len(c.chunk)
	if c.expr(-1) != stopSemicolon {
		c.throwHere("expected ';' after loop condition")
	}
	jumpUnless := len(c.chunk)
	c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.JumpUnless})

	main := c.chunk
	c.chunk = nil
	if c.expr(-1) != stopDo {
		c.throwHere("expected 'do'")
	}
	stepStore := c.assignment(varTok.Text, false)
	c.chunk = append(c.chunk, stepStore)
	step := c.chunk
	c.chunk = main

	var s stopTok
	for {
		s = c.stmt()
		if s != stopSemicolon {
			break
		}
	}
	if s != stopEnd {
		c.throwHere("expected 'end'")
	}

	splicePoint := len(c.chunk)
	c.chunk = append(c.chunk, step...)
	backPos := len(c.chunk)
	c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.Jump, Offset: checkPos - backPos})

	end := len(c.chunk)
	c.chunk[jumpUnless].Offset = end - jumpUnless
	patch(c.chunk, &c.fixupBreak, end)
	patch(c.chunk, &c.fixupContinue, splicePoint)

	c.exprEnd = false
	return c.endOfStmt()
}

// paramlist parses `(name, name, …)` into the innermost (just-opened)
// local table, enforcing MaxArgs, and returns the parameter count.
func (c *Compiler) paramlist() int {
	open := c.lex.Next()
	if open.Kind != lexer.LBrace {
		c.throwAt(open, "expected '('")
	}

	c.lex.Mark()
	if peek := c.lex.Next(); peek.Kind == lexer.RBrace {
		return 0
	}
	c.lex.Rollback()

	h := c.locals[len(c.locals)-1]
	n := 0
	for {
		pt := c.lex.Next()
		if pt.Kind != lexer.Ident {
			c.throwAt(pt, "expected a parameter name")
		}
		n++
		if n > MaxArgs {
			c.throwAt(pt, "too many parameters")
		}
		h.Put(pt.Text, uint32(h.Size()))

		sep := c.lex.Next()
		if sep.Kind == lexer.RBrace {
			return n
		}
		if sep.Kind != lexer.Comma {
			c.throwAt(sep, "expected ',' or ')'")
		}
	}
}

// funcStmt parses `fu name ( params ) body end`, emitting the Function
// instruction into the *enclosing* chunk and finishing with an assignment
// of the resulting function value to name in the enclosing scope.
func (c *Compiler) funcStmt() stopTok {
	nameTok := c.lex.Next()
	if nameTok.Kind != lexer.Ident {
		c.throwAt(nameTok, "expected a function name")
	}

	fnInstr := c.funcBegin()
	nargs := c.paramlist()
	c.chunk[fnInstr].FnNArgs = nargs

	var s stopTok
	for {
		s = c.stmt()
		if s != stopSemicolon {
			break
		}
	}
	if s != stopEnd {
		c.throwHere("expected 'end'")
	}
	c.funcEnd(fnInstr)

	store := c.assignment(nameTok.Text, true)
	c.chunk = append(c.chunk, store)

	c.exprEnd = false
	return c.endOfStmt()
}

// exprStmt parses a bare expression statement, dispatching on its stop
// token: `;`/EOF (or a block's end/elif/else) prints the result, `=` rewrites the just-parsed lvalue
// (Load -> Store/StoreFast, LoadAt -> StoreAt) into a store placed after a
// freshly-parsed RHS, and `:=` does the same but always declares a new
// local slot (spec.md §4.4's final bullet).
func (c *Compiler) exprStmt() stopTok {
	s := c.expr(-1)
	switch s {
	case stopSemicolon, stopEof, stopEnd, stopElif, stopElse:
		c.chunk = append(c.chunk, bytecode.Instr{Cmd: bytecode.Print})
		return s

	case stopEq:
		last := len(c.chunk) - 1
		var store bytecode.Instr
		switch c.chunk[last].Cmd {
		case bytecode.Load:
			store = c.assignment(c.chunk[last].Str, false)
		case bytecode.LoadAt:
			store = bytecode.Instr{Cmd: bytecode.StoreAt, NIndices: c.chunk[last].NIndices}
		default:
			c.throwHere("invalid assignment target")
		}
		c.chunk = c.chunk[:last]
		rs := c.expr(-1)
		c.chunk = append(c.chunk, store)
		switch rs {
		case stopSemicolon, stopEof, stopEnd, stopElif, stopElse:
			return rs
		default:
			c.throwHere("expected end of statement")
		}

	case stopColonEq:
		last := len(c.chunk) - 1
		if c.chunk[last].Cmd != bytecode.Load {
			c.throwHere("':=' target must be a plain variable")
		}
		name := c.chunk[last].Str
		c.chunk = c.chunk[:last]
		rs := c.expr(-1)
		store := c.assignment(name, true)
		c.chunk = append(c.chunk, store)
		switch rs {
		case stopSemicolon, stopEof, stopEnd, stopElif, stopElse:
			return rs
		default:
			c.throwHere("expected end of statement")
		}

	default:
		c.throwHere("expected end of statement")
	}
	panic("unreachable")
}
