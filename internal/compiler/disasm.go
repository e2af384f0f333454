package compiler

import (
	"fmt"
	"strings"

	"matl/internal/bytecode"
)

// Disassemble renders chunk as one line per instruction, for the CLI's -d
// flag (spec.md §8 "Tooling surface"). It is intentionally line-oriented
// rather than columnar, matching the teacher's plain-text disassembly
// style rather than a padded table.
func Disassemble(chunk *bytecode.Chunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "; %s\n", chunk.Source)
	for i, in := range chunk.Code {
		fmt.Fprintf(&b, "%4d  %s", i, in.Cmd)
		switch in.Cmd {
		case bytecode.LoadScalar:
			fmt.Fprintf(&b, " %g", in.Scalar)
		case bytecode.LoadStr, bytecode.Load, bytecode.Store:
			fmt.Fprintf(&b, " %q", in.Str)
		case bytecode.LoadFast, bytecode.StoreFast:
			fmt.Fprintf(&b, " #%d", in.Index)
		case bytecode.LoadAt, bytecode.StoreAt:
			fmt.Fprintf(&b, " n=%d", in.NIndices)
		case bytecode.Call:
			fmt.Fprintf(&b, " argc=%d", in.NArgs)
		case bytecode.Matrix:
			fmt.Fprintf(&b, " %dx%d", in.Height, in.Width)
		case bytecode.Jump, bytecode.JumpUnless:
			fmt.Fprintf(&b, " -> %d", i+in.Offset)
		case bytecode.Function:
			fmt.Fprintf(&b, " argc=%d locals=%d end=%d", in.FnNArgs, in.FnNLocals, i+in.FnOffset)
		case bytecode.Quark:
			fmt.Fprintf(&b, " line=%d", in.Line)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
