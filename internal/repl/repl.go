// Package repl implements the interactive prompt described in spec.md §6
// ("-i forces interactive REPL"; "if stdin is a TTY... enter REPL"). Each
// line is fed to the shared runtime.Runtime as its own Execute call, so
// definitions accumulate in the runtime's globals exactly the way
// spec.md §5 describes ("state accumulates in the globals table and in
// the REPL line buffer"). Grounded on the teacher's internal/repl.Start,
// generalized from a fixed vm.NewVM/parser.NewParser pipeline to the
// runtime facade, and given real TTY detection via go-isatty in place of
// the teacher's unconditional REPL entry.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"matl/internal/compiler"
	"matl/internal/runtime"
)

// IsInteractive reports whether f is a terminal worth prompting on,
// matching spec.md §6's selector: "isatty(0) and $TERM not empty/dumb".
func IsInteractive(f *os.File) bool {
	if !isTerminal(f) {
		return false
	}
	term := os.Getenv("TERM")
	return term != "" && term != "dumb"
}

// Run drives an interactive session against rt, reading lines from in and
// writing prompts and error reports to out. Values printed by the program
// itself go to the process's standard output, not to out. It returns after
// in reaches EOF.
func Run(rt *runtime.Runtime, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	lineNo := 0
	for {
		fmt.Fprint(out, ">>> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}

		source := fmt.Sprintf("<repl:%d>", lineNo)
		result := rt.Execute(source, []byte(line))
		switch result.Status {
		case runtime.Ok:
			// output, if any, was already printed by the Print instruction
		case runtime.CompileErrorWithPos:
			ce := result.Err.(*compiler.Error)
			fmt.Fprintf(out, "%s:%d:%d: %s\n", source, ce.Line, ce.Col, ce.Msg)
		case runtime.CompileErrorNoPos:
			fmt.Fprintf(out, "%s: %s\n", source, result.Err)
		case runtime.RuntimeErrorStatus:
			fmt.Fprintf(out, "%s\n", result.Err)
		}
	}
}
