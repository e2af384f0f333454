package repl

import (
	"os"

	"github.com/mattn/go-isatty"
)

// isTerminal reports whether f is a character device a human is watching,
// as opposed to a pipe or redirected file — mattn/go-isatty wraps the
// platform ioctl (TIOCGETA/GetConsoleMode) rather than reinventing it.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
