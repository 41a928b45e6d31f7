package ui

import (
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"
)

// DefaultTermWidth is used when stdout is not a terminal or its size is
// unknown.
const DefaultTermWidth = 120

// minTermWidth keeps tables readable in very narrow terminals.
const minTermWidth = 40

// DisplayContext describes where results are printed.
type DisplayContext struct {
	TermWidth int
	IsTTY     bool
}

// NewDisplayContext inspects stdout. COLUMNS overrides the detected width,
// which also sizes output that is piped.
func NewDisplayContext() *DisplayContext {
	fd := os.Stdout.Fd()
	d := &DisplayContext{
		TermWidth: DefaultTermWidth,
		IsTTY:     isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
	if d.IsTTY {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			d.TermWidth = w
		}
	}
	if w := columnsEnv(); w > 0 {
		d.TermWidth = w
	}
	if d.TermWidth < minTermWidth {
		d.TermWidth = minTermWidth
	}
	return d
}

func columnsEnv() int {
	n := 0
	for _, r := range os.Getenv("COLUMNS") {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
