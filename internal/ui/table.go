package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// columnGap separates Table columns.
const columnGap = "  "

// Table aligns plain rows of cells without borders. Widths are measured
// without ANSI styling, so styled cells line up too.
type Table struct {
	rows   [][]string
	widths []int
}

// NewTable creates a table with cols columns. Extra cells are dropped and
// missing ones are left blank.
func NewTable(cols int) *Table {
	return &Table{widths: make([]int, cols)}
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.widths))
	copy(row, cells)
	for i, cell := range row {
		if w := lipgloss.Width(cell); w > t.widths[i] {
			t.widths[i] = w
		}
	}
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// String renders the table, one line per row. The last column is not padded.
func (t *Table) String() string {
	var sb strings.Builder
	for _, row := range t.rows {
		last := len(row) - 1
		for last > 0 && row[last] == "" {
			last--
		}
		for i := 0; i <= last; i++ {
			if i > 0 {
				sb.WriteString(columnGap)
			}
			sb.WriteString(row[i])
			if i < last {
				sb.WriteString(strings.Repeat(" ", t.widths[i]-lipgloss.Width(row[i])))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
