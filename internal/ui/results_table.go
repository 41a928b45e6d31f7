package ui

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// ColumnDef sizes one column of a ResultsTable. Columns with a zero Ratio
// are fixed at MinWidth.
type ColumnDef struct {
	Name     string
	Ratio    float64 // share of the width left after fixed columns
	MinWidth int
	MaxWidth int // 0 = no limit
	Style    lipgloss.Style
}

// ResultRow is one numbered row. The number is rendered by the table.
type ResultRow struct {
	Num   int
	Cells []string
}

// ResultsTable renders numbered rows sized to the terminal, with a muted
// rule between rows.
type ResultsTable struct {
	display *DisplayContext
	columns []ColumnDef
	rows    []ResultRow
}

const (
	resultsIndent = 2
	resultsGap    = 2
	numWidth      = 4
)

var (
	colEntity = ColumnDef{Name: "entity", Ratio: 0.45, MinWidth: 24, MaxWidth: 80}
	colMeta   = ColumnDef{Name: "meta", Ratio: 0.25, MinWidth: 15, MaxWidth: 40, Style: Muted}
	colFile   = ColumnDef{Name: "file", Ratio: 0.30, MinWidth: 14, MaxWidth: 60, Style: Muted}
)

// Layouts after the number column.
var (
	// SearchLayout: entity, matched field and score, file.
	SearchLayout = []ColumnDef{colEntity, colMeta, colFile}

	// ReferenceLayout: other entity, field path, file.
	ReferenceLayout = []ColumnDef{colEntity, colMeta, colFile}
)

// NewResultsTable creates a table with a number column followed by columns.
func NewResultsTable(display *DisplayContext, columns []ColumnDef) *ResultsTable {
	return &ResultsTable{display: display, columns: columns}
}

// AddRow appends a row.
func (t *ResultsTable) AddRow(row ResultRow) {
	t.rows = append(t.rows, row)
}

// widths distributes the terminal width over the flexible columns.
func (t *ResultsTable) widths() []int {
	widths := make([]int, len(t.columns))
	used := resultsIndent + numWidth + resultsGap*len(t.columns)
	var ratio float64
	for i, c := range t.columns {
		if c.Ratio == 0 {
			widths[i] = c.MinWidth
			used += c.MinWidth
			continue
		}
		ratio += c.Ratio
	}

	avail := t.display.TermWidth - used
	if avail < 0 {
		avail = 0
	}
	for i, c := range t.columns {
		if c.Ratio == 0 {
			continue
		}
		w := int(float64(avail) * c.Ratio / ratio)
		if w < c.MinWidth {
			w = c.MinWidth
		}
		if c.MaxWidth > 0 && w > c.MaxWidth {
			w = c.MaxWidth
		}
		widths[i] = w
	}
	return widths
}

// Render returns the table, or "" when there are no rows.
func (t *ResultsTable) Render() string {
	if len(t.rows) == 0 {
		return ""
	}
	widths := t.widths()
	maxNum := 0
	for _, r := range t.rows {
		if r.Num > maxNum {
			maxNum = r.Num
		}
	}

	rows := make([][]string, len(t.rows))
	for i, r := range t.rows {
		row := make([]string, len(t.columns)+1)
		row[0] = FormatRowNum(r.Num, maxNum)
		copy(row[1:], r.Cells)
		rows[i] = row
	}

	tbl := table.New().
		Border(lipgloss.Border{Middle: "─", Top: "─", Bottom: "─"}).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderRow(true).
		BorderStyle(Muted).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return Muted.Width(numWidth).Align(lipgloss.Right).PaddingRight(resultsGap)
			}
			c := t.columns[col-1]
			style := c.Style.Width(widths[col-1])
			if col < len(t.columns) {
				style = style.PaddingRight(resultsGap)
			}
			return style
		}).
		Rows(rows...)

	return lipgloss.NewStyle().MarginLeft(resultsIndent).Render(tbl.Render())
}

// FormatRowNum right-aligns num to the width of maxNum (at least two).
func FormatRowNum(num, maxNum int) string {
	width := len(strconv.Itoa(maxNum))
	if width < 2 {
		width = 2
	}
	s := strconv.Itoa(num)
	for len(s) < width {
		s = " " + s
	}
	return s
}
