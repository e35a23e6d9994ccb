package tui

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table is a titled grid of strings.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string

	// Footer is an optional last row, rendered bold (a totals line).
	Footer []string

	// Numeric lists the column indexes that are right-aligned.
	Numeric []int
}

// Render writes t to w. Styled output uses rounded borders and color; plain
// output is one tab-separated line per row for scripts.
func (t *Table) Render(w io.Writer, styled bool) error {
	if styled {
		return t.renderStyled(w)
	}
	return t.renderPlain(w)
}

func (t *Table) renderPlain(w io.Writer) error {
	var b strings.Builder
	if t.Title != "" {
		b.WriteString(t.Title)
		b.WriteByte('\n')
	}
	writeLine := func(cells []string) {
		b.WriteString(strings.Join(cells, "\t"))
		b.WriteByte('\n')
	}
	if len(t.Headers) > 0 {
		writeLine(t.Headers)
	}
	for _, row := range t.Rows {
		writeLine(row)
	}
	if len(t.Footer) > 0 {
		writeLine(t.Footer)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (t *Table) renderStyled(w io.Writer) error {
	rows := t.Rows
	if len(t.Footer) > 0 {
		rows = append(slices.Clone(rows), t.Footer)
	}
	footerRow := -1
	if len(t.Footer) > 0 {
		footerRow = len(rows) - 1
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(BorderStyle).
		Headers(t.Headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			var s lipgloss.Style
			switch {
			case row == table.HeaderRow:
				return HeaderStyle
			case row == footerRow:
				s = TotalStyle
			case slices.Contains(t.Numeric, col):
				s = NumberStyle
			default:
				s = CellStyle
			}
			if slices.Contains(t.Numeric, col) {
				s = s.Align(lipgloss.Right)
			}
			return s
		})

	var out string
	if t.Title != "" {
		out = TitleStyle.Render(t.Title) + "\n"
	}
	out += tbl.String()
	_, err := fmt.Fprintln(w, out)
	return err
}
