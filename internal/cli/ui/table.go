package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#2E86DE")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)
)

// Table is a list of rows under a header line.
type Table struct {
	Headers []string
	Rows    [][]string
}

// NewTable creates a new table
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers}
}

// AddRow adds a row; cells beyond the header count are ignored.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

func (t *Table) widths() []int {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}
	return widths
}

// Render renders the table with terminal styling.
func (t *Table) Render() string {
	if len(t.Headers) == 0 {
		return ""
	}
	widths := t.widths()

	var sb strings.Builder
	cells := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		cells[i] = headerStyle.Render(padRight(h, widths[i]))
	}
	sb.WriteString(strings.Join(cells, " "))
	sb.WriteString("\n")

	for _, row := range t.Rows {
		cells = cells[:0]
		for i := range t.Headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells = append(cells, cellStyle.Render(padRight(cell, widths[i])))
		}
		sb.WriteString(strings.Join(cells, " "))
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderSimple renders a plain pipe table, for logs and non-terminals.
func (t *Table) RenderSimple() string {
	if len(t.Headers) == 0 {
		return ""
	}
	widths := t.widths()

	var sb strings.Builder
	writeRow := func(row []string) {
		sb.WriteString("|")
		for i := range t.Headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			sb.WriteString(" " + padRight(cell, widths[i]) + " |")
		}
		sb.WriteString("\n")
	}

	writeRow(t.Headers)
	sb.WriteString("|")
	for _, w := range widths {
		sb.WriteString(strings.Repeat("-", w+2) + "|")
	}
	sb.WriteString("\n")
	for _, row := range t.Rows {
		writeRow(row)
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// PrintTable prints a styled table to Out.
func PrintTable(t *Table) {
	fmt.Fprint(Out, t.Render())
}
