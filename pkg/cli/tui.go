package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the table colors.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Failed  lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Failed:  lipgloss.Color("#ff5f5f"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Header lipgloss.Style
	Cell   lipgloss.Style
	Border lipgloss.Style
	Failed lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Cell:   lipgloss.NewStyle(),
		Border: lipgloss.NewStyle().Foreground(t.Dim),
		Failed: lipgloss.NewStyle().Foreground(t.Failed),
	}
}

// Table is a simple column-aligned table.
type Table struct {
	Styles  Styles
	Headers []string
	Rows    [][]string

	// Highlight, when set, picks rows rendered with the Failed style.
	Highlight func(row []string) bool
}

// NewTable returns a table with the default styles.
func NewTable(headers ...string) Table {
	return Table{Styles: NewStyles(DefaultTheme), Headers: headers}
}

// Append adds a row.
func (t *Table) Append(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render renders the table. Columns grow to fit their widest cell.
func (t Table) Render() string {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, c := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(c))
			}
		}
	}

	var lines []string
	lines = append(lines, t.line(t.Headers, widths, t.Styles.Header))
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("─", w)
	}
	lines = append(lines, t.Styles.Border.Render(strings.Join(sep, "─┼─")))
	for _, row := range t.Rows {
		style := t.Styles.Cell
		if t.Highlight != nil && t.Highlight(row) {
			style = t.Styles.Failed
		}
		lines = append(lines, t.line(row, widths, style))
	}
	return strings.Join(lines, "\n")
}

func (t Table) line(cells []string, widths []int, style lipgloss.Style) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		c := ""
		if i < len(cells) {
			c = cells[i]
		}
		parts[i] = style.Render(c + strings.Repeat(" ", w-lipgloss.Width(c)))
	}
	return strings.Join(parts, t.Styles.Border.Render(" │ "))
}
