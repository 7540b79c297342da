package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/johan-st/sqlbrowse/internal/query"
)

const (
	minColumnWidth = 6
	maxColumnWidth = 40
	nullText       = "NULL"
)

// truncate cuts s to width display cells, adding an ellipsis when cut.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// cellText renders one cell for the grid. NULL and the empty string stay
// distinguishable.
func cellText(c query.CellValue) string {
	if c.IsNull {
		return nullText
	}
	return strings.ReplaceAll(c.Text(), "\n", "⏎")
}

// rowTSV joins a row with tabs for the clipboard.
func rowTSV(row query.Row) string {
	parts := make([]string, len(row.Values))
	for i, v := range row.Values {
		if v.IsNull {
			parts[i] = ""
			continue
		}
		parts[i] = v.Text()
	}
	return strings.Join(parts, "\t")
}

// resultTable converts a result model to bubbles table columns and rows.
// Column widths follow the widest value, capped so one column cannot take
// the whole grid.
func resultTable(m *query.ResultModel, gridWidth int) ([]table.Column, []table.Row) {
	if m == nil || len(m.Columns) == 0 {
		return []table.Column{}, []table.Row{}
	}

	limit := min(max(gridWidth-4, minColumnWidth), maxColumnWidth)

	widths := make([]int, len(m.Columns))
	for i, name := range m.Columns {
		widths[i] = runewidth.StringWidth(name)
	}
	for _, row := range m.Rows {
		for i, v := range row.Values {
			widths[i] = max(widths[i], runewidth.StringWidth(cellText(v)))
		}
	}

	columns := make([]table.Column, len(m.Columns))
	for i, name := range m.Columns {
		w := min(max(widths[i], minColumnWidth), limit)
		columns[i] = table.Column{Title: truncate(name, w), Width: w}
	}

	rows := make([]table.Row, len(m.Rows))
	for r, row := range m.Rows {
		cells := make(table.Row, len(row.Values))
		for i, v := range row.Values {
			cells[i] = truncate(cellText(v), columns[i].Width)
		}
		rows[r] = cells
	}
	return columns, rows
}

// newResultTable creates an unfocused bubbles table with the app styles.
func newResultTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{}),
		table.WithRows([]table.Row{}),
		table.WithFocused(false),
	)
	t.SetStyles(table.Styles{
		Header:   tableHeaderStyle,
		Cell:     tableCellStyle,
		Selected: tableSelectedRowStyle,
	})
	return t
}

// setTableData replaces the table contents. Rows are cleared before the
// columns change to avoid an index panic in bubbles/table.
func setTableData(t *table.Model, columns []table.Column, rows []table.Row) {
	cursor := t.Cursor()
	t.SetRows([]table.Row{})
	t.SetColumns(columns)
	t.SetRows(rows)
	if cursor >= len(rows) {
		cursor = 0
	}
	t.SetCursor(cursor)
}

// buildBorderTitle builds a top border line with an embedded title.
// width is the total width including border characters.
func buildBorderTitle(width int, title string, focused bool) string {
	border := lipgloss.RoundedBorder()
	borderColor, style := mutedColor, borderTitleStyle
	if focused {
		borderColor, style = primaryColor, focusedBorderTitleStyle
	}
	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	// ╭─ Title ───────╮
	title = truncate(title, max(width-5, 0))
	rendered := style.Render(title)
	remaining := max(width-5-lipgloss.Width(rendered), 0)

	var b strings.Builder
	b.WriteString(borderStyle.Render(border.TopLeft + border.Top))
	b.WriteString(" ")
	b.WriteString(rendered)
	b.WriteString(" ")
	b.WriteString(borderStyle.Render(strings.Repeat(border.Top, remaining)))
	b.WriteString(borderStyle.Render(border.TopRight))
	return b.String()
}

// renderPane renders content in a bordered box of exactly width x height
// cells with the title in the top border. Lines are padded or cut to fit.
func renderPane(content string, width, height int, title string, focused bool) string {
	if width < 5 || height < 2 {
		return blank(width, height)
	}

	border := lipgloss.RoundedBorder()
	borderColor := mutedColor
	if focused {
		borderColor = primaryColor
	}
	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	innerWidth := width - 2
	innerHeight := height - 2

	lines := strings.Split(content, "\n")
	for len(lines) < innerHeight {
		lines = append(lines, "")
	}
	lines = lines[:innerHeight]

	fit := lipgloss.NewStyle().MaxWidth(innerWidth - 1)

	var b strings.Builder
	b.WriteString(buildBorderTitle(width, title, focused))
	for _, line := range lines {
		b.WriteString("\n")
		padded := " " + fit.Render(line)
		if w := lipgloss.Width(padded); w < innerWidth {
			padded += strings.Repeat(" ", innerWidth-w)
		}
		b.WriteString(borderStyle.Render(border.Left))
		b.WriteString(padded)
		b.WriteString(borderStyle.Render(border.Right))
	}
	b.WriteString("\n")
	b.WriteString(borderStyle.Render(border.BottomLeft + strings.Repeat(border.Bottom, innerWidth) + border.BottomRight))
	return b.String()
}

// blank is an empty block of width x height cells.
func blank(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	line := strings.Repeat(" ", width)
	lines := make([]string, height)
	for i := range lines {
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}
