package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/johan-st/sqlbrowse/internal/session"
)

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 || a.height == 0 {
		return ""
	}
	if a.width < minWidth || a.height < minHeight {
		return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center,
			errorStyle.Render(fmt.Sprintf("Terminal too small\nMin: %dx%d", minWidth, minHeight)))
	}

	if a.showHelp {
		return a.renderHelp()
	}

	switch {
	case a.snapshot.State == session.Failed && !a.opening:
		return a.withPrompt(a.renderFailure)
	case a.snapshot.State != session.Connected:
		return a.withPrompt(func(height int) string {
			return lipgloss.Place(a.width, height, lipgloss.Center, lipgloss.Center,
				dimItemStyle.Render("Opening "+a.snapshot.Path+"…"))
		})
	}

	st := a.coord.State()
	container := a.coord.ContainerHeight()

	var grid string
	switch a.route {
	case RouteContent:
		grid = renderPane(a.renderContent(), st.GridWidth, container, a.gridTitle(), a.focus == FocusGrid)
	case RouteStructure:
		grid = renderPane(a.renderStructure(), st.GridWidth, container, a.gridTitle(), a.focus == FocusGrid)
	case RouteQuery:
		grid = a.queryView.View()
	}
	sidebar := renderPane(a.renderSidebar(container-2), st.SidebarWidth, container, "Tables", a.focus == FocusSidebar)

	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n")
	b.WriteString(a.renderTabs())
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, sidebar, grid))
	b.WriteString("\n")
	b.WriteString(a.renderStatusBar())
	return b.String()
}

// withPrompt renders a full screen body and keeps the last row for the
// status bar, so the open prompt stays usable.
func (a *App) withPrompt(body func(height int) string) string {
	return body(a.height-1) + "\n" + a.renderStatusBar()
}

func (a *App) gridTitle() string {
	if sel := a.snapshot.Selected; sel != nil {
		return a.route.String() + " · " + sel.Name
	}
	return a.route.String()
}

func (a *App) renderHeader() string {
	s := a.snapshot

	left := headerLabelStyle.Render(s.Dialect) + " " + statusValueStyle.Render(s.DatabaseName)
	if s.Selected != nil {
		left += dimItemStyle.Render(" › ") + statusValueStyle.Render(s.Selected.Name)
	}

	var right []string
	if s.Version != "" {
		right = append(right, "v"+strings.TrimPrefix(s.Version, "v"))
	}
	if a.fileSize > 0 {
		right = append(right, humanize.Bytes(uint64(a.fileSize)))
	}
	if a.cfg.Database.ReadOnly {
		right = append(right, "read-only")
	}
	right = append(right, s.State.String())

	return spread(headerStyle, a.width, left, dimItemStyle.Render(strings.Join(right, " · ")))
}

func (a *App) renderTabs() string {
	routes := []Route{RouteContent, RouteStructure, RouteQuery}
	tabs := make([]string, len(routes))
	for i, r := range routes {
		label := fmt.Sprintf("%d %s", i+1, r)
		if r == a.route {
			tabs[i] = activeTabStyle.Render(label)
		} else {
			tabs[i] = tabStyle.Render(label)
		}
	}
	return lipgloss.NewStyle().MaxWidth(a.width).Render(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
}

// sidebarOffset is the first visible table so that the cursor stays in view.
func (a *App) sidebarOffset() int {
	visible := max(a.coord.ContainerHeight()-2, 1)
	return max(a.cursor-visible+1, 0)
}

func (a *App) renderSidebar(visible int) string {
	if len(a.snapshot.Tables) == 0 {
		return dimItemStyle.Render("No tables")
	}

	width := max(a.coord.State().SidebarWidth-5, 1)
	offset := a.sidebarOffset()
	end := min(offset+max(visible, 1), len(a.snapshot.Tables))

	lines := make([]string, 0, end-offset)
	for i := offset; i < end; i++ {
		name := truncate(a.snapshot.Tables[i].Name, width-2)
		if i == a.cursor {
			lines = append(lines, selectedItemStyle.Render("> "+name))
		} else {
			lines = append(lines, normalItemStyle.Render("  "+name))
		}
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderContent() string {
	header := statusLine(a.content, "Select a table")
	m := a.content.Result()
	if m == nil {
		return header
	}
	if len(m.Rows) == 0 {
		return header + "\n" + dimItemStyle.Render("No rows")
	}
	return header + "\n" + a.contentTable.View()
}

func (a *App) renderStructure() string {
	if a.structureErr != nil {
		return errorStyle.Render(a.structureErr.Error())
	}
	st := a.structure
	if st == nil {
		return dimItemStyle.Render("Loading...")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Rows: %s\n\n", humanize.Comma(st.RowCount)))

	nameW, typeW := 6, 4
	for _, col := range st.Columns {
		nameW = max(nameW, len(col.Name))
		typeW = max(typeW, len(col.Type))
	}

	b.WriteString(sectionTitleStyle.Render("Columns"))
	b.WriteString("\n")
	b.WriteString(tableHeaderStyle.Render(fmt.Sprintf("%-*s  %-*s  PK  NotNull  Default", nameW, "Column", typeW, "Type")))
	b.WriteString("\n")
	for _, col := range st.Columns {
		pk := "  "
		if col.PrimaryKey > 0 {
			pk = "✓ "
		}
		nn := "       "
		if col.NotNull {
			nn = "✓      "
		}
		def := ""
		if col.DefaultValue.Valid {
			def = col.DefaultValue.String
		}
		b.WriteString(fmt.Sprintf("%-*s  %-*s  %s  %s  %s\n", nameW, col.Name, typeW, col.Type, pk, nn, def))
	}

	if len(st.Indexes) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionTitleStyle.Render("Indexes"))
		b.WriteString("\n")
		for _, idx := range st.Indexes {
			line := fmt.Sprintf("%s (%s)", idx.Name, strings.Join(idx.Columns, ", "))
			if idx.Unique {
				line += " unique"
			}
			b.WriteString(line + "\n")
		}
	}

	if len(st.ForeignKeys) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionTitleStyle.Render("Foreign keys"))
		b.WriteString("\n")
		for _, fk := range st.ForeignKeys {
			line := fmt.Sprintf("%s → %s.%s", fk.From, fk.Table, fk.To)
			if fk.OnDelete != "" && fk.OnDelete != "NO ACTION" {
				line += " on delete " + strings.ToLower(fk.OnDelete)
			}
			b.WriteString(line + "\n")
		}
	}

	if len(st.ReferencedBy) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionTitleStyle.Render("Referenced by"))
		b.WriteString("\n")
		for _, r := range st.ReferencedBy {
			b.WriteString(fmt.Sprintf("%s.%s → %s\n", r.Table, r.From, r.To))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func (a *App) renderStatusBar() string {
	if a.prompting {
		return statusBarStyle.Width(a.width).Render(a.prompt.View())
	}

	left := []string{titleStyle.Render("sqlbrowse")}
	switch a.route {
	case RouteContent:
		left = append(left, pipelineBadge(a.content.Status().String(), a.content.Latency()))
	case RouteQuery:
		p := a.queryView.Pipeline()
		left = append(left, pipelineBadge(p.Status().String(), p.Latency()))
	}

	var right []string
	if a.notice != "" {
		if a.noticeErr {
			right = append(right, errorStyle.Render(a.notice))
		} else {
			right = append(right, successStyle.Render(a.notice))
		}
	}
	if a.logCounts != nil {
		if warn, errs := a.logCounts(); warn+errs > 0 {
			right = append(right, statusKeyStyle.Render(fmt.Sprintf("⚠ %d/%d", warn, errs)))
		}
	}
	right = append(right, dimItemStyle.Render("?:help q:quit"))

	return spread(statusBarStyle, a.width, strings.Join(left, " "), strings.Join(right, " "))
}

func pipelineBadge(status string, latency time.Duration) string {
	s := dimItemStyle.Render(status)
	if latency > 0 {
		s += dimItemStyle.Render(" ~" + latency.Round(time.Millisecond).String())
	}
	return s
}

// spread renders left and right aligned content on one padded line.
func spread(style lipgloss.Style, width int, left, right string) string {
	// -2 for the style's horizontal padding
	padding := max(width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	line := left + strings.Repeat(" ", padding) + right
	return style.Width(width).MaxWidth(width).Render(line)
}

func (a *App) renderFailure(height int) string {
	err := a.snapshot.Err
	title := "Session failed"

	var connErr *session.ConnectionError
	var schemaErr *session.SchemaLoadError
	switch {
	case errors.As(err, &connErr):
		title = "Cannot open database"
	case errors.As(err, &schemaErr):
		title = "Cannot load schema"
	}

	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}

	body := titleStyle.Render(title) + "\n\n" +
		errorStyle.Render(detail) + "\n\n" +
		dimItemStyle.Render(a.snapshot.Path) + "\n\n" +
		helpDescStyle.Render("o: open another file   r: retry   q: quit")

	modal := errorModalStyle.Width(min(a.width-4, 80)).Render(body)
	return lipgloss.Place(a.width, height, lipgloss.Center, lipgloss.Center, modal)
}

func (a *App) renderHelp() string {
	var b strings.Builder
	for _, group := range a.keys.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(helpKeyStyle.Render(fmt.Sprintf("%-10s", h.Key)))
			b.WriteString(helpDescStyle.Render(h.Desc))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(dimItemStyle.Render("Press ? or Esc to close"))

	modal := modalStyle.Render(titleStyle.Render("Help") + "\n\n" + b.String())
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, modal)
}
