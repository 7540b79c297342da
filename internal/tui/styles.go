package tui

import "github.com/charmbracelet/lipgloss"

// Palette. Light values are used on light terminal backgrounds.
var (
	primaryColor   = lipgloss.AdaptiveColor{Light: "#6D28D9", Dark: "#7C3AED"}
	secondaryColor = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#10B981"}
	accentColor    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	errorColor     = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#EF4444"}
	mutedColor     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6B7280"}
	textColor      = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#F3F4F6"}
	barColor       = lipgloss.AdaptiveColor{Light: "#E5E7EB", Dark: "#1F2937"}
)

var (
	bold = lipgloss.NewStyle().Bold(true)
	bar  = lipgloss.NewStyle().Background(barColor).Foreground(textColor).Padding(0, 1)
)

// Header, tabs and status bar
var (
	headerStyle      = bar
	headerLabelStyle = bold.Foreground(primaryColor)
	tabStyle         = lipgloss.NewStyle().Foreground(mutedColor).Padding(0, 1)
	activeTabStyle   = bold.Foreground(textColor).Background(primaryColor).Padding(0, 1)

	statusBarStyle   = bar
	statusKeyStyle   = bold.Foreground(accentColor)
	statusValueStyle = lipgloss.NewStyle().Foreground(textColor)
	runningStyle     = lipgloss.NewStyle().Foreground(accentColor)
)

// Sidebar entries
var (
	selectedItemStyle = bold.Foreground(primaryColor)
	normalItemStyle   = lipgloss.NewStyle().Foreground(textColor)
	dimItemStyle      = lipgloss.NewStyle().Foreground(mutedColor)
)

// Result grid and structure view
var (
	tableHeaderStyle = bold.Foreground(textColor).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(mutedColor)
	tableCellStyle        = lipgloss.NewStyle().Foreground(textColor).PaddingRight(2)
	tableSelectedRowStyle = bold.Foreground(lipgloss.Color("#F3F4F6")).Background(primaryColor)
	sectionTitleStyle     = bold.Foreground(accentColor)
)

// Pane borders
var (
	borderTitleStyle        = lipgloss.NewStyle().Foreground(mutedColor)
	focusedBorderTitleStyle = bold.Foreground(primaryColor)
)

// Prompt, help, notices and modals
var (
	queryPromptStyle = bold.Foreground(secondaryColor)
	helpKeyStyle     = bold.Foreground(accentColor)
	helpDescStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle       = bold.Foreground(errorColor)
	successStyle     = lipgloss.NewStyle().Foreground(secondaryColor)
	titleStyle       = bold.Foreground(primaryColor)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2)
	errorModalStyle = modalStyle.BorderForeground(errorColor)
)
