package ui

import (
	"github.com/charmbracelet/lipgloss"
	tint "github.com/lrstanley/bubbletint"
)

// Styles contains all the styles used in the TUI
type Styles struct {
	// Base styles
	App lipgloss.Style

	// Tab bar
	TabBar      lipgloss.Style
	TabActive   lipgloss.Style
	TabInactive lipgloss.Style

	// Content area
	ViewTitle lipgloss.Style
	Subtitle  lipgloss.Style

	// Status bar
	StatusBar  lipgloss.Style
	StatusKey  lipgloss.Style
	StatusHelp lipgloss.Style

	// Clock blocks
	ClockBlock   lipgloss.Style
	ClockValue   lipgloss.Style
	ClockLabel   lipgloss.Style
	ClockCaption lipgloss.Style

	// Bucket list
	ItemSelected lipgloss.Style
	ItemNormal   lipgloss.Style
	ItemIndex    lipgloss.Style
	ItemCheck    lipgloss.Style
	ItemContent  lipgloss.Style
	ItemDone     lipgloss.Style
	ItemDate     lipgloss.Style

	// Stats
	StatLabel lipgloss.Style
	StatValue lipgloss.Style

	// Input
	Input        lipgloss.Style
	InputFocused lipgloss.Style

	// Dialog
	Dialog      lipgloss.Style
	DialogTitle lipgloss.Style

	// Errors and warnings
	Error   lipgloss.Style
	Warning lipgloss.Style
	Success lipgloss.Style
}

// palette maps semantic roles to colors.
type palette struct {
	primary, secondary, accent, muted lipgloss.TerminalColor
	success, warning, err             lipgloss.TerminalColor
	fg, bg, highlight                 lipgloss.TerminalColor
}

// DefaultStyles returns the TUI styles for terminals without a theme.
func DefaultStyles() Styles {
	return newStyles(palette{
		primary:   lipgloss.Color("212"), // Pink
		secondary: lipgloss.Color("39"),  // Cyan
		accent:    lipgloss.Color("99"),  // Purple
		muted:     lipgloss.Color("240"), // Gray
		success:   lipgloss.Color("82"),  // Green
		warning:   lipgloss.Color("214"), // Orange
		err:       lipgloss.Color("196"), // Red
		fg:        lipgloss.Color("252"),
		bg:        lipgloss.Color("236"),
		highlight: lipgloss.Color("237"),
	})
}

// NewStylesFromRegistry creates a Styles struct using colors from a bubbletint registry.
// Primary is the theme's purple, secondary its cyan and accent its bright
// purple; muted elements use bright black.
func NewStylesFromRegistry(r *tint.Registry) Styles {
	return newStyles(palette{
		primary:   r.Purple(),
		secondary: r.Cyan(),
		accent:    r.BrightPurple(),
		muted:     r.BrightBlack(),
		success:   r.Green(),
		warning:   r.Yellow(),
		err:       r.Red(),
		fg:        r.Fg(),
		bg:        r.Bg(),
		highlight: r.BrightBlack(),
	})
}

func newStyles(p palette) Styles {
	return Styles{
		App: lipgloss.NewStyle().Padding(1, 2),

		TabBar: lipgloss.NewStyle().
			MarginBottom(1).
			BorderBottom(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(p.muted),
		TabActive: lipgloss.NewStyle().
			Foreground(p.primary).
			Bold(true).
			Padding(0, 2),
		TabInactive: lipgloss.NewStyle().
			Foreground(p.muted).
			Padding(0, 2),

		ViewTitle: lipgloss.NewStyle().
			Foreground(p.primary).
			Bold(true).
			MarginBottom(1),
		Subtitle: lipgloss.NewStyle().
			Foreground(p.muted).
			Italic(true),

		StatusBar: lipgloss.NewStyle().
			Foreground(p.fg).
			Background(p.bg).
			Padding(0, 1),
		StatusKey: lipgloss.NewStyle().
			Foreground(p.secondary).
			Bold(true),
		StatusHelp: lipgloss.NewStyle().
			Foreground(p.muted),

		ClockBlock: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.accent).
			Padding(0, 2).
			Align(lipgloss.Center).
			Width(11),
		ClockValue: lipgloss.NewStyle().
			Foreground(p.primary).
			Bold(true),
		ClockLabel: lipgloss.NewStyle().
			Foreground(p.muted),
		ClockCaption: lipgloss.NewStyle().
			Foreground(p.secondary).
			MarginTop(1),

		ItemSelected: lipgloss.NewStyle().
			Background(p.highlight).
			Bold(true),
		ItemNormal: lipgloss.NewStyle(),
		ItemIndex: lipgloss.NewStyle().
			Foreground(p.muted),
		ItemCheck: lipgloss.NewStyle().
			Foreground(p.success),
		ItemContent: lipgloss.NewStyle().
			Foreground(p.fg),
		ItemDone: lipgloss.NewStyle().
			Foreground(p.muted).
			Strikethrough(true),
		ItemDate: lipgloss.NewStyle().
			Foreground(p.secondary),

		StatLabel: lipgloss.NewStyle().
			Foreground(p.muted).
			Width(20),
		StatValue: lipgloss.NewStyle().
			Foreground(p.fg).
			Bold(true),

		Input: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(p.muted).
			Padding(0, 1),
		InputFocused: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(p.primary).
			Padding(0, 1),

		Dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.primary).
			Padding(1, 2).
			Width(50),
		DialogTitle: lipgloss.NewStyle().
			Foreground(p.primary).
			Bold(true).
			MarginBottom(1),

		Error: lipgloss.NewStyle().
			Foreground(p.err),
		Warning: lipgloss.NewStyle().
			Foreground(p.warning),
		Success: lipgloss.NewStyle().
			Foreground(p.success),
	}
}
