// Package tui provides the Terminal User Interface for mondo.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xolan/mondo/internal/service"
	"github.com/xolan/mondo/internal/tui/ui"
	"github.com/xolan/mondo/internal/tui/views"
)

// Tab represents a view tab
type Tab int

const (
	TabCountdown Tab = iota
	TabTogether
	TabBucket
)

var tabNames = []string{"Countdown", "Together", "Bucket List"}

// Clock view ids, used to route tick messages.
const (
	countdownID = "countdown"
	togetherID  = "together"
)

// Model is the root TUI model
type Model struct {
	ctx      context.Context
	services *service.Services

	// UI state
	activeTab Tab
	width     int
	height    int
	showHelp  bool
	status    ui.StatusMsg

	// View models
	countdownView views.ClockModel
	togetherView  views.ClockModel
	bucketView    views.BucketModel

	// Theme and styles
	themeProvider *ui.ThemeProvider
	styles        ui.Styles
	keys          ui.KeyMap
}

// New creates a new TUI model
func New(ctx context.Context, services *service.Services) Model {
	themeProvider := ui.NewThemeProvider(services.Config.Get().Theme)
	styles := themeProvider.Styles()
	keys := ui.DefaultKeyMap()
	loc := services.Clock.Location()

	countdown, cErr := services.Clock.CountdownSpec()
	together, tErr := services.Clock.TogetherSpec()

	return Model{
		ctx:           ctx,
		services:      services,
		activeTab:     TabCountdown,
		themeProvider: themeProvider,
		styles:        styles,
		keys:          keys,
		countdownView: views.NewClockModel(countdownID, "Countdown", countdown, cErr, loc, styles),
		togetherView:  views.NewClockModel(togetherID, "Together", together, tErr, loc, styles),
		bucketView:    views.NewBucketModel(ctx, services, styles, keys),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.countdownView.Init(),
		m.togetherView.Init(),
		m.bucketView.Init(),
	)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}

		// modal blocks every global key, capturing only character keys
		modal := m.isModal()
		capturing := m.isCapturingKeys()

		switch {
		case key.Matches(msg, m.keys.Quit) && !capturing:
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help) && !capturing:
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Theme) && !capturing:
			return m.cycleTheme()

		case key.Matches(msg, m.keys.NextTab) && !modal:
			m.activeTab = Tab((int(m.activeTab) + 1) % len(tabNames))
			return m, nil

		case key.Matches(msg, m.keys.PrevTab) && !modal:
			m.activeTab = Tab((int(m.activeTab) - 1 + len(tabNames)) % len(tabNames))
			return m, nil

		case key.Matches(msg, m.keys.Tab1) && !capturing:
			m.activeTab = TabCountdown
			return m, nil

		case key.Matches(msg, m.keys.Tab2) && !capturing:
			m.activeTab = TabTogether
			return m, nil

		case key.Matches(msg, m.keys.Tab3) && !capturing:
			m.activeTab = TabBucket
			return m, nil
		}

		m.status = ui.StatusMsg{}
		return m.updateActive(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		contentHeight := m.height - 4 // tabs and status bar
		m.countdownView.SetSize(m.width, contentHeight)
		m.togetherView.SetSize(m.width, contentHeight)
		m.bucketView.SetSize(m.width, contentHeight)
		return m, nil

	case ui.ThemeChangeRequestMsg:
		if !m.themeProvider.SetTheme(msg.ThemeName) {
			m.status = ui.StatusMsg{Err: fmt.Errorf("unknown theme %q", msg.ThemeName)}
			return m, nil
		}
		return m.applyTheme()

	case ui.StatusMsg:
		m.status = msg
		return m, nil
	}

	return m.broadcast(msg)
}

// updateActive hands a key press to the visible view.
func (m Model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.activeTab {
	case TabCountdown:
		m.countdownView, cmd = m.countdownView.Update(msg)
	case TabTogether:
		m.togetherView, cmd = m.togetherView.Update(msg)
	case TabBucket:
		m.bucketView, cmd = m.bucketView.Update(msg)
	}
	return m, cmd
}

// broadcast hands a non-key message to every view. Clock ticks carry the
// id of the view they belong to, so the other clock ignores them.
func (m Model) broadcast(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.countdownView, cmd = m.countdownView.Update(msg)
	cmds = append(cmds, cmd)
	m.togetherView, cmd = m.togetherView.Update(msg)
	cmds = append(cmds, cmd)
	m.bucketView, cmd = m.bucketView.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) cycleTheme() (tea.Model, tea.Cmd) {
	m.themeProvider.Cycle(1)
	return m.applyTheme()
}

// applyTheme restyles every view and persists the choice.
func (m Model) applyTheme() (tea.Model, tea.Cmd) {
	name := m.themeProvider.CurrentName()
	m.styles = m.themeProvider.Styles()

	themeMsg := ui.ThemeChangedMsg{ThemeName: name, Styles: m.styles}
	m.countdownView, _ = m.countdownView.Update(themeMsg)
	m.togetherView, _ = m.togetherView.Update(themeMsg)
	m.bucketView, _ = m.bucketView.Update(themeMsg)

	m.status = ui.StatusMsg{Text: "Theme: " + m.themeProvider.CurrentDisplayName()}
	return m, m.saveThemeConfig(name)
}

// View implements tea.Model
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	switch m.activeTab {
	case TabCountdown:
		b.WriteString(m.countdownView.View())
	case TabTogether:
		b.WriteString(m.togetherView.View())
	case TabBucket:
		b.WriteString(m.bucketView.View())
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	if m.showHelp {
		return m.renderHelpOverlay()
	}

	return m.styles.App.Render(b.String())
}

// renderTabs renders the tab bar
func (m Model) renderTabs() string {
	var tabs []string
	for i, name := range tabNames {
		if Tab(i) == m.activeTab {
			tabs = append(tabs, m.styles.TabActive.Render(name))
		} else {
			tabs = append(tabs, m.styles.TabInactive.Render(name))
		}
	}
	return m.styles.TabBar.Render(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
}

// renderStatusBar renders the status bar at the bottom
func (m Model) renderStatusBar() string {
	var parts []string

	switch {
	case m.status.Err != nil:
		parts = append(parts, m.styles.Error.Render(m.status.Err.Error()))
	case m.status.Text != "":
		parts = append(parts, m.styles.StatusHelp.Render(m.status.Text))
	}

	switch {
	case m.isModal():
		parts = append(parts, m.renderKeyHelp("Enter", "save"))
		parts = append(parts, m.renderKeyHelp("Esc", "cancel"))
	case m.activeTab == TabBucket && m.bucketView.Locked():
		parts = append(parts, m.renderKeyHelp("Enter", "unlock"))
		parts = append(parts, m.renderKeyHelp("Tab", "views"))
	default:
		if m.activeTab == TabBucket {
			parts = append(parts, m.renderKeyHelp("n", "new"))
			parts = append(parts, m.renderKeyHelp("e", "edit"))
			parts = append(parts, m.renderKeyHelp("space", "done"))
			parts = append(parts, m.renderKeyHelp("d", "delete"))
			parts = append(parts, m.renderKeyHelp("L", "lock"))
		}
		parts = append(parts, m.renderKeyHelp("1-3", "views"))
		parts = append(parts, m.renderKeyHelp("T", "theme"))
		parts = append(parts, m.renderKeyHelp("?", "help"))
		parts = append(parts, m.renderKeyHelp("q", "quit"))
	}

	content := strings.Join(parts, "  ")

	padding := m.width - lipgloss.Width(content)
	if padding > 0 {
		content += strings.Repeat(" ", padding)
	}

	return m.styles.StatusBar.Render(content)
}

// renderKeyHelp renders a single key help item
func (m Model) renderKeyHelp(key, desc string) string {
	return fmt.Sprintf("%s %s",
		m.styles.StatusKey.Render(key),
		m.styles.StatusHelp.Render(desc))
}

// isModal reports whether the active view owns every key press.
func (m Model) isModal() bool {
	return m.activeTab == TabBucket && m.bucketView.IsModal()
}

// isCapturingKeys reports whether character keys belong to the active view.
// Tab still switches views from the PIN prompt.
func (m Model) isCapturingKeys() bool {
	return m.activeTab == TabBucket && m.bucketView.IsInputMode()
}

// saveThemeConfig saves the theme to the config file
func (m Model) saveThemeConfig(themeName string) tea.Cmd {
	cfg := m.services.Config
	return func() tea.Msg {
		if err := cfg.SetTheme(themeName); err != nil {
			return ui.StatusMsg{Err: fmt.Errorf("theme not saved: %w", err)}
		}
		return nil
	}
}

// renderHelpOverlay renders the key reference in place of the current view
func (m Model) renderHelpOverlay() string {
	var help strings.Builder

	help.WriteString(m.styles.ViewTitle.Render("Keyboard Shortcuts"))
	help.WriteString("\n\n")

	help.WriteString(m.styles.StatLabel.Render("Global:"))
	help.WriteString("\n")
	help.WriteString("  Tab/1-3    Switch views\n")
	help.WriteString("  T          Next theme\n")
	help.WriteString("  ?          Toggle help\n")
	help.WriteString("  q          Quit\n")

	if m.activeTab == TabBucket {
		help.WriteString("\n")
		help.WriteString(m.styles.StatLabel.Render("Bucket List:"))
		help.WriteString("\n")
		help.WriteString("  j/k        Navigate up/down\n")
		help.WriteString("  n          New dream\n")
		help.WriteString("  e          Edit dream\n")
		help.WriteString("  space      Toggle done\n")
		help.WriteString("  d          Delete dream\n")
		help.WriteString("  L          Lock\n")
	}

	help.WriteString("\n")
	help.WriteString(m.styles.StatLabel.Render("Press ? to close"))

	return m.styles.App.Render(m.styles.Dialog.Render(help.String()))
}

// Run starts the TUI application
func Run(ctx context.Context, services *service.Services) error {
	model := New(ctx, services)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
