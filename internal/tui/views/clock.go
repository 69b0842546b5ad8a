package views

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xolan/mondo/internal/clock"
	"github.com/xolan/mondo/internal/tui/ui"
)

// ClockTickMsg refreshes the clock view with the matching ID.
type ClockTickMsg struct {
	ID   string
	Time time.Time
}

// ClockModel shows a live breakdown for one clock spec.
type ClockModel struct {
	id       string
	title    string
	spec     clock.Spec
	err      error
	location *time.Location
	now      func() time.Time
	styles   ui.Styles

	width   int
	height  int
	reading clock.Breakdown
}

// NewClockModel creates a clock view. A non-nil err is shown instead of the
// clock, e.g. when the configured reference is invalid.
func NewClockModel(id, title string, spec clock.Spec, err error, loc *time.Location, styles ui.Styles) ClockModel {
	if loc == nil {
		loc = time.Local
	}
	m := ClockModel{
		id:       id,
		title:    title,
		spec:     spec,
		err:      err,
		location: loc,
		now:      time.Now,
		styles:   styles,
	}
	if err == nil {
		m.reading = spec.Tick(m.now())
	}
	return m
}

// WithNow returns a copy that reads time from now.
func (m ClockModel) WithNow(now func() time.Time) ClockModel {
	m.now = now
	if m.err == nil {
		m.reading = m.spec.Tick(now())
	}
	return m
}

// Init implements tea.Model
func (m ClockModel) Init() tea.Cmd {
	if m.err != nil {
		return nil
	}
	return m.tick()
}

// Update implements tea.Model
func (m ClockModel) Update(msg tea.Msg) (ClockModel, tea.Cmd) {
	switch msg := msg.(type) {
	case ClockTickMsg:
		if msg.ID != m.id {
			return m, nil
		}
		m.reading = m.spec.Tick(m.now())
		return m, m.tick()

	case ui.ThemeChangedMsg:
		m.styles = msg.Styles
	}
	return m, nil
}

// View implements tea.Model
func (m ClockModel) View() string {
	var b strings.Builder

	b.WriteString(m.styles.ViewTitle.Render(m.title))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(m.styles.Error.Render(fmt.Sprintf("Error: %v", m.err)))
		return b.String()
	}

	b.WriteString(RenderBlocks(m.reading, m.styles))
	b.WriteString("\n")
	b.WriteString(m.styles.ClockCaption.Render(m.caption()))
	return b.String()
}

// caption describes the reference instant; a countdown that has passed
// reads as time since the target.
func (m ClockModel) caption() string {
	ref := m.spec.Reference.In(m.location).Format("January 2, 2006 15:04")
	switch {
	case m.spec.Mode == clock.CountdownToFuture && m.reading.Mode == clock.CountdownToFuture:
		return "until " + ref
	case m.spec.Mode == clock.CountdownToFuture:
		return "since the big day, " + ref
	}
	return "together since " + ref
}

// Reading returns the last computed breakdown.
func (m ClockModel) Reading() clock.Breakdown {
	return m.reading
}

// SetSize sets the view dimensions
func (m *ClockModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// tick schedules the next refresh one second out.
func (m ClockModel) tick() tea.Cmd {
	id := m.id
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return ClockTickMsg{ID: id, Time: t}
	})
}
