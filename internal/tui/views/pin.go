package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/xolan/mondo/internal/tui/ui"
)

// PinSubmitMsg is emitted when the user submits a PIN.
type PinSubmitMsg struct {
	PIN string
}

// PinModel is the modal asking for the bucket list PIN.
type PinModel struct {
	input   textinput.Model
	styles  ui.Styles
	keys    ui.KeyMap
	err     error
	pending bool
}

// NewPinModel creates a focused PIN prompt.
func NewPinModel(styles ui.Styles, keys ui.KeyMap) PinModel {
	ti := textinput.New()
	ti.Placeholder = "PIN"
	ti.CharLimit = 8
	ti.Width = 12
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.Focus()

	return PinModel{input: ti, styles: styles, keys: keys}
}

// Update implements tea.Model
func (m PinModel) Update(msg tea.Msg) (PinModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.pending {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Select):
			pin := strings.TrimSpace(m.input.Value())
			if pin == "" {
				return m, nil
			}
			m.pending = true
			m.err = nil
			return m, func() tea.Msg { return PinSubmitMsg{PIN: pin} }
		case key.Matches(msg, m.keys.Back):
			m.input.SetValue("")
			m.err = nil
			return m, nil
		}

	case ui.ThemeChangedMsg:
		m.styles = msg.Styles
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// Fail clears the input and shows err.
func (m *PinModel) Fail(err error) {
	m.pending = false
	m.err = err
	m.input.SetValue("")
	m.input.Focus()
}

// Reset returns the prompt to its initial state.
func (m *PinModel) Reset() {
	m.pending = false
	m.err = nil
	m.input.SetValue("")
	m.input.Focus()
}

// View implements tea.Model
func (m PinModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.DialogTitle.Render("Enter PIN"))
	b.WriteString("\n")
	b.WriteString(m.styles.Subtitle.Render("The bucket list is just for the two of us."))
	b.WriteString("\n\n")
	b.WriteString(m.styles.InputFocused.Render(m.input.View()))
	b.WriteString("\n")

	switch {
	case m.pending:
		b.WriteString(m.styles.StatLabel.Render("Checking..."))
	case m.err != nil:
		b.WriteString(m.styles.Error.Render(m.err.Error()))
	default:
		b.WriteString(m.styles.StatLabel.Render("Enter to unlock"))
	}
	return m.styles.Dialog.Render(b.String())
}
