package views

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/xolan/mondo/internal/bucket"
	"github.com/xolan/mondo/internal/service"
	"github.com/xolan/mondo/internal/synced"
	"github.com/xolan/mondo/internal/tui/ui"
)

type bucketMode int

const (
	modeLocked bucketMode = iota
	modeList
	modeInput
	modeConfirmDelete
)

// unlockResultMsg reports the outcome of a PIN check.
type unlockResultMsg struct {
	err error
}

// bucketOpMsg reports the outcome of a store mutation. The list itself
// changes only through ItemsMsg.
type bucketOpMsg struct {
	status string
	err    error
}

// BucketModel is the model for the bucket list view
type BucketModel struct {
	ctx      context.Context
	services *service.Services
	styles   ui.Styles
	keys     ui.KeyMap
	location *time.Location

	width  int
	height int

	mode   bucketMode
	pin    PinModel
	feed   *itemFeed
	items  []bucket.Item
	loaded bool
	cursor int

	// Input state for new and edited items
	input     textinput.Model
	editingID string

	status string
	err    error
}

// NewBucketModel creates a locked bucket list view
func NewBucketModel(ctx context.Context, services *service.Services, styles ui.Styles, keys ui.KeyMap) BucketModel {
	ti := textinput.New()
	ti.Placeholder = "Something we want to do together..."
	ti.CharLimit = 200
	ti.Width = 50

	m := BucketModel{
		ctx:      ctx,
		services: services,
		styles:   styles,
		keys:     keys,
		location: services.Clock.Location(),
		pin:      NewPinModel(styles, keys),
		input:    ti,
	}
	if services.Bucket.Unlocked() {
		m.mode = modeList
	}
	return m
}

// Init implements tea.Model
func (m BucketModel) Init() tea.Cmd {
	if m.mode == modeLocked {
		return textinput.Blink
	}
	// Already unlocked: attach through Update so the feed is kept.
	return func() tea.Msg { return unlockResultMsg{} }
}

// Update implements tea.Model
func (m BucketModel) Update(msg tea.Msg) (BucketModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case PinSubmitMsg:
		return m, m.unlock(msg.PIN)

	case unlockResultMsg:
		if msg.err != nil {
			m.pin.Fail(unlockError(msg.err))
			return m, nil
		}
		m.mode = modeList
		m.pin.Reset()
		m.err = nil
		m.status = ""
		return m, m.listen()

	case ItemsMsg:
		m.setItems(msg.Items)
		return m, m.waitForItems()

	case bucketOpMsg:
		m.err = msg.err
		m.status = msg.status
		return m, nil

	case ui.ThemeChangedMsg:
		m.styles = msg.Styles
		m.pin, _ = m.pin.Update(msg)
		return m, nil
	}

	var cmd tea.Cmd
	switch m.mode {
	case modeLocked:
		m.pin, cmd = m.pin.Update(msg)
	case modeInput:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m BucketModel) handleKey(msg tea.KeyMsg) (BucketModel, tea.Cmd) {
	switch m.mode {
	case modeLocked:
		var cmd tea.Cmd
		m.pin, cmd = m.pin.Update(msg)
		return m, cmd
	case modeInput:
		return m.handleInputMode(msg)
	case modeConfirmDelete:
		return m.handleConfirm(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.New):
		m.editingID = ""
		return m.startInput("")
	case key.Matches(msg, m.keys.Edit):
		if item, ok := m.selected(); ok {
			m.editingID = item.ID
			return m.startInput(item.Content)
		}
	case key.Matches(msg, m.keys.Toggle):
		if item, ok := m.selected(); ok {
			return m, m.toggle(item)
		}
	case key.Matches(msg, m.keys.Delete):
		if _, ok := m.selected(); ok {
			m.mode = modeConfirmDelete
		}
	case key.Matches(msg, m.keys.Lock):
		return m.lock(), nil
	}
	return m, nil
}

func (m BucketModel) startInput(value string) (BucketModel, tea.Cmd) {
	m.mode = modeInput
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
	return m, textinput.Blink
}

// handleInputMode handles key events while adding or editing an item
func (m BucketModel) handleInputMode(msg tea.KeyMsg) (BucketModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		content := m.input.Value()
		if _, err := bucket.NormalizeContent(content); err != nil {
			m.err = err
			return m, nil
		}
		m.mode = modeList
		m.input.Blur()
		if m.editingID != "" {
			return m, m.edit(m.editingID, content)
		}
		return m, m.create(content)
	case key.Matches(msg, m.keys.Back):
		m.mode = modeList
		m.input.Blur()
		m.input.SetValue("")
		m.err = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m BucketModel) handleConfirm(msg tea.KeyMsg) (BucketModel, tea.Cmd) {
	m.mode = modeList
	if !key.Matches(msg, m.keys.Confirm) {
		m.status = "Delete cancelled"
		return m, nil
	}
	item, ok := m.selected()
	if !ok {
		return m, nil
	}
	return m, m.remove(item)
}

// lock closes the session and drops the list from memory.
func (m BucketModel) lock() BucketModel {
	if m.feed != nil {
		m.feed.close()
		m.feed = nil
	}
	m.services.Bucket.Lock()
	m.mode = modeLocked
	m.items = nil
	m.loaded = false
	m.cursor = 0
	m.status = ""
	m.err = nil
	m.pin.Reset()
	return m
}

// setItems installs a snapshot, keeping the cursor on the same item when it
// still exists.
func (m *BucketModel) setItems(items []bucket.Item) {
	var selectedID string
	if item, ok := m.selected(); ok {
		selectedID = item.ID
	}

	m.items = items
	m.loaded = true

	if selectedID != "" {
		for i, item := range items {
			if item.ID == selectedID {
				m.cursor = i
				return
			}
		}
	}
	if m.cursor >= len(items) {
		m.cursor = max(len(items)-1, 0)
	}
}

func (m BucketModel) selected() (bucket.Item, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return bucket.Item{}, false
	}
	return m.items[m.cursor], true
}

// View implements tea.Model
func (m BucketModel) View() string {
	var b strings.Builder

	b.WriteString(m.styles.ViewTitle.Render("Bucket List"))
	b.WriteString("\n")

	if m.mode == modeLocked {
		b.WriteString(m.pin.View())
		return b.String()
	}

	if !m.loaded {
		b.WriteString("Loading...")
		return b.String()
	}

	stats := bucket.Summarize(m.items)
	b.WriteString(m.styles.Subtitle.Render(fmt.Sprintf("%d %s · %d done",
		stats.Total, pluralize("dream", stats.Total), stats.Completed)))
	b.WriteString("\n\n")

	if m.mode == modeInput {
		title := "New dream"
		if m.editingID != "" {
			title = "Edit dream"
		}
		b.WriteString(m.styles.StatLabel.Render(title))
		b.WriteString("\n")
		b.WriteString(m.styles.InputFocused.Render(m.input.View()))
		b.WriteString("\n")
		b.WriteString(m.styles.StatLabel.Render("Enter to save, Esc to cancel"))
		b.WriteString("\n\n")
	}

	if len(m.items) == 0 {
		b.WriteString(m.styles.StatLabel.Render("Nothing here yet. Press 'n' to add the first dream."))
	} else {
		b.WriteString(RenderItemList(m.items, m.styles, ItemRenderOptions{
			Width:    m.width,
			Cursor:   m.cursor,
			Location: m.location,
		}))
	}

	if m.mode == modeConfirmDelete {
		if item, ok := m.selected(); ok {
			b.WriteString("\n")
			b.WriteString(m.styles.Warning.Render(fmt.Sprintf("Delete %q? y to confirm, any other key to cancel", truncate(item.Content, 40))))
		}
	}

	switch {
	case m.err != nil:
		b.WriteString("\n")
		b.WriteString(m.styles.Error.Render(describeError(m.err)))
	case m.status != "":
		b.WriteString("\n")
		b.WriteString(m.styles.Success.Render(m.status))
	}
	return b.String()
}

// SetSize sets the view dimensions
func (m *BucketModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// IsInputMode returns true when the view is capturing keyboard input
func (m BucketModel) IsInputMode() bool {
	return m.mode != modeList
}

// IsModal returns true while adding, editing or confirming a delete. View
// switching is blocked in these modes.
func (m BucketModel) IsModal() bool {
	return m.mode == modeInput || m.mode == modeConfirmDelete
}

// Locked reports whether the PIN prompt is showing.
func (m BucketModel) Locked() bool {
	return m.mode == modeLocked
}

// Items returns the last snapshot shown.
func (m BucketModel) Items() []bucket.Item {
	return m.items
}

func (m BucketModel) unlock(pin string) tea.Cmd {
	ctx, services := m.ctx, m.services
	return func() tea.Msg {
		err := services.Bucket.Unlock(ctx, services.Security, pin)
		return unlockResultMsg{err: err}
	}
}

// listen attaches the view to the live collection and waits for the first
// snapshot.
func (m *BucketModel) listen() tea.Cmd {
	if m.feed != nil {
		m.feed.close()
	}
	feed := newItemFeed()
	m.feed = feed
	ctx, services := m.ctx, m.services

	return func() tea.Msg {
		feed.setUnsubscribe(services.Bucket.Collection().Subscribe(feed.push))
		if err := services.Bucket.Start(ctx); err != nil {
			return bucketOpMsg{err: err}
		}
		return feed.next()
	}
}

func (m BucketModel) waitForItems() tea.Cmd {
	if m.feed == nil {
		return nil
	}
	return m.feed.next
}

func (m BucketModel) create(content string) tea.Cmd {
	ctx, col := m.ctx, m.services.Bucket.Collection()
	return func() tea.Msg {
		item, err := col.Create(ctx, content)
		if err != nil {
			return bucketOpMsg{err: err}
		}
		return bucketOpMsg{status: fmt.Sprintf("Added %q", truncate(item.Content, 40))}
	}
}

func (m BucketModel) edit(id, content string) tea.Cmd {
	ctx, col := m.ctx, m.services.Bucket.Collection()
	return func() tea.Msg {
		if err := col.EditContent(ctx, id, content); err != nil {
			return bucketOpMsg{err: err}
		}
		return bucketOpMsg{status: "Saved"}
	}
}

func (m BucketModel) toggle(item bucket.Item) tea.Cmd {
	ctx, col := m.ctx, m.services.Bucket.Collection()
	return func() tea.Msg {
		if err := col.ToggleComplete(ctx, item.ID); err != nil {
			return bucketOpMsg{err: err}
		}
		if item.Completed {
			return bucketOpMsg{status: "Marked as not done"}
		}
		return bucketOpMsg{status: "Done!"}
	}
}

func (m BucketModel) remove(item bucket.Item) tea.Cmd {
	ctx, col := m.ctx, m.services.Bucket.Collection()
	return func() tea.Msg {
		if err := col.Delete(ctx, item.ID); err != nil {
			return bucketOpMsg{err: err}
		}
		return bucketOpMsg{status: fmt.Sprintf("Deleted %q", truncate(item.Content, 40))}
	}
}

func unlockError(err error) error {
	if errors.Is(err, service.ErrWrongPIN) {
		return errors.New("Wrong PIN, try again")
	}
	return err
}

// describeError renders mutation failures for the status line.
func describeError(err error) string {
	var verr *synced.ValidationError
	var nerr *synced.NotFoundError
	var serr *synced.StoreError
	switch {
	case errors.As(err, &verr):
		return "Please enter something first"
	case errors.As(err, &nerr):
		return "That item is gone, it may have been deleted elsewhere"
	case errors.As(err, &serr):
		return fmt.Sprintf("Couldn't reach the list (%s): %v", serr.Op, serr.Err)
	case errors.Is(err, bucket.ErrEmptyContent):
		return "Please enter something first"
	}
	return "Error: " + err.Error()
}
