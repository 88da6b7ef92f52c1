package center

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/pmcore/internal/keys"
	"github.com/nhle/pmcore/internal/model"
	"github.com/nhle/pmcore/internal/notification"
	"github.com/nhle/pmcore/internal/theme"
)

// Model is the notification center list view.
type Model struct {
	list   list.Model
	store  *notification.Store
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates a notification center backed by s.
func New(s *notification.Store, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		store:  s,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetItems replaces the rendered list with ns.
func (m *Model) SetItems(ns []model.Notification) tea.Cmd {
	items := make([]list.Item, len(ns))
	for i, n := range ns {
		items[i] = Item{Notification: n}
	}
	return m.list.SetItems(items)
}

// Selected returns the highlighted notification.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Update handles messages for the notification center.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if cmd, handled := m.handleKeys(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleKeys maps store actions to commands. The store notifies the
// app after each write, so no message is returned here.
func (m Model) handleKeys(msg tea.KeyMsg) (tea.Cmd, bool) {
	s := m.store

	switch {
	case key.Matches(msg, m.keys.MarkRead):
		n, ok := m.Selected()
		if !ok {
			return nil, true
		}
		return storeCmd(func(ctx context.Context) { s.MarkRead(ctx, n.ID) }), true

	case key.Matches(msg, m.keys.MarkAllRead):
		return storeCmd(s.MarkAllRead), true

	case key.Matches(msg, m.keys.Remove):
		n, ok := m.Selected()
		if !ok {
			return nil, true
		}
		return storeCmd(func(ctx context.Context) { s.Remove(ctx, n.ID) }), true

	case key.Matches(msg, m.keys.Clear):
		return storeCmd(s.Clear), true
	}
	return nil, false
}

func storeCmd(fn func(context.Context)) tea.Cmd {
	return func() tea.Msg {
		fn(context.Background())
		return nil
	}
}

// View renders the list or an empty-state hint.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notifications.\n\nPress n to send a test notification.")
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
