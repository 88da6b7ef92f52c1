package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/pmcore/internal/keys"
	"github.com/nhle/pmcore/internal/model"
	"github.com/nhle/pmcore/internal/offline"
	"github.com/nhle/pmcore/internal/theme"
	"github.com/nhle/pmcore/internal/toast"
	"github.com/nhle/pmcore/internal/ui"
	"github.com/nhle/pmcore/internal/ui/center"
	"github.com/nhle/pmcore/internal/ui/command"
	"github.com/nhle/pmcore/internal/ui/compose"
	helpview "github.com/nhle/pmcore/internal/ui/help"
)

// toastTTL is how long a toast stays on screen.
const toastTTL = 3 * time.Second

// changedMsg is sent when either store has new state to render.
type changedMsg struct{}

// toastMsg carries a toast from the channel presenter.
type toastMsg struct {
	toast toast.Toast
}

// toastExpiredMsg clears the toast with the given sequence number.
type toastExpiredMsg struct {
	seq int
}

// commandFailedMsg reports a palette command that returned an error.
type commandFailedMsg struct {
	err error
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewCenter ViewState = iota
	ViewHelp
	ViewCompose
	ViewCommand
)

// Model is the root Bubble Tea model. It renders the notification
// center and the offline queue state and routes keys to them.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	rt           *Runtime
	toasts       *toast.Channel
	keys         *keys.KeyMap
	center       center.Model
	composeView  compose.Model
	commandView  command.Model
	helpView     helpview.Model
	spinner      spinner.Model
	ready        bool

	changed chan struct{}
	cancels []func()

	unread   int
	queue    offline.State
	toast    *toast.Toast
	toastSeq int
}

// New creates the root model. toasts must be the presenter the
// runtime's stores were built with.
func New(rt *Runtime, toasts *toast.Channel) Model {
	k := keys.DefaultKeyMap()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		currentView: ViewCenter,
		rt:          rt,
		toasts:      toasts,
		keys:        k,
		center:      center.New(rt.Notifications, k, 80, 24),
		composeView: compose.New(80, 24),
		commandView: command.New(80, 24),
		helpView:    helpview.New(k, 80, 24),
		spinner:     sp,
		changed:     make(chan struct{}, 1),
	}

	signal := func() {
		select {
		case m.changed <- struct{}{}:
		default:
			// A refresh is already pending.
		}
	}
	m.cancels = append(m.cancels,
		rt.Notifications.Subscribe(func([]model.Notification) { signal() }),
		rt.Queue.Subscribe(func(offline.State) { signal() }),
	)

	return m
}

// Init starts listening for store changes and toasts.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForChange(),
		m.waitForToast(),
		m.spinner.Tick,
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.Width
		contentHeight := m.layout.ContentHeight()
		m.center.SetSize(contentWidth, contentHeight)
		m.composeView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case changedMsg:
		m.unread = m.rt.Notifications.UnreadCount()
		m.queue = m.rt.Queue.State()
		cmd := m.center.SetItems(m.rt.Notifications.List())
		return m, tea.Batch(cmd, m.waitForChange())

	case toastMsg:
		expire := m.showToast(msg.toast)
		return m, tea.Batch(m.waitForToast(), expire)

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = nil
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case compose.NotifyMsg:
		m.currentView = ViewCenter
		n := m.rt.Notifications
		return m, func() tea.Msg {
			n.Add(context.Background(), msg.Title, msg.Message, msg.Kind)
			return nil
		}

	case compose.EnqueueMsg:
		m.currentView = ViewCenter
		q := m.rt.Queue
		return m, func() tea.Msg {
			q.Enqueue(context.Background(), msg.Payload)
			return nil
		}

	case compose.CancelMsg:
		m.currentView = ViewCenter
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		rt := m.rt
		args := []string(msg)
		return m, func() tea.Msg {
			if err := RunCommand(context.Background(), rt, io.Discard, args); err != nil {
				return commandFailedMsg{err: err}
			}
			return nil
		}

	case commandFailedMsg:
		expire := m.showToast(toast.Toast{Variant: toast.VariantError, Message: msg.err.Error()})
		return m, expire

	case tea.KeyMsg:
		if m.currentView == ViewCompose {
			break
		}
		if m.currentView == ViewCommand {
			if key.Matches(msg, m.keys.Back, m.keys.Command) {
				m.currentView = m.previousView
				return m, nil
			}
			break
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.stop()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}

		case key.Matches(msg, m.keys.Command):
			m.previousView = m.currentView
			m.currentView = ViewCommand
			cmd := m.commandView.Focus()
			return m, cmd
		}

		if m.currentView != ViewCenter {
			break
		}

		switch {
		case key.Matches(msg, m.keys.Compose):
			m.previousView = m.currentView
			m.currentView = ViewCompose
			cmd := m.composeView.StartNotify()
			return m, cmd

		case key.Matches(msg, m.keys.Enqueue):
			m.previousView = m.currentView
			m.currentView = ViewCompose
			cmd := m.composeView.StartEnqueue()
			return m, cmd

		case key.Matches(msg, m.keys.Flush):
			q := m.rt.Queue
			return m, func() tea.Msg {
				q.Flush(context.Background())
				return nil
			}

		case key.Matches(msg, m.keys.ToggleOffline):
			sim := m.rt.Simulated
			return m, func() tea.Msg {
				sim.Toggle()
				return nil
			}
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewCenter:
		m.center, cmd = m.center.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCompose:
		m.composeView, cmd = m.composeView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.unread, m.connectionStatus())
	statusBar := m.layout.RenderStatusBar(m.renderToast(), m.keyHints())

	return m.layout.RenderWithFrame(header, m.renderBanner(), m.renderContent(), statusBar)
}

// connectionStatus describes the online flag and the queue.
func (m Model) connectionStatus() string {
	state := "online"
	if !m.queue.Online {
		state = "offline"
	}

	queued := len(m.queue.Entries)
	switch {
	case m.queue.Flushing:
		return fmt.Sprintf("%s syncing %d | %s", m.spinner.View(), queued, state)
	case queued > 0:
		return fmt.Sprintf("%d queued | %s", queued, state)
	default:
		return state
	}
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewHelp:
		return m.helpView.View()
	case ViewCompose:
		return m.composeView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return m.center.View()
	}
}

func (m Model) renderBanner() string {
	if m.queue.Online {
		return ""
	}
	return m.layout.RenderBanner("Offline mode: changes are saved and synced when you reconnect")
}

func (m Model) renderToast() string {
	if m.toast == nil {
		return ""
	}
	return theme.ToastStyle(m.toast.Variant).Render(m.toast.Message)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCompose:
		return "enter submit | esc cancel"
	case ViewCommand:
		return ": close command | enter execute | esc back"
	default:
		return "q quit | ? help | : command | enter read | A read all | n new | e save for sync | f flush | o offline"
	}
}

// showToast displays t and returns the command that hides it again.
func (m *Model) showToast(t toast.Toast) tea.Cmd {
	m.toast = &t
	m.toastSeq++
	seq := m.toastSeq
	return tea.Tick(toastTTL, func(time.Time) tea.Msg {
		return toastExpiredMsg{seq: seq}
	})
}

// waitForChange blocks until a store reports a change.
func (m Model) waitForChange() tea.Cmd {
	ch := m.changed
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

// waitForToast blocks until the next toast arrives.
func (m Model) waitForToast() tea.Cmd {
	if m.toasts == nil {
		return nil
	}
	ch := m.toasts.C()
	return func() tea.Msg {
		t, ok := <-ch
		if !ok {
			return nil
		}
		return toastMsg{toast: t}
	}
}

// stop removes the store subscriptions.
func (m Model) stop() {
	for _, cancel := range m.cancels {
		cancel()
	}
}
