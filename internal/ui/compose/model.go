package compose

import (
	"encoding/json"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/pmcore/internal/model"
	"github.com/nhle/pmcore/internal/theme"
)

// Defaults for the compose form, matching the dashboard's test
// notification.
const (
	DefaultTitle   = "New task assigned"
	DefaultMessage = "You have been assigned a new task in Project Alpha"
)

// NotifyMsg is dispatched when the notification form is submitted.
type NotifyMsg struct {
	Title   string
	Message string
	Kind    model.Kind
}

// EnqueueMsg is dispatched when the offline payload form is submitted.
type EnqueueMsg struct {
	Payload map[string]any
}

// CancelMsg is dispatched when the user aborts either form.
type CancelMsg struct{}

type mode int

const (
	modeNotify mode = iota
	modeEnqueue
)

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title   string
	message string
	kind    model.Kind
	payload string
}

// Model is the Bubble Tea model for the compose and enqueue forms.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	mode   mode
	width  int
	height int
}

// New creates a new compose form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{kind: model.KindInfo},
		width:  width,
		height: height,
	}
}

// StartNotify opens the notification form pre-filled with the demo
// notification.
func (m *Model) StartNotify() tea.Cmd {
	m.mode = modeNotify
	m.fb.title = DefaultTitle
	m.fb.message = DefaultMessage
	m.fb.kind = model.KindInfo
	m.form = m.buildNotifyForm()
	return m.form.Init()
}

// StartEnqueue opens the offline payload form.
func (m *Model) StartEnqueue() tea.Cmd {
	m.mode = modeEnqueue
	m.fb.payload = ""
	m.form = m.buildEnqueueForm()
	return m.form.Init()
}

// Update handles messages for the active form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the active form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Notification"
	if m.mode == modeEnqueue {
		titleText = "Save for Sync"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildNotifyForm() *huh.Form {
	opts := make([]huh.Option[model.Kind], len(model.Kinds))
	for i, k := range model.Kinds {
		opts[i] = huh.NewOption(theme.KindIcon(k)+" "+string(k), k)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&m.fb.title).
				Validate(validateRequired("Title")),
			huh.NewText().
				Title("Message").
				Value(&m.fb.message).
				Validate(validateRequired("Message")),
			huh.NewSelect[model.Kind]().
				Title("Type").
				Options(opts...).
				Value(&m.fb.kind),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m *Model) buildEnqueueForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Payload").
				Placeholder(`A note, or a JSON object such as {"taskId": "42"}`).
				Value(&m.fb.payload).
				Validate(validateRequired("Payload")),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	if m.mode == modeEnqueue {
		payload := ParsePayload(m.fb.payload)
		return func() tea.Msg { return EnqueueMsg{Payload: payload} }
	}

	msg := NotifyMsg{
		Title:   strings.TrimSpace(m.fb.title),
		Message: strings.TrimSpace(m.fb.message),
		Kind:    m.fb.kind,
	}
	return func() tea.Msg { return msg }
}

// ParsePayload turns form input into a queue payload. A JSON object is
// used as is; anything else becomes {"note": input}.
func ParsePayload(s string) map[string]any {
	s = strings.TrimSpace(s)

	var obj map[string]any
	if strings.HasPrefix(s, "{") && json.Unmarshal([]byte(s), &obj) == nil && obj != nil {
		return obj
	}
	return map[string]any{"note": s}
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
