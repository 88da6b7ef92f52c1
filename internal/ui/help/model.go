package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/pmcore/internal/keys"
	"github.com/nhle/pmcore/internal/model"
	"github.com/nhle/pmcore/internal/theme"
)

// indicators explains the header and banner states.
var indicators = [][2]string{
	{"[N new]", "unread notifications"},
	{"N queued", "entries waiting for a connection"},
	{"syncing N", "a flush is in progress"},
	{"Offline mode", "new work is saved locally"},
}

// Model is the help overlay: key bindings, notification kinds and
// the meaning of the status indicators.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.ShowAll = true
	m := Model{keys: keys, help: h}
	m.SetSize(width, height)
	return m
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

func (m Model) View() string {
	section := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginTop(1)

	content := lipgloss.JoinVertical(lipgloss.Left,
		section.UnsetMarginTop().Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		section.Render("Kinds"),
		kindLegend(),
		section.Render("Status"),
		indicatorLegend(),
	)

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}

func kindLegend() string {
	parts := make([]string, 0, len(model.Kinds))
	for _, k := range model.Kinds {
		parts = append(parts, theme.KindStyle(k).Render(theme.KindIcon(k)+" "+string(k)))
	}
	return strings.Join(parts, "  ")
}

func indicatorLegend() string {
	var b strings.Builder
	for i, row := range indicators {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-14s %s", row[0], theme.HelpStyle.Render(row[1]))
	}
	return b.String()
}
