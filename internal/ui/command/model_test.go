package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitArgs(t *testing.T) {
	assert.Equal(t, []string{"flush"}, SplitArgs("  flush "))
	assert.Equal(t,
		[]string{"add", "info", "New task", "Assigned to you"},
		SplitArgs(`add info "New task" "Assigned to you"`))
	assert.Equal(t, []string{"rm", ""}, SplitArgs(`rm ""`))
	assert.Nil(t, SplitArgs("   "))
}

func TestEnterEmitsCommand(t *testing.T) {
	m := New(80, 24)
	for _, r := range "read-all" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, CommandMsg{"read-all"}, cmd())
	assert.Empty(t, m.input.Value())
}
