package center

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/pmcore/internal/keys"
	"github.com/nhle/pmcore/internal/kvstore"
	"github.com/nhle/pmcore/internal/model"
	"github.com/nhle/pmcore/internal/notification"
)

func setup(t *testing.T) (*notification.Store, Model) {
	t.Helper()
	s := notification.New(kvstore.NewMemoryStore())
	s.Load(context.Background())
	m := New(s, keys.DefaultKeyMap(), 80, 20)
	return s, m
}

func press(m Model, k string) (Model, tea.Cmd) {
	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	if k == "enter" {
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	}
	return m.Update(msg)
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "", relativeTime(time.Time{}, now))
	assert.Equal(t, "just now", relativeTime(now.Add(-10*time.Second), now))
	assert.Equal(t, "5m ago", relativeTime(now.Add(-5*time.Minute), now))
	assert.Equal(t, "1h ago", relativeTime(now.Add(-time.Hour), now))
	assert.Equal(t, "3d ago", relativeTime(now.Add(-72*time.Hour), now))
	assert.Equal(t, "2w ago", relativeTime(now.Add(-15*24*time.Hour), now))
}

func TestKeysDriveStore(t *testing.T) {
	s, m := setup(t)
	ctx := context.Background()

	s.Add(ctx, "a", "first", model.KindInfo)
	s.Add(ctx, "b", "second", model.KindWarning)
	m.SetItems(s.List())

	m, cmd := press(m, "enter")
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 1, s.UnreadCount())

	_, cmd = press(m, "A")
	cmd()
	assert.Equal(t, 0, s.UnreadCount())

	m.SetItems(s.List())
	_, cmd = press(m, "d")
	cmd()
	assert.Len(t, s.List(), 1)

	_, cmd = press(m, "C")
	cmd()
	assert.Empty(t, s.List())
}

func TestEmptyStateHint(t *testing.T) {
	_, m := setup(t)
	assert.Contains(t, m.View(), "No notifications.")

	_, ok := m.Selected()
	assert.False(t, ok)
}
