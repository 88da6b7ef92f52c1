package app

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/pmcore/internal/toast"
)

func runCmd(t *testing.T, rt *Runtime, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := RunCommand(context.Background(), rt, &out, args)
	return out.String(), err
}

func TestCommandsDriveNotifications(t *testing.T) {
	rt := newTestRuntime(t, toast.Nop{})

	id, err := runCmd(t, rt, "add", "warning", "Disk", "Disk almost full")
	require.NoError(t, err)
	id = strings.TrimSpace(id)
	require.NotEmpty(t, id)

	_, err = runCmd(t, rt, "add", "error", "Deploy", "Deploy failed")
	require.NoError(t, err)

	out, err := runCmd(t, rt, "unread")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = runCmd(t, rt, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Deploy", "newest first")

	_, err = runCmd(t, rt, "read", id)
	require.NoError(t, err)
	assert.Equal(t, 1, rt.Notifications.UnreadCount())

	_, err = runCmd(t, rt, "read-all")
	require.NoError(t, err)
	assert.Equal(t, 0, rt.Notifications.UnreadCount())

	_, err = runCmd(t, rt, "rm", id)
	require.NoError(t, err)
	assert.Len(t, rt.Notifications.List(), 1)

	_, err = runCmd(t, rt, "clear")
	require.NoError(t, err)
	assert.Empty(t, rt.Notifications.List())
}

func TestCommandsDriveQueue(t *testing.T) {
	rt := newTestRuntime(t, toast.Nop{})

	out, err := runCmd(t, rt, "enqueue", `{"taskId":"42"}`)
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	_, err = runCmd(t, rt, "enqueue", "call", "the", "client")
	require.NoError(t, err)

	out, err = runCmd(t, rt, "queue")
	require.NoError(t, err)
	assert.Contains(t, out, `"taskId":"42"`)
	assert.Contains(t, out, `"note":"call the client"`)

	out, err = runCmd(t, rt, "flush")
	require.NoError(t, err)
	assert.Equal(t, "flushed 2, 0 remaining\n", out)
}

func TestCommandUsageErrors(t *testing.T) {
	rt := newTestRuntime(t, toast.Nop{})

	for _, args := range [][]string{
		{},
		{"frobnicate"},
		{"read"},
		{"add", "info", "only-title"},
		{"enqueue"},
	} {
		_, err := runCmd(t, rt, args...)
		assert.ErrorIs(t, err, ErrUsage, "args %v", args)
	}

	_, err := runCmd(t, rt, "add", "urgent", "t", "m")
	assert.Error(t, err)
}
