package help

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/pmcore/internal/keys"
	"github.com/nhle/pmcore/internal/model"
)

func TestViewListsBindingsKindsAndIndicators(t *testing.T) {
	km := keys.DefaultKeyMap()
	out := New(km, 100, 40).View()

	assert.Contains(t, out, "Keyboard Shortcuts")
	assert.Contains(t, out, "flush")
	for _, k := range model.Kinds {
		assert.Contains(t, out, string(k))
	}
	assert.Contains(t, out, "Offline mode")
	assert.Contains(t, out, "queued")
}

func TestViewToleratesTinySize(t *testing.T) {
	km := keys.DefaultKeyMap()
	assert.NotPanics(t, func() { _ = New(km, 2, 2).View() })
}
