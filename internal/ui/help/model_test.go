package help

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/remindme/internal/keys"
)

func TestViewListsBindingsCommandsAndOrigins(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 120, 60)
	view := m.View()

	assert.Contains(t, view, "new notification")
	assert.Contains(t, view, "users delete")
	assert.Contains(t, view, "WEB #id")
}
