package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		line     string
		verb     string
		argument string
	}{
		{"", "", ""},
		{"sync", "sync", ""},
		{"  Delete 1, 2 ,3 ", "delete", "1, 2 ,3"},
		{"users delete ann,bob", "users delete", "ann,bob"},
		{"user add", "user add", ""},
		{"user bob", "user", "bob"},
	}

	for _, tt := range tests {
		verb, arg := Split(tt.line)
		assert.Equal(t, tt.verb, verb, "line %q", tt.line)
		assert.Equal(t, tt.argument, arg, "line %q", tt.line)
	}
}

func TestEnterEmitsTrimmedCommand(t *testing.T) {
	m := New(80, 24)
	for _, r := range " sync " {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, CommandMsg("sync"), cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "empty input is not a command")
}
