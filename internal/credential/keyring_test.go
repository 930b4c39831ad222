package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordKey(t *testing.T) {
	assert.Equal(t, "remote-password:alice", PasswordKey("alice"))
}

func TestPasswordPrefersEnvironment(t *testing.T) {
	t.Setenv(PasswordEnv, "from-env")

	pw, err := Password("alice")
	require.NoError(t, err)
	assert.Equal(t, "from-env", pw)
}
