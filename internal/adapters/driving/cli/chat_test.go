package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCmd_Flags(t *testing.T) {
	assert.NotNil(t, chatCmd.Flags().Lookup("conversation"))
	assert.NotNil(t, chatCmd.Flags().Lookup("doc"))
}

func TestChatCmd_RequiresTerminal(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	old := isTerminal
	isTerminal = func() bool { return false }
	defer func() { isTerminal = old }()

	_, err := execute(t, "chat")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "interactive terminal")
}

func TestChatCmd_RejectsArgs(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "chat", "extra")

	assert.Error(t, err)
}
