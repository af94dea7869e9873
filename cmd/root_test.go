package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommand(t *testing.T) {
	rootCmd := newRootCommand()

	var names []string
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"download", "node", "version"}, names)

	nodeCmd, _, err := rootCmd.Find([]string{"node"})
	assert.NoError(t, err)
	for _, flag := range []string{"type", "host", "port", "config"} {
		assert.NotNil(t, nodeCmd.Flags().Lookup(flag), flag)
	}
	assert.Equal(t, "localhost", nodeCmd.Flags().Lookup("host").DefValue)
	assert.Equal(t, "18862", nodeCmd.Flags().Lookup("port").DefValue)
}
