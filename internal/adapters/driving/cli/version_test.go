package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCmd_Use(t *testing.T) {
	assert.Equal(t, "version", versionCmd.Use)
}

func TestVersionCmd_PrintsVersion(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"version"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "atlas version dev")
}

func TestRootCmd_HasCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	assert.True(t, names["serve"])
	assert.True(t, names["snapshot"])
	assert.True(t, names["version"])
}

func TestSnapshotCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range snapshotCmd.Commands() {
		names[cmd.Name()] = true
	}

	assert.True(t, names["create"])
	assert.True(t, names["get"])
}
