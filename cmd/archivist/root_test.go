package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "sync", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().String("platform", "", "")
	cmd.Flags().String("output", "", "")
	addRunFlags(cmd)
	return cmd
}

func TestCollectFlagsOnlyChanged(t *testing.T) {
	cmd := newFlagCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--platform", "patreon",
		"--whitelist", "a,b",
		"--skip-free",
		"--limit", "3",
	}))

	flags := collectFlags(cmd)
	assert.Equal(t, "patreon", flags["platform"])
	assert.Equal(t, []string{"a", "b"}, flags["whitelist"])
	assert.Equal(t, true, flags["skip-free"])
	assert.Equal(t, 3, flags["limit"])

	assert.NotContains(t, flags, "output")
	assert.NotContains(t, flags, "force")
	assert.NotContains(t, flags, "cron")
}

func TestCollectFlagsExplicitFalse(t *testing.T) {
	cmd := newFlagCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--overwrite=false"}))

	flags := collectFlags(cmd)
	assert.Equal(t, false, flags["overwrite"])
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "***", mask("short"))
	assert.Equal(t, "1234...wxyz", mask("1234567890wxyz"))
}
