package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCmd("test")

	for _, path := range [][]string{
		{"ask"},
		{"reset"},
		{"history"},
		{"login"},
		{"logout"},
		{"whoami"},
		{"models", "list"},
		{"models", "select"},
		{"admin", "sessions"},
		{"admin", "session"},
		{"admin", "delete"},
		{"admin", "export"},
		{"admin", "overrides", "add"},
		{"admin", "overrides", "update"},
		{"admin", "overrides", "delete"},
		{"admin", "compare"},
		{"admin", "users", "add"},
		{"config", "show"},
		{"version"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		require.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestVersionSkipsConfig(t *testing.T) {
	root := NewRootCmd("1.2.3")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	require.Equal(t, "lawchat 1.2.3\n", out.String())
}
