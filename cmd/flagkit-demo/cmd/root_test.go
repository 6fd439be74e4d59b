package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_RegistersSubcommands(t *testing.T) {
	root := NewRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["start"])
	assert.True(t, names["evaluate"])
	assert.True(t, names["version"])
}

func TestVersionCmd_PrintsVersion(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, Version+"\n", out.String())
}

func TestEvaluateCmd_RequiresConfigFlagAndUserFlag(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"evaluate", "--flag", "f1"})
	err := root.Execute()
	assert.Error(t, err)
}

func TestStartCmd_RequiresConfigFlag(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"start"})
	err := root.Execute()
	assert.Error(t, err)
}
