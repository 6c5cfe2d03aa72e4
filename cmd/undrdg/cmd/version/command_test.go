package version

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromorphicsystems/undrdg/internal/cmd/application"
)

func TestVersionCommand(t *testing.T) {
	cmd := NewCommand(&application.Mock{VersionFunc: func() string { return "1.2.3" }})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "undrdg 1.2.3\n")
	assert.Contains(t, out.String(), "built by: test")
}

func TestVersionCommandJSON(t *testing.T) {
	cmd := NewCommand(&application.Mock{OutputFormatFunc: func() string { return "json" }})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	var info Info
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, "unknown", info.Commit)
	assert.NotEmpty(t, info.GoVersion)
}
