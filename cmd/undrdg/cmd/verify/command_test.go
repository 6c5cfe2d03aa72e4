package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromorphicsystems/undrdg/internal/cmd/application"
	"github.com/neuromorphicsystems/undrdg/pkg/errors"
	"github.com/neuromorphicsystems/undrdg/pkg/raw"
	"github.com/neuromorphicsystems/undrdg/pkg/undr"
	"github.com/neuromorphicsystems/undrdg/pkg/verify"
)

func writeDataset(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "dataset")
	d, err := undr.NewDirectory(root)
	require.NoError(t, err)
	f, err := d.CreateFile(raw.NewDVSType(34, 34), "a", nil)
	require.NoError(t, err)
	require.NoError(t, f.Write(raw.DVSEvents{{T: 1, X: 1, Y: 1, P: 1}}))
	require.NoError(t, f.Close())
	return root
}

func run(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand(&application.Mock{OutputFormatFunc: func() string { return format }})
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestVerifyCommand(t *testing.T) {
	root := writeDataset(t)

	out, err := run(t, "json", root)
	require.NoError(t, err)
	var report verify.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Files)
	assert.Empty(t, report.Issues)

	out, err = run(t, "table", root)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
}

func TestVerifyCommandIssues(t *testing.T) {
	root := writeDataset(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "extra.txt"), []byte("x"), 0o644))

	out, err := run(t, "yaml", root, "--workers", "1")
	require.ErrorIs(t, err, ErrIssues)
	assert.Contains(t, out, "not indexed")
}

func TestVerifyCommandMissing(t *testing.T) {
	_, err := run(t, "json", t.TempDir())
	assert.True(t, errors.IsNotFound(err))
}
