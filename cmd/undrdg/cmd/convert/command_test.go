package convert

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
	"github.com/neuromorphicsystems/undrdg/pkg/constants"
	dataset "github.com/neuromorphicsystems/undrdg/pkg/convert"
)

const recipeYAML = `
source: source
target: out/nmnist
rules:
  - rename: Train
    to: train
  - rename_extension: .bin
    to: ""
formats:
  .bin:
    format: nmnist
`

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string][]byte{
		"recipe.yaml":            []byte(recipeYAML),
		"source/Train/00001.bin": {1, 2, 0x80, 0, 1, 3, 4, 0, 0, 2},
		"source/readme.txt":      []byte("readme"),
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, content, 0o644))
	}
	return dir
}

func run(t *testing.T, app application.Application, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand(app)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func jsonApp() *application.Mock {
	return &application.Mock{OutputFormatFunc: func() string { return "json" }}
}

func TestConvertCommand(t *testing.T) {
	dir := writeFixture(t)

	out, err := run(t, jsonApp(), filepath.Join(dir, "recipe.yaml"))
	require.NoError(t, err)

	var summary dataset.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 1, summary.Converted)
	assert.Equal(t, 1, summary.Copied)
	assert.Equal(t, int64(2), summary.Events)

	assert.FileExists(t, filepath.Join(dir, "out", "nmnist", constants.IndexFileName))
	assert.FileExists(t, filepath.Join(dir, "out", "nmnist", "train", "00001.dvs"+constants.CompressedSuffix))
	assert.FileExists(t, filepath.Join(dir, "out", "nmnist", "readme.txt"+constants.CompressedSuffix))
}

func TestConvertCommandTarget(t *testing.T) {
	dir := writeFixture(t)
	target := filepath.Join(t.TempDir(), "elsewhere")

	_, err := run(t, jsonApp(), filepath.Join(dir, "recipe.yaml"), "--target", target, "--workers", "1")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(target, constants.IndexFileName))
	assert.NoDirExists(t, filepath.Join(dir, "out"))
}

func TestConvertCommandDryRun(t *testing.T) {
	dir := writeFixture(t)

	out, err := run(t, jsonApp(), filepath.Join(dir, "recipe.yaml"), "--dry-run")
	require.NoError(t, err)

	var planned []dataset.PlannedFile
	require.NoError(t, json.Unmarshal([]byte(out), &planned))
	assert.Equal(t, []dataset.PlannedFile{
		{Source: "readme.txt", Target: "readme.txt", Action: dataset.ActionCopy},
		{Source: "Train/00001.bin", Target: "train/00001", Action: dataset.ActionConvert, Format: "nmnist"},
	}, planned)
	assert.NoDirExists(t, filepath.Join(dir, "out"))
}

func TestConvertCommandTable(t *testing.T) {
	dir := writeFixture(t)

	out, err := run(t, &application.Mock{}, filepath.Join(dir, "recipe.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Converted")
	assert.Contains(t, out, "DVS events")
}

func TestConvertCommandErrors(t *testing.T) {
	_, err := run(t, jsonApp())
	assert.Error(t, err)

	_, err = run(t, jsonApp(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
