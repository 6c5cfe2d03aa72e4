package recipe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromorphicsystems/undrdg/pkg/errors"
	"github.com/neuromorphicsystems/undrdg/pkg/tree"
)

const dvsflowRecipe = `
source: input
target: output/dvsflow16
doi: 10.3389/fnins.2016.00176
workers: 4
rules:
  - skip: .DS_Store
  - rename: real samples
    to: real
  - rename_extension: .bin
    to: ""
naming:
  stem_and_date: true
  trim_prefixes: [DAVIS240C-]
  strip_prefixes: ["00000075_0_", "84010015_0_"]
formats:
  .AEDAT:
    format: aerdat2
    headers: true
metadata:
  sensor: davis240c
directory_metadata:
  real samples:
    scene: real
files:
  rotDisk.aedat:
    name: rotating_disk
    date: "2016-03-01T10:00:00+01:00"
    timestamp_fix: sort
`

func writeRecipe(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeRecipe(t, dvsflowRecipe)
	r, err := Load(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, path, r.Path)
	assert.Equal(t, filepath.Join(dir, "input"), r.Source)
	assert.Equal(t, filepath.Join(dir, "output", "dvsflow16"), r.Target)
	assert.Equal(t, "10.3389/fnins.2016.00176", r.DOI)
	assert.Equal(t, 4, r.Workers)
	assert.Equal(t, UnmatchedCopy, r.Unmatched)
	assert.True(t, r.Naming.StemAndDate)
	assert.Equal(t, Strings{"00000075_0_", "84010015_0_"}, r.Naming.StripPrefixes)
	assert.Equal(t, Strings{"DAVIS240C-"}, r.Naming.TrimPrefixes)

	spec, ok := r.Formats[".aedat"]
	require.True(t, ok, "extensions are lower-cased")
	assert.Equal(t, FormatSpec{Format: "aerdat2", Width: 240, Height: 180, Headers: true, TimestampFix: TimestampFixNone}, spec)

	assert.Equal(t, []tree.Rule{
		tree.NewSkipName(".DS_Store"),
		tree.NewRename("real samples", "real"),
		tree.NewRenameExtension(".bin", ""),
	}, r.TreeRules())
}

func TestLookups(t *testing.T) {
	r, err := Load(writeRecipe(t, dvsflowRecipe))
	require.NoError(t, err)

	override, ok := r.Override("real samples/rotDisk.aedat")
	require.True(t, ok)
	assert.Equal(t, "rotating_disk", override.Name)

	spec, ok := r.FormatFor("real samples/rotDisk.aedat", override)
	require.True(t, ok)
	assert.Equal(t, TimestampFixSort, spec.TimestampFix)
	assert.True(t, spec.Headers)

	_, ok = r.FormatFor("real samples/notes.txt", FileOverride{})
	assert.False(t, ok)

	spec, ok = r.FormatFor("a/recording.dat", FileOverride{Format: "aerdat1", TimestampFix: TimestampFixAdd})
	require.True(t, ok)
	assert.Equal(t, FormatSpec{Format: "aerdat1", Width: 128, Height: 128, TimestampFix: TimestampFixAdd}, spec)

	spec, ok = r.FormatFor("real samples/fastDot.aedat", FileOverride{Format: "aerdat1"})
	require.True(t, ok)
	assert.Equal(t, FormatSpec{Format: "aerdat1", Width: 240, Height: 180, Headers: true, TimestampFix: TimestampFixNone}, spec)

	assert.Equal(t, map[string]any{"scene": "real"}, r.DirectoryMetadataFor("real samples/rotDisk.aedat"))
	assert.Nil(t, r.DirectoryMetadataFor("rotDisk.aedat"))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(error) bool
	}{
		{
			name:    "unknown field",
			content: "source: a\ntarget: b\nthreads: 3\n",
		},
		{
			name:    "missing target",
			content: "source: a\n",
			check:   errors.IsValidationError,
		},
		{
			name:    "bad format",
			content: "source: a\ntarget: b\nformats:\n  .dat: {format: evt3}\n",
			check:   errors.IsValidationError,
		},
		{
			name:    "bad timestamp fix",
			content: "source: a\ntarget: b\nformats:\n  .dat: {format: aerdat1, timestamp_fix: reverse}\n",
			check:   errors.IsValidationError,
		},
		{
			name:    "numeric prefix",
			content: "source: a\ntarget: b\nnaming:\n  strip_prefixes: [00000075_0_]\n",
		},
		{
			name:    "extension without dot",
			content: "source: a\ntarget: b\nformats:\n  dat: {format: aerdat1}\n",
			check:   errors.IsValidationError,
		},
		{
			name:    "bad date",
			content: "source: a\ntarget: b\nfiles:\n  x.dat: {date: yesterday}\n",
			check:   errors.IsValidationError,
		},
		{
			name:    "rename without to",
			content: "source: a\ntarget: b\nrules:\n  - rename: x\n",
			check:   errors.IsValidationError,
		},
		{
			name:    "two rule kinds",
			content: "source: a\ntarget: b\nrules:\n  - skip: x\n    rename: y\n    to: z\n",
			check:   errors.IsValidationError,
		},
		{
			name:    "bad unmatched",
			content: "source: a\ntarget: b\nunmatched: ignore\n",
			check:   errors.IsValidationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeRecipe(t, tt.content))
			require.Error(t, err)
			if tt.check != nil {
				assert.True(t, tt.check(err), "unexpected error: %v", err)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsNotFound(err))
}

func TestExampleRecipes(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "examples", "recipes", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			r, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, path, r.Path)
			assert.NotEmpty(t, r.Formats)
		})
	}

	r, err := Load(filepath.Join("..", "..", "examples", "recipes", "dvsflow16.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Strings{"DAVIS240C-"}, r.Naming.TrimPrefixes)
	assert.Equal(t, Strings{"00000075_0_", "84010015_0_"}, r.Naming.StripPrefixes)
}

func TestValidateFormats(t *testing.T) {
	r, err := Parse([]byte("source: a\ntarget: b\nformats:\n  .dat: {format: evt3}\n  .bin: {format: nmnist}\n"))
	require.NoError(t, err)

	err = r.Validate()
	require.Error(t, err)
	var validationErr *errors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "formats[.dat].format", validationErr.Field)
	assert.NotContains(t, err.Error(), ".bin")
}
