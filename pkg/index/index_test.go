package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromorphicsystems/undrdg/pkg/errors"
)

const defaultIndex = `{
    "directories": [],
    "files": [],
    "other_files": [],
    "version": {
        "major": 1,
        "minor": 0,
        "patch": 0
    }
}
`

func TestDefaultMarshal(t *testing.T) {
	data, err := Default().Marshal()
	require.NoError(t, err)
	assert.Equal(t, defaultIndex, string(data))
}

func TestMarshalEntry(t *testing.T) {
	x := Default()
	x.DOI = "10.3389/fnins.2016.00176"
	x.InsertFile(Entry{
		Compressions: []Compression{{Hash: "bb", Size: 3, Suffix: ".br", Type: "brotli"}},
		Hash:         "aa",
		Metadata:     map[string]any{"sensor": "davis240c", "date": "2016-01-01T00:00:00Z"},
		Name:         "a.dvs",
		Properties:   map[string]any{"type": "dvs", "width": 240, "height": 180},
		Size:         13,
	})
	data, err := x.Marshal()
	require.NoError(t, err)

	expected := `{
    "directories": [],
    "doi": "10.3389/fnins.2016.00176",
    "files": [
        {
            "compressions": [
                {
                    "hash": "bb",
                    "size": 3,
                    "suffix": ".br",
                    "type": "brotli"
                }
            ],
            "hash": "aa",
            "metadata": {
                "date": "2016-01-01T00:00:00Z",
                "sensor": "davis240c"
            },
            "name": "a.dvs",
            "properties": {
                "height": 180,
                "type": "dvs",
                "width": 240
            },
            "size": 13
        }
    ],
    "other_files": [],
    "version": {
        "major": 1,
        "minor": 0,
        "patch": 0
    }
}
`
	if diff := cmp.Diff(expected, string(data)); diff != "" {
		t.Errorf("Marshal() mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalKeepsNonASCII(t *testing.T) {
	x := Default()
	x.InsertOtherFile(Entry{Name: "café <1>.txt", Metadata: map[string]any{}})
	data, err := x.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "café <1>.txt"`)
}

func TestInsertKeepsOrder(t *testing.T) {
	x := Default()
	for _, name := range []string{"b", "a", "c", "a"} {
		x.InsertDirectory(name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, x.Directories)

	x.InsertFile(Entry{Name: "z.dvs", Size: 1})
	x.InsertFile(Entry{Name: "m.dvs", Size: 2})
	x.InsertFile(Entry{Name: "z.dvs", Size: 3})
	require.Len(t, x.Files, 2)
	assert.Equal(t, "m.dvs", x.Files[0].Name)
	assert.Equal(t, int64(3), x.Files[1].Size)

	assert.ElementsMatch(t, []string{"a", "b", "c", "m.dvs", "z.dvs"}, x.Names())
}

func TestUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		check   func(error) bool
		wantErr bool
	}{
		{
			name: "default",
			data: defaultIndex,
		},
		{
			name:    "invalid json",
			data:    "{",
			wantErr: true,
		},
		{
			name:    "unsupported version",
			data:    `{"directories": [], "files": [], "other_files": [], "version": {"major": 2, "minor": 0, "patch": 0}}`,
			check:   errors.IsValidationError,
			wantErr: true,
		},
		{
			name:    "duplicate directory and file",
			data:    `{"directories": ["a"], "files": [{"name": "a"}], "other_files": [], "version": {"major": 1, "minor": 0, "patch": 0}}`,
			check:   errors.IsCorrupted,
			wantErr: true,
		},
		{
			name:    "empty name",
			data:    `{"directories": [], "files": [], "other_files": [{"name": ""}], "version": {"major": 1, "minor": 0, "patch": 0}}`,
			check:   errors.IsValidationError,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, err := Unmarshal([]byte(tt.data), "test/-index.json")
			if tt.wantErr {
				require.Error(t, err)
				if tt.check != nil {
					assert.True(t, tt.check(err), "unexpected error type: %v", err)
				}
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, x.Files)
		})
	}
}

func TestUnmarshalSorts(t *testing.T) {
	data := `{"directories": ["b", "a"], "files": [{"name": "y"}, {"name": "x"}], "other_files": [], "version": {"major": 1, "minor": 0, "patch": 0}}`
	x, err := Unmarshal([]byte(data), "-index.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, x.Directories)
	assert.Equal(t, "x", x.Files[0].Name)
	assert.NotNil(t, x.Files[0].Metadata)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "-index.json")

	_, err := Load(path)
	assert.True(t, errors.IsNotFound(err))

	x := Default()
	x.InsertDirectory("train")
	x.InsertOtherFile(Entry{Name: "header.txt", Metadata: map[string]any{"k": "v"}})
	require.NoError(t, x.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(x, loaded); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary file must be left behind")
}

func TestClone(t *testing.T) {
	x := Default()
	x.InsertFile(Entry{Name: "a", Metadata: map[string]any{"k": "v"}})
	clone := x.Clone()
	clone.Files[0].Metadata["k"] = "changed"
	clone.InsertDirectory("d")
	assert.Equal(t, "v", x.Files[0].Metadata["k"])
	assert.Empty(t, x.Directories)
}
