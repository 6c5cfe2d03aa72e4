// Package index reads and writes the "-index.json" file stored in every
// UNDR directory.
//
// Struct fields are declared in alphabetical order of their JSON names and
// metadata maps are serialized by encoding/json with sorted keys, so the
// output matches a sorted-keys, 4-space indented dump.
package index

import (
	"bytes"
	"encoding/json"
	"os"
	"sort"

	"github.com/google/renameio/v2"

	"github.com/neuromorphicsystems/undrdg/pkg/constants"
	"github.com/neuromorphicsystems/undrdg/pkg/errors"
)

// Version is the index format version.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// Compression describes one compressed copy of a file.
type Compression struct {
	Hash   string `json:"hash"`
	Size   int64  `json:"size"`
	Suffix string `json:"suffix"`
	Type   string `json:"type"`
}

// Entry is a file listed in the index.
// Properties is only set for typed files (dvs, aps, imu).
type Entry struct {
	Compressions []Compression  `json:"compressions"`
	Hash         string         `json:"hash"`
	Metadata     map[string]any `json:"metadata"`
	Name         string         `json:"name"`
	Properties   map[string]any `json:"properties,omitempty"`
	Size         int64          `json:"size"`
}

// Clone returns a deep copy of the entry (metadata values are copied shallowly).
func (e Entry) Clone() Entry {
	clone := e
	clone.Compressions = append([]Compression(nil), e.Compressions...)
	clone.Metadata = cloneMap(e.Metadata)
	clone.Properties = cloneMap(e.Properties)
	return clone
}

// Index is the content of a directory index.
type Index struct {
	Directories []string `json:"directories"`
	DOI         string   `json:"doi,omitempty"`
	Files       []Entry  `json:"files"`
	OtherFiles  []Entry  `json:"other_files"`
	Version     Version  `json:"version"`
}

// Default returns an empty index.
func Default() *Index {
	return &Index{
		Directories: []string{},
		Files:       []Entry{},
		OtherFiles:  []Entry{},
		Version: Version{
			Major: constants.IndexVersionMajor,
			Minor: constants.IndexVersionMinor,
			Patch: constants.IndexVersionPatch,
		},
	}
}

// Clone returns a deep copy of the index.
func (x *Index) Clone() *Index {
	clone := &Index{
		Directories: append([]string{}, x.Directories...),
		DOI:         x.DOI,
		Files:       make([]Entry, len(x.Files)),
		OtherFiles:  make([]Entry, len(x.OtherFiles)),
		Version:     x.Version,
	}
	for i, entry := range x.Files {
		clone.Files[i] = entry.Clone()
	}
	for i, entry := range x.OtherFiles {
		clone.OtherFiles[i] = entry.Clone()
	}
	return clone
}

// Marshal serializes the index with 4-space indentation and a trailing newline.
func (x *Index) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", constants.IndexIndent)
	if err := encoder.Encode(x); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal parses and validates an index. path is only used in error messages.
func Unmarshal(data []byte, path string) (*Index, error) {
	x := &Index{}
	if err := json.Unmarshal(data, x); err != nil {
		return nil, errors.WrapParse("json", path, err)
	}
	if x.Version.Major != constants.IndexVersionMajor {
		return nil, errors.NewValidationError("version.major", x.Version.Major,
			"unsupported index version in "+path)
	}
	if x.Directories == nil {
		x.Directories = []string{}
	}
	if x.Files == nil {
		x.Files = []Entry{}
	}
	if x.OtherFiles == nil {
		x.OtherFiles = []Entry{}
	}
	if err := x.validate(path); err != nil {
		return nil, err
	}
	x.Sort()
	return x, nil
}

func (x *Index) validate(path string) error {
	names := make(map[string]struct{}, len(x.Directories)+len(x.Files)+len(x.OtherFiles))
	add := func(name string) error {
		if name == "" {
			return errors.NewValidationError("name", name, "empty file or directory name in "+path)
		}
		if _, ok := names[name]; ok {
			return errors.NewDuplicateError(name, path)
		}
		names[name] = struct{}{}
		return nil
	}
	for _, directory := range x.Directories {
		if err := add(directory); err != nil {
			return err
		}
	}
	for _, entries := range [][]Entry{x.Files, x.OtherFiles} {
		for i := range entries {
			if err := add(entries[i].Name); err != nil {
				return err
			}
			if entries[i].Metadata == nil {
				entries[i].Metadata = map[string]any{}
			}
		}
	}
	return nil
}

// Sort orders directories by name and entries by their name.
func (x *Index) Sort() {
	sort.Strings(x.Directories)
	sortEntries(x.Files)
	sortEntries(x.OtherFiles)
}

// Names returns every directory and file name listed in the index.
func (x *Index) Names() []string {
	names := make([]string, 0, len(x.Directories)+len(x.Files)+len(x.OtherFiles))
	names = append(names, x.Directories...)
	for _, entry := range x.Files {
		names = append(names, entry.Name)
	}
	for _, entry := range x.OtherFiles {
		names = append(names, entry.Name)
	}
	return names
}

// InsertDirectory adds name to the sorted directory list unless it is already present.
func (x *Index) InsertDirectory(name string) {
	i := sort.SearchStrings(x.Directories, name)
	if i < len(x.Directories) && x.Directories[i] == name {
		return
	}
	x.Directories = append(x.Directories, "")
	copy(x.Directories[i+1:], x.Directories[i:])
	x.Directories[i] = name
}

// InsertFile adds or replaces a typed file entry.
func (x *Index) InsertFile(entry Entry) {
	x.Files = insertEntry(x.Files, entry)
}

// InsertOtherFile adds or replaces an untyped file entry.
func (x *Index) InsertOtherFile(entry Entry) {
	x.OtherFiles = insertEntry(x.OtherFiles, entry)
}

func insertEntry(entries []Entry, entry Entry) []Entry {
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Name >= entry.Name
	})
	if i < len(entries) && entries[i].Name == entry.Name {
		entries[i] = entry
		return entries
	}
	entries = append(entries, Entry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = entry
	return entries
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
}

// Load reads and validates the index at path.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("index", path)
		}
		return nil, errors.WrapIO("read", path, err)
	}
	return Unmarshal(data, path)
}

// Save writes the index atomically: the data is written to a temporary
// file, synced, then renamed over path.
func (x *Index) Save(path string) error {
	data, err := x.Marshal()
	if err != nil {
		return errors.WrapResource("encode", "index", path, err)
	}
	return WriteBytes(path, data)
}

// WriteBytes atomically replaces path with an already serialized index.
func WriteBytes(path string, data []byte) error {
	if err := renameio.WriteFile(path, data, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	clone := make(map[string]any, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}
