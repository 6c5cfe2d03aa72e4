// Package undr writes UNDR datasets: directories carrying a "-index.json"
// file and brotli-compressed data files registered in that index.
//
// A Directory owns its index. Files are streamed through a brotli encoder
// into a pending temporary file and registered in the index of their
// directory when closed. Directories either rewrite their index after each
// change or delegate the writes to a Debouncer.
package undr

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/neuromorphicsystems/undrdg/pkg/constants"
	"github.com/neuromorphicsystems/undrdg/pkg/errors"
	"github.com/neuromorphicsystems/undrdg/pkg/index"
	"github.com/neuromorphicsystems/undrdg/pkg/raw"
)

// DirectoryOption configures a Directory.
type DirectoryOption func(*directoryOptions)

type directoryOptions struct {
	debouncer *Debouncer
	doi       string
}

// WithDebouncer delegates index writes to debouncer.
func WithDebouncer(debouncer *Debouncer) DirectoryOption {
	return func(o *directoryOptions) {
		o.debouncer = debouncer
	}
}

// WithDOI records a DOI in the index. It is only meaningful for the dataset root.
func WithDOI(doi string) DirectoryOption {
	return func(o *directoryOptions) {
		o.doi = doi
	}
}

// Directory is a dataset directory and its index.
//
// updateMu guards index and added. writeMu serializes index writes; it is
// acquired before updateMu is released so that snapshots reach the disk in
// the order they were taken.
type Directory struct {
	path      string
	indexPath string
	debouncer *Debouncer

	updateMu sync.Mutex
	writeMu  sync.Mutex
	index    *index.Index
	added    map[string]struct{}
}

// NewDirectory opens the directory at path, creating it (but not its
// parents) and a default index when they do not exist.
func NewDirectory(path string, opts ...DirectoryOption) (*Directory, error) {
	options := &directoryOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if err := os.Mkdir(path, constants.DirPermissions); err != nil && !os.IsExist(err) {
		return nil, errors.WrapIO("create", path, err)
	}
	d := &Directory{
		path:      path,
		indexPath: filepath.Join(path, constants.IndexFileName),
		debouncer: options.debouncer,
		added:     make(map[string]struct{}),
	}
	if _, err := os.Stat(d.indexPath); os.IsNotExist(err) {
		if err := index.Default().Save(d.indexPath); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, errors.WrapIO("stat", d.indexPath, err)
	}
	loaded, err := index.Load(d.indexPath)
	if err != nil {
		return nil, err
	}
	d.index = loaded
	if options.doi != "" && d.index.DOI != options.doi {
		d.index.DOI = options.doi
		if err := d.SaveIndex(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Path returns the directory path.
func (d *Directory) Path() string {
	return d.path
}

// IndexPath returns the path of the directory index.
func (d *Directory) IndexPath() string {
	return d.indexPath
}

// Index returns a copy of the in-memory index.
func (d *Directory) Index() *index.Index {
	d.updateMu.Lock()
	defer d.updateMu.Unlock()
	return d.index.Clone()
}

// CreateSubdirectory registers name in the index and opens the child directory.
// The child uses the given options (typically the same debouncer).
func (d *Directory) CreateSubdirectory(name string, opts ...DirectoryOption) (*Directory, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	d.updateMu.Lock()
	if err := d.claim(name); err != nil {
		d.updateMu.Unlock()
		return nil, err
	}
	d.index.InsertDirectory(name)
	if err := d.changed(); err != nil {
		return nil, err
	}
	return NewDirectory(filepath.Join(d.path, name), opts...)
}

// CreateFile creates the typed file "<name>.<extension>.br".
// An existing file with the same name is replaced when the new one is closed.
func (d *Directory) CreateFile(fileType raw.Type, name string, metadata map[string]any) (*File, error) {
	return newFile(d, fileType, name, metadata)
}

// CreateOtherFile creates the untyped file "<name>.br". name includes the extension.
func (d *Directory) CreateOtherFile(name string, metadata map[string]any) (*OtherFile, error) {
	return newOtherFile(d, name, metadata)
}

// SaveIndex writes the index to disk. It is safe for concurrent use.
func (d *Directory) SaveIndex() error {
	d.updateMu.Lock()
	return d.save()
}

// register adds a closed file to the index.
func (d *Directory) register(entry index.Entry, typed bool) error {
	d.updateMu.Lock()
	if err := d.claim(entry.Name); err != nil {
		d.updateMu.Unlock()
		return err
	}
	if typed {
		d.index.InsertFile(entry)
	} else {
		d.index.InsertOtherFile(entry)
	}
	return d.changed()
}

// claim must be called with updateMu held.
func (d *Directory) claim(name string) error {
	if _, ok := d.added[name]; ok {
		return errors.NewAlreadyExistsError(name, d.indexPath)
	}
	d.added[name] = struct{}{}
	return nil
}

// changed must be called with updateMu held and releases it.
func (d *Directory) changed() error {
	if d.debouncer != nil && d.debouncer.set(d) {
		d.updateMu.Unlock()
		return nil
	}
	return d.save()
}

// save must be called with updateMu held and releases it.
func (d *Directory) save() error {
	data, err := d.index.Marshal()
	d.writeMu.Lock()
	d.updateMu.Unlock()
	defer d.writeMu.Unlock()
	if err != nil {
		return errors.WrapResource("encode", "index", d.indexPath, err)
	}
	return index.WriteBytes(d.indexPath, data)
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return errors.NewValidationError("name", name, "must be a single path component")
	}
	return nil
}
