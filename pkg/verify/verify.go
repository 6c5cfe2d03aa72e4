// Package verify checks a generated dataset against its indexes.
//
// Every indexed directory must exist and every indexed file must decompress
// to the recorded size and hashes. Typed files must hold whole records.
// Files present on disk but absent from the indexes are reported too.
package verify

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/andybalholm/brotli"
	"golang.org/x/sync/errgroup"

	"github.com/neuromorphicsystems/undrdg/pkg/constants"
	"github.com/neuromorphicsystems/undrdg/pkg/errors"
	"github.com/neuromorphicsystems/undrdg/pkg/index"
	"github.com/neuromorphicsystems/undrdg/pkg/logging"
	"github.com/neuromorphicsystems/undrdg/pkg/raw"
	"github.com/neuromorphicsystems/undrdg/pkg/undr"
)

// Issue is a problem found in the dataset.
type Issue struct {
	Path    string `json:"path" yaml:"path"`
	Problem string `json:"problem" yaml:"problem"`
}

// Report is the result of a verification.
type Report struct {
	Root           string  `json:"root" yaml:"root"`
	Directories    int     `json:"directories" yaml:"directories"`
	Files          int     `json:"files" yaml:"files"`
	OtherFiles     int     `json:"other_files" yaml:"other_files"`
	Size           int64   `json:"size" yaml:"size"`
	CompressedSize int64   `json:"compressed_size" yaml:"compressed_size"`
	Issues         []Issue `json:"issues" yaml:"issues"`
}

// OK reports whether no issue was found.
func (r *Report) OK() bool {
	return len(r.Issues) == 0
}

// Option configures Tree.
type Option func(*options)

type options struct {
	workers int
}

// WithWorkers sets the number of files checked concurrently. Values below 1
// select the number of CPUs.
func WithWorkers(workers int) Option {
	return func(o *options) {
		o.workers = workers
	}
}

type checker struct {
	mu     sync.Mutex
	report *Report
}

func (c *checker) issue(path, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.Issues = append(c.report.Issues, Issue{Path: path, Problem: fmt.Sprintf(format, args...)})
}

func (c *checker) count(fn func(r *Report)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.report)
}

// Tree verifies the dataset rooted at root. Problems with the dataset are
// returned in the report; the error is reserved for a missing root index
// and cancellation.
func Tree(ctx context.Context, root string, opts ...Option) (*Report, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.workers < 1 {
		o.workers = runtime.NumCPU()
	}
	if _, err := index.Load(filepath.Join(root, constants.IndexFileName)); err != nil {
		if errors.IsNotFound(err) {
			return nil, err
		}
	}

	c := &checker{report: &Report{Root: root, Issues: []Issue{}}}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	var walk func(dir string) error
	walk = func(dir string) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		c.count(func(r *Report) { r.Directories++ })
		x, err := index.Load(filepath.Join(dir, constants.IndexFileName))
		if err != nil {
			c.issue(dir, "index: %v", err)
			return nil
		}
		expected := map[string]bool{constants.IndexFileName: true}
		for _, name := range x.Directories {
			expected[name] = true
		}
		for _, entries := range [][]index.Entry{x.Files, x.OtherFiles} {
			for _, entry := range entries {
				for _, compression := range entry.Compressions {
					expected[entry.Name+compression.Suffix] = true
				}
			}
		}

		for _, entry := range x.Files {
			g.Go(func() error {
				checkFile(gctx, c, dir, entry, true)
				return gctx.Err()
			})
		}
		for _, entry := range x.OtherFiles {
			g.Go(func() error {
				checkFile(gctx, c, dir, entry, false)
				return gctx.Err()
			})
		}

		names, err := os.ReadDir(dir)
		if err != nil {
			c.issue(dir, "read: %v", err)
			return nil
		}
		for _, name := range names {
			if !expected[name.Name()] {
				c.issue(filepath.Join(dir, name.Name()), "not indexed")
			}
		}
		for _, name := range x.Directories {
			child := filepath.Join(dir, name)
			info, err := os.Stat(child)
			if err != nil || !info.IsDir() {
				c.issue(child, "indexed directory is missing")
				continue
			}
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}

	walkErr := walk(root)
	err := g.Wait()
	if walkErr != nil {
		err = walkErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrCanceled, err)
	}

	report := c.report
	sort.SliceStable(report.Issues, func(i, j int) bool {
		return report.Issues[i].Path < report.Issues[j].Path
	})
	logging.FromContext(ctx).Debug().
		Str("root", root).
		Int("files", report.Files).
		Int("issues", len(report.Issues)).
		Msg("Verified dataset")
	return report, nil
}

func checkFile(ctx context.Context, c *checker, dir string, entry index.Entry, typed bool) {
	if ctx.Err() != nil {
		return
	}
	c.count(func(r *Report) {
		if typed {
			r.Files++
		} else {
			r.OtherFiles++
		}
		r.Size += entry.Size
	})

	var recordSize int
	if typed {
		fileType, err := raw.TypeFromProperties(entry.Properties)
		if err != nil {
			c.issue(filepath.Join(dir, entry.Name), "properties: %v", err)
		} else {
			recordSize = fileType.RecordSize()
		}
	}
	if recordSize > 0 && entry.Size%int64(recordSize) != 0 {
		c.issue(filepath.Join(dir, entry.Name), "size %d is not a multiple of the record size %d", entry.Size, recordSize)
	}

	if len(entry.Compressions) == 0 {
		c.issue(filepath.Join(dir, entry.Name), "no compression listed")
		return
	}
	for _, compression := range entry.Compressions {
		path := filepath.Join(dir, entry.Name+compression.Suffix)
		if compression.Type != constants.CompressionType {
			c.issue(path, "unsupported compression %q", compression.Type)
			continue
		}
		c.count(func(r *Report) { r.CompressedSize += compression.Size })
		checkCompressed(c, path, entry, compression)
	}
}

type counter struct {
	n int64
}

func (c *counter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

func checkCompressed(c *checker, path string, entry index.Entry, compression index.Compression) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.issue(path, "indexed file is missing")
			return
		}
		c.issue(path, "open: %v", err)
		return
	}
	defer f.Close()

	compressedHash := undr.NewHash()
	var compressedSize counter
	compressed := io.TeeReader(f, io.MultiWriter(compressedHash, &compressedSize))
	hash := undr.NewHash()
	var size counter
	buffer := make([]byte, constants.ReadChunkSize)
	if _, err := io.CopyBuffer(io.MultiWriter(hash, &size), brotli.NewReader(compressed), buffer); err != nil {
		c.issue(path, "decompress: %v", err)
		return
	}
	if _, err := io.CopyBuffer(io.Discard, compressed, buffer); err != nil {
		c.issue(path, "read: %v", err)
		return
	}

	if size.n != entry.Size {
		c.issue(path, "size is %d, index says %d", size.n, entry.Size)
	}
	if digest := hex.EncodeToString(hash.Sum(nil)); digest != entry.Hash {
		c.issue(path, "hash is %s, index says %s", digest, entry.Hash)
	}
	if compressedSize.n != compression.Size {
		c.issue(path, "compressed size is %d, index says %d", compressedSize.n, compression.Size)
	}
	if digest := hex.EncodeToString(compressedHash.Sum(nil)); digest != compression.Hash {
		c.issue(path, "compressed hash is %s, index says %s", digest, compression.Hash)
	}
}
