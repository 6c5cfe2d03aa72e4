// Package tree converts a source directory tree into an UNDR dataset.
//
// The source tree is walked once, in a deterministic order, to build the
// target directories and a list of tasks (one per source file). Tasks are
// then run by a handler on a bounded pool of workers.
package tree

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/neuromorphicsystems/undrdg/pkg/constants"
	"github.com/neuromorphicsystems/undrdg/pkg/errors"
	"github.com/neuromorphicsystems/undrdg/pkg/logging"
	"github.com/neuromorphicsystems/undrdg/pkg/undr"
)

// Task is a source file to convert.
type Task struct {
	// Source is the path of the source file.
	Source string
	// SourceRoot is the root of the source tree.
	SourceRoot string
	// RelPath is the slash-separated path of Source relative to SourceRoot.
	RelPath string
	// TargetDirectory is the dataset directory the output must be written to.
	TargetDirectory *undr.Directory
	// TargetName is the source name after renaming rules.
	TargetName string
	// Index is the position of the task, in [0, Total).
	Index int
	Total int
}

// Handler converts one task.
type Handler func(ctx context.Context, task *Task) error

type node struct {
	source  string
	relPath string
	name    string
	dir     bool
}

// listNodes returns the children of dir that survive the rules, directories
// first, each group sorted by source name.
func listNodes(sourceRoot, dir string, rules []Rule) ([]node, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WrapIO("read", dir, err)
	}
	nodes := make([]node, 0, len(entries))
	for _, entry := range entries {
		source := filepath.Join(dir, entry.Name())
		isDir, err := isDirectory(source, entry)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(sourceRoot, source)
		if err != nil {
			return nil, errors.WrapIO("resolve", source, err)
		}
		rel = filepath.ToSlash(rel)
		name, keep := Apply(rules, rel, entry.Name())
		if !keep {
			continue
		}
		nodes = append(nodes, node{source: source, relPath: rel, name: name, dir: isDir})
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].dir != nodes[j].dir {
			return nodes[i].dir
		}
		return path.Base(nodes[i].relPath) < path.Base(nodes[j].relPath)
	})
	return nodes, nil
}

func isDirectory(source string, entry os.DirEntry) (bool, error) {
	if entry.Type()&os.ModeSymlink == 0 {
		return entry.IsDir(), nil
	}
	info, err := os.Stat(source)
	if err != nil {
		return false, errors.WrapIO("stat", source, err)
	}
	return info.IsDir(), nil
}

// Tasks walks source and returns one task per file. Files of a directory
// come before the files of its sub-directories. Target sub-directories are
// created (and registered in their parent index) during the walk; opts are
// passed to every created directory.
func Tasks(source string, target *undr.Directory, rules []Rule, opts ...undr.DirectoryOption) ([]*Task, error) {
	var tasks []*Task
	var walk func(dir string, target *undr.Directory) error
	walk = func(dir string, target *undr.Directory) error {
		nodes, err := listNodes(source, dir, rules)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			if !n.dir {
				tasks = append(tasks, &Task{
					Source:          n.source,
					SourceRoot:      source,
					RelPath:         n.relPath,
					TargetDirectory: target,
					TargetName:      n.name,
				})
			}
		}
		for _, n := range nodes {
			if n.dir {
				child, err := target.CreateSubdirectory(n.name, opts...)
				if err != nil {
					return err
				}
				if err := walk(n.source, child); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(source, target); err != nil {
		return nil, err
	}
	for i, task := range tasks {
		task.Index = i
		task.Total = len(tasks)
	}
	return tasks, nil
}

// PlannedTask describes a task without touching the target.
type PlannedTask struct {
	Source     string
	RelPath    string
	TargetPath string
	TargetName string
}

// Plan walks source in the same order as Tasks but creates nothing.
// TargetPath is the slash-separated target directory relative to the dataset root.
func Plan(source string, rules []Rule) ([]PlannedTask, error) {
	var planned []PlannedTask
	var walk func(dir, targetPath string) error
	walk = func(dir, targetPath string) error {
		nodes, err := listNodes(source, dir, rules)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			if !n.dir {
				planned = append(planned, PlannedTask{
					Source:     n.source,
					RelPath:    n.relPath,
					TargetPath: targetPath,
					TargetName: n.name,
				})
			}
		}
		for _, n := range nodes {
			if n.dir {
				if err := walk(n.source, path.Join(targetPath, n.name)); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(source, "."); err != nil {
		return nil, err
	}
	return planned, nil
}

// Option configures CopyTree.
type Option func(*options)

type options struct {
	workers        int
	debouncePeriod time.Duration
	doi            string
	progress       func(task *Task)
}

// WithWorkers sets the number of concurrent handlers. Values below 1 select
// the number of CPUs.
func WithWorkers(workers int) Option {
	return func(o *options) {
		o.workers = workers
	}
}

// WithDebouncePeriod sets the interval between index writes.
func WithDebouncePeriod(period time.Duration) Option {
	return func(o *options) {
		o.debouncePeriod = period
	}
}

// WithDOI records the dataset DOI in the root index.
func WithDOI(doi string) Option {
	return func(o *options) {
		o.doi = doi
	}
}

// WithProgress registers a callback invoked after each successful task.
// It is called concurrently from the workers.
func WithProgress(progress func(task *Task)) Option {
	return func(o *options) {
		o.progress = progress
	}
}

// CopyTree converts source into the dataset directory target (its parent
// must exist). The handler is called once per task on a pool of workers;
// the first error cancels the remaining tasks. Indexes are flushed before
// CopyTree returns, including on failure.
func CopyTree(ctx context.Context, source, target string, rules []Rule, handler Handler, opts ...Option) (err error) {
	o := &options{
		debouncePeriod: constants.DebouncePeriod,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.workers < 1 {
		o.workers = runtime.NumCPU()
	}
	logger := logging.FromContext(ctx)

	debouncer := undr.NewDebouncer(undr.WithPeriod(o.debouncePeriod))
	defer func() {
		err = errors.Join(err, debouncer.Close())
	}()

	root, err := undr.NewDirectory(target, undr.WithDebouncer(debouncer), undr.WithDOI(o.doi))
	if err != nil {
		return err
	}
	tasks, err := Tasks(source, root, rules, undr.WithDebouncer(debouncer))
	if err != nil {
		return err
	}
	logger.Debug().
		Str("source", source).
		Str("target", target).
		Int("tasks", len(tasks)).
		Int("workers", o.workers).
		Msg("Starting tree conversion")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for _, task := range tasks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := handler(gctx, task); err != nil {
				return err
			}
			if o.progress != nil {
				o.progress(task)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrCanceled, err)
	}
	return nil
}
