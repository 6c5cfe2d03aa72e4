package tree

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/neuromorphicsystems/undrdg/pkg/constants"
	"github.com/neuromorphicsystems/undrdg/pkg/errors"
	"github.com/neuromorphicsystems/undrdg/pkg/index"
	"github.com/neuromorphicsystems/undrdg/pkg/undr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSuffixAndStem(t *testing.T) {
	tests := []struct {
		name, suffix, stem string
	}{
		{"a.tar.gz", ".gz", "a.tar"},
		{".bashrc", "", ".bashrc"},
		{"file.", "", "file."},
		{"00001.bin", ".bin", "00001"},
		{"..a", ".a", "."},
		{"plain", "", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.suffix, Suffix(tt.name))
			assert.Equal(t, tt.stem, Stem(tt.name))
		})
	}
}

func TestApply(t *testing.T) {
	rules := []Rule{
		NewSkipName(".DS_Store"),
		NewRename("Train", "train"),
		NewRename("Train/Sub", "sub"),
		NewRenameExtension(".bin", ""),
		NewRenameExtension(".bin", ".txt"),
	}

	name, keep := Apply(rules, "Train", "Train")
	assert.True(t, keep)
	assert.Equal(t, "train", name)

	name, keep = Apply(rules, "Train/Sub", "Sub")
	assert.True(t, keep)
	assert.Equal(t, "sub", name)

	// Rules match the source path, so both extension rules apply in sequence.
	name, keep = Apply(rules, "Train/00001.bin", "00001.bin")
	assert.True(t, keep)
	assert.Equal(t, "00001.txt", name)

	_, keep = Apply(rules, "Train/.DS_Store", ".DS_Store")
	assert.False(t, keep)
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

var nmnistRules = []Rule{
	NewSkipName(".DS_Store"),
	NewRename("Test", "test"),
	NewRename("Train", "train"),
	NewRenameExtension(".bin", ""),
}

func nmnistTree(t *testing.T) string {
	return writeTree(t, map[string]string{
		".DS_Store":       "x",
		"readme.txt":      "readme",
		"Train/b.bin":     "b",
		"Train/a.bin":     "a",
		"Train/.DS_Store": "x",
		"Test/c.bin":      "c",
	})
}

func TestTasks(t *testing.T) {
	source := nmnistTree(t)
	root, err := undr.NewDirectory(filepath.Join(t.TempDir(), "nmnist"))
	require.NoError(t, err)

	tasks, err := Tasks(source, root, nmnistRules)
	require.NoError(t, err)
	require.Len(t, tasks, 4)

	var names, rels []string
	for i, task := range tasks {
		assert.Equal(t, i, task.Index)
		assert.Equal(t, 4, task.Total)
		assert.Equal(t, source, task.SourceRoot)
		names = append(names, task.TargetName)
		rels = append(rels, task.RelPath)
	}
	assert.Equal(t, []string{"readme.txt", "c", "a", "b"}, names)
	assert.Equal(t, []string{"readme.txt", "Test/c.bin", "Train/a.bin", "Train/b.bin"}, rels)
	assert.Same(t, root, tasks[0].TargetDirectory)
	assert.Equal(t, filepath.Join(root.Path(), "test"), tasks[1].TargetDirectory.Path())
	assert.Equal(t, []string{"test", "train"}, root.Index().Directories)
}

func TestPlan(t *testing.T) {
	source := nmnistTree(t)
	planned, err := Plan(source, nmnistRules)
	require.NoError(t, err)
	require.Len(t, planned, 4)
	assert.Equal(t, PlannedTask{
		Source:     filepath.Join(source, "Train", "b.bin"),
		RelPath:    "Train/b.bin",
		TargetPath: "train",
		TargetName: "b",
	}, planned[3])
	assert.Equal(t, ".", planned[0].TargetPath)
}

func copyHandler(_ context.Context, task *Task) error {
	in, err := os.Open(task.Source)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := task.TargetDirectory.CreateOtherFile(task.TargetName, map[string]any{"original_name": filepath.Base(task.Source)})
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Discard()
		return err
	}
	return out.Close()
}

func TestCopyTree(t *testing.T) {
	source := nmnistTree(t)
	target := filepath.Join(t.TempDir(), "nmnist")

	var progressed atomic.Int32
	err := CopyTree(context.Background(), source, target, nmnistRules, copyHandler,
		WithWorkers(2),
		WithDebouncePeriod(time.Hour),
		WithDOI("10.3389/fnins.2015.00437"),
		WithProgress(func(*Task) { progressed.Add(1) }),
	)
	require.NoError(t, err)
	assert.Equal(t, int32(4), progressed.Load())

	rootIndex, err := index.Load(filepath.Join(target, constants.IndexFileName))
	require.NoError(t, err)
	assert.Equal(t, "10.3389/fnins.2015.00437", rootIndex.DOI)
	assert.Equal(t, []string{"test", "train"}, rootIndex.Directories)
	require.Len(t, rootIndex.OtherFiles, 1)
	assert.Equal(t, "readme.txt", rootIndex.OtherFiles[0].Name)

	trainIndex, err := index.Load(filepath.Join(target, "train", constants.IndexFileName))
	require.NoError(t, err)
	assert.Empty(t, trainIndex.DOI)
	require.Len(t, trainIndex.OtherFiles, 2)
	assert.Equal(t, "a", trainIndex.OtherFiles[0].Name)
	assert.Equal(t, "a.bin", trainIndex.OtherFiles[0].Metadata["original_name"])
	assert.FileExists(t, filepath.Join(target, "train", "b.br"))
}

func TestCopyTreeStopsOnError(t *testing.T) {
	source := nmnistTree(t)
	target := filepath.Join(t.TempDir(), "nmnist")
	failure := errors.New("conversion failed")

	err := CopyTree(context.Background(), source, target, nmnistRules, func(ctx context.Context, task *Task) error {
		if task.TargetName == "c" {
			return failure
		}
		return copyHandler(ctx, task)
	}, WithWorkers(1))
	require.ErrorIs(t, err, failure)

	// Directories created during the walk are flushed even on failure.
	rootIndex, err := index.Load(filepath.Join(target, constants.IndexFileName))
	require.NoError(t, err)
	assert.Equal(t, []string{"test", "train"}, rootIndex.Directories)
}

func TestCopyTreeCanceled(t *testing.T) {
	source := nmnistTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := CopyTree(ctx, source, filepath.Join(t.TempDir(), "nmnist"), nmnistRules, copyHandler)
	assert.True(t, errors.IsCanceled(err) || errors.Is(err, context.Canceled))
}
