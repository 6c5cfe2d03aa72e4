package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/neuromorphicsystems/undrdg/pkg/constants"
	"github.com/neuromorphicsystems/undrdg/pkg/errors"
	"github.com/neuromorphicsystems/undrdg/pkg/raw"
	"github.com/neuromorphicsystems/undrdg/pkg/undr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writeDataset creates root/{notes.txt, train/{a.dvs, b.imu}, test/}.
func writeDataset(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "dataset")
	d, err := undr.NewDirectory(root)
	require.NoError(t, err)

	notes, err := d.CreateOtherFile("notes.txt", nil)
	require.NoError(t, err)
	_, err = notes.WriteString("hello")
	require.NoError(t, err)
	require.NoError(t, notes.Close())

	train, err := d.CreateSubdirectory("train")
	require.NoError(t, err)
	_, err = d.CreateSubdirectory("test")
	require.NoError(t, err)

	dvs, err := train.CreateFile(raw.NewDVSType(34, 34), "a", map[string]any{"original_name": "a.bin"})
	require.NoError(t, err)
	require.NoError(t, dvs.Write(raw.DVSEvents{{T: 1, X: 2, Y: 3, P: 1}, {T: 4, X: 5, Y: 6, P: 0}}))
	require.NoError(t, dvs.Close())

	imu, err := train.CreateFile(raw.IMUType{}, "b", nil)
	require.NoError(t, err)
	require.NoError(t, imu.Write(raw.IMUSamples{{T: 7}}))
	require.NoError(t, imu.Close())
	return root
}

func TestTree(t *testing.T) {
	root := writeDataset(t)

	report, err := Tree(context.Background(), root, WithWorkers(2))
	require.NoError(t, err)
	assert.True(t, report.OK(), "unexpected issues: %v", report.Issues)
	assert.Equal(t, 3, report.Directories)
	assert.Equal(t, 2, report.Files)
	assert.Equal(t, 1, report.OtherFiles)
	assert.Equal(t, int64(5+2*raw.DVSEventSize+raw.IMUSampleSize), report.Size)
	assert.Positive(t, report.CompressedSize)
}

func TestTreeIssues(t *testing.T) {
	root := writeDataset(t)
	train := filepath.Join(root, "train")

	// Swap the two typed files: both decompress but hashes and sizes differ.
	a := filepath.Join(train, "a.dvs"+constants.CompressedSuffix)
	b := filepath.Join(train, "b.imu"+constants.CompressedSuffix)
	aData, err := os.ReadFile(a)
	require.NoError(t, err)
	bData, err := os.ReadFile(b)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(a, bData, 0o644))
	require.NoError(t, os.WriteFile(b, aData, 0o644))

	require.NoError(t, os.Remove(filepath.Join(root, "notes.txt"+constants.CompressedSuffix)))
	require.NoError(t, os.Remove(filepath.Join(root, "test", constants.IndexFileName)))
	require.NoError(t, os.Remove(filepath.Join(root, "test")))
	require.NoError(t, os.WriteFile(filepath.Join(train, "stray.br"), []byte("x"), 0o644))

	report, err := Tree(context.Background(), root)
	require.NoError(t, err)
	assert.False(t, report.OK())

	problems := map[string][]string{}
	for _, issue := range report.Issues {
		rel, err := filepath.Rel(root, issue.Path)
		require.NoError(t, err)
		problems[filepath.ToSlash(rel)] = append(problems[filepath.ToSlash(rel)], issue.Problem)
	}
	assert.Equal(t, []string{"indexed file is missing"}, problems["notes.txt.br"])
	assert.Equal(t, []string{"indexed directory is missing"}, problems["test"])
	assert.Equal(t, []string{"not indexed"}, problems["train/stray.br"])
	for _, name := range []string{"train/a.dvs.br", "train/b.imu.br"} {
		require.GreaterOrEqual(t, len(problems[name]), 3, name)
		assert.Contains(t, problems[name][0], "size is")
		assert.Contains(t, problems[name][1], "hash is")
	}
}

func TestTreeMissingRoot(t *testing.T) {
	_, err := Tree(context.Background(), t.TempDir())
	assert.True(t, errors.IsNotFound(err))
}

func TestTreeCanceled(t *testing.T) {
	root := writeDataset(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Tree(ctx, root)
	assert.True(t, errors.IsCanceled(err))
}
