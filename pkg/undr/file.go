package undr

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"path/filepath"

	"github.com/andybalholm/brotli"
	"github.com/google/renameio/v2"
	"golang.org/x/crypto/sha3"

	"github.com/neuromorphicsystems/undrdg/pkg/constants"
	"github.com/neuromorphicsystems/undrdg/pkg/errors"
	"github.com/neuromorphicsystems/undrdg/pkg/index"
	"github.com/neuromorphicsystems/undrdg/pkg/raw"
)

// NewHash returns the hash used for UNDR file digests (SHA3-224).
func NewHash() hash.Hash {
	return sha3.New224()
}

// NewCompressor wraps w with a brotli encoder using the UNDR settings.
func NewCompressor(w io.Writer) *brotli.Writer {
	return brotli.NewWriterOptions(w, brotli.WriterOptions{
		Quality: constants.BrotliQuality,
		LGWin:   constants.BrotliWindow,
	})
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

// baseFile implements the logic shared by File and OtherFile.
type baseFile struct {
	directory *Directory
	path      string
	typed     bool

	pending          *renameio.PendingFile
	encoder          *brotli.Writer
	uncompressedHash hash.Hash
	compressedHash   hash.Hash
	compressedSize   countingWriter
	entry            index.Entry
	done             bool
}

func newBaseFile(directory *Directory, name string, metadata map[string]any, typed bool) (*baseFile, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	path := filepath.Join(directory.path, name+constants.CompressedSuffix)
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(constants.FilePermissions))
	if err != nil {
		return nil, errors.WrapIO("create", path, err)
	}
	f := &baseFile{
		directory:        directory,
		path:             path,
		typed:            typed,
		pending:          pending,
		uncompressedHash: NewHash(),
		compressedHash:   NewHash(),
		entry: index.Entry{
			Metadata: metadata,
			Name:     name,
		},
	}
	f.encoder = NewCompressor(io.MultiWriter(pending, f.compressedHash, &f.compressedSize))
	return f, nil
}

// Path returns the final path of the compressed file.
func (f *baseFile) Path() string {
	return f.path
}

// Name returns the file name registered in the index (without ".br").
func (f *baseFile) Name() string {
	return f.entry.Name
}

// Size returns the number of uncompressed bytes written so far.
func (f *baseFile) Size() int64 {
	return f.entry.Size
}

func (f *baseFile) writeRaw(data []byte) error {
	if f.done {
		return errors.ErrClosed
	}
	if _, err := f.encoder.Write(data); err != nil {
		return errors.WrapIO("write", f.path, err)
	}
	f.uncompressedHash.Write(data)
	f.entry.Size += int64(len(data))
	return nil
}

// Close finishes the compressed stream, moves the file into place and
// registers it in the directory index.
func (f *baseFile) Close() error {
	if f.done {
		return fmt.Errorf("%w: close called twice for file %s", errors.ErrClosed, f.path)
	}
	f.done = true
	defer func() { _ = f.pending.Cleanup() }()

	if err := f.encoder.Close(); err != nil {
		return errors.WrapIO("write", f.path, err)
	}
	if err := f.pending.CloseAtomicallyReplace(); err != nil {
		return errors.WrapIO("rename", f.path, err)
	}
	f.entry.Hash = hex.EncodeToString(f.uncompressedHash.Sum(nil))
	f.entry.Compressions = []index.Compression{{
		Hash:   hex.EncodeToString(f.compressedHash.Sum(nil)),
		Size:   f.compressedSize.n,
		Suffix: constants.CompressedSuffix,
		Type:   constants.CompressionType,
	}}
	return f.directory.register(f.entry, f.typed)
}

// Discard abandons the file: the pending data is removed and the index is
// left untouched. Discard after Close is a no-op.
func (f *baseFile) Discard() error {
	if f.done {
		return nil
	}
	f.done = true
	return f.pending.Cleanup()
}

// File is a typed UNDR file (dvs, aps or imu records).
type File struct {
	*baseFile
	fileType raw.Type
	buffer   []byte
}

func newFile(directory *Directory, fileType raw.Type, name string, metadata map[string]any) (*File, error) {
	base, err := newBaseFile(directory, name+"."+fileType.Extension(), metadata, true)
	if err != nil {
		return nil, err
	}
	base.entry.Properties = fileType.Properties()
	return &File{baseFile: base, fileType: fileType}, nil
}

// Type returns the file type.
func (f *File) Type() raw.Type {
	return f.fileType
}

// Write encodes and compresses records. It may be called any number of
// times before Close.
func (f *File) Write(records raw.Records) error {
	if err := f.fileType.Accepts(records); err != nil {
		return err
	}
	f.buffer = records.AppendBinary(f.buffer[:0])
	return f.writeRaw(f.buffer)
}

// OtherFile is an untyped file (header, documentation, unknown formats).
type OtherFile struct {
	*baseFile
}

func newOtherFile(directory *Directory, name string, metadata map[string]any) (*OtherFile, error) {
	base, err := newBaseFile(directory, name, metadata, false)
	if err != nil {
		return nil, err
	}
	return &OtherFile{baseFile: base}, nil
}

// Write implements io.Writer.
func (f *OtherFile) Write(p []byte) (int, error) {
	if err := f.writeRaw(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteString implements io.StringWriter.
func (f *OtherFile) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}
