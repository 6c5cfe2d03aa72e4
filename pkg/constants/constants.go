// Package constants provides shared constants used throughout the undrdg codebase.
// This includes file names, permissions, compression settings and worker limits
// that must stay consistent between the writer and the verifier.
package constants

import "time"

// UNDR layout constants
const (
	// IndexFileName is the name of the index stored in every dataset directory
	IndexFileName = "-index.json"

	// CompressedSuffix is appended to every compressed file name
	CompressedSuffix = ".br"

	// CompressionType is the compression name recorded in the index
	CompressionType = "brotli"

	// IndexIndent is the indentation used when serializing indexes
	IndexIndent = "    "
)

// Index format version written into new indexes
const (
	IndexVersionMajor = 1
	IndexVersionMinor = 0
	IndexVersionPatch = 0
)

// Compression constants
const (
	// BrotliQuality is the compression quality (0-11)
	BrotliQuality = 11

	// BrotliWindow is the base-2 logarithm of the sliding window size
	BrotliWindow = 22

	// ReadChunkSize is the buffer size used to stream files
	ReadChunkSize = 1 << 16
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Timing constants
const (
	// DebouncePeriod is the default interval between debounced index writes
	DebouncePeriod = 1 * time.Second
)

// Sensor geometry used by AER-DAT 2.0 recordings (DAVIS240)
const (
	DAVIS240Width  = 240
	DAVIS240Height = 180
)

// Default paths
const (
	// DefaultConfigName is the config file name searched in $HOME and the working directory
	DefaultConfigName = ".undrdg"
)
