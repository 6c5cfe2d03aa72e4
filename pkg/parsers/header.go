// Package parsers decodes the event-camera recording formats found in
// third-party datasets (AER-DAT 1.0, AER-DAT 2.0 and N-MNIST) into UNDR
// records.
package parsers

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/neuromorphicsystems/undrdg/pkg/errors"
)

// ErrIncompleteHeader is returned when the data ends inside the header.
var ErrIncompleteHeader = errors.New("EOF reached while reading the header")

// ErrTimestampOverflow is returned by formats with bounded timestamps
// when the recording wrapped around.
var ErrTimestampOverflow = errors.New("timestamp overflow")

// Format identifies a source recording format.
type Format string

// Supported formats.
const (
	FormatAerdat1 Format = "aerdat1"
	FormatAerdat2 Format = "aerdat2"
	FormatNMNIST  Format = "nmnist"
)

// Formats lists the supported formats.
var Formats = []Format{FormatAerdat1, FormatAerdat2, FormatNMNIST}

// String implements fmt.Stringer.
func (f Format) String() string {
	return string(f)
}

// ParseFormat converts a name into a Format.
func ParseFormat(name string) (Format, error) {
	for _, format := range Formats {
		if strings.EqualFold(name, string(format)) {
			return format, nil
		}
	}
	return "", errors.NewValidationError("format", name,
		fmt.Sprintf("unsupported format, expected one of %v", Formats))
}

// DetectFormat guesses the format of a recording from its version line
// ("#!AER-DAT1.0" or "#!AER-DAT2.0") and, for headerless files, from the
// N-MNIST ".bin" extension.
func DetectFormat(name string, data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, []byte("#!AER-DAT2.")):
		return FormatAerdat2, nil
	case bytes.HasPrefix(data, []byte("#!AER-DAT1.")):
		return FormatAerdat1, nil
	case strings.EqualFold(filepath.Ext(name), ".bin"):
		return FormatNMNIST, nil
	}
	return "", errors.NewValidationError("format", name, "cannot detect the recording format")
}

// Decode decodes a recording of any supported format. Formats without
// frames or IMU samples leave those fields empty.
func Decode(format Format, data []byte) (*Aerdat2, error) {
	switch format {
	case FormatAerdat1:
		result, err := DecodeAerdat1(data)
		if err != nil {
			return nil, err
		}
		return &Aerdat2{Header: result.Header, DVS: result.DVS}, nil
	case FormatAerdat2:
		return DecodeAerdat2(data)
	case FormatNMNIST:
		events, err := DecodeNMNIST(data)
		if err != nil {
			return nil, err
		}
		return &Aerdat2{DVS: events}, nil
	default:
		return nil, errors.NewValidationError("format", format, "unsupported format")
	}
}

// Read reads and decodes the recording at path.
func Read(format Format, path string) (*Aerdat2, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	result, err := Decode(format, data)
	return result, parseError(format, path, err)
}

// ReadAERDATHeader splits data into the leading '#' comment lines and the
// remaining payload. Each header line keeps its trailing newline.
func ReadAERDATHeader(data []byte) (string, []byte, error) {
	index := 0
	for {
		if index >= len(data) {
			return "", nil, ErrIncompleteHeader
		}
		if data[index] != '#' {
			break
		}
		lineEnd := bytes.IndexByte(data[index+1:], '\n')
		if lineEnd == -1 {
			break
		}
		lineEnd += index + 1
		if !isASCII(data[index:lineEnd]) {
			break
		}
		index = lineEnd + 1
	}
	return string(data[:index]), data[index:], nil
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return data, nil
}

func parseError(format Format, path string, err error) error {
	if err == nil {
		return nil
	}
	return errors.WrapParse(format.String(), path, err)
}
