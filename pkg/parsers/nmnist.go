package parsers

import (
	"fmt"

	"github.com/neuromorphicsystems/undrdg/pkg/raw"
)

const nmnistRecordSize = 5

// NMNIST sensor geometry (ATIS crop).
const (
	NMNISTWidth  = 34
	NMNISTHeight = 34
)

// ReadNMNIST reads and decodes the N-MNIST binary file at path.
func ReadNMNIST(path string) (raw.DVSEvents, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	events, err := DecodeNMNIST(data)
	return events, parseError(FormatNMNIST, path, err)
}

// DecodeNMNIST decodes 5-byte N-MNIST records with 23-bit timestamps.
// The format cannot represent wrapped timestamps, so any decrease is an error.
func DecodeNMNIST(data []byte) (raw.DVSEvents, error) {
	events := make(raw.DVSEvents, len(data)/nmnistRecordSize)
	for i := range events {
		record := data[i*nmnistRecordSize:]
		events[i] = raw.DVSEvent{
			T: (uint64(record[2]&0x7F) << 16) | (uint64(record[3]) << 8) | uint64(record[4]),
			X: uint16(record[0]),
			Y: uint16(record[1]),
			P: record[2] >> 7,
		}
		if i > 0 && events[i].T < events[i-1].T {
			return nil, fmt.Errorf("%w at event %d", ErrTimestampOverflow, i)
		}
	}
	return events, nil
}
