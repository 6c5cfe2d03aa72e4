package parsers

import (
	"encoding/binary"

	"github.com/neuromorphicsystems/undrdg/pkg/raw"
)

const aerdat1RecordSize = 6

// Aerdat1 is a decoded AER-DAT 1.0 recording (DVS128 sensors).
type Aerdat1 struct {
	// Header holds the '#' comment lines, empty when the file has none.
	Header string
	// DVS is nil when the file contains no event.
	DVS raw.DVSEvents
}

// ReadAerdat1 reads and decodes the AER-DAT 1.0 file at path.
func ReadAerdat1(path string) (*Aerdat1, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	result, err := DecodeAerdat1(data)
	return result, parseError(FormatAerdat1, path, err)
}

// DecodeAerdat1 decodes an AER-DAT 1.0 payload. A trailing partial record is ignored.
func DecodeAerdat1(data []byte) (*Aerdat1, error) {
	header, payload, err := ReadAERDATHeader(data)
	if err != nil {
		return nil, err
	}
	result := &Aerdat1{Header: header}
	count := len(payload) / aerdat1RecordSize
	if count == 0 {
		return result, nil
	}
	result.DVS = make(raw.DVSEvents, count)
	for i := range result.DVS {
		record := payload[i*aerdat1RecordSize:]
		d0, d1 := record[0], record[1]
		result.DVS[i] = raw.DVSEvent{
			T: uint64(binary.BigEndian.Uint32(record[2:])),
			X: uint16(127 - (d1 >> 1)),
			Y: uint16(d0 & 0x7F),
			P: ((d0 & 0x80) >> 6) | (d1 & 1),
		}
	}
	return result, nil
}
