// Package raw defines the UNDR record layouts and their binary encoding.
//
// Every typed UNDR file is a sequence of packed little-endian records of a
// single kind. The kind and, for frame-based kinds, the sensor geometry are
// carried by a Type, which also produces the properties stored in the index.
package raw

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/neuromorphicsystems/undrdg/pkg/errors"
)

// Record sizes in bytes.
const (
	DVSEventSize     = 13
	IMUSampleSize    = 48
	APSHeaderSize    = 44
	apsBytesPerPixel = 2
)

// Extensions of the typed UNDR files.
const (
	ExtensionDVS = "dvs"
	ExtensionAPS = "aps"
	ExtensionIMU = "imu"
)

// DVSEvent is a change detection event.
type DVSEvent struct {
	T uint64
	X uint16
	Y uint16
	P uint8
}

// APSFrame is an absolute luminance frame.
// Pixels are stored row-major: Pixels[y*Width+x].
type APSFrame struct {
	T              uint64
	BeginT         uint64
	EndT           uint64
	ExposureBeginT uint64
	ExposureEndT   uint64
	Width          uint16
	Height         uint16
	Pixels         []uint16
}

// At returns the pixel at (x, y).
func (f *APSFrame) At(x, y int) uint16 {
	return f.Pixels[y*int(f.Width)+x]
}

// IMUSample is one inertial measurement.
type IMUSample struct {
	T              uint64
	AccelerometerX float32
	AccelerometerY float32
	AccelerometerZ float32
	GyroscopeX     float32
	GyroscopeY     float32
	GyroscopeZ     float32
	MagnetometerX  float32
	MagnetometerY  float32
	MagnetometerZ  float32
	Temperature    float32
}

// Records is a batch of records of a single kind.
type Records interface {
	// Extension is the file extension of the record kind.
	Extension() string

	// Len is the number of records.
	Len() int

	// AppendBinary appends the packed encoding of the records to b.
	AppendBinary(b []byte) []byte
}

// DVSEvents is a batch of DVS events.
type DVSEvents []DVSEvent

// Extension implements Records.
func (DVSEvents) Extension() string { return ExtensionDVS }

// Len implements Records.
func (e DVSEvents) Len() int { return len(e) }

// AppendBinary implements Records.
func (e DVSEvents) AppendBinary(b []byte) []byte {
	for _, event := range e {
		b = binary.LittleEndian.AppendUint64(b, event.T)
		b = binary.LittleEndian.AppendUint16(b, event.X)
		b = binary.LittleEndian.AppendUint16(b, event.Y)
		b = append(b, event.P)
	}
	return b
}

// APSFrames is a batch of frames.
type APSFrames []APSFrame

// Extension implements Records.
func (APSFrames) Extension() string { return ExtensionAPS }

// Len implements Records.
func (f APSFrames) Len() int { return len(f) }

// AppendBinary implements Records.
func (f APSFrames) AppendBinary(b []byte) []byte {
	for i := range f {
		frame := &f[i]
		b = binary.LittleEndian.AppendUint64(b, frame.T)
		b = binary.LittleEndian.AppendUint64(b, frame.BeginT)
		b = binary.LittleEndian.AppendUint64(b, frame.EndT)
		b = binary.LittleEndian.AppendUint64(b, frame.ExposureBeginT)
		b = binary.LittleEndian.AppendUint64(b, frame.ExposureEndT)
		b = binary.LittleEndian.AppendUint16(b, frame.Width)
		b = binary.LittleEndian.AppendUint16(b, frame.Height)
		for _, pixel := range frame.Pixels {
			b = binary.LittleEndian.AppendUint16(b, pixel)
		}
	}
	return b
}

// IMUSamples is a batch of IMU samples.
type IMUSamples []IMUSample

// Extension implements Records.
func (IMUSamples) Extension() string { return ExtensionIMU }

// Len implements Records.
func (s IMUSamples) Len() int { return len(s) }

// AppendBinary implements Records.
func (s IMUSamples) AppendBinary(b []byte) []byte {
	for _, sample := range s {
		b = binary.LittleEndian.AppendUint64(b, sample.T)
		for _, value := range [...]float32{
			sample.AccelerometerX, sample.AccelerometerY, sample.AccelerometerZ,
			sample.GyroscopeX, sample.GyroscopeY, sample.GyroscopeZ,
			sample.MagnetometerX, sample.MagnetometerY, sample.MagnetometerZ,
			sample.Temperature,
		} {
			b = binary.LittleEndian.AppendUint32(b, math.Float32bits(value))
		}
	}
	return b
}

// DecodeDVSEvents parses packed DVS events. len(data) must be a multiple of DVSEventSize.
func DecodeDVSEvents(data []byte) (DVSEvents, error) {
	if len(data)%DVSEventSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of dvs events", errors.ErrCorrupted, len(data))
	}
	events := make(DVSEvents, len(data)/DVSEventSize)
	for i := range events {
		record := data[i*DVSEventSize:]
		events[i] = DVSEvent{
			T: binary.LittleEndian.Uint64(record),
			X: binary.LittleEndian.Uint16(record[8:]),
			Y: binary.LittleEndian.Uint16(record[10:]),
			P: record[12],
		}
	}
	return events, nil
}
