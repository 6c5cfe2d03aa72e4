package parsers

import (
	"encoding/binary"
	"sort"

	"github.com/neuromorphicsystems/undrdg/pkg/constants"
	"github.com/neuromorphicsystems/undrdg/pkg/raw"
)

const (
	aerdat2RecordSize = 8
	imuGroupSize      = 7
	apsReadMask       = 0b1100
	apsResetRead      = 0b0000
	apsSignalRead     = 0b0100
)

// Aerdat2 is a decoded AER-DAT 2.0 recording (DAVIS240 sensors).
//
// APSCorrupted is set when the file contains frame samples but no complete
// frame could be rebuilt. IMUCorrupted is set when IMU sample groups are not
// in the expected order, in which case IMU is nil.
type Aerdat2 struct {
	Header       string
	DVS          raw.DVSEvents
	APS          raw.APSFrames
	IMU          raw.IMUSamples
	APSCorrupted bool
	IMUCorrupted bool
}

type aerdat2Record struct {
	d0, d1, d2, d3 uint8
	t              uint32
}

func (r *aerdat2Record) x() uint16 {
	return (uint16(r.d1&0b111111) << 4) | uint16(r.d2>>4)
}

func (r *aerdat2Record) y() uint16 {
	return (uint16(r.d0&0b1111111) << 2) | uint16(r.d1>>6)
}

func (r *aerdat2Record) isDVS() bool {
	return r.d0>>7 == 0
}

func (r *aerdat2Record) isAPS() bool {
	return !r.isDVS() && r.d2&apsReadMask != apsReadMask
}

// ReadAerdat2 reads and decodes the AER-DAT 2.0 file at path.
func ReadAerdat2(path string) (*Aerdat2, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	result, err := DecodeAerdat2(data)
	return result, parseError(FormatAerdat2, path, err)
}

// DecodeAerdat2 decodes an AER-DAT 2.0 payload. Records are sorted by
// timestamp when the file is not monotonic.
func DecodeAerdat2(data []byte) (*Aerdat2, error) {
	header, payload, err := ReadAERDATHeader(data)
	if err != nil {
		return nil, err
	}
	records := make([]aerdat2Record, len(payload)/aerdat2RecordSize)
	sorted := true
	for i := range records {
		chunk := payload[i*aerdat2RecordSize:]
		records[i] = aerdat2Record{
			d0: chunk[0],
			d1: chunk[1],
			d2: chunk[2],
			d3: chunk[3],
			t:  binary.BigEndian.Uint32(chunk[4:]),
		}
		if i > 0 && records[i].t < records[i-1].t {
			sorted = false
		}
	}
	if !sorted {
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].t < records[j].t
		})
	}

	var dvs, aps, imu []aerdat2Record
	for i := range records {
		switch {
		case records[i].isDVS():
			dvs = append(dvs, records[i])
		case records[i].isAPS():
			aps = append(aps, records[i])
		default:
			imu = append(imu, records[i])
		}
	}

	result := &Aerdat2{Header: header}
	if len(dvs) > 0 {
		result.DVS = make(raw.DVSEvents, len(dvs))
		for i := range dvs {
			r := &dvs[i]
			result.DVS[i] = raw.DVSEvent{
				T: uint64(r.t),
				X: r.x(),
				Y: r.y(),
				P: ((r.d2 & 0b1000) >> 3) | ((r.d2 & 0b100) >> 1),
			}
		}
	}
	if len(aps) > 0 {
		result.APS = decodeFrames(aps)
		result.APSCorrupted = len(result.APS) == 0
	}
	if len(imu) > 0 {
		result.IMU, result.IMUCorrupted = decodeIMU(imu)
	}
	return result, nil
}

// frameBuilder accumulates reset and signal reads into DAVIS240 frames.
type frameBuilder struct {
	pixels      []uint16
	firstReset  int64
	lastReset   int64
	firstSignal int64
	lastSignal  int64
	frames      raw.APSFrames
}

func (b *frameBuilder) reset() {
	b.lastReset = -1
	b.firstSignal = -1
	b.lastSignal = -1
	for i := range b.pixels {
		b.pixels[i] = 0
	}
}

func (b *frameBuilder) complete() bool {
	return b.firstReset != -1 && b.lastReset != -1 && b.firstSignal != -1 && b.lastSignal != -1
}

func (b *frameBuilder) emit() {
	b.frames = append(b.frames, raw.APSFrame{
		T:              uint64(b.firstSignal),
		BeginT:         uint64(b.firstReset),
		EndT:           uint64(b.firstSignal),
		ExposureBeginT: uint64(b.lastReset),
		ExposureEndT:   uint64(b.lastSignal),
		Width:          constants.DAVIS240Width,
		Height:         constants.DAVIS240Height,
		Pixels:         append([]uint16(nil), b.pixels...),
	})
}

func decodeFrames(records []aerdat2Record) raw.APSFrames {
	b := &frameBuilder{
		pixels:      make([]uint16, constants.DAVIS240Width*constants.DAVIS240Height),
		firstReset:  -1,
		lastReset:   -1,
		firstSignal: -1,
		lastSignal:  -1,
	}
	for i := range records {
		r := &records[i]
		x, y := r.x(), r.y()
		if x >= constants.DAVIS240Width || y >= constants.DAVIS240Height {
			continue
		}
		pixel := int(y)*constants.DAVIS240Width + int(x)
		sample := (uint16(r.d2&0b11) << 8) | uint16(r.d3)
		t := int64(r.t)
		switch r.d2 & apsReadMask {
		case apsResetRead:
			if b.firstReset == -1 {
				b.firstReset = t
			}
			if x == 0 && y == 0 {
				if b.complete() {
					b.emit()
				}
				b.reset()
				b.firstReset = t
			} else {
				b.lastReset = t
			}
			b.pixels[pixel] = sample
		case apsSignalRead:
			if b.firstSignal == -1 {
				b.firstSignal = t
			}
			b.lastSignal = t
			if sample > b.pixels[pixel] {
				b.pixels[pixel] = 0
			} else {
				b.pixels[pixel] -= sample
			}
		}
	}
	if b.complete() {
		b.emit()
	}
	return b.frames
}

// decodeIMU groups records sharing a timestamp. Only groups of exactly
// seven records are samples. The second result reports corruption.
func decodeIMU(records []aerdat2Record) (raw.IMUSamples, bool) {
	var starts []int
	for begin := 0; begin < len(records); {
		end := begin + 1
		for end < len(records) && records[end].t == records[begin].t {
			end++
		}
		if end-begin == imuGroupSize {
			starts = append(starts, begin)
		}
		begin = end
	}
	if len(starts) == 0 {
		return nil, false
	}
	for _, start := range starts {
		for offset := 0; offset < imuGroupSize; offset++ {
			if int((records[start+offset].d0&0b1110000)>>4) != offset {
				return nil, true
			}
		}
	}
	value := func(r *aerdat2Record) float32 {
		return float32((uint16(r.d0&0b1111) << 12) | (uint16(r.d1) << 4) | uint16(r.d2>>4))
	}
	samples := make(raw.IMUSamples, len(starts))
	for i, start := range starts {
		group := records[start : start+imuGroupSize]
		samples[i] = raw.IMUSample{
			T:              uint64(group[0].t),
			AccelerometerX: value(&group[0]),
			AccelerometerY: value(&group[1]),
			AccelerometerZ: value(&group[2]),
			Temperature:    value(&group[3]),
			GyroscopeX:     value(&group[4]),
			GyroscopeY:     value(&group[5]),
			GyroscopeZ:     value(&group[6]),
		}
	}
	return samples, false
}
