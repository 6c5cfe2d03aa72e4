package raw

import (
	"fmt"

	"github.com/neuromorphicsystems/undrdg/pkg/errors"
)

// Type is a file type supported by UNDR.
type Type interface {
	// Extension is appended to the file name (before the compression suffix).
	Extension() string

	// Properties are stored in the index entry of the file.
	Properties() map[string]any

	// RecordSize is the size in bytes of one encoded record.
	RecordSize() int

	// Accepts returns an error if the records cannot be stored in a file of this type.
	Accepts(records Records) error
}

// DVSType describes a DVS event file for a sensor of the given size.
type DVSType struct {
	Width  uint16
	Height uint16
}

// NewDVSType creates a DVS type.
func NewDVSType(width, height uint16) DVSType {
	return DVSType{Width: width, Height: height}
}

// Extension implements Type.
func (DVSType) Extension() string { return ExtensionDVS }

// RecordSize implements Type.
func (DVSType) RecordSize() int { return DVSEventSize }

// Properties implements Type.
func (t DVSType) Properties() map[string]any {
	return map[string]any{
		"type":   ExtensionDVS,
		"width":  int(t.Width),
		"height": int(t.Height),
	}
}

// Accepts implements Type.
func (t DVSType) Accepts(records Records) error {
	if _, ok := records.(DVSEvents); !ok {
		return mismatch(t, records)
	}
	return nil
}

// APSType describes an APS frame file.
type APSType struct {
	Width  uint16
	Height uint16
}

// NewAPSType creates an APS type.
func NewAPSType(width, height uint16) APSType {
	return APSType{Width: width, Height: height}
}

// Extension implements Type.
func (APSType) Extension() string { return ExtensionAPS }

// RecordSize implements Type.
func (t APSType) RecordSize() int {
	return APSHeaderSize + apsBytesPerPixel*int(t.Width)*int(t.Height)
}

// Properties implements Type.
func (t APSType) Properties() map[string]any {
	return map[string]any{
		"type":   ExtensionAPS,
		"width":  int(t.Width),
		"height": int(t.Height),
	}
}

// Accepts implements Type.
func (t APSType) Accepts(records Records) error {
	frames, ok := records.(APSFrames)
	if !ok {
		return mismatch(t, records)
	}
	for i := range frames {
		frame := &frames[i]
		if frame.Width != t.Width || frame.Height != t.Height {
			return errors.NewValidationError("aps", i,
				fmt.Sprintf("frame is %dx%d, expected %dx%d", frame.Width, frame.Height, t.Width, t.Height))
		}
		if len(frame.Pixels) != int(t.Width)*int(t.Height) {
			return errors.NewValidationError("aps", i,
				fmt.Sprintf("frame has %d pixels, expected %d", len(frame.Pixels), int(t.Width)*int(t.Height)))
		}
	}
	return nil
}

// IMUType describes an IMU sample file.
type IMUType struct{}

// Extension implements Type.
func (IMUType) Extension() string { return ExtensionIMU }

// RecordSize implements Type.
func (IMUType) RecordSize() int { return IMUSampleSize }

// Properties implements Type.
func (IMUType) Properties() map[string]any {
	return map[string]any{"type": ExtensionIMU}
}

// Accepts implements Type.
func (t IMUType) Accepts(records Records) error {
	if _, ok := records.(IMUSamples); !ok {
		return mismatch(t, records)
	}
	return nil
}

func mismatch(t Type, records Records) error {
	return errors.NewValidationError("type", records.Extension(),
		fmt.Sprintf("cannot write %s records to a %s file", records.Extension(), t.Extension()))
}

// TypeFromProperties rebuilds a Type from the properties stored in an index entry.
// JSON numbers decode as float64, so both float64 and int are accepted.
func TypeFromProperties(properties map[string]any) (Type, error) {
	kind, _ := properties["type"].(string)
	switch kind {
	case ExtensionDVS, ExtensionAPS:
		width, err := dimension(properties, "width")
		if err != nil {
			return nil, err
		}
		height, err := dimension(properties, "height")
		if err != nil {
			return nil, err
		}
		if kind == ExtensionDVS {
			return NewDVSType(width, height), nil
		}
		return NewAPSType(width, height), nil
	case ExtensionIMU:
		return IMUType{}, nil
	default:
		return nil, errors.NewValidationError("type", kind, "unsupported file type")
	}
}

func dimension(properties map[string]any, key string) (uint16, error) {
	var value float64
	switch v := properties[key].(type) {
	case float64:
		value = v
	case int:
		value = float64(v)
	default:
		return 0, errors.NewValidationError(key, properties[key], "missing or not a number")
	}
	if value < 0 || value > 65535 || value != float64(uint16(value)) {
		return 0, errors.NewValidationError(key, value, "must be an integer in [0, 65535]")
	}
	return uint16(value), nil
}
