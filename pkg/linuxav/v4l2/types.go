package v4l2

import (
	"errors"
	"strings"
	"time"
)

// ErrNotCharDevice is returned by Open when the path exists but is not a
// character device node.
var ErrNotCharDevice = errors.New("not a character device")

// PixelFormat is a V4L2 FourCC pixel format code.
type PixelFormat uint32

// Common pixel formats.
const (
	PixelFormatYUYV  PixelFormat = 0x56595559 // 'YUYV'
	PixelFormatMJPEG PixelFormat = 0x47504A4D // 'MJPG'
	PixelFormatH264  PixelFormat = 0x34363248 // 'H264'
	PixelFormatHEVC  PixelFormat = 0x43564548 // 'HEVC'
	PixelFormatNV12  PixelFormat = 0x3231564E // 'NV12'
)

// String returns the FourCC text of the format.
func (p PixelFormat) String() string {
	return FormatFourCC(uint32(p))
}

// Compressed reports whether frames of this format have a variable size.
func (p PixelFormat) Compressed() bool {
	switch p {
	case PixelFormatMJPEG, PixelFormatH264, PixelFormatHEVC:
		return true
	default:
		return false
	}
}

// ParsePixelFormat maps a user supplied name to a pixel format. The numeric
// selectors 0, 1 and 2 pick YUYV, MJPEG and H264. Unknown names return
// false.
func ParsePixelFormat(name string) (PixelFormat, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "yuyv", "yuv", "0":
		return PixelFormatYUYV, true
	case "mjpeg", "mjpg", "jpeg", "1":
		return PixelFormatMJPEG, true
	case "h264", "2":
		return PixelFormatH264, true
	case "hevc", "h265":
		return PixelFormatHEVC, true
	case "nv12":
		return PixelFormatNV12, true
	default:
		return 0, false
	}
}

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	b := make([]byte, 4)
	b[0] = byte(format & 0xFF)
	b[1] = byte((format >> 8) & 0xFF)
	b[2] = byte((format >> 16) & 0xFF)
	b[3] = byte((format >> 24) & 0xFF)
	return string(b)
}

// Capability flags.
const (
	CapVideoCapture uint32 = 0x00000001
	CapStreaming    uint32 = 0x04000000
	CapDeviceCaps   uint32 = 0x80000000
)

// Buffer, memory and field constants.
const (
	bufTypeVideoCapture = 1
	memoryMmap          = 1
	fieldAny            = 0
)

// Buffer timestamp flags.
const (
	bufFlagTimestampMask      = 0xe000
	bufFlagTimestampMonotonic = 0x2000
)

// bufferTime converts a DQBUF timestamp to wall-clock time. Drivers that
// flag the timestamp as CLOCK_MONOTONIC are rebased onto the wall clock
// using a monotonic and a wall reading taken together.
func bufferTime(ts time.Duration, flags uint32, monoNow time.Duration, wallNow time.Time) time.Time {
	if flags&bufFlagTimestampMask == bufFlagTimestampMonotonic && monoNow > 0 {
		return wallNow.Add(ts - monoNow)
	}
	return time.Unix(0, int64(ts))
}

// Format flags.
const (
	fmtFlagEmulated = 0x0002
)

// Frame size types.
const (
	frmsizeTypeDiscrete   = 1
	frmsizeTypeContinuous = 2
	frmsizeTypeStepwise   = 3
)

// Frame interval types.
const (
	frmivalTypeDiscrete   = 1
	frmivalTypeContinuous = 2
	frmivalTypeStepwise   = 3
)

// Control flags.
const (
	CtrlFlagDisabled = 0x0001
	CtrlFlagReadOnly = 0x0004
	CtrlFlagInactive = 0x0010
	ctrlFlagNextCtrl = 0x80000000
)

// Well-known control IDs.
const (
	CIDBrightness = 0x00980900
	CIDContrast   = 0x00980901
	CIDSaturation = 0x00980902
	// CIDForceKeyFrame is the button control of stateful H264 encoders
	// that makes the next frame an IDR.
	CIDForceKeyFrame = 0x009909e5
)

// ControlType is the value type of a device control.
type ControlType uint32

// Control types.
const (
	ControlTypeInteger     ControlType = 1
	ControlTypeBoolean     ControlType = 2
	ControlTypeMenu        ControlType = 3
	ControlTypeButton      ControlType = 4
	ControlTypeInteger64   ControlType = 5
	ControlTypeCtrlClass   ControlType = 6
	ControlTypeString      ControlType = 7
	ControlTypeBitmask     ControlType = 8
	ControlTypeIntegerMenu ControlType = 9
)

func (t ControlType) String() string {
	switch t {
	case ControlTypeInteger:
		return "int"
	case ControlTypeBoolean:
		return "bool"
	case ControlTypeMenu:
		return "menu"
	case ControlTypeButton:
		return "button"
	case ControlTypeInteger64:
		return "int64"
	case ControlTypeCtrlClass:
		return "class"
	case ControlTypeString:
		return "string"
	case ControlTypeBitmask:
		return "bitmask"
	case ControlTypeIntegerMenu:
		return "intmenu"
	default:
		return "unknown"
	}
}

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Caps       uint32
	Streaming  bool
}

// Capability is the result of a capability query.
type Capability struct {
	Driver       string
	Card         string
	BusInfo      string
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
}

// Effective returns the capability bits of the opened node, preferring the
// per-node device caps when the driver reports them.
func (c Capability) Effective() uint32 {
	if c.Capabilities&CapDeviceCaps != 0 {
		return c.DeviceCaps
	}
	return c.Capabilities
}

// Has reports whether every bit in mask is set in the effective caps.
func (c Capability) Has(mask uint32) bool {
	return c.Effective()&mask == mask
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat PixelFormat
	FormatName  string
	Emulated    bool
}

// PixFormat is the single-planar image format exchanged with S_FMT and G_FMT.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  PixelFormat
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32
	Height uint32
}

// Framerate represents a supported framerate as a fraction.
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// BufferInfo describes one kernel buffer as reported by QUERYBUF or DQBUF.
// Timestamp is wall-clock time, rebased when the driver uses the
// monotonic clock.
type BufferInfo struct {
	Index     uint32
	BytesUsed uint32
	Flags     uint32
	Sequence  uint32
	Offset    uint32
	Length    uint32
	Timestamp time.Time
}

// ControlInfo describes a device control.
type ControlInfo struct {
	ID      uint32
	Type    ControlType
	Name    string
	Minimum int32
	Maximum int32
	Step    int32
	Default int32
	Flags   uint32
}

// Disabled reports whether the driver marked the control as unusable.
func (c ControlInfo) Disabled() bool {
	return c.Flags&CtrlFlagDisabled != 0
}

// ReadOnly reports whether the control rejects writes.
func (c ControlInfo) ReadOnly() bool {
	return c.Flags&CtrlFlagReadOnly != 0
}

// InRange reports whether value lies within the control's bounds.
func (c ControlInfo) InRange(value int32) bool {
	return value >= c.Minimum && value <= c.Maximum
}
