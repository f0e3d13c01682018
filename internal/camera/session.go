package camera

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/smazurov/tinycam/pkg/linuxav/v4l2"
)

// Format is the negotiated image format.
type Format struct {
	Width        uint32           `json:"width"`
	Height       uint32           `json:"height"`
	PixelFormat  v4l2.PixelFormat `json:"-"`
	BytesPerLine uint32           `json:"bytes_per_line"`
	SizeImage    uint32           `json:"size_image"`
}

// FourCC returns the pixel format as text.
func (f Format) FourCC() string {
	return f.PixelFormat.String()
}

func (f Format) String() string {
	return fmt.Sprintf("%dx%d %s", f.Width, f.Height, f.FourCC())
}

func formatFromPix(p v4l2.PixFormat) Format {
	return Format{
		Width:        p.Width,
		Height:       p.Height,
		PixelFormat:  p.PixelFormat,
		BytesPerLine: p.BytesPerLine,
		SizeImage:    p.SizeImage,
	}
}

// Session owns an open device handle and drives capability and format
// negotiation. It performs no sequencing checks of its own.
type Session struct {
	path string
	dev  Device
	caps v4l2.Capability
}

// OpenSession opens path through opener.
func OpenSession(path string, opener Opener) (*Session, error) {
	dev, err := opener(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, &Error{Code: ErrCodeNotFound, Op: OpOpen, Message: path, Cause: err}
		case errors.Is(err, v4l2.ErrNotCharDevice):
			return nil, &Error{Code: ErrCodeNotCharDevice, Op: OpOpen, Message: path, Cause: err}
		default:
			return nil, &Error{Code: ErrCodeOpenFailed, Op: OpOpen, Message: path, Cause: err}
		}
	}
	return &Session{path: path, dev: dev}, nil
}

// Path returns the device path.
func (s *Session) Path() string { return s.path }

// Device returns the underlying device.
func (s *Session) Device() Device { return s.dev }

// QueryCapabilities confirms the node supports video capture and
// streaming I/O.
func (s *Session) QueryCapabilities() (v4l2.Capability, error) {
	caps, err := s.dev.QueryCapability()
	if err != nil {
		return v4l2.Capability{}, &Error{Code: ErrCodeIoctlFailed, Op: OpQueryCapabilities, Message: "VIDIOC_QUERYCAP", Cause: err}
	}
	s.caps = caps
	if !caps.Has(v4l2.CapVideoCapture) {
		return caps, &Error{Code: ErrCodeCapabilityMissing, Op: OpQueryCapabilities, Message: "no video capture support"}
	}
	if !caps.Has(v4l2.CapStreaming) {
		return caps, &Error{Code: ErrCodeCapabilityMissing, Op: OpQueryCapabilities, Message: "no streaming i/o support"}
	}
	return caps, nil
}

// Capabilities returns the last successful capability query.
func (s *Session) Capabilities() v4l2.Capability { return s.caps }

// NegotiateFormat requests a format with field order "any" and returns
// the format the driver reports afterwards.
func (s *Session) NegotiateFormat(requested Format) (Format, error) {
	_, err := s.dev.SetFormat(v4l2.PixFormat{
		Width:       requested.Width,
		Height:      requested.Height,
		PixelFormat: requested.PixelFormat,
	})
	if err != nil {
		return Format{}, &Error{Code: ErrCodeIoctlFailed, Op: OpSetFormat, Message: "VIDIOC_S_FMT", Cause: err}
	}
	return s.GetFormat()
}

// GetFormat reads the active format.
func (s *Session) GetFormat() (Format, error) {
	pix, err := s.dev.GetFormat()
	if err != nil {
		return Format{}, &Error{Code: ErrCodeIoctlFailed, Op: OpGetFormat, Message: "VIDIOC_G_FMT", Cause: err}
	}
	return formatFromPix(pix), nil
}

// QueryFormats enumerates the supported pixel formats.
func (s *Session) QueryFormats() ([]v4l2.FormatInfo, error) {
	formats, err := s.dev.EnumFormats()
	if err != nil {
		return nil, &Error{Code: ErrCodeIoctlFailed, Op: OpQueryFormats, Message: "VIDIOC_ENUM_FMT", Cause: err}
	}
	return formats, nil
}

// QueryControls enumerates the enabled user controls.
func (s *Session) QueryControls() ([]v4l2.ControlInfo, error) {
	controls, err := s.dev.QueryControls()
	if err != nil {
		return nil, &Error{Code: ErrCodeIoctlFailed, Op: OpQueryControls, Message: "VIDIOC_QUERYCTRL", Cause: err}
	}
	return controls, nil
}

// GetControl reads a control value.
func (s *Session) GetControl(id uint32) (int32, error) {
	v, err := s.dev.GetControl(id)
	if err != nil {
		return 0, &Error{Code: ErrCodeIoctlFailed, Op: OpGetControl, Message: fmt.Sprintf("VIDIOC_G_CTRL 0x%08x", id), Cause: err}
	}
	return v, nil
}

// SetControl writes a control value.
func (s *Session) SetControl(id uint32, value int32) error {
	if err := s.dev.SetControl(id, value); err != nil {
		return &Error{Code: ErrCodeIoctlFailed, Op: OpSetControl, Message: fmt.Sprintf("VIDIOC_S_CTRL 0x%08x", id), Cause: err}
	}
	return nil
}

// StreamOn starts the kernel capture pipeline.
func (s *Session) StreamOn() error {
	if err := s.dev.StreamOn(); err != nil {
		return &Error{Code: ErrCodeIoctlFailed, Op: OpStartStreaming, Message: "VIDIOC_STREAMON", Cause: err}
	}
	return nil
}

// StreamOff stops the kernel capture pipeline.
func (s *Session) StreamOff() error {
	if err := s.dev.StreamOff(); err != nil {
		return &Error{Code: ErrCodeIoctlFailed, Op: OpStopStreaming, Message: "VIDIOC_STREAMOFF", Cause: err}
	}
	return nil
}

// Close releases the device handle.
func (s *Session) Close() error {
	if err := s.dev.Close(); err != nil {
		return &Error{Code: ErrCodeIoctlFailed, Op: OpClose, Message: "close", Cause: err}
	}
	return nil
}
