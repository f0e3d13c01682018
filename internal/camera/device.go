package camera

import (
	"github.com/smazurov/tinycam/pkg/linuxav/v4l2"
)

// Device is the ioctl-level boundary of a capture node. *v4l2.Device
// implements it on Linux; tests use a simulated device.
type Device interface {
	QueryCapability() (v4l2.Capability, error)
	EnumFormats() ([]v4l2.FormatInfo, error)
	SetFormat(req v4l2.PixFormat) (v4l2.PixFormat, error)
	GetFormat() (v4l2.PixFormat, error)
	RequestBuffers(count uint32) (uint32, error)
	QueryBuffer(index uint32) (v4l2.BufferInfo, error)
	Map(offset, length uint32) ([]byte, error)
	Unmap(mem []byte) error
	QueueBuffer(index uint32) error
	DequeueBuffer() (v4l2.BufferInfo, error)
	StreamOn() error
	StreamOff() error
	QueryControls() ([]v4l2.ControlInfo, error)
	GetControl(id uint32) (int32, error)
	SetControl(id uint32, value int32) error
	Close() error
}

// Opener opens the device node at path.
type Opener func(path string) (Device, error)
