//go:build linux

package v4l2

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Device is an open V4L2 device node.
type Device struct {
	path string
	fd   int
}

// Open opens a device node for blocking read/write access. A missing path
// yields an error matching fs.ErrNotExist.
func Open(path string) (*Device, error) {
	return openDevice(path, 0)
}

// OpenNonBlocking opens a device node so that DequeueBuffer returns EAGAIN
// instead of waiting for a filled buffer.
func OpenNonBlocking(path string) (*Device, error) {
	return openDevice(path, unix.O_NONBLOCK)
}

func openDevice(path string, flags int) (*Device, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
		}
		return nil, &fs.PathError{Op: "stat", Path: path, Err: err}
	}
	if st.Mode&unix.S_IFMT != unix.S_IFCHR {
		return nil, &fs.PathError{Op: "open", Path: path, Err: ErrNotCharDevice}
	}

	fd, err := open(path, flags)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	return &Device{path: path, fd: fd}, nil
}

// Path returns the device node path.
func (d *Device) Path() string { return d.path }

// Fd returns the underlying file descriptor.
func (d *Device) Fd() int { return d.fd }

// Close releases the file descriptor.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := close(d.fd)
	d.fd = -1
	return err
}

// QueryCapability issues VIDIOC_QUERYCAP.
func (d *Device) QueryCapability() (Capability, error) {
	raw := v4l2Capability{}
	if err := ioctl(d.fd, vidiocQuerycap, unsafe.Pointer(&raw)); err != nil {
		return Capability{}, err
	}
	return Capability{
		Driver:       cstr(raw.driver[:]),
		Card:         cstr(raw.card[:]),
		BusInfo:      cstr(raw.busInfo[:]),
		Version:      raw.version,
		Capabilities: raw.capabilities,
		DeviceCaps:   raw.deviceCaps,
	}, nil
}

// SetFormat issues VIDIOC_S_FMT with the requested width, height and pixel
// format and field order "any". The returned value is what the driver
// wrote back, which may differ from the request.
func (d *Device) SetFormat(req PixFormat) (PixFormat, error) {
	raw := v4l2Format{typ: bufTypeVideoCapture}
	raw.pix.width = req.Width
	raw.pix.height = req.Height
	raw.pix.pixelformat = uint32(req.PixelFormat)
	raw.pix.field = fieldAny
	if err := ioctl(d.fd, vidiocSFmt, unsafe.Pointer(&raw)); err != nil {
		return PixFormat{}, err
	}
	return pixFormatFromRaw(&raw.pix), nil
}

// GetFormat issues VIDIOC_G_FMT.
func (d *Device) GetFormat() (PixFormat, error) {
	raw := v4l2Format{typ: bufTypeVideoCapture}
	if err := ioctl(d.fd, vidiocGFmt, unsafe.Pointer(&raw)); err != nil {
		return PixFormat{}, err
	}
	return pixFormatFromRaw(&raw.pix), nil
}

func pixFormatFromRaw(p *v4l2PixFormat) PixFormat {
	return PixFormat{
		Width:        p.width,
		Height:       p.height,
		PixelFormat:  PixelFormat(p.pixelformat),
		Field:        p.field,
		BytesPerLine: p.bytesperline,
		SizeImage:    p.sizeimage,
	}
}

// RequestBuffers issues VIDIOC_REQBUFS for memory-mapped capture buffers
// and returns the count the driver granted. A count of zero frees them.
func (d *Device) RequestBuffers(count uint32) (uint32, error) {
	req := v4l2Requestbuffers{
		count:  count,
		typ:    bufTypeVideoCapture,
		memory: memoryMmap,
	}
	if err := ioctl(d.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return 0, err
	}
	return req.count, nil
}

// QueryBuffer issues VIDIOC_QUERYBUF for one index.
func (d *Device) QueryBuffer(index uint32) (BufferInfo, error) {
	buf := v4l2Buffer{index: index, typ: bufTypeVideoCapture, memory: memoryMmap}
	if err := ioctl(d.fd, vidiocQuerybuf, unsafe.Pointer(&buf)); err != nil {
		return BufferInfo{}, err
	}
	return bufferInfoFromRaw(&buf), nil
}

// QueueBuffer issues VIDIOC_QBUF, handing the buffer back to the driver.
func (d *Device) QueueBuffer(index uint32) error {
	buf := v4l2Buffer{index: index, typ: bufTypeVideoCapture, memory: memoryMmap}
	return ioctl(d.fd, vidiocQbuf, unsafe.Pointer(&buf))
}

// DequeueBuffer issues VIDIOC_DQBUF. On a non-blocking descriptor with no
// filled buffer the returned error is unix.EAGAIN.
func (d *Device) DequeueBuffer() (BufferInfo, error) {
	buf := v4l2Buffer{typ: bufTypeVideoCapture, memory: memoryMmap}
	if err := ioctl(d.fd, vidiocDqbuf, unsafe.Pointer(&buf)); err != nil {
		return BufferInfo{}, err
	}
	return bufferInfoFromRaw(&buf), nil
}

func bufferInfoFromRaw(b *v4l2Buffer) BufferInfo {
	info := BufferInfo{
		Index:     b.index,
		BytesUsed: b.bytesused,
		Flags:     b.flags,
		Sequence:  b.sequence,
		Offset:    b.offset,
		Length:    b.length,
	}
	if b.timestamp.sec != 0 || b.timestamp.usec != 0 {
		ts := time.Duration(b.timestamp.sec)*time.Second + time.Duration(b.timestamp.usec)*time.Microsecond
		var mono unix.Timespec
		var monoNow time.Duration
		if unix.ClockGettime(unix.CLOCK_MONOTONIC, &mono) == nil {
			monoNow = time.Duration(mono.Nano())
		}
		info.Timestamp = bufferTime(ts, b.flags, monoNow, time.Now())
	}
	return info
}

// StreamOn issues VIDIOC_STREAMON.
func (d *Device) StreamOn() error {
	typ := uint32(bufTypeVideoCapture)
	return ioctl(d.fd, vidiocStreamon, unsafe.Pointer(&typ))
}

// StreamOff issues VIDIOC_STREAMOFF. The driver returns every queued
// buffer to the dequeued state.
func (d *Device) StreamOff() error {
	typ := uint32(bufTypeVideoCapture)
	return ioctl(d.fd, vidiocStreamoff, unsafe.Pointer(&typ))
}

// Map maps a buffer shared and read/write at the offset reported by
// QueryBuffer.
func (d *Device) Map(offset, length uint32) ([]byte, error) {
	return unix.Mmap(d.fd, int64(offset), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// Unmap releases a mapping returned by Map.
func (d *Device) Unmap(mem []byte) error {
	return unix.Munmap(mem)
}

// EnumFormats returns all supported capture pixel formats.
func (d *Device) EnumFormats() ([]FormatInfo, error) {
	var formats []FormatInfo

	for i := uint32(0); ; i++ {
		fmtdesc := v4l2Fmtdesc{
			index: i,
			typ:   bufTypeVideoCapture,
		}

		if err := ioctl(d.fd, vidiocEnumFmt, unsafe.Pointer(&fmtdesc)); err != nil {
			if errors.Is(err, unix.EINVAL) {
				break // End of enumeration
			}
			return nil, fmt.Errorf("failed to enumerate format %d: %w", i, err)
		}

		formats = append(formats, FormatInfo{
			PixelFormat: PixelFormat(fmtdesc.pixelformat),
			FormatName:  cstr(fmtdesc.description[:]),
			Emulated:    fmtdesc.flags&fmtFlagEmulated != 0,
		})
	}

	return formats, nil
}

// QueryControls walks every user control with VIDIOC_QUERYCTRL and the
// next-control flag. Disabled controls are skipped.
func (d *Device) QueryControls() ([]ControlInfo, error) {
	var controls []ControlInfo

	qc := v4l2Queryctrl{id: ctrlFlagNextCtrl}
	for {
		if err := ioctl(d.fd, vidiocQueryctrl, unsafe.Pointer(&qc)); err != nil {
			if errors.Is(err, unix.EINVAL) {
				break
			}
			return nil, fmt.Errorf("failed to query control after 0x%08x: %w", qc.id, err)
		}

		info := ControlInfo{
			ID:      qc.id,
			Type:    ControlType(qc.typ),
			Name:    cstr(qc.name[:]),
			Minimum: qc.minimum,
			Maximum: qc.maximum,
			Step:    qc.step,
			Default: qc.defaultValue,
			Flags:   qc.flags,
		}
		if !info.Disabled() && info.Type != ControlTypeCtrlClass {
			controls = append(controls, info)
		}

		qc = v4l2Queryctrl{id: qc.id | ctrlFlagNextCtrl}
	}

	return controls, nil
}

// GetControl issues VIDIOC_G_CTRL.
func (d *Device) GetControl(id uint32) (int32, error) {
	ctrl := v4l2Control{id: id}
	if err := ioctl(d.fd, vidiocGCtrl, unsafe.Pointer(&ctrl)); err != nil {
		return 0, err
	}
	return ctrl.value, nil
}

// SetControl issues VIDIOC_S_CTRL.
func (d *Device) SetControl(id uint32, value int32) error {
	ctrl := v4l2Control{id: id, value: value}
	return ioctl(d.fd, vidiocSCtrl, unsafe.Pointer(&ctrl))
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
