// Package camtest provides a simulated capture device for tests.
package camtest

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/smazurov/tinycam/internal/camera"
	"github.com/smazurov/tinycam/pkg/linuxav/v4l2"
)

// Device is an in-memory camera.Device. The zero value is not usable;
// create one with New.
type Device struct {
	mu sync.Mutex

	// Caps is returned by QueryCapability.
	Caps v4l2.Capability
	// Coerce rewrites a requested format the way a driver would. Nil
	// accepts the request verbatim.
	Coerce func(v4l2.PixFormat) v4l2.PixFormat
	// Grant overrides the number of buffers REQBUFS grants when >= 0.
	Grant int
	// BufferSize is the mapped length of every buffer.
	BufferSize uint32
	// BytesUsed returns the filled size of a frame. Nil fills the buffer.
	BytesUsed func(sequence uint32) uint32
	// MapErr fails Map for the buffer with this index when set.
	MapErr map[uint32]error
	// QueryBufErr fails QueryBuffer for the buffer with this index.
	QueryBufErr map[uint32]error
	// DequeueScript is consumed one entry per DequeueBuffer call before
	// normal behavior resumes. A nil entry dequeues normally.
	DequeueScript []error
	// Errs injects failures by ioctl name (QUERYCAP, S_FMT, G_FMT, REQBUFS,
	// QBUF, STREAMON, STREAMOFF, CLOSE, ENUM_FMT, QUERYCTRL, G_CTRL, S_CTRL).
	Errs map[string]error
	// Controls is returned by QueryControls.
	Controls []v4l2.ControlInfo

	format    v4l2.PixFormat
	offsets   map[uint32]uint32
	mappings  map[uint32][]byte
	mapped    int
	unmapped  map[uint32]int
	queue     []uint32
	streaming bool
	closed    bool
	sequence  uint32
	values    map[uint32]int32
	calls     []string
}

// New returns a device that supports capture and streaming, grants every
// buffer request and always has a frame ready once streaming.
func New() *Device {
	return &Device{
		Caps: v4l2.Capability{
			Driver:       "camtest",
			Card:         "Simulated Camera",
			BusInfo:      "platform:camtest",
			Capabilities: v4l2.CapVideoCapture | v4l2.CapStreaming,
		},
		Grant:       -1,
		BufferSize:  4096,
		MapErr:      map[uint32]error{},
		QueryBufErr: map[uint32]error{},
		Errs:        map[string]error{},
		offsets:     map[uint32]uint32{},
		mappings:    map[uint32][]byte{},
		unmapped:    map[uint32]int{},
		values:      map[uint32]int32{},
	}
}

// Opener returns a camera.Opener that always yields d.
func (d *Device) Opener() camera.Opener {
	return func(string) (camera.Device, error) {
		return d, nil
	}
}

func (d *Device) record(call string) error {
	d.calls = append(d.calls, call)
	return d.Errs[call]
}

// Calls returns the ioctl-level calls made so far, in order.
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// CallCount returns how often call was made.
func (d *Device) CallCount(call string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == call {
			n++
		}
	}
	return n
}

// LiveMappings returns the number of mappings not yet unmapped.
func (d *Device) LiveMappings() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.mappings)
}

// MapCount returns the number of successful Map calls.
func (d *Device) MapCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mapped
}

// UnmapCount returns how often the buffer with index was unmapped.
func (d *Device) UnmapCount(index uint32) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.unmapped[index]
}

// Streaming reports whether the simulated pipeline is running.
func (d *Device) Streaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streaming
}

// Closed reports whether Close was called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Queued returns the number of buffers owned by the driver.
func (d *Device) Queued() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// QueryCapability implements camera.Device.
func (d *Device) QueryCapability() (v4l2.Capability, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("QUERYCAP"); err != nil {
		return v4l2.Capability{}, err
	}
	return d.Caps, nil
}

// EnumFormats implements camera.Device.
func (d *Device) EnumFormats() ([]v4l2.FormatInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("ENUM_FMT"); err != nil {
		return nil, err
	}
	return []v4l2.FormatInfo{
		{PixelFormat: v4l2.PixelFormatYUYV, FormatName: "YUYV 4:2:2"},
		{PixelFormat: v4l2.PixelFormatMJPEG, FormatName: "Motion-JPEG"},
	}, nil
}

// SetFormat implements camera.Device.
func (d *Device) SetFormat(req v4l2.PixFormat) (v4l2.PixFormat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("S_FMT"); err != nil {
		return v4l2.PixFormat{}, err
	}
	if d.Coerce != nil {
		req = d.Coerce(req)
	}
	req.BytesPerLine = req.Width * 2
	req.SizeImage = d.BufferSize
	d.format = req
	return d.format, nil
}

// GetFormat implements camera.Device.
func (d *Device) GetFormat() (v4l2.PixFormat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("G_FMT"); err != nil {
		return v4l2.PixFormat{}, err
	}
	return d.format, nil
}

// RequestBuffers implements camera.Device.
func (d *Device) RequestBuffers(count uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("REQBUFS"); err != nil {
		return 0, err
	}
	if count == 0 {
		if len(d.mappings) > 0 {
			return 0, unix.EBUSY
		}
		d.offsets = map[uint32]uint32{}
		return 0, nil
	}
	if d.Grant >= 0 {
		count = uint32(d.Grant)
	}
	d.offsets = make(map[uint32]uint32, count)
	for i := uint32(0); i < count; i++ {
		d.offsets[i] = i * d.BufferSize
	}
	return count, nil
}

// QueryBuffer implements camera.Device.
func (d *Device) QueryBuffer(index uint32) (v4l2.BufferInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "QUERYBUF")
	if err := d.QueryBufErr[index]; err != nil {
		return v4l2.BufferInfo{}, err
	}
	offset, ok := d.offsets[index]
	if !ok {
		return v4l2.BufferInfo{}, unix.EINVAL
	}
	return v4l2.BufferInfo{Index: index, Offset: offset, Length: d.BufferSize}, nil
}

// Map implements camera.Device.
func (d *Device) Map(offset, length uint32) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "MMAP")
	index := offset / d.BufferSize
	if err := d.MapErr[index]; err != nil {
		return nil, err
	}
	if _, live := d.mappings[index]; live {
		return nil, fmt.Errorf("buffer %d mapped twice", index)
	}
	mem := make([]byte, length)
	d.mappings[index] = mem
	d.mapped++
	return mem, nil
}

// Unmap implements camera.Device.
func (d *Device) Unmap(mem []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "MUNMAP")
	if len(mem) == 0 {
		return unix.EINVAL
	}
	for index, m := range d.mappings {
		if &m[0] == &mem[0] {
			delete(d.mappings, index)
			d.unmapped[index]++
			return nil
		}
	}
	return unix.EINVAL
}

// QueueBuffer implements camera.Device.
func (d *Device) QueueBuffer(index uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("QBUF"); err != nil {
		return err
	}
	if _, ok := d.mappings[index]; !ok {
		return unix.EINVAL
	}
	for _, q := range d.queue {
		if q == index {
			return unix.EINVAL
		}
	}
	d.queue = append(d.queue, index)
	return nil
}

// DequeueBuffer implements camera.Device.
func (d *Device) DequeueBuffer() (v4l2.BufferInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "DQBUF")
	if len(d.DequeueScript) > 0 {
		err := d.DequeueScript[0]
		d.DequeueScript = d.DequeueScript[1:]
		if err != nil {
			return v4l2.BufferInfo{}, err
		}
	}
	if !d.streaming {
		return v4l2.BufferInfo{}, unix.EINVAL
	}
	if len(d.queue) == 0 {
		return v4l2.BufferInfo{}, unix.EAGAIN
	}
	index := d.queue[0]
	d.queue = d.queue[1:]

	used := d.BufferSize
	if d.BytesUsed != nil {
		used = d.BytesUsed(d.sequence)
	}
	mem := d.mappings[index]
	for i := range mem {
		mem[i] = byte(d.sequence)
	}
	info := v4l2.BufferInfo{
		Index:     index,
		BytesUsed: used,
		Sequence:  d.sequence,
		Offset:    d.offsets[index],
		Length:    d.BufferSize,
		Timestamp: time.Unix(1700000000, int64(d.sequence)*1000),
	}
	d.sequence++
	return info, nil
}

// StreamOn implements camera.Device.
func (d *Device) StreamOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("STREAMON"); err != nil {
		return err
	}
	d.streaming = true
	return nil
}

// StreamOff implements camera.Device.
func (d *Device) StreamOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("STREAMOFF"); err != nil {
		return err
	}
	d.streaming = false
	d.queue = nil
	return nil
}

// QueryControls implements camera.Device.
func (d *Device) QueryControls() ([]v4l2.ControlInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("QUERYCTRL"); err != nil {
		return nil, err
	}
	return append([]v4l2.ControlInfo(nil), d.Controls...), nil
}

// GetControl implements camera.Device.
func (d *Device) GetControl(id uint32) (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("G_CTRL"); err != nil {
		return 0, err
	}
	if v, ok := d.values[id]; ok {
		return v, nil
	}
	for _, c := range d.Controls {
		if c.ID == id {
			return c.Default, nil
		}
	}
	return 0, unix.EINVAL
}

// SetControl implements camera.Device.
func (d *Device) SetControl(id uint32, value int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("S_CTRL"); err != nil {
		return err
	}
	d.values[id] = value
	return nil
}

// Close implements camera.Device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("CLOSE"); err != nil {
		return err
	}
	d.closed = true
	return nil
}
