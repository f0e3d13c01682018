package camera

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/smazurov/tinycam/internal/logging"
	"github.com/smazurov/tinycam/pkg/linuxav/v4l2"
)

// StateChangeCallback is called after every state transition.
type StateChangeCallback func(from, to State, op Operation, err error)

// Options configures a Camera.
type Options struct {
	// Opener opens the device node. Defaults to BlockingOpener.
	Opener Opener

	// OnStateChange is called after each transition (optional).
	OnStateChange StateChangeCallback

	// Logger for camera operations. Defaults to the "camera" module logger.
	Logger logging.Logger
}

// Buffer is a dequeued buffer held by the application.
type Buffer struct {
	Index     uint32
	BytesUsed uint32
	Sequence  uint32
	Timestamp time.Time
}

// Camera sequences device and buffer operations on one capture node and
// rejects calls made out of order. It is not safe for concurrent use.
type Camera struct {
	path          string
	opener        Opener
	onStateChange StateChangeCallback
	logger        logging.Logger

	state    State
	session  *Session
	pool     *Pool
	format   Format
	locked   *Buffer
	queued   bool // buffers handed to the driver, stream may be live
	controls map[uint32]v4l2.ControlInfo
}

// New creates a camera for the device at path in state INIT.
func New(path string, opts Options) *Camera {
	if opts.Opener == nil {
		opts.Opener = BlockingOpener
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("camera")
	}
	return &Camera{
		path:          path,
		opener:        opts.Opener,
		onStateChange: opts.OnStateChange,
		logger:        opts.Logger,
		state:         StateInit,
	}
}

// Path returns the device path.
func (c *Camera) Path() string { return c.path }

// State returns the current state.
func (c *Camera) State() State { return c.state }

// Format returns the negotiated format. It is the zero value before
// SetFormat succeeds.
func (c *Camera) Format() Format { return c.format }

// BufferCount returns the number of mapped buffers, or 0 without a pool.
func (c *Camera) BufferCount() int {
	if c.pool == nil {
		return 0
	}
	return c.pool.Count()
}

// Capabilities returns the capabilities from the last successful query.
func (c *Camera) Capabilities() v4l2.Capability {
	if c.session == nil {
		return v4l2.Capability{}
	}
	return c.session.Capabilities()
}

// begin checks op against the transition table without side effects.
func (c *Camera) begin(op Operation) (State, error) {
	next, err := Next(c.state, op)
	if err != nil {
		c.logger.Debug("Rejected out-of-order call", "op", op, "state", c.state)
		return c.state, err
	}
	return next, nil
}

func (c *Camera) transition(to State, op Operation, cause error) {
	from := c.state
	c.state = to
	if from != to && c.onStateChange != nil {
		c.onStateChange(from, to, op, cause)
	}
}

// fail moves the machine to ERROR after a delegated call failed.
func (c *Camera) fail(op Operation, err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		if ce.State == "" {
			ce.State = c.state
		}
		if ce.Op == "" {
			ce.Op = op
		}
	} else {
		ce = &Error{Code: ErrCodeIoctlFailed, Op: op, State: c.state, Cause: err}
	}
	c.logger.Error("Capture operation failed", "op", op, "state", c.state, "code", ce.Code, "error", ce.Cause)
	c.transition(StateError, op, ce)
	return ce
}

// Open opens the device node.
func (c *Camera) Open() error {
	next, err := c.begin(OpOpen)
	if err != nil {
		return err
	}
	session, err := OpenSession(c.path, c.opener)
	if err != nil {
		return c.fail(OpOpen, err)
	}
	c.session = session
	c.logger.Debug("Device opened", "path", c.path)
	c.transition(next, OpOpen, nil)
	return nil
}

// QueryCapabilities confirms video capture and streaming support.
func (c *Camera) QueryCapabilities() (v4l2.Capability, error) {
	if _, err := c.begin(OpQueryCapabilities); err != nil {
		return v4l2.Capability{}, err
	}
	caps, err := c.session.QueryCapabilities()
	if err != nil {
		return caps, c.fail(OpQueryCapabilities, err)
	}
	c.logger.Debug("Capabilities", "driver", caps.Driver, "card", caps.Card, "caps", fmt.Sprintf("0x%08x", caps.Effective()))
	return caps, nil
}

// QueryFormats enumerates the pixel formats the device offers.
func (c *Camera) QueryFormats() ([]v4l2.FormatInfo, error) {
	if _, err := c.begin(OpQueryFormats); err != nil {
		return nil, err
	}
	formats, err := c.session.QueryFormats()
	if err != nil {
		return nil, c.fail(OpQueryFormats, err)
	}
	return formats, nil
}

// QueryControls enumerates the device controls and remembers them for
// SetControl validation.
func (c *Camera) QueryControls() ([]v4l2.ControlInfo, error) {
	if _, err := c.begin(OpQueryControls); err != nil {
		return nil, err
	}
	controls, err := c.session.QueryControls()
	if err != nil {
		return nil, c.fail(OpQueryControls, err)
	}
	c.controls = make(map[uint32]v4l2.ControlInfo, len(controls))
	for _, ctrl := range controls {
		c.controls[ctrl.ID] = ctrl
	}
	return controls, nil
}

// GetFormat reads the active format from the device.
func (c *Camera) GetFormat() (Format, error) {
	if _, err := c.begin(OpGetFormat); err != nil {
		return Format{}, err
	}
	f, err := c.session.GetFormat()
	if err != nil {
		return Format{}, c.fail(OpGetFormat, err)
	}
	return f, nil
}

// GetControl reads a control value.
func (c *Camera) GetControl(id uint32) (int32, error) {
	if _, err := c.begin(OpGetControl); err != nil {
		return 0, err
	}
	v, err := c.session.GetControl(id)
	if err != nil {
		return 0, c.fail(OpGetControl, err)
	}
	return v, nil
}

// SetControl writes a control value. When controls have been queried the
// id and value are checked against them first; a rejected value has no
// side effect.
func (c *Camera) SetControl(id uint32, value int32) error {
	if _, err := c.begin(OpSetControl); err != nil {
		return err
	}
	if c.controls != nil {
		ctrl, ok := c.controls[id]
		switch {
		case !ok:
			return &Error{Code: ErrCodeInvalidControl, Op: OpSetControl, State: c.state, Message: fmt.Sprintf("unknown control 0x%08x", id)}
		case ctrl.ReadOnly():
			return &Error{Code: ErrCodeInvalidControl, Op: OpSetControl, State: c.state, Message: fmt.Sprintf("%s is read-only", ctrl.Name)}
		case !ctrl.InRange(value):
			return &Error{
				Code:    ErrCodeInvalidControl,
				Op:      OpSetControl,
				State:   c.state,
				Message: fmt.Sprintf("%s value %d outside [%d, %d]", ctrl.Name, value, ctrl.Minimum, ctrl.Maximum),
			}
		}
	}
	if err := c.session.SetControl(id, value); err != nil {
		return c.fail(OpSetControl, err)
	}
	c.logger.Debug("Control set", "id", fmt.Sprintf("0x%08x", id), "value", value)
	return nil
}

// SetFormat negotiates the capture format. The returned format is what
// the driver accepted and may differ from requested.
func (c *Camera) SetFormat(requested Format) (Format, error) {
	next, err := c.begin(OpSetFormat)
	if err != nil {
		return Format{}, err
	}
	f, err := c.session.NegotiateFormat(requested)
	if err != nil {
		return Format{}, c.fail(OpSetFormat, err)
	}
	if f.Width != requested.Width || f.Height != requested.Height || f.PixelFormat != requested.PixelFormat {
		c.logger.Warn("Driver adjusted requested format", "requested", requested.String(), "negotiated", f.String())
	}
	c.format = f
	c.transition(next, OpSetFormat, nil)
	return f, nil
}

// AllocateBuffers requests and maps count buffers. A count of 0 uses
// DefaultBufferCount.
func (c *Camera) AllocateBuffers(count int) error {
	next, err := c.begin(OpAllocateBuffers)
	if err != nil {
		return err
	}
	pool, err := AllocatePool(c.session.Device(), count)
	if err != nil {
		return c.fail(OpAllocateBuffers, err)
	}
	c.pool = pool
	c.logger.Debug("Buffers mapped", "count", pool.Count())
	c.transition(next, OpAllocateBuffers, nil)
	return nil
}

// StartStreaming queues every buffer and starts the capture pipeline.
func (c *Camera) StartStreaming() error {
	next, err := c.begin(OpStartStreaming)
	if err != nil {
		return err
	}
	dev := c.session.Device()
	for i := 0; i < c.pool.Count(); i++ {
		c.queued = true
		if err := dev.QueueBuffer(uint32(i)); err != nil {
			return c.fail(OpStartStreaming, &Error{Code: ErrCodeIoctlFailed, Message: fmt.Sprintf("VIDIOC_QBUF %d", i), Cause: err})
		}
	}
	if err := c.session.StreamOn(); err != nil {
		return c.fail(OpStartStreaming, err)
	}
	c.transition(next, OpStartStreaming, nil)
	return nil
}

// DequeueBuffer takes a filled buffer from the driver. ErrTryAgain means
// no buffer was ready and the state is unchanged.
func (c *Camera) DequeueBuffer() (Buffer, error) {
	next, err := c.begin(OpDequeueBuffer)
	if err != nil {
		return Buffer{}, err
	}
	info, err := c.session.Device().DequeueBuffer()
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return Buffer{}, ErrTryAgain
		}
		return Buffer{}, c.fail(OpDequeueBuffer, &Error{Code: ErrCodeIoctlFailed, Message: "VIDIOC_DQBUF", Cause: err})
	}
	if int(info.Index) >= c.pool.Count() {
		return Buffer{}, c.fail(OpDequeueBuffer, &Error{
			Code:    ErrCodeIndexOutOfRange,
			Message: fmt.Sprintf("driver returned buffer %d of %d", info.Index, c.pool.Count()),
		})
	}
	c.pool.setUsed(info.Index, info.BytesUsed)
	buf := Buffer{
		Index:     info.Index,
		BytesUsed: info.BytesUsed,
		Sequence:  info.Sequence,
		Timestamp: info.Timestamp,
	}
	c.locked = &buf
	c.transition(next, OpDequeueBuffer, nil)
	return buf, nil
}

// Frame returns a borrowed view of the locked buffer's contents. The view
// must not be used after QueueBuffer.
func (c *Camera) Frame(buf Buffer) ([]byte, error) {
	if c.state != StateBufferLocked || c.locked == nil || c.locked.Index != buf.Index {
		return nil, &Error{Code: ErrCodeInvalidBuffer, State: c.state, Message: fmt.Sprintf("buffer %d is not locked", buf.Index)}
	}
	return c.pool.Get(buf.Index)
}

// QueueBuffer returns the locked buffer to the driver.
func (c *Camera) QueueBuffer(buf Buffer) error {
	next, err := c.begin(OpQueueBuffer)
	if err != nil {
		return err
	}
	if c.locked == nil || c.locked.Index != buf.Index {
		return &Error{Code: ErrCodeInvalidBuffer, Op: OpQueueBuffer, State: c.state, Message: fmt.Sprintf("buffer %d is not the locked buffer", buf.Index)}
	}
	if err := c.session.Device().QueueBuffer(buf.Index); err != nil {
		return c.fail(OpQueueBuffer, &Error{Code: ErrCodeIoctlFailed, Message: fmt.Sprintf("VIDIOC_QBUF %d", buf.Index), Cause: err})
	}
	c.locked = nil
	c.transition(next, OpQueueBuffer, nil)
	return nil
}

// StopStreaming stops the capture pipeline. The driver reclaims every
// queued buffer.
func (c *Camera) StopStreaming() error {
	next, err := c.begin(OpStopStreaming)
	if err != nil {
		return err
	}
	if err := c.session.StreamOff(); err != nil {
		return c.fail(OpStopStreaming, err)
	}
	c.queued = false
	c.transition(next, OpStopStreaming, nil)
	return nil
}

// ReleaseBuffers unmaps every buffer and frees them in the driver.
func (c *Camera) ReleaseBuffers() error {
	next, err := c.begin(OpReleaseBuffers)
	if err != nil {
		return err
	}
	pool := c.pool
	c.pool = nil
	if err := pool.Release(); err != nil {
		return c.fail(OpReleaseBuffers, err)
	}
	c.transition(next, OpReleaseBuffers, nil)
	return nil
}

// Close tears down whatever is held, in reverse order of setup: stream
// off, buffer release, device close. Every step is attempted even when an
// earlier one fails. The camera always ends in INIT; the returned error
// combines the failed steps.
func (c *Camera) Close() error {
	next, err := c.begin(OpClose)
	if err != nil {
		return err
	}
	from := c.state

	var errs error
	if c.queued && c.session != nil {
		errs = multierr.Append(errs, c.session.StreamOff())
		c.queued = false
	}
	c.locked = nil
	if c.pool != nil {
		errs = multierr.Append(errs, c.pool.Release())
		c.pool = nil
	}
	if c.session != nil {
		errs = multierr.Append(errs, c.session.Close())
		c.session = nil
	}
	c.format = Format{}
	c.controls = nil

	if errs != nil {
		c.logger.Warn("Teardown incomplete", "from", from, "error", errs)
		errs = &Error{Code: ErrCodeTeardownFailed, Op: OpClose, State: from, Cause: errs}
	}
	c.transition(next, OpClose, errs)
	return errs
}
