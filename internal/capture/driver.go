package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/smazurov/tinycam/internal/camera"
	"github.com/smazurov/tinycam/internal/events"
	"github.com/smazurov/tinycam/internal/logging"
	"github.com/smazurov/tinycam/internal/metrics"
	"github.com/smazurov/tinycam/pkg/linuxav/v4l2"
)

// StopReason says why a frame cycle ended.
type StopReason string

// Stop reasons.
const (
	ReasonCountReached  StopReason = "count-reached"
	ReasonConsumerStop  StopReason = "consumer-stop"
	ReasonDequeueFailed StopReason = "dequeue-failed"
	ReasonQueueFailed   StopReason = "queue-failed"
	ReasonSaveFailed    StopReason = "save-failed"
	ReasonCanceled      StopReason = "canceled"
)

// ErrNoWriter is reported when a sink asks for a save and no Writer is set.
var ErrNoWriter = errors.New("capture: no writer configured")

// Source is the part of a camera the driver needs. *camera.Camera
// satisfies it.
type Source interface {
	Path() string
	Format() camera.Format
	DequeueBuffer() (camera.Buffer, error)
	Frame(buf camera.Buffer) ([]byte, error)
	QueueBuffer(buf camera.Buffer) error
}

// ControlApplier is implemented by sources that accept control writes.
type ControlApplier interface {
	ApplyControl(cv camera.ControlValue) (v4l2.ControlInfo, error)
}

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// Options configures a Driver.
type Options struct {
	// Frames stops the cycle after this many frames. Zero runs until the
	// sink stops it or the context is canceled.
	Frames int

	// RetryDelay is slept between dequeue attempts that found no frame.
	// Zero polls without sleeping.
	RetryDelay time.Duration

	// Controls are applied between frames on the driver goroutine.
	Controls <-chan camera.ControlValue

	// Logger for cycle events. Defaults to the "capture" module logger.
	Logger logging.Logger

	// Bus receives frame, save, control and stop events (optional).
	Bus EventPublisher
}

// Result summarizes a finished frame cycle.
type Result struct {
	Frames  uint64     `json:"frames"`
	Saved   uint64     `json:"saved"`
	Retries uint64     `json:"retries"`
	Reason  StopReason `json:"reason"`
}

// Driver runs the dequeue, consume, save, requeue cycle against a
// streaming Source.
type Driver struct {
	src    Source
	sink   Sink
	writer Writer
	opts   Options
	logger logging.Logger
}

// NewDriver creates a driver. writer may be nil when the sink never saves.
func NewDriver(src Source, sink Sink, writer Writer, opts Options) *Driver {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("capture")
	}
	return &Driver{
		src:    src,
		sink:   sink,
		writer: writer,
		opts:   opts,
		logger: logger,
	}
}

// Run cycles frames until the frame count is reached, the sink returns
// ActionStop, a buffer operation fails, or ctx is canceled. Cancellation is
// only observed between frames and while waiting for one.
//
// Every dequeued buffer is queued back before Run moves on, including when
// saving it failed.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	var res Result
	device := d.src.Path()
	d.logger.Info("Frame cycle started", "device", device, "frames", d.opts.Frames, "format", d.src.Format().String())

	for {
		if d.opts.Frames > 0 && res.Frames >= uint64(d.opts.Frames) {
			return d.finish(res, ReasonCountReached, nil)
		}
		if err := ctx.Err(); err != nil {
			return d.finish(res, ReasonCanceled, err)
		}

		d.applyControls()

		buf, err := d.dequeue(ctx, &res)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return d.finish(res, ReasonCanceled, err)
			}
			return d.finish(res, ReasonDequeueFailed, err)
		}

		data, err := d.src.Frame(buf)
		if err != nil {
			return d.finish(res, ReasonDequeueFailed, multierr.Append(err, d.src.QueueBuffer(buf)))
		}

		res.Frames++
		metrics.IncFrames(device)
		frame := Frame{
			Number:    res.Frames,
			Index:     buf.Index,
			Sequence:  buf.Sequence,
			Timestamp: buf.Timestamp,
			Format:    d.src.Format(),
			Data:      data,
		}

		action := d.sink.Consume(frame)
		d.publish(events.FrameCapturedEvent{
			DevicePath: device,
			Frame:      frame.Number,
			Index:      frame.Index,
			Sequence:   frame.Sequence,
			Bytes:      len(frame.Data),
			Format:     frame.Format.FourCC(),
			Timestamp:  frame.Timestamp.Format(time.RFC3339Nano),
		})

		var saveErr error
		if action == ActionSave {
			saveErr = d.save(frame)
			if saveErr == nil {
				res.Saved++
			}
		}

		if err := d.src.QueueBuffer(buf); err != nil {
			return d.finish(res, ReasonQueueFailed, multierr.Append(saveErr, err))
		}
		if saveErr != nil {
			return d.finish(res, ReasonSaveFailed, saveErr)
		}
		if action == ActionStop {
			return d.finish(res, ReasonConsumerStop, nil)
		}
	}
}

// dequeue retries until a buffer is ready. Try-again results are counted
// but never reach the sink.
func (d *Driver) dequeue(ctx context.Context, res *Result) (camera.Buffer, error) {
	device := d.src.Path()
	start := time.Now()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		buf, err := d.src.DequeueBuffer()
		if err == nil {
			metrics.ObserveDequeue(device, time.Since(start).Seconds())
			return buf, nil
		}
		if !errors.Is(err, camera.ErrTryAgain) {
			return camera.Buffer{}, err
		}

		res.Retries++
		metrics.IncRetries(device)

		if d.opts.RetryDelay <= 0 {
			if err := ctx.Err(); err != nil {
				return camera.Buffer{}, err
			}
			continue
		}
		if timer == nil {
			timer = time.NewTimer(d.opts.RetryDelay)
		} else {
			timer.Reset(d.opts.RetryDelay)
		}
		select {
		case <-ctx.Done():
			return camera.Buffer{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func (d *Driver) save(f Frame) error {
	device := d.src.Path()
	if d.writer == nil {
		metrics.IncSaveFailures(device)
		return ErrNoWriter
	}
	path, err := d.writer.Write(f)
	if err != nil {
		metrics.IncSaveFailures(device)
		d.logger.Error("Failed to save frame", "device", device, "frame", f.Number, "error", err)
		return fmt.Errorf("save frame %d: %w", f.Number, err)
	}
	metrics.IncSaves(device)
	d.logger.Info("Frame saved", "device", device, "frame", f.Number, "path", path, "bytes", len(f.Data))
	d.publish(events.FrameSavedEvent{
		DevicePath: device,
		Frame:      f.Number,
		Path:       path,
		Bytes:      len(f.Data),
		Timestamp:  time.Now().Format(time.RFC3339),
	})
	return nil
}

// applyControls drains pending control writes without blocking.
func (d *Driver) applyControls() {
	if d.opts.Controls == nil {
		return
	}
	applier, ok := d.src.(ControlApplier)
	for {
		select {
		case cv, open := <-d.opts.Controls:
			if !open {
				d.opts.Controls = nil
				return
			}
			if !ok {
				d.logger.Warn("Source does not accept controls", "control", cv.String())
				continue
			}
			d.applyControl(applier, cv)
		default:
			return
		}
	}
}

func (d *Driver) applyControl(applier ControlApplier, cv camera.ControlValue) {
	ev := events.ControlChangedEvent{
		DevicePath: d.src.Path(),
		ID:         cv.ID,
		Name:       cv.Name,
		Value:      cv.Value,
	}
	ctrl, err := applier.ApplyControl(cv)
	if ctrl.ID != 0 {
		ev.ID, ev.Name = ctrl.ID, ctrl.Name
	}
	if err != nil {
		ev.Error = err.Error()
		d.logger.Warn("Control not applied", "control", cv.String(), "error", err)
	} else {
		d.logger.Info("Control applied", "control", ctrl.Name, "value", cv.Value)
	}
	ev.Timestamp = time.Now().Format(time.RFC3339)
	d.publish(ev)
}

func (d *Driver) finish(res Result, reason StopReason, err error) (Result, error) {
	res.Reason = reason
	ev := events.CaptureStoppedEvent{
		DevicePath: d.src.Path(),
		Reason:     string(reason),
		Frames:     res.Frames,
		Saved:      res.Saved,
		Retries:    res.Retries,
		Timestamp:  time.Now().Format(time.RFC3339),
	}
	if err != nil {
		ev.Error = err.Error()
		d.logger.Warn("Frame cycle stopped", "device", ev.DevicePath, "reason", reason, "frames", res.Frames, "error", err)
	} else {
		d.logger.Info("Frame cycle stopped", "device", ev.DevicePath, "reason", reason, "frames", res.Frames, "saved", res.Saved, "retries", res.Retries)
	}
	d.publish(ev)
	return res, err
}

func (d *Driver) publish(ev events.Event) {
	if d.opts.Bus != nil {
		d.opts.Bus.Publish(ev)
	}
}
