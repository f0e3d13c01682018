package capture

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/smazurov/tinycam/internal/camera"
	"github.com/smazurov/tinycam/internal/events"
	"github.com/smazurov/tinycam/internal/logging"
	"github.com/smazurov/tinycam/internal/metrics"
)

// Setup describes how to bring a camera to streaming.
type Setup struct {
	Format   camera.Format
	Buffers  int
	Controls []camera.ControlValue
}

// Capture opens cam, negotiates setup.Format, queries the supported
// formats and controls, maps buffers, starts streaming and runs a Driver.
// The camera is always closed before Capture returns; a teardown failure is
// combined with the run error.
//
// onReady, if set, is called with the negotiated format once streaming has
// started.
func Capture(ctx context.Context, cam *camera.Camera, setup Setup, sink Sink, writer Writer, opts Options, onReady func(camera.Format)) (res Result, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("capture")
		opts.Logger = logger
	}

	defer func() {
		if cam.State() == camera.StateInit {
			return
		}
		if cerr := cam.Close(); cerr != nil {
			err = multierr.Append(err, cerr)
		}
	}()

	if err := cam.Open(); err != nil {
		return res, err
	}
	caps, err := cam.QueryCapabilities()
	if err != nil {
		return res, err
	}
	logger.Info("Device opened", "device", cam.Path(), "driver", caps.Driver, "card", caps.Card, "bus", caps.BusInfo)

	format, err := cam.SetFormat(setup.Format)
	if err != nil {
		return res, err
	}

	formats, err := cam.QueryFormats()
	if err != nil {
		return res, err
	}
	for _, f := range formats {
		logger.Debug("Supported format", "fourcc", f.PixelFormat.String(), "name", f.FormatName, "emulated", f.Emulated)
	}

	controls, err := cam.QueryControls()
	if err != nil {
		return res, err
	}
	for _, ctrl := range controls {
		logger.Debug("Supported control", "id", ctrl.ID, "name", ctrl.Name, "type", ctrl.Type.String(),
			"min", ctrl.Minimum, "max", ctrl.Maximum, "default", ctrl.Default)
	}

	for _, cv := range setup.Controls {
		ctrl, cerr := cam.ApplyControl(cv)
		switch {
		case cerr == nil:
			logger.Debug("Initial control applied", "control", ctrl.Name, "value", cv.Value)
		case camera.IsCode(cerr, camera.ErrCodeInvalidControl):
			logger.Warn("Skipping initial control", "control", cv.String(), "error", cerr)
		default:
			return res, cerr
		}
	}

	if err := cam.AllocateBuffers(setup.Buffers); err != nil {
		return res, err
	}
	if err := cam.StartStreaming(); err != nil {
		return res, err
	}
	logger.Info("Streaming", "device", cam.Path(), "format", format.String(), "buffers", cam.BufferCount())

	if onReady != nil {
		onReady(format)
	}

	return NewDriver(cam, sink, writer, opts).Run(ctx)
}

// StateObserver returns a camera state callback that mirrors transitions
// into metrics and, when bus is non-nil, onto the event bus.
func StateObserver(device string, bus EventPublisher) camera.StateChangeCallback {
	return func(from, to camera.State, op camera.Operation, err error) {
		metrics.SetState(device, string(to))
		if bus == nil {
			return
		}
		ev := events.CaptureStateChangedEvent{
			DevicePath: device,
			From:       string(from),
			To:         string(to),
			Operation:  string(op),
			Timestamp:  time.Now().Format(time.RFC3339),
		}
		if err != nil {
			ev.Error = err.Error()
		}
		bus.Publish(ev)
	}
}
