package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/smazurov/tinycam/internal/camera"
	"github.com/smazurov/tinycam/internal/capture"
	"github.com/smazurov/tinycam/internal/config"
	"github.com/smazurov/tinycam/internal/events"
	"github.com/smazurov/tinycam/internal/logging"
	"github.com/smazurov/tinycam/internal/metrics/exporters"
	"github.com/smazurov/tinycam/internal/output"
	"github.com/smazurov/tinycam/internal/preview"
	"github.com/smazurov/tinycam/pkg/linuxav/v4l2"
)

// defaultFrameCount is used when a bounded capture asks for no frames.
const defaultFrameCount = 3

// controlQueueSize bounds control edits waiting for the capture loop.
const controlQueueSize = 16

// app is one capture run assembled from Options.
type app struct {
	opts   *Options
	logger logging.Logger

	setup      capture.Setup
	retryDelay time.Duration
	writer     *output.FileWriter
	bus        *events.Bus
	cam        *camera.Camera

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	stopOnce sync.Once
}

func newApp(opts *Options, logger logging.Logger) (*app, error) {
	pixfmt, ok := v4l2.ParsePixelFormat(opts.Format)
	if !ok {
		return nil, fmt.Errorf("unknown pixel format %q", opts.Format)
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid resolution %dx%d", opts.Width, opts.Height)
	}
	naming, err := output.ParseNaming(opts.OutputNaming)
	if err != nil {
		return nil, err
	}
	retryDelay, err := time.ParseDuration(opts.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("invalid retry delay %q: %w", opts.RetryDelay, err)
	}

	var initial []camera.ControlValue
	if opts.Controls != "" {
		initial, err = config.LoadControls(opts.Controls)
		if err != nil {
			return nil, err
		}
	}

	bus := events.New()
	opener := camera.BlockingOpener
	if opts.NonBlock {
		opener = camera.NonBlockingOpener
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &app{
		opts:   opts,
		logger: logger,
		setup: capture.Setup{
			Format: camera.Format{
				Width:       uint32(opts.Width),
				Height:      uint32(opts.Height),
				PixelFormat: pixfmt,
			},
			Buffers:  opts.Buffers,
			Controls: initial,
		},
		retryDelay: retryDelay,
		writer:     output.NewFileWriter(opts.OutputDir, naming),
		bus:        bus,
		cam: camera.New(opts.Device, camera.Options{
			Opener:        opener,
			OnStateChange: capture.StateObserver(opts.Device, bus),
		}),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}, nil
}

// run captures until the run finishes or stop is called.
func (a *app) run() error {
	defer close(a.done)
	if a.opts.Preview != "" {
		return a.runPreview()
	}
	return a.runBounded()
}

// stop cancels the run and waits for the device to be released.
func (a *app) stop() {
	a.stopOnce.Do(func() {
		a.cancel()
		select {
		case <-a.done:
		case <-time.After(5 * time.Second):
			a.logger.Warn("Timed out waiting for capture to stop")
		}
	})
}

func (a *app) captureOptions(controls <-chan camera.ControlValue) capture.Options {
	return capture.Options{
		RetryDelay: a.retryDelay,
		Controls:   controls,
		Logger:     logging.GetLogger("capture"),
		Bus:        a.bus,
	}
}

func (a *app) runBounded() error {
	frames := a.opts.Frames
	if frames <= 0 {
		frames = defaultFrameCount
	}
	opts := a.captureOptions(nil)
	opts.Frames = frames

	res, err := capture.Capture(a.ctx, a.cam, a.setup, capture.SaveEach, a.writer, opts, nil)
	if errors.Is(err, context.Canceled) {
		a.logger.Info("Capture interrupted", "frames", res.Frames, "saved", res.Saved)
		return nil
	}
	if err != nil {
		return err
	}
	a.logger.Info("Capture complete", "frames", res.Frames, "saved", res.Saved, "dir", a.writer.Dir)
	return nil
}

func (a *app) runPreview() error {
	controls := make(chan camera.ControlValue, controlQueueSize)
	hub := preview.NewHub()
	sink := preview.NewSink(hub)

	var (
		webrtc    *preview.WebRTCManager
		keyframes *preview.KeyframeForcer
	)
	if a.setup.Format.PixelFormat == v4l2.PixelFormatH264 {
		keyframes = preview.NewKeyframeForcer(controls, preview.DefaultKeyframeInterval)
		cfg := preview.WebRTCConfig{
			OnKeyframeRequest: func() { keyframes.Request() },
		}
		if a.opts.STUNServer != "" {
			cfg.ICEServers = []pion.ICEServer{{URLs: []string{a.opts.STUNServer}}}
		}
		var err error
		webrtc, err = preview.NewWebRTCManager(cfg, logging.GetLogger("webrtc"))
		if err != nil {
			return err
		}
		defer webrtc.Stop()
		go webrtc.Run(a.ctx, hub)
	}

	server := preview.NewServer(preview.Options{
		Device:       a.opts.Device,
		Hub:          hub,
		Sink:         sink,
		Bus:          a.bus,
		Controls:     controls,
		WebRTC:       webrtc,
		JPEGQuality:  a.opts.JPEGQuality,
		AuthUsername: a.opts.AuthUsername,
		AuthPassword: a.opts.AuthPassword,
	})

	logging.SetLogCallback(func(entry logging.LogEntry) {
		a.bus.Publish(preview.LogEntryEvent(entry))
	})
	defer logging.SetLogCallback(nil)

	stats := exporters.NewSSEExporter(a.bus)
	stats.Start(a.ctx)
	defer stats.Stop()

	if a.opts.Controls != "" {
		watcher := config.NewConfigWatcher(a.opts.Controls, config.LoadControls, nil)
		watcher.OnReload(func(values []camera.ControlValue) {
			for _, cv := range values {
				select {
				case controls <- cv:
				default:
					a.logger.Warn("Control queue full, dropping reloaded value", "control", cv.String())
				}
			}
		})
		if err := watcher.Start(); err != nil {
			a.logger.Warn("Failed to watch controls file", "path", a.opts.Controls, "error", err)
		} else {
			defer func() { _ = watcher.Stop() }()
		}
	}

	a.logger.Info("Starting preview server", "addr", a.opts.Preview)
	if err := server.Start(a.opts.Preview); err != nil {
		return err
	}
	defer func() {
		if err := server.Stop(); err != nil {
			a.logger.Warn("Error stopping preview server", "error", err)
		}
	}()

	onReady := func(f camera.Format) {
		server.SetFormat(f)
		server.SetControls(a.cam.Controls())
		if keyframes != nil {
			keyframes.SetControls(a.cam.Controls())
		}
	}

	opts := a.captureOptions(controls)
	res, err := capture.Capture(a.ctx, a.cam, a.setup, sink, a.writer, opts, onReady)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	a.logger.Info("Preview capture finished", "frames", res.Frames, "saved", res.Saved, "reason", string(res.Reason))
	return err
}
