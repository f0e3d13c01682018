package main

import (
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/tinycam/cmd"
	"github.com/smazurov/tinycam/internal/config"
	"github.com/smazurov/tinycam/internal/logging"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"tinycam.toml"`

	// Capture settings
	Device     string `help:"V4L2 device node" short:"p" default:"/dev/video0" toml:"capture.device" env:"CAPTURE_DEVICE"`
	Width      int    `help:"Requested frame width" short:"w" default:"1920" toml:"capture.width" env:"CAPTURE_WIDTH"`
	Height     int    `help:"Requested frame height" default:"1280" toml:"capture.height" env:"CAPTURE_HEIGHT"`
	Format     string `help:"Pixel format (yuyv, mjpeg, h264 or 0, 1, 2)" short:"f" default:"yuyv" toml:"capture.format" env:"CAPTURE_FORMAT"`
	Frames     int    `help:"Frames to capture and save (values <= 0 use 3)" short:"n" default:"3" toml:"capture.frames" env:"CAPTURE_FRAMES"`
	Buffers    int    `help:"Kernel buffers to map (2-8)" default:"8" toml:"capture.buffers" env:"CAPTURE_BUFFERS"`
	RetryDelay string `help:"Sleep between empty dequeues in non-blocking mode" default:"0s" toml:"capture.retry_delay" env:"CAPTURE_RETRY_DELAY"`
	NonBlock   bool   `help:"Open the device non-blocking and poll for frames" default:"false" toml:"capture.non_blocking" env:"CAPTURE_NON_BLOCKING"`
	Controls   string `help:"TOML file of control values applied at startup and on change" default:"" toml:"capture.controls_file" env:"CAPTURE_CONTROLS_FILE"`

	// Output settings
	OutputDir    string `help:"Directory for saved frames" short:"o" default:"." toml:"output.dir" env:"OUTPUT_DIR"`
	OutputNaming string `help:"File naming (sequence, timestamp)" default:"sequence" toml:"output.naming" env:"OUTPUT_NAMING"`

	// Preview settings
	Preview      string `help:"Serve a live preview on this address instead of a bounded capture" short:"g" default:"" toml:"preview.listen" env:"PREVIEW_LISTEN"`
	JPEGQuality  int    `help:"JPEG quality for YUYV preview" default:"80" toml:"preview.jpeg_quality" env:"PREVIEW_JPEG_QUALITY"`
	STUNServer   string `help:"STUN server for WebRTC preview (empty for LAN-only)" default:"" toml:"preview.stun_server" env:"PREVIEW_STUN_SERVER"`
	AuthUsername string `help:"Basic auth username (empty disables auth)" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	Verbose        bool   `help:"Shorthand for debug logging" short:"v" default:"false"`
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingFile    string `help:"Also write logs to this rotated file" default:"" toml:"logging.file" env:"LOGGING_FILE"`
	LoggingCamera  string `help:"Camera logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingCapture string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingOutput  string `help:"Output logging level" default:"info" toml:"logging.output" env:"LOGGING_OUTPUT"`
	LoggingPreview string `help:"Preview server logging level" default:"info" toml:"logging.preview" env:"LOGGING_PREVIEW"`
	LoggingWebRTC  string `help:"WebRTC logging level" default:"info" toml:"logging.webrtc" env:"LOGGING_WEBRTC"`
	LoggingConfig  string `help:"Config logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
}

func main() {
	newCLI().Run()
}

// newCLI builds the root command and its subcommands.
func newCLI() humacli.CLI {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		level := opts.LoggingLevel
		if opts.Verbose {
			level = "debug"
		}
		logging.Initialize(logging.Config{
			Level:  level,
			Format: opts.LoggingFormat,
			File:   opts.LoggingFile,
			Modules: map[string]string{
				"camera":  opts.LoggingCamera,
				"capture": opts.LoggingCapture,
				"output":  opts.LoggingOutput,
				"preview": opts.LoggingPreview,
				"webrtc":  opts.LoggingWebRTC,
				"config":  opts.LoggingConfig,
			},
		})

		logger := logging.GetLogger("main")

		// Capture options are validated in OnStart, which only the root
		// command runs.
		var current atomic.Pointer[app]

		hooks.OnStart(func() {
			a, err := newApp(opts, logger)
			if err != nil {
				logger.Error("Invalid configuration", "error", err)
				exit(1)
				return
			}
			current.Store(a)
			if runErr := a.run(); runErr != nil {
				logger.Error("Capture failed", "error", runErr)
				exit(1)
				return
			}
			_ = logging.Close()
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if a := current.Load(); a != nil {
				a.stop()
			}
			_ = logging.Close()
		})
	})

	cli.Root().Use = "tinycam"
	cli.Root().Short = "Capture frames from a V4L2 camera"

	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreateInfoCmd())
	cli.Root().AddCommand(cmd.CreateControlCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	return cli
}

var exit = func(code int) {
	_ = logging.Close()
	os.Exit(code)
}
