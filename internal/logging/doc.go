// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//   - Logs JSON to a size-rotated file when Config.File is set
//   - Keeps the most recent entries in a ring buffer for the preview API
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"capture": "debug",  // Per-module overrides
//			"preview": "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("mymodule")
//	logger.Info("Starting up", "port", 8080)
//	logger.Debug("Details", "config", cfg)
//	logger.Warn("Something unusual", "error", err)
//	logger.Error("Failed", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("capture").With("device", path)
//	logger.Info("Stream started")  // Includes device in all logs
//
// # Log Levels
//
//	debug - Verbose debugging information
//	info  - General operational messages
//	warn  - Warning conditions
//	error - Error conditions
//
// # Output Destinations
//
// The system automatically detects available outputs:
//
//	stdout connected   → TextHandler or JSONHandler
//	journald running   → JournalHandler
//	Config.File set    → JSONHandler on a lumberjack.Logger
//	always             → BufferHandler (ring buffer and log callback)
//
// Records go to every enabled destination.
//
// Journal availability is checked via [github.com/coreos/go-systemd/v22/journal.Enabled].
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t tinycam              # All tinycam logs
//	journalctl -t tinycam -f           # Follow live
//	journalctl -t tinycam --since "5m" # Last 5 minutes
//	journalctl -t tinycam -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t tinycam MODULE=capture
//	journalctl -t tinycam DEVICE=/dev/video0
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//	file = "/var/log/tinycam/tinycam.log"
//	max_size_mb = 10
//	max_backups = 3
//
//	[logging.modules]
//	camera = "debug"
//	preview = "warn"
package logging
