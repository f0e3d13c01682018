package preview

import (
	"io"
	"log/slog"
	"time"

	"github.com/smazurov/tinycam/internal/logging"
)

func newNopLogger() logging.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func logEntry(seq uint64, msg string) logging.LogEntry {
	return logging.LogEntry{
		Seq:       seq,
		Timestamp: time.Now(),
		Level:     "info",
		Module:    "capture",
		Message:   msg,
	}
}
