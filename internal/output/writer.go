// Package output persists captured frames to disk.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/smazurov/tinycam/internal/capture"
	"github.com/smazurov/tinycam/internal/logging"
)

// Naming selects how FileWriter names files.
type Naming string

// File naming schemes.
const (
	// NamingSequence names files out_<frame>.<FOURCC>.
	NamingSequence Naming = "sequence"
	// NamingTimestamp names files image_<sec>_<usec>.<FOURCC> from the
	// wall clock at save time.
	NamingTimestamp Naming = "timestamp"
)

// ParseNaming returns the naming scheme for s.
func ParseNaming(s string) (Naming, error) {
	switch Naming(strings.ToLower(s)) {
	case NamingSequence, "":
		return NamingSequence, nil
	case NamingTimestamp:
		return NamingTimestamp, nil
	default:
		return "", fmt.Errorf("unknown naming %q (want sequence or timestamp)", s)
	}
}

// FileWriter writes each frame to its own file in Dir. It implements
// capture.Writer.
type FileWriter struct {
	Dir    string
	Naming Naming

	// Now is the clock used for timestamp naming. Defaults to time.Now.
	Now func() time.Time

	logger logging.Logger
}

// NewFileWriter creates a writer for dir ("" means the working directory).
func NewFileWriter(dir string, naming Naming) *FileWriter {
	if dir == "" {
		dir = "."
	}
	return &FileWriter{
		Dir:    dir,
		Naming: naming,
		Now:    time.Now,
		logger: logging.GetLogger("output"),
	}
}

// Name returns the file name frame f would be written to.
func (w *FileWriter) Name(f capture.Frame) string {
	ext := strings.TrimSpace(f.Format.FourCC())
	if w.Naming == NamingTimestamp {
		now := time.Now
		if w.Now != nil {
			now = w.Now
		}
		t := now()
		return fmt.Sprintf("image_%d_%d.%s", t.Unix(), t.Nanosecond()/1000, ext)
	}
	return fmt.Sprintf("out_%d.%s", f.Number, ext)
}

// Write stores f.Data. The file appears under its final name only once
// fully written.
func (w *FileWriter) Write(f capture.Frame) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", w.Dir, err)
	}

	path := filepath.Join(w.Dir, w.Name(f))

	tmp, err := os.CreateTemp(w.Dir, ".frame_*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(f.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move frame into place: %w", err)
	}

	if w.logger != nil {
		w.logger.Debug("Frame written", "path", path, "bytes", len(f.Data))
	}
	return path, nil
}
