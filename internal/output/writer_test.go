package output

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/tinycam/internal/camera"
	"github.com/smazurov/tinycam/internal/capture"
	"github.com/smazurov/tinycam/pkg/linuxav/v4l2"
)

func frame(n uint64, pf v4l2.PixelFormat, data []byte) capture.Frame {
	return capture.Frame{
		Number: n,
		Format: camera.Format{Width: 640, Height: 480, PixelFormat: pf},
		Data:   data,
	}
}

func TestFileWriterNames(t *testing.T) {
	fixed := time.Unix(1700000000, 123456789)

	tests := []struct {
		name   string
		naming Naming
		frame  capture.Frame
		want   string
	}{
		{"sequence yuyv", NamingSequence, frame(1, v4l2.PixelFormatYUYV, nil), "out_1.YUYV"},
		{"sequence mjpeg", NamingSequence, frame(3, v4l2.PixelFormatMJPEG, nil), "out_3.MJPG"},
		{"timestamp", NamingTimestamp, frame(9, v4l2.PixelFormatH264, nil), "image_1700000000_123456.H264"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewFileWriter(t.TempDir(), tt.naming)
			w.Now = func() time.Time { return fixed }
			if got := w.Name(tt.frame); got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileWriterWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	w := NewFileWriter(dir, NamingSequence)
	data := bytes.Repeat([]byte{0xAB}, 1024)

	path, err := w.Write(frame(2, v4l2.PixelFormatYUYV, data))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if path != filepath.Join(dir, "out_2.YUYV") {
		t.Errorf("path = %q", path)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("file contents differ from frame data")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the frame", len(entries))
	}
}

func TestFileWriterFailure(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewFileWriter(filepath.Join(blocker, "sub"), NamingSequence)
	if _, err := w.Write(frame(1, v4l2.PixelFormatYUYV, []byte{1})); err == nil {
		t.Fatal("Write() into a path under a regular file should fail")
	}
}

func TestParseNaming(t *testing.T) {
	tests := []struct {
		in      string
		want    Naming
		wantErr bool
	}{
		{"", NamingSequence, false},
		{"sequence", NamingSequence, false},
		{"Timestamp", NamingTimestamp, false},
		{"random", "", true},
	}
	for _, tt := range tests {
		got, err := ParseNaming(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseNaming(%q) = %q, %v", tt.in, got, err)
		}
	}
}
