package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func resetState(t *testing.T) {
	t.Helper()
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	logCallback = nil
	mutex.Unlock()
	t.Cleanup(func() { _ = Close() })
}

func TestModuleLevelOverride(t *testing.T) {
	resetState(t)

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"capture": "debug",
			"preview": "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"capture", true, true, true},
		{"preview", false, false, true},
		{"camera", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState(t)

	before := GetLogger("webrtc").Handler()
	if before.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info")
	}

	Initialize(Config{
		Level:   "info",
		Format:  "text",
		Modules: map[string]string{"webrtc": "debug"},
	})

	// The module LevelVar is shared, so the old handler follows the new level.
	if !before.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("handler created before Initialize should pick up the module level")
	}
	if !GetLogger("webrtc").Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger after Initialize should have debug enabled")
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			switch {
			case tt.isNil && got != nil:
				t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
			case !tt.isNil && got == nil:
				t.Errorf("parseLevel(%q) = nil, want %v", tt.input, tt.want)
			case !tt.isNil && *got != tt.want:
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, *got, tt.want)
			}
		})
	}
}

func TestFanoutWritesOncePerEnabledHandler(t *testing.T) {
	var buf bytes.Buffer
	debug := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	info := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(fanout{debug, info}).With("module", "capture")
	logger.Debug("dequeue retry")

	if n := strings.Count(buf.String(), "dequeue retry"); n != 1 {
		t.Errorf("debug line written %d times, want 1. Output: %s", n, buf.String())
	}

	buf.Reset()
	logger.Info("frame saved")
	if n := strings.Count(buf.String(), "frame saved"); n != 2 {
		t.Errorf("info line written %d times, want 2", n)
	}
}

func TestBufferHandlerRecordsEntries(t *testing.T) {
	resetState(t)
	Initialize(Config{Level: "debug", Format: "text"})

	var got []LogEntry
	SetLogCallback(func(e LogEntry) { got = append(got, e) })

	logger := GetLogger("capture").With("device", "/dev/video0")
	logger.Info("frame saved", "frame", 2, slog.Group("buffer", "index", 1))
	logger.Debug("dequeue retry")

	entries := GetBuffer().ReadAll()
	if len(entries) != 2 {
		t.Fatalf("buffer holds %d entries, want 2", len(entries))
	}
	first := entries[0]
	if first.Module != "capture" || first.Level != "info" || first.Message != "frame saved" {
		t.Errorf("first entry = %+v", first)
	}
	if first.Attributes["device"] != "/dev/video0" {
		t.Errorf("device attribute = %v", first.Attributes["device"])
	}
	if first.Attributes["buffer.index"] != int64(1) {
		t.Errorf("buffer.index attribute = %#v, want int64(1)", first.Attributes["buffer.index"])
	}
	if len(got) != 2 || got[1].Seq != entries[1].Seq {
		t.Errorf("callback saw %d entries, want both with matching seq", len(got))
	}
}

func TestRingBufferReadSince(t *testing.T) {
	rb := NewRingBuffer(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		rb.Write(LogEntry{Message: msg})
	}

	if rb.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", rb.Count())
	}

	tests := []struct {
		since uint64
		want  string
	}{
		{0, "bcd"},
		{2, "cd"},
		{4, ""},
	}
	for _, tt := range tests {
		var sb strings.Builder
		for _, e := range rb.ReadSince(tt.since) {
			sb.WriteString(e.Message)
		}
		if sb.String() != tt.want {
			t.Errorf("ReadSince(%d) = %q, want %q", tt.since, sb.String(), tt.want)
		}
	}
}

func TestFileOutput(t *testing.T) {
	resetState(t)
	path := filepath.Join(t.TempDir(), "tinycam.log")

	Initialize(Config{Level: "info", Format: "text", File: path, MaxSizeMB: 1})
	GetLogger("camera").Info("device opened", "device", "/dev/video0")

	if err := Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"device opened"`) {
		t.Errorf("log file missing entry: %s", data)
	}
	if !strings.Contains(string(data), `"module":"camera"`) {
		t.Errorf("log file missing module attribute: %s", data)
	}
}

func TestFormatLogLine(t *testing.T) {
	line := FormatLogLine(LogEntry{
		Level:      "warn",
		Module:     "camera",
		Message:    "driver adjusted format",
		Attributes: map[string]any{"width": 1920},
	})
	for _, want := range []string{"WARN", "camera", "driver adjusted format", "width=1920"} {
		if !strings.Contains(line, want) {
			t.Errorf("FormatLogLine() = %q, missing %q", line, want)
		}
	}
}

func TestJournalField(t *testing.T) {
	ts := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		prefix string
		attr   slog.Attr
		want   map[string]string
	}{
		{"string", "", slog.String("device", "/dev/video0"), map[string]string{"DEVICE": "/dev/video0"}},
		{"int", "", slog.Int("index", 3), map[string]string{"INDEX": "3"}},
		{"uint", "", slog.Uint64("frame", 42), map[string]string{"FRAME": "42"}},
		{"bool", "", slog.Bool("keyframe", true), map[string]string{"KEYFRAME": "true"}},
		{"float", "", slog.Float64("fps", 29.97), map[string]string{"FPS": "29.97"}},
		{"time", "", slog.Time("at", ts), map[string]string{"AT": "2026-10-15T12:00:00Z"}},
		{"prefixed", "FORMAT_", slog.Int("width", 640), map[string]string{"FORMAT_WIDTH": "640"}},
		{
			"group", "",
			slog.Group("format", slog.Int("width", 640), slog.String("fourcc", "YUYV")),
			map[string]string{"FORMAT_WIDTH": "640", "FORMAT_FOURCC": "YUYV"},
		},
		{"empty", "", slog.Attr{}, map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := map[string]string{}
			journalField(fields, tt.prefix, tt.attr)
			if len(fields) != len(tt.want) {
				t.Fatalf("fields = %v, want %v", fields, tt.want)
			}
			for k, v := range tt.want {
				if fields[k] != v {
					t.Errorf("fields[%q] = %q, want %q", k, fields[k], v)
				}
			}
		})
	}
}

func TestJournalHandlerWithGroupAndAttrs(t *testing.T) {
	h := NewJournalHandler(slog.LevelInfo).
		WithAttrs([]slog.Attr{slog.String("module", "capture")}).
		WithGroup("buffer").(*JournalHandler)

	if h.fields["MODULE"] != "capture" {
		t.Errorf("MODULE = %q, want capture", h.fields["MODULE"])
	}
	if h.prefix != "BUFFER_" {
		t.Errorf("prefix = %q, want BUFFER_", h.prefix)
	}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug enabled on an info handler")
	}
}
