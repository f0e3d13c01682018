package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string `help:"Config file path"`

	Device     string        `toml:"camera.device" env:"DEVICE"`
	Width      int           `toml:"camera.width" env:"WIDTH"`
	Buffers    uint32        `toml:"camera.buffers" env:"BUFFERS"`
	Preview    bool          `toml:"preview.enabled" env:"PREVIEW"`
	RetryDelay time.Duration `toml:"capture.retry_delay" env:"RETRY_DELAY"`
	Origins    []string      `toml:"preview.origins" env:"ORIGINS"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const testTOML = `
[camera]
device = "/dev/video2"
width = 1280
buffers = 4

[preview]
enabled = true
origins = ["http://a", "http://b"]

[capture]
retry_delay = "5ms"
`

func TestLoadConfigFromTOML(t *testing.T) {
	opts := &testOptions{Config: writeFile(t, "tinycam.toml", testTOML)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	want := testOptions{
		Config:     opts.Config,
		Device:     "/dev/video2",
		Width:      1280,
		Buffers:    4,
		Preview:    true,
		RetryDelay: 5 * time.Millisecond,
		Origins:    []string{"http://a", "http://b"},
	}
	if !reflect.DeepEqual(*opts, want) {
		t.Errorf("LoadConfig() = %+v, want %+v", *opts, want)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeFile(t, "tinycam.toml", testTOML)
	t.Setenv("TINYCAM_DEVICE", "/dev/video4")
	t.Setenv("TINYCAM_WIDTH", "640")
	t.Setenv("TINYCAM_RETRY_DELAY", "1ms")

	opts := &testOptions{Config: path}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&opts.Device, "device", "", "")
	cmd.Flags().IntVar(&opts.Width, "width", 0, "")
	if err := cmd.Flags().Parse([]string{"--width", "320"}); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	tests := []struct {
		field string
		got   any
		want  any
	}{
		{"Device (env over file)", opts.Device, "/dev/video4"},
		{"Width (flag over env)", opts.Width, 320},
		{"Buffers (file)", opts.Buffers, uint32(4)},
		{"RetryDelay (env)", opts.RetryDelay, time.Millisecond},
	}
	for _, tt := range tests {
		if !reflect.DeepEqual(tt.got, tt.want) {
			t.Errorf("%s = %v, want %v", tt.field, tt.got, tt.want)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "missing.toml")}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() should ignore a missing file: %v", err)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	opts := &testOptions{Config: writeFile(t, "bad.toml", "[camera\nwidth = ")}
	if err := LoadConfig(opts, nil); err == nil {
		t.Fatal("LoadConfig() should fail for invalid TOML")
	}
}

func TestLoadConfigRejectsNonPointer(t *testing.T) {
	if err := LoadConfig(testOptions{}, nil); err == nil {
		t.Fatal("LoadConfig() should reject a non-pointer")
	}
}

func TestSetFieldValueFromString(t *testing.T) {
	type target struct {
		S string
		B bool
		I int
		U uint32
		F float64
		D time.Duration
		L []string
	}

	var s target
	v := reflect.ValueOf(&s).Elem()
	setFieldValueFromString(v.FieldByName("S"), "text")
	setFieldValueFromString(v.FieldByName("B"), "true")
	setFieldValueFromString(v.FieldByName("I"), "-7")
	setFieldValueFromString(v.FieldByName("U"), "0x10")
	setFieldValueFromString(v.FieldByName("F"), "2.5")
	setFieldValueFromString(v.FieldByName("D"), "250ms")
	setFieldValueFromString(v.FieldByName("L"), " a , b ")

	want := target{S: "text", B: true, I: -7, U: 16, F: 2.5, D: 250 * time.Millisecond, L: []string{"a", "b"}}
	if !reflect.DeepEqual(s, want) {
		t.Errorf("got %+v, want %+v", s, want)
	}

	// Unparseable values leave the field alone.
	setFieldValueFromString(v.FieldByName("I"), "seven")
	if s.I != -7 {
		t.Errorf("I = %d after bad input, want -7", s.I)
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":         "port",
		"RetryDelay":   "retry-delay",
		"LoggingLevel": "logging-level",
		"JPEGQuality":  "jpeg-quality",
		"STUNServer":   "stun-server",
		"OutputDir":    "output-dir",
		"NonBlock":     "non-block",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeFile(t, "tinycam.toml", `
[logging]
level = "debug"
format = "json"
file = "/tmp/tinycam.log"
max_size_mb = 5
capture = "warn"

[logging.modules]
camera = "error"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "debug" || cfg.Format != "json" {
		t.Errorf("level/format = %q/%q, want debug/json", cfg.Level, cfg.Format)
	}
	if cfg.File != "/tmp/tinycam.log" || cfg.MaxSizeMB != 5 {
		t.Errorf("file settings = %q/%d", cfg.File, cfg.MaxSizeMB)
	}
	wantModules := map[string]string{"capture": "warn", "camera": "error"}
	if !reflect.DeepEqual(cfg.Modules, wantModules) {
		t.Errorf("Modules = %v, want %v", cfg.Modules, wantModules)
	}

	if def := LoadLoggingConfig(""); def.Level != "info" || def.Format != "text" {
		t.Errorf("default config = %+v", def)
	}
}
