package v4l2

import (
	"math"
	"testing"
	"time"
)

func TestFormatFourCC(t *testing.T) {
	tests := []struct {
		name     string
		format   uint32
		expected string
	}{
		{
			name:     "YUYV format",
			format:   uint32(PixelFormatYUYV),
			expected: "YUYV",
		},
		{
			name:     "MJPEG format",
			format:   uint32(PixelFormatMJPEG),
			expected: "MJPG",
		},
		{
			name:     "H264 format",
			format:   uint32(PixelFormatH264),
			expected: "H264",
		},
		{
			name:     "NV12 format",
			format:   uint32(PixelFormatNV12),
			expected: "NV12",
		},
		{
			name:     "mixed bytes",
			format:   0x01020304,
			expected: "\x04\x03\x02\x01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatFourCC(tt.format)
			if result != tt.expected {
				t.Errorf("FormatFourCC(0x%08X) = %q, want %q", tt.format, result, tt.expected)
			}
		})
	}
}

func TestParsePixelFormat(t *testing.T) {
	tests := []struct {
		input  string
		want   PixelFormat
		wantOK bool
	}{
		{"yuyv", PixelFormatYUYV, true},
		{"YUYV", PixelFormatYUYV, true},
		{"0", PixelFormatYUYV, true},
		{"mjpeg", PixelFormatMJPEG, true},
		{"MJPG", PixelFormatMJPEG, true},
		{"1", PixelFormatMJPEG, true},
		{" h264 ", PixelFormatH264, true},
		{"2", PixelFormatH264, true},
		{"3", 0, false},
		{"rgb24", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParsePixelFormat(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParsePixelFormat(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPixelFormatCompressed(t *testing.T) {
	if PixelFormatYUYV.Compressed() {
		t.Error("YUYV reported as compressed")
	}
	if !PixelFormatMJPEG.Compressed() || !PixelFormatH264.Compressed() {
		t.Error("MJPEG and H264 must be compressed")
	}
}

func TestCapabilityEffective(t *testing.T) {
	tests := []struct {
		name     string
		cap      Capability
		mask     uint32
		expected bool
	}{
		{
			name:     "physical caps without device caps",
			cap:      Capability{Capabilities: CapVideoCapture | CapStreaming},
			mask:     CapVideoCapture | CapStreaming,
			expected: true,
		},
		{
			name:     "device caps override physical caps",
			cap:      Capability{Capabilities: CapVideoCapture | CapStreaming | CapDeviceCaps, DeviceCaps: CapVideoCapture},
			mask:     CapVideoCapture | CapStreaming,
			expected: false,
		},
		{
			name:     "streaming missing",
			cap:      Capability{Capabilities: CapVideoCapture},
			mask:     CapVideoCapture | CapStreaming,
			expected: false,
		},
		{
			name:     "capture missing",
			cap:      Capability{Capabilities: CapStreaming},
			mask:     CapVideoCapture | CapStreaming,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cap.Has(tt.mask); got != tt.expected {
				t.Errorf("Has(0x%08x) = %v, want %v", tt.mask, got, tt.expected)
			}
		})
	}
}

func TestControlInfo(t *testing.T) {
	c := ControlInfo{Minimum: -10, Maximum: 10, Flags: CtrlFlagReadOnly}

	if !c.InRange(-10) || !c.InRange(10) || !c.InRange(0) {
		t.Error("bounds must be inclusive")
	}
	if c.InRange(11) || c.InRange(-11) {
		t.Error("values outside bounds accepted")
	}
	if !c.ReadOnly() {
		t.Error("expected read-only")
	}
	if c.Disabled() {
		t.Error("unexpected disabled")
	}
}

func TestFramerateFPS(t *testing.T) {
	tests := []struct {
		name        string
		framerate   Framerate
		expectedFPS float64
	}{
		{"30 fps", Framerate{Numerator: 1, Denominator: 30}, 30.0},
		{"29.97 fps", Framerate{Numerator: 1001, Denominator: 30000}, 30000.0 / 1001.0},
		{"zero numerator returns 0", Framerate{Numerator: 0, Denominator: 60}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.framerate.FPS()
			if math.Abs(result-tt.expectedFPS) > 0.001 {
				t.Errorf("FPS() = %f, want %f", result, tt.expectedFPS)
			}
		})
	}
}

func TestFrameSize(t *testing.T) {
	if got := FrameSize(PixelFormatYUYV, 1920, 1280); got != 1920*1280*2 {
		t.Errorf("YUYV frame size = %d", got)
	}
	if got := FrameSize(PixelFormatMJPEG, 1920, 1280); got != 0 {
		t.Errorf("compressed frame size = %d, want 0", got)
	}
}

func TestBufferTime(t *testing.T) {
	wall := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	mono := 1000 * time.Second

	tests := []struct {
		name  string
		ts    time.Duration
		flags uint32
		mono  time.Duration
		want  time.Time
	}{
		{"monotonic rebased", 999*time.Second + 500*time.Millisecond, bufFlagTimestampMonotonic, mono, wall.Add(-500 * time.Millisecond)},
		{"monotonic with other flags", mono, bufFlagTimestampMonotonic | 0x0001, mono, wall},
		{"unknown clock is wall time", 1700000000 * time.Second, 0, mono, time.Unix(1700000000, 0)},
		{"copy is wall time", 1700000000 * time.Second, 0x4000, mono, time.Unix(1700000000, 0)},
		{"no monotonic reading", 5 * time.Second, bufFlagTimestampMonotonic, 0, time.Unix(5, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bufferTime(tt.ts, tt.flags, tt.mono, wall)
			if !got.Equal(tt.want) {
				t.Errorf("bufferTime() = %v, want %v", got, tt.want)
			}
		})
	}
}
