package camera_test

import (
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/smazurov/tinycam/internal/camera"
	"github.com/smazurov/tinycam/internal/camera/camtest"
)

func TestAllocatePool(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		grant     int
		wantCount int
		wantCode  string
	}{
		{name: "default request", requested: 0, grant: -1, wantCount: 8},
		{name: "explicit request", requested: 4, grant: -1, wantCount: 4},
		{name: "request above maximum", requested: 32, grant: -1, wantCount: 8},
		{name: "request below minimum", requested: 1, grant: -1, wantCount: 2},
		{name: "driver grants fewer", requested: 8, grant: 3, wantCount: 3},
		{name: "driver grants one", requested: 8, grant: 1, wantCode: camera.ErrCodeInsufficientBuffers},
		{name: "driver grants none", requested: 8, grant: 0, wantCode: camera.ErrCodeInsufficientBuffers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := camtest.New()
			dev.Grant = tt.grant

			pool, err := camera.AllocatePool(dev, tt.requested)
			if tt.wantCode != "" {
				if !camera.IsCode(err, tt.wantCode) {
					t.Fatalf("AllocatePool() error = %v, want %s", err, tt.wantCode)
				}
				if dev.CallCount("REQBUFS") > 2 {
					t.Error("allocation retried with a smaller request")
				}
				if dev.MapCount() != 0 {
					t.Errorf("mapped %d buffers despite failure", dev.MapCount())
				}
				return
			}
			if err != nil {
				t.Fatalf("AllocatePool() error = %v", err)
			}
			if pool.Count() != tt.wantCount {
				t.Errorf("Count() = %d, want %d", pool.Count(), tt.wantCount)
			}
			if dev.LiveMappings() != tt.wantCount {
				t.Errorf("live mappings = %d, want %d", dev.LiveMappings(), tt.wantCount)
			}
		})
	}
}

func TestAllocatePoolPartialFailureUnmapsAll(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*camtest.Device)
		wantCode string
	}{
		{
			name:     "mmap fails at index 3",
			setup:    func(d *camtest.Device) { d.MapErr[3] = unix.EACCES },
			wantCode: camera.ErrCodeMapFailed,
		},
		{
			name:     "mmap out of memory at index 3",
			setup:    func(d *camtest.Device) { d.MapErr[3] = unix.ENOMEM },
			wantCode: camera.ErrCodeOutOfMemory,
		},
		{
			name:     "querybuf fails at index 3",
			setup:    func(d *camtest.Device) { d.QueryBufErr[3] = unix.EINVAL },
			wantCode: camera.ErrCodeIoctlFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := camtest.New()
			tt.setup(dev)

			pool, err := camera.AllocatePool(dev, 8)
			if pool != nil {
				t.Fatal("AllocatePool() returned a pool on failure")
			}
			if !camera.IsCode(err, tt.wantCode) {
				t.Fatalf("AllocatePool() error = %v, want %s", err, tt.wantCode)
			}
			if dev.MapCount() != 3 {
				t.Errorf("mapped %d buffers before failure, want 3", dev.MapCount())
			}
			if dev.LiveMappings() != 0 {
				t.Errorf("live mappings = %d, want 0", dev.LiveMappings())
			}
			for i := uint32(0); i < 3; i++ {
				if n := dev.UnmapCount(i); n != 1 {
					t.Errorf("buffer %d unmapped %d times, want 1", i, n)
				}
			}
		})
	}
}

func TestPoolNoAliasing(t *testing.T) {
	dev := camtest.New()
	pool, err := camera.AllocatePool(dev, 8)
	if err != nil {
		t.Fatalf("AllocatePool() error = %v", err)
	}

	type region struct{ start, end uintptr }
	regions := make([]region, pool.Count())
	for i := range regions {
		mem, err := pool.Get(uint32(i))
		if err != nil {
			t.Fatalf("Get(%d) error = %v", i, err)
		}
		start := uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
		regions[i] = region{start, start + uintptr(len(mem))}
	}

	for i := range regions {
		for j := range regions {
			if i == j {
				continue
			}
			if regions[i].start < regions[j].end && regions[j].start < regions[i].end {
				t.Errorf("buffer %d overlaps buffer %d", i, j)
			}
		}
	}

	if _, err := pool.Get(uint32(pool.Count())); !camera.IsCode(err, camera.ErrCodeIndexOutOfRange) {
		t.Errorf("Get(count) error = %v, want INDEX_OUT_OF_RANGE", err)
	}
}

func TestPoolGetReflectsBytesUsed(t *testing.T) {
	tests := []struct {
		name    string
		used    uint32
		wantLen int
	}{
		{"compressed frame smaller than capacity", 1000, 1000},
		{"full frame", 4096, 4096},
		{"driver reports zero", 0, 4096},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := camtest.New()
			dev.BytesUsed = func(uint32) uint32 { return tt.used }
			cam := newCamera(dev)
			_ = cam.Open()
			_, _ = cam.SetFormat(yuyv640)
			_ = cam.AllocateBuffers(2)
			_ = cam.StartStreaming()

			buf, err := cam.DequeueBuffer()
			if err != nil {
				t.Fatalf("DequeueBuffer() error = %v", err)
			}
			data, err := cam.Frame(buf)
			if err != nil {
				t.Fatalf("Frame() error = %v", err)
			}
			if len(data) != tt.wantLen {
				t.Errorf("len(Frame()) = %d, want %d", len(data), tt.wantLen)
			}
			if cap(data) != len(data) {
				t.Errorf("cap(Frame()) = %d, view extends past used bytes", cap(data))
			}
		})
	}
}

func TestPoolReleaseOnce(t *testing.T) {
	dev := camtest.New()
	pool, err := camera.AllocatePool(dev, 4)
	if err != nil {
		t.Fatalf("AllocatePool() error = %v", err)
	}

	if err := pool.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := pool.Release(); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}
	for i := uint32(0); i < 4; i++ {
		if n := dev.UnmapCount(i); n != 1 {
			t.Errorf("buffer %d unmapped %d times, want 1", i, n)
		}
	}
	if _, err := pool.Get(0); !camera.IsCode(err, camera.ErrCodeIndexOutOfRange) {
		t.Errorf("Get() after Release() error = %v, want INDEX_OUT_OF_RANGE", err)
	}
}
