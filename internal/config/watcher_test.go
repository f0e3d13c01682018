package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/tinycam/internal/camera"
)

func startWatcher(t *testing.T, path string, debounce time.Duration, opts ...WatcherOption[[]camera.ControlValue]) *Watcher[[]camera.ControlValue] {
	t.Helper()
	opts = append([]WatcherOption[[]camera.ControlValue]{WithDebounce[[]camera.ControlValue](debounce)}, opts...)
	w := NewConfigWatcher(path, LoadControls, nil, opts...)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	// Let the watcher settle before the first write.
	time.Sleep(50 * time.Millisecond)
	return w
}

func TestWatcherReloadsControls(t *testing.T) {
	path := writeFile(t, "controls.toml", "[controls]\nbrightness = 1\n")
	w := startWatcher(t, path, 50*time.Millisecond)

	received := make(chan []camera.ControlValue, 1)
	w.OnReload(func(cvs []camera.ControlValue) { received <- cvs })

	if err := os.WriteFile(path, []byte("[controls]\nbrightness = 200\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cvs := <-received:
		if len(cvs) != 1 || cvs[0].Name != "brightness" || cvs[0].Value != 200 {
			t.Errorf("reloaded %+v, want brightness=200", cvs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestWatcherFollowsAtomicReplace(t *testing.T) {
	path := writeFile(t, "controls.toml", "[controls]\ngain = 1\n")
	w := startWatcher(t, path, 50*time.Millisecond)

	received := make(chan []camera.ControlValue, 4)
	w.OnReload(func(cvs []camera.ControlValue) { received <- cvs })

	tmp := filepath.Join(filepath.Dir(path), ".controls.tmp")
	if err := os.WriteFile(tmp, []byte("[controls]\ngain = 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case cvs := <-received:
		if len(cvs) != 1 || cvs[0].Value != 9 {
			t.Errorf("reloaded %+v, want gain=9", cvs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after rename")
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	path := writeFile(t, "controls.toml", "[controls]\ngain = 1\n")
	w := startWatcher(t, path, 20*time.Millisecond)

	var count atomic.Int32
	w.OnReload(func([]camera.ControlValue) { count.Add(1) })

	other := filepath.Join(filepath.Dir(path), "other.toml")
	if err := os.WriteFile(other, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("handler called %d times for a sibling file", got)
	}
}

func TestWatcherErrorHandler(t *testing.T) {
	path := writeFile(t, "controls.toml", "[controls]\ngain = 1\n")
	errs := make(chan error, 1)
	w := startWatcher(t, path, 50*time.Millisecond,
		WithErrorHandler[[]camera.ControlValue](func(err error) { errs <- err }))

	reloads := make(chan []camera.ControlValue, 1)
	w.OnReload(func(cvs []camera.ControlValue) { reloads <- cvs })

	if err := os.WriteFile(path, []byte("[[control]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-errs:
	case <-reloads:
		t.Fatal("handler should not be called when loading fails")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestWatcherDebounce(t *testing.T) {
	path := writeFile(t, "controls.toml", "[controls]\ngain = 0\n")
	w := startWatcher(t, path, 200*time.Millisecond)

	var count atomic.Int32
	var last atomic.Int32
	w.OnReload(func(cvs []camera.ControlValue) {
		count.Add(1)
		if len(cvs) == 1 {
			last.Store(cvs[0].Value)
		}
	})

	for i := 1; i <= 5; i++ {
		if err := os.WriteFile(path, fmt.Appendf(nil, "[controls]\ngain = %d\n", i), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(30 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("handler called %d times, want 1", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("last value = %d, want 5", got)
	}
}

func TestWatcherUnsubscribeAndReload(t *testing.T) {
	path := writeFile(t, "controls.toml", "[controls]\ngain = 3\n")
	w := NewConfigWatcher(path, LoadControls, nil)

	var kept, dropped atomic.Int32
	w.OnReload(func([]camera.ControlValue) { kept.Add(1) })
	unsub := w.OnReload(func([]camera.ControlValue) { dropped.Add(1) })
	unsub()

	w.Reload()

	if kept.Load() != 1 || dropped.Load() != 0 {
		t.Errorf("kept=%d dropped=%d, want 1/0", kept.Load(), dropped.Load())
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() before Start() error = %v", err)
	}
}

func TestWatcherConcurrentSubscribe(t *testing.T) {
	path := writeFile(t, "controls.toml", "[controls]\ngain = 1\n")
	w := startWatcher(t, path, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := w.OnReload(func([]camera.ControlValue) {})
			time.Sleep(time.Millisecond)
			unsub()
		}()
	}
	for i := range 5 {
		if err := os.WriteFile(path, fmt.Appendf(nil, "[controls]\ngain = %d\n", i), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	wg.Wait()
}

func TestWatcherStopsNotifying(t *testing.T) {
	path := writeFile(t, "controls.toml", "[controls]\ngain = 1\n")
	w := NewConfigWatcher(path, LoadControls, nil, WithDebounce[[]camera.ControlValue](20*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	var count atomic.Int32
	w.OnReload(func([]camera.ControlValue) { count.Add(1) })

	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("[controls]\ngain = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("handler called %d times after Stop", got)
	}
}
