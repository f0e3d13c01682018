package exporters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/tinycam/internal/events"
	"github.com/smazurov/tinycam/internal/metrics"
)

type mockEventBus struct {
	mu        sync.Mutex
	events    []events.Event
	published chan struct{}
}

func newMockEventBus() *mockEventBus {
	return &mockEventBus{published: make(chan struct{}, 100)}
}

func (m *mockEventBus) Publish(ev events.Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	select {
	case m.published <- struct{}{}:
	default:
	}
}

func (m *mockEventBus) getEvents() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Event(nil), m.events...)
}

func TestSSEExporterPublishesStats(t *testing.T) {
	device := "/dev/video-sse-test"
	metrics.DeleteCaptureMetrics(device)
	defer metrics.DeleteCaptureMetrics(device)

	metrics.SetState(device, "STREAM_ON")
	metrics.IncFrames(device)
	metrics.IncRetries(device)
	metrics.IncSaves(device)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 20 * time.Millisecond

	exporter.Start(context.Background())
	select {
	case <-mock.published:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for stats publish")
	}
	exporter.Stop()

	var found bool
	for _, ev := range mock.getEvents() {
		st, ok := ev.(events.CaptureStatsEvent)
		if !ok || st.DevicePath != device {
			continue
		}
		found = true
		if st.State != "STREAM_ON" || st.Frames != "1" || st.Retries != "1" || st.Saves != "1" {
			t.Errorf("stats event = %+v", st)
		}
		break
	}
	if !found {
		t.Error("expected CaptureStatsEvent for test device")
	}
}

func TestSSEExporterFPS(t *testing.T) {
	device := "/dev/video-sse-fps"
	metrics.DeleteCaptureMetrics(device)
	defer metrics.DeleteCaptureMetrics(device)
	metrics.IncFrames(device)

	exporter := NewSSEExporter(newMockEventBus())
	mock := exporter.eventBus.(*mockEventBus)
	start := time.Now()
	exporter.lastTick = start

	exporter.publishStats(start.Add(time.Second))
	for range 30 {
		metrics.IncFrames(device)
	}
	exporter.publishStats(start.Add(2 * time.Second))

	var last events.CaptureStatsEvent
	for _, ev := range mock.getEvents() {
		if st, ok := ev.(events.CaptureStatsEvent); ok && st.DevicePath == device {
			last = st
		}
	}
	if last.FPS != "30.00" {
		t.Errorf("FPS = %q, want \"30.00\"", last.FPS)
	}
}

func TestSSEExporterStopIdempotent(t *testing.T) {
	exporter := NewSSEExporter(newMockEventBus())
	exporter.Stop()

	exporter.interval = 10 * time.Millisecond
	exporter.Start(t.Context())
	time.Sleep(20 * time.Millisecond)
	exporter.Stop()
	exporter.Stop()
}

func TestGetEventRoutes(t *testing.T) {
	routes := GetEventRoutes()
	if routes["capture-stats"] != "events" {
		t.Errorf("capture-stats route = %q, want \"events\"", routes["capture-stats"])
	}
	if _, ok := GetEventTypes()["capture-stats"]; !ok {
		t.Error("expected capture-stats event type")
	}
}
