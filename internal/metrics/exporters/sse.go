package exporters

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/tinycam/internal/events"
	"github.com/smazurov/tinycam/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter periodically publishes capture counters as events.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	lastFrames map[string]uint64
	lastTick   time.Time
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{
		eventBus:   eventBus,
		interval:   1 * time.Second,
		lastFrames: make(map[string]uint64),
	}
}

// Start begins the SSE export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.lastTick = time.Now()
	s.wg.Add(1)
	go s.run()
}

// Stop stops the SSE exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.publishStats(now)
		}
	}
}

func (s *SSEExporter) publishStats(now time.Time) {
	elapsed := now.Sub(s.lastTick).Seconds()
	s.lastTick = now

	for device, st := range metrics.GetAllCaptureStats() {
		var fps float64
		if prev, ok := s.lastFrames[device]; ok && elapsed > 0 && st.Frames >= prev {
			fps = float64(st.Frames-prev) / elapsed
		}
		s.lastFrames[device] = st.Frames

		s.eventBus.Publish(events.CaptureStatsEvent{
			DevicePath:   device,
			State:        st.State,
			Frames:       strconv.FormatUint(st.Frames, 10),
			Retries:      strconv.FormatUint(st.Retries, 10),
			Saves:        strconv.FormatUint(st.Saves, 10),
			SaveFailures: strconv.FormatUint(st.SaveFailures, 10),
			FPS:          strconv.FormatFloat(fps, 'f', 2, 64),
		})
	}
}

// GetEventTypes returns event types for SSE endpoint registration.
func GetEventTypes() map[string]any {
	return map[string]any{
		"capture-stats": events.CaptureStatsEvent{},
	}
}

// GetEventRoutes returns the routing configuration for events.
func GetEventRoutes() map[string]string {
	return map[string]string{
		"capture-stats": "events",
	}
}
