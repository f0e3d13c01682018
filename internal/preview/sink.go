package preview

import (
	"sync/atomic"

	"github.com/smazurov/tinycam/internal/capture"
)

// Sink is the display consumer for unbounded capture. It copies each frame
// into the hub and turns requests from the HTTP API into capture actions.
type Sink struct {
	hub      *Hub
	stop     atomic.Bool
	snapshot atomic.Bool
}

// NewSink creates a sink publishing into hub.
func NewSink(hub *Hub) *Sink {
	return &Sink{hub: hub}
}

// Consume implements capture.Sink.
func (s *Sink) Consume(f capture.Frame) capture.Action {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	s.hub.Publish(&Picture{
		Number:    f.Number,
		Format:    f.Format,
		Timestamp: f.Timestamp,
		Data:      data,
	})

	if s.stop.Load() {
		return capture.ActionStop
	}
	if s.snapshot.CompareAndSwap(true, false) {
		return capture.ActionSave
	}
	return capture.ActionContinue
}

// RequestStop makes the next Consume return ActionStop.
func (s *Sink) RequestStop() {
	s.stop.Store(true)
}

// RequestSnapshot makes the next Consume return ActionSave. Repeated
// requests before that frame collapse into one.
func (s *Sink) RequestSnapshot() {
	s.snapshot.Store(true)
}

// Stopping reports whether a stop was requested.
func (s *Sink) Stopping() bool {
	return s.stop.Load()
}
