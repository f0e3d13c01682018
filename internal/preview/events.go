package preview

import (
	"context"
	"maps"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/tinycam/internal/events"
	"github.com/smazurov/tinycam/internal/logging"
	"github.com/smazurov/tinycam/internal/metrics/exporters"
)

// registerEventRoutes registers the SSE endpoints backed by the event bus.
func (s *Server) registerEventRoutes() {
	if s.opts.Bus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Capture state changes, saved frames, control changes and periodic counters",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func() map[string]any {
		eventTypes := map[string]any{
			"state-changed":   events.CaptureStateChangedEvent{},
			"frame-saved":     events.FrameSavedEvent{},
			"capture-stopped": events.CaptureStoppedEvent{},
			"control-changed": events.ControlChangedEvent{},
		}
		maps.Copy(eventTypes, exporters.GetEventTypes())
		return eventTypes
	}(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)
		unsubscribers := []func(){
			events.Channel[events.CaptureStateChangedEvent](s.opts.Bus, eventCh),
			events.Channel[events.FrameSavedEvent](s.opts.Bus, eventCh),
			events.Channel[events.CaptureStoppedEvent](s.opts.Bus, eventCh),
			events.Channel[events.ControlChangedEvent](s.opts.Bus, eventCh),
			events.Channel[events.CaptureStatsEvent](s.opts.Bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		forward(ctx, eventCh, send)
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Buffered log entries followed by new ones as they are written",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 100)
		unsubscribe := events.Channel[events.LogEntryEvent](s.opts.Bus, eventCh)
		defer unsubscribe()

		// The subscription precedes the replay, so entries written after
		// subscribing but before ReadAll are sent twice; clients drop
		// them by seq.
		if buffer := logging.GetBuffer(); buffer != nil {
			for _, entry := range buffer.ReadAll() {
				if err := send.Data(LogEntryEvent(entry)); err != nil {
					return
				}
			}
		}

		forward(ctx, eventCh, send)
	})
}

// LogEntryEvent converts a buffered log entry to its event form.
func LogEntryEvent(entry logging.LogEntry) events.LogEntryEvent {
	return events.LogEntryEvent{
		Seq:        entry.Seq,
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}

func forward(ctx context.Context, eventCh <-chan any, send sse.Sender) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventCh:
			if err := send.Data(event); err != nil {
				return
			}
		}
	}
}
