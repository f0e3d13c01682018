package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers. A nil bus drops the event.
// Usage: bus.Publish(FrameSavedEvent{...})
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case FrameCapturedEvent:
		event.Publish(b.dispatcher, e)
	case FrameSavedEvent:
		event.Publish(b.dispatcher, e)
	case CaptureStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case CaptureStoppedEvent:
		event.Publish(b.dispatcher, e)
	case ControlChangedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	case CaptureStatsEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e FrameSavedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(FrameCapturedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameSavedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureStoppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ControlChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureStatsEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}

// Channel subscribes ch to events of type T, for readers that select over
// several sources. Events are dropped while ch is full so a slow reader
// never stalls the publisher. A nil bus never delivers.
func Channel[T Event](b *Bus, ch chan<- any) func() {
	if b == nil {
		return func() {}
	}
	return event.Subscribe(b.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
