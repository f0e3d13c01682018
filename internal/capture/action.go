package capture

import (
	"time"

	"github.com/smazurov/tinycam/internal/camera"
)

// Action is what a sink asks the driver to do after consuming a frame.
type Action int

// Sink actions.
const (
	ActionContinue Action = iota
	ActionStop
	ActionSave
)

func (a Action) String() string {
	switch a {
	case ActionContinue:
		return "continue"
	case ActionStop:
		return "stop"
	case ActionSave:
		return "save"
	default:
		return "unknown"
	}
}

// Frame is one captured frame handed to a Sink.
//
// Data is borrowed from the mapped buffer: it is only valid until Consume
// (or Writer.Write) returns and must be copied to be kept.
type Frame struct {
	Number    uint64
	Index     uint32
	Sequence  uint32
	Timestamp time.Time
	Format    camera.Format
	Data      []byte
}

// Sink consumes frames and decides how the cycle proceeds.
type Sink interface {
	Consume(f Frame) Action
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(f Frame) Action

// Consume calls f.
func (fn SinkFunc) Consume(f Frame) Action { return fn(f) }

// SaveEach is the bounded-capture sink: every frame is saved.
var SaveEach Sink = SinkFunc(func(Frame) Action { return ActionSave })

// Writer persists a frame and returns where it was written.
type Writer interface {
	Write(f Frame) (string, error)
}
