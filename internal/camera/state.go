package camera

// State represents what operations are currently legal on a Camera.
type State string

// Capture states.
const (
	StateInit         State = "INIT"          // No device open
	StateOpened       State = "OPENED"        // Device open, no format set
	StateConfigured   State = "CONFIGURED"    // Format negotiated
	StateBufferMapped State = "BUFFER_MAPPED" // Buffers requested and mapped
	StateStreamOn     State = "STREAM_ON"     // Driver filling buffers
	StateBufferLocked State = "BUFFER_LOCKED" // One buffer dequeued by the application
	StateError        State = "ERROR"         // A delegated call failed
)

// States lists every state in lifecycle order.
var States = []State{
	StateInit,
	StateOpened,
	StateConfigured,
	StateBufferMapped,
	StateStreamOn,
	StateBufferLocked,
	StateError,
}

// Operation names a call on the Camera.
type Operation string

// Camera operations.
const (
	OpOpen              Operation = "open"
	OpSetFormat         Operation = "set_format"
	OpAllocateBuffers   Operation = "allocate_buffers"
	OpStartStreaming    Operation = "start_streaming"
	OpDequeueBuffer     Operation = "dequeue_buffer"
	OpQueueBuffer       Operation = "queue_buffer"
	OpStopStreaming     Operation = "stop_streaming"
	OpReleaseBuffers    Operation = "release_buffers"
	OpClose             Operation = "close"
	OpQueryCapabilities Operation = "query_capabilities"
	OpQueryFormats      Operation = "query_formats"
	OpQueryControls     Operation = "query_controls"
	OpGetFormat         Operation = "get_format"
	OpGetControl        Operation = "get_control"
	OpSetControl        Operation = "set_control"
)

// Operations lists every operation in table order.
var Operations = []Operation{
	OpOpen,
	OpSetFormat,
	OpAllocateBuffers,
	OpStartStreaming,
	OpDequeueBuffer,
	OpQueueBuffer,
	OpStopStreaming,
	OpReleaseBuffers,
	OpClose,
	OpQueryCapabilities,
	OpQueryFormats,
	OpQueryControls,
	OpGetFormat,
	OpGetControl,
	OpSetControl,
}

// transition is one row of the table. An empty to keeps the current state.
type transition struct {
	from []State
	to   State
}

var active = []State{StateOpened, StateConfigured, StateBufferMapped, StateStreamOn, StateBufferLocked}

var transitions = map[Operation]transition{
	OpOpen:              {from: []State{StateInit}, to: StateOpened},
	OpSetFormat:         {from: []State{StateOpened}, to: StateConfigured},
	OpAllocateBuffers:   {from: []State{StateConfigured}, to: StateBufferMapped},
	OpStartStreaming:    {from: []State{StateBufferMapped}, to: StateStreamOn},
	OpDequeueBuffer:     {from: []State{StateStreamOn}, to: StateBufferLocked},
	OpQueueBuffer:       {from: []State{StateBufferLocked}, to: StateStreamOn},
	OpStopStreaming:     {from: []State{StateStreamOn}, to: StateBufferMapped},
	OpReleaseBuffers:    {from: []State{StateBufferMapped}, to: StateOpened},
	OpClose:             {from: append(append([]State{}, active...), StateError), to: StateInit},
	OpQueryCapabilities: {from: active},
	OpQueryFormats:      {from: active},
	OpQueryControls:     {from: active},
	OpGetFormat:         {from: active},
	OpGetControl:        {from: active},
	OpSetControl:        {from: active},
}

// Next returns the state that op leads to from s, or a state-violation
// error when op is not legal in s. It is defined for every pair.
func Next(s State, op Operation) (State, error) {
	t, ok := transitions[op]
	if !ok {
		return s, &Error{Code: ErrCodeStateViolation, Op: op, State: s, Message: "unknown operation"}
	}
	for _, from := range t.from {
		if from == s {
			if t.to == "" {
				return s, nil
			}
			return t.to, nil
		}
	}
	return s, &Error{Code: ErrCodeStateViolation, Op: op, State: s, Message: "operation not allowed"}
}

// Allowed reports whether op is legal from s.
func Allowed(s State, op Operation) bool {
	_, err := Next(s, op)
	return err == nil
}
