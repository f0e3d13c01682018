package events

// Event type constants for kelindar/event.
const (
	TypeFrameCaptured uint32 = iota + 1
	TypeFrameSaved
	TypeCaptureStateChanged
	TypeCaptureStopped
	TypeControlChanged
	TypeLogEntry
	TypeCaptureStats
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// FrameCapturedEvent is published for every frame handed to a sink.
type FrameCapturedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Frame      uint64 `json:"frame" example:"42" doc:"Frame number within the run, starting at 1"`
	Index      uint32 `json:"index" example:"3" doc:"Kernel buffer index"`
	Sequence   uint32 `json:"sequence" example:"1187" doc:"Driver sequence number"`
	Bytes      int    `json:"bytes" example:"614400" doc:"Bytes delivered to the sink"`
	Format     string `json:"format" example:"YUYV" doc:"FourCC of the frame"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Capture timestamp"`
}

// Type returns the event type identifier for FrameCapturedEvent.
func (e FrameCapturedEvent) Type() uint32 { return TypeFrameCaptured }

// FrameSavedEvent is published after a frame was written to disk.
type FrameSavedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Frame      uint64 `json:"frame" example:"42" doc:"Frame number within the run"`
	Path       string `json:"path" example:"out_1.YUYV" doc:"Written file"`
	Bytes      int    `json:"bytes" example:"614400" doc:"Bytes written"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Save timestamp"`
}

// Type returns the event type identifier for FrameSavedEvent.
func (e FrameSavedEvent) Type() uint32 { return TypeFrameSaved }

// CaptureStateChangedEvent mirrors a camera state transition.
type CaptureStateChangedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	From       string `json:"from" example:"BUFFER_MAPPED" doc:"Previous state"`
	To         string `json:"to" example:"STREAM_ON" doc:"New state"`
	Operation  string `json:"operation" example:"start_streaming" doc:"Operation that caused the transition"`
	Error      string `json:"error,omitempty" doc:"Failure that caused an ERROR transition"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for CaptureStateChangedEvent.
func (e CaptureStateChangedEvent) Type() uint32 { return TypeCaptureStateChanged }

// CaptureStoppedEvent is published when a frame cycle ends.
type CaptureStoppedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Reason     string `json:"reason" example:"count-reached" doc:"Why the loop ended"`
	Frames     uint64 `json:"frames" example:"3" doc:"Frames delivered"`
	Saved      uint64 `json:"saved" example:"3" doc:"Frames written"`
	Retries    uint64 `json:"retries" example:"12" doc:"Dequeue retries absorbed"`
	Error      string `json:"error,omitempty" doc:"Failure that ended the loop"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Stop timestamp"`
}

// Type returns the event type identifier for CaptureStoppedEvent.
func (e CaptureStoppedEvent) Type() uint32 { return TypeCaptureStopped }

// ControlChangedEvent is published after a device control was written.
type ControlChangedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	ID         uint32 `json:"id" example:"9963776" doc:"Control identifier"`
	Name       string `json:"name,omitempty" example:"Brightness" doc:"Control name"`
	Value      int32  `json:"value" example:"128" doc:"New value"`
	Error      string `json:"error,omitempty" doc:"Failure applying the control"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Change timestamp"`
}

// Type returns the event type identifier for ControlChangedEvent.
func (e ControlChangedEvent) Type() uint32 { return TypeControlChanged }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"capture" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// CaptureStatsEvent is a periodic snapshot of the capture counters.
type CaptureStatsEvent struct {
	DevicePath   string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	State        string `json:"state" example:"STREAM_ON" doc:"Current camera state"`
	Frames       string `json:"frames" example:"1200" doc:"Frames delivered"`
	Retries      string `json:"retries" example:"35" doc:"Dequeue retries absorbed"`
	Saves        string `json:"saves" example:"2" doc:"Frames written"`
	SaveFailures string `json:"save_failures" example:"0" doc:"Failed writes"`
	FPS          string `json:"fps" example:"29.97" doc:"Frames per second over the last interval"`
}

// Type returns the event type identifier for CaptureStatsEvent.
func (e CaptureStatsEvent) Type() uint32 { return TypeCaptureStats }
