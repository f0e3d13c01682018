package preview

// HealthData reports liveness.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"Preview is running" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"a1b2c3d" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// FormatData is the negotiated format.
type FormatData struct {
	Width        uint32 `json:"width" example:"640" doc:"Frame width in pixels"`
	Height       uint32 `json:"height" example:"480" doc:"Frame height in pixels"`
	PixelFormat  string `json:"pixel_format" example:"YUYV" doc:"FourCC of the frames"`
	BytesPerLine uint32 `json:"bytes_per_line" example:"1280" doc:"Line stride"`
	SizeImage    uint32 `json:"size_image" example:"614400" doc:"Maximum frame size"`
}

type StatusData struct {
	RunID        string      `json:"run_id" example:"4f9c1d0e-8a6b-4f7e-9d35-0c1b2a3e4f5a" doc:"Identifier of this capture run"`
	Device       string      `json:"device" example:"/dev/video0" doc:"Capture device"`
	State        string      `json:"state" example:"STREAM_ON" doc:"Camera state"`
	Format       *FormatData `json:"format,omitempty" doc:"Negotiated format, once streaming"`
	Frames       uint64      `json:"frames" example:"1200" doc:"Frames delivered"`
	Retries      uint64      `json:"retries" example:"35" doc:"Dequeue retries absorbed"`
	Saves        uint64      `json:"saves" example:"2" doc:"Frames written"`
	SaveFailures uint64      `json:"save_failures" example:"0" doc:"Failed writes"`
	Peers        int         `json:"peers" example:"1" doc:"Connected WebRTC peers"`
	StopReason   string      `json:"stop_reason,omitempty" example:"consumer-stop" doc:"Why capture ended"`
	StartedAt    string      `json:"started_at" example:"2025-01-27T10:30:00Z" doc:"Preview start time"`
}

type StatusResponse struct {
	Body StatusData
}

type ActionData struct {
	Status  string `json:"status" example:"queued" doc:"Request status"`
	Message string `json:"message" example:"Next frame will be saved" doc:"Status message"`
}

type ActionResponse struct {
	Body ActionData
}

// ControlData describes one device control.
type ControlData struct {
	ID       uint32 `json:"id" example:"9963776" doc:"Control identifier"`
	Name     string `json:"name" example:"Brightness" doc:"Driver name of the control"`
	Key      string `json:"key" example:"brightness" doc:"Normalized name accepted by the API"`
	Type     string `json:"type" example:"integer" doc:"Value type"`
	Minimum  int32  `json:"minimum" example:"0" doc:"Minimum value"`
	Maximum  int32  `json:"maximum" example:"255" doc:"Maximum value"`
	Step     int32  `json:"step" example:"1" doc:"Value step"`
	Default  int32  `json:"default" example:"128" doc:"Default value"`
	ReadOnly bool   `json:"read_only" example:"false" doc:"Whether writes are rejected"`
}

type ControlListData struct {
	Controls []ControlData `json:"controls" doc:"Controls reported by the device"`
	Count    int           `json:"count" example:"12" doc:"Number of controls"`
}

type ControlListResponse struct {
	Body ControlListData
}

type SetControlRequest struct {
	Body struct {
		ID    uint32 `json:"id,omitempty" example:"9963776" doc:"Control identifier"`
		Name  string `json:"name,omitempty" example:"brightness" doc:"Control name, used when id is omitted"`
		Value int32  `json:"value" example:"140" doc:"New value"`
	}
}

type LogsRequest struct {
	Since uint64 `query:"since" example:"120" doc:"Only return entries with a greater sequence number"`
}

type LogEntryData struct {
	Seq        uint64         `json:"seq" example:"121" doc:"Sequence number"`
	Timestamp  string         `json:"timestamp" example:"2025-01-27T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"capture" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

type LogsData struct {
	Entries []LogEntryData `json:"entries" doc:"Buffered log entries, oldest first"`
	Count   int            `json:"count" example:"50" doc:"Number of entries"`
}

type LogsResponse struct {
	Body LogsData
}

type WebRTCRequest struct {
	Body struct {
		SDP string `json:"sdp" minLength:"1" doc:"SDP offer from the browser"`
	}
}

type WebRTCData struct {
	PeerID string `json:"peer_id" example:"4f9c1d0e-8a6b-4f7e-9d35-0c1b2a3e4f5a" doc:"Peer identifier"`
	SDP    string `json:"sdp" doc:"SDP answer"`
}

type WebRTCResponse struct {
	Body WebRTCData
}
