package preview

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/tinycam/internal/camera"
	"github.com/smazurov/tinycam/internal/logging"
	"github.com/smazurov/tinycam/internal/metrics"
	"github.com/smazurov/tinycam/internal/version"
	"github.com/smazurov/tinycam/pkg/linuxav/v4l2"
)

func (s *Server) registerSystemRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(context.Context, *struct{}) (*VersionResponse, error) {
		info := version.Get()
		return &VersionResponse{Body: VersionData{
			Version:   info.Version,
			GitCommit: info.GitCommit,
			BuildDate: info.BuildDate,
			GoVersion: info.GoVersion,
			Platform:  info.Platform,
		}}, nil
	})
}

func (s *Server) registerCaptureRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Capture status",
		Description: "Camera state, negotiated format and frame counters",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(context.Context, *struct{}) (*StatusResponse, error) {
		return &StatusResponse{Body: s.status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "stop-capture",
		Method:        http.MethodPost,
		Path:          "/api/stop",
		Summary:       "Stop capture",
		Description:   "The capture loop stops after the next frame",
		Tags:          []string{"capture"},
		Security:      withAuth(),
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{401, 503},
	}, func(context.Context, *struct{}) (*ActionResponse, error) {
		if s.opts.Sink == nil {
			return nil, huma.Error503ServiceUnavailable("capture is not running")
		}
		s.opts.Sink.RequestStop()
		s.logger.Info("Stop requested")
		return &ActionResponse{Body: ActionData{Status: "queued", Message: "Capture stops after the next frame"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "request-snapshot",
		Method:        http.MethodPost,
		Path:          "/api/snapshot",
		Summary:       "Save next frame",
		Description:   "The next captured frame is written to the output directory",
		Tags:          []string{"capture"},
		Security:      withAuth(),
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{401, 409, 503},
	}, func(context.Context, *struct{}) (*ActionResponse, error) {
		if s.opts.Sink == nil {
			return nil, huma.Error503ServiceUnavailable("capture is not running")
		}
		if s.opts.Sink.Stopping() {
			return nil, huma.Error409Conflict("capture is stopping")
		}
		s.opts.Sink.RequestSnapshot()
		s.logger.Info("Snapshot requested")
		return &ActionResponse{Body: ActionData{Status: "queued", Message: "Next frame will be saved"}}, nil
	})
}

func (s *Server) status() StatusData {
	data := StatusData{
		RunID:     s.runID,
		Device:    s.opts.Device,
		State:     string(camera.StateInit),
		StartedAt: s.startedAt.Format(time.RFC3339),
	}
	if st := metrics.GetCaptureStats(s.opts.Device); st != nil {
		if st.State != "" {
			data.State = st.State
		}
		data.Frames = st.Frames
		data.Retries = st.Retries
		data.Saves = st.Saves
		data.SaveFailures = st.SaveFailures
	}
	if s.opts.WebRTC != nil {
		data.Peers = s.opts.WebRTC.PeerCount()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if f := s.format; f != nil {
		data.Format = &FormatData{
			Width:        f.Width,
			Height:       f.Height,
			PixelFormat:  f.FourCC(),
			BytesPerLine: f.BytesPerLine,
			SizeImage:    f.SizeImage,
		}
	}
	data.StopReason = s.stopReason
	return data
}

func (s *Server) registerControlRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-controls",
		Method:      http.MethodGet,
		Path:        "/api/controls",
		Summary:     "List controls",
		Tags:        []string{"controls"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(context.Context, *struct{}) (*ControlListResponse, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		list := make([]ControlData, 0, len(s.controls))
		for _, c := range s.controls {
			list = append(list, controlData(c))
		}
		return &ControlListResponse{Body: ControlListData{Controls: list, Count: len(list)}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "set-control",
		Method:        http.MethodPost,
		Path:          "/api/controls",
		Summary:       "Set control",
		Description:   "Queue a control change; the capture loop applies it between frames",
		Tags:          []string{"controls"},
		Security:      withAuth(),
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{400, 401, 404, 422, 503},
	}, func(_ context.Context, input *SetControlRequest) (*ActionResponse, error) {
		cv := camera.ControlValue{ID: input.Body.ID, Name: input.Body.Name, Value: input.Body.Value}
		if cv.ID == 0 && cv.Name == "" {
			return nil, huma.Error400BadRequest("id or name is required")
		}
		ctrl, ok := s.lookupControl(cv)
		if !ok {
			return nil, huma.Error404NotFound(fmt.Sprintf("unknown control %s", cv))
		}
		if ctrl.ReadOnly() || ctrl.Disabled() {
			return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("control %q is not writable", ctrl.Name))
		}
		if !ctrl.InRange(cv.Value) {
			return nil, huma.Error422UnprocessableEntity(
				fmt.Sprintf("value %d outside [%d, %d] for %q", cv.Value, ctrl.Minimum, ctrl.Maximum, ctrl.Name))
		}
		if s.opts.Controls == nil {
			return nil, huma.Error503ServiceUnavailable("capture is not running")
		}
		select {
		case s.opts.Controls <- camera.ControlValue{ID: ctrl.ID, Value: cv.Value}:
		default:
			return nil, huma.Error503ServiceUnavailable("control queue is full")
		}
		return &ActionResponse{Body: ActionData{Status: "queued", Message: fmt.Sprintf("%s will be set to %d", ctrl.Name, cv.Value)}}, nil
	})
}

func (s *Server) lookupControl(cv camera.ControlValue) (v4l2.ControlInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := camera.ControlKey(cv.Name)
	for _, c := range s.controls {
		if (cv.ID != 0 && c.ID == cv.ID) || (cv.ID == 0 && camera.ControlKey(c.Name) == key) {
			return c, true
		}
	}
	return v4l2.ControlInfo{}, false
}

func controlData(c v4l2.ControlInfo) ControlData {
	return ControlData{
		ID:       c.ID,
		Name:     c.Name,
		Key:      camera.ControlKey(c.Name),
		Type:     c.Type.String(),
		Minimum:  c.Minimum,
		Maximum:  c.Maximum,
		Step:     c.Step,
		Default:  c.Default,
		ReadOnly: c.ReadOnly(),
	}
}

func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Buffered logs",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *LogsRequest) (*LogsResponse, error) {
		entries := []LogEntryData{}
		if buffer := logging.GetBuffer(); buffer != nil {
			for _, e := range buffer.ReadSince(input.Since) {
				entries = append(entries, LogEntryData{
					Seq:        e.Seq,
					Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
					Level:      e.Level,
					Module:     e.Module,
					Message:    e.Message,
					Attributes: e.Attributes,
				})
			}
		}
		return &LogsResponse{Body: LogsData{Entries: entries, Count: len(entries)}}, nil
	})
}

func (s *Server) registerWebRTCRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "webrtc-offer",
		Method:      http.MethodPost,
		Path:        "/api/webrtc",
		Summary:     "WebRTC preview",
		Description: "Exchange an SDP offer for an answer carrying the H264 preview track",
		Tags:        []string{"preview"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 422},
	}, func(ctx context.Context, input *WebRTCRequest) (*WebRTCResponse, error) {
		if s.opts.WebRTC == nil {
			return nil, huma.Error409Conflict(ErrNotH264.Error())
		}
		peerID, answer, err := s.opts.WebRTC.CreatePeer(ctx, input.Body.SDP)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("failed to create peer", err)
		}
		return &WebRTCResponse{Body: WebRTCData{PeerID: peerID, SDP: answer}}, nil
	})
}
