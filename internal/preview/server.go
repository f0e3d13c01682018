// Package preview serves live frames and a control API while an unbounded
// capture runs.
package preview

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/google/uuid"

	"github.com/smazurov/tinycam/internal/camera"
	"github.com/smazurov/tinycam/internal/events"
	"github.com/smazurov/tinycam/internal/logging"
	"github.com/smazurov/tinycam/internal/metrics/exporters"
	"github.com/smazurov/tinycam/pkg/linuxav/v4l2"
)

// Options configures a preview Server.
type Options struct {
	Device string
	Hub    *Hub
	Sink   *Sink
	Bus    *events.Bus

	// Controls receives validated control changes for the capture loop.
	Controls chan<- camera.ControlValue

	// WebRTC is nil when the capture format is not H264.
	WebRTC *WebRTCManager

	JPEGQuality  int
	AuthUsername string
	AuthPassword string
}

// Server is the preview HTTP server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	opts       Options
	logger     logging.Logger

	runID     string
	startedAt time.Time

	mu         sync.RWMutex
	format     *camera.Format
	controls   []v4l2.ControlInfo
	stopReason string
	unsubs     []func()
}

// NewServer creates the server and registers its routes.
func NewServer(opts Options) *Server {
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}
	if opts.JPEGQuality == 0 {
		opts.JPEGQuality = DefaultJPEGQuality
	}

	mux := http.NewServeMux()
	config := huma.DefaultConfig("tinycam preview", "1.0.0")
	config.Info.Description = "Live preview and control of a V4L2 capture"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {Type: "http", Scheme: "basic"},
	}
	api := humago.New(mux, config)

	s := &Server{
		api:       api,
		mux:       mux,
		opts:      opts,
		logger:    logging.GetLogger("preview"),
		runID:     uuid.NewString(),
		startedAt: time.Now(),
	}

	api.UseMiddleware(corsMiddleware)
	api.UseMiddleware(httpLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(basicAuthMiddleware(api, opts.AuthUsername, opts.AuthPassword))
	}

	if opts.Bus != nil {
		s.unsubs = append(s.unsubs, opts.Bus.Subscribe(func(e events.CaptureStoppedEvent) {
			s.mu.Lock()
			s.stopReason = e.Reason
			s.mu.Unlock()
		}))
	}

	mux.Handle("GET /metrics", exporters.HTTPHandler())
	mux.Handle("GET /stream.mjpeg", wrapAuth(MJPEGHandler(opts.Hub, opts.JPEGQuality, s.logger), opts.AuthUsername, opts.AuthPassword))
	mux.Handle("GET /snapshot.jpg", wrapAuth(http.HandlerFunc(s.serveSnapshot), opts.AuthUsername, opts.AuthPassword))

	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// API returns the Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// RunID identifies this capture run.
func (s *Server) RunID() string {
	return s.runID
}

// SetFormat records the negotiated format. Called once streaming starts.
func (s *Server) SetFormat(f camera.Format) {
	s.mu.Lock()
	s.format = &f
	s.mu.Unlock()
}

// SetControls records the device controls served by GET /api/controls and
// used to validate control changes.
func (s *Server) SetControls(controls []v4l2.ControlInfo) {
	s.mu.Lock()
	s.controls = controls
	s.mu.Unlock()
}

// Start listens on addr and serves until Stop.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Preview server listening", "addr", ln.Addr().String(), "run_id", s.runID)

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Preview server failed", "error", err)
		}
	}()
	return nil
}

// Stop closes the server. Streaming responses are cut off.
func (s *Server) Stop() error {
	for _, unsub := range s.unsubs {
		unsub()
	}
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Stopping preview server")
	return s.httpServer.Close()
}

func (s *Server) serveSnapshot(w http.ResponseWriter, _ *http.Request) {
	p, ok := s.opts.Hub.Latest()
	if !ok {
		http.Error(w, "no frame captured yet", http.StatusServiceUnavailable)
		return
	}
	img, err := JPEG(p, s.opts.JPEGQuality)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(img)
}

// registerRoutes sets up the API endpoints.
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(context.Context, *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthData{Status: "ok", Message: "Preview is running"}}, nil
	})

	s.registerSystemRoutes()
	s.registerCaptureRoutes()
	s.registerControlRoutes()
	s.registerLogRoutes()
	s.registerEventRoutes()
	s.registerWebRTCRoutes()
}
