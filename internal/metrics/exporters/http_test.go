package exporters

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smazurov/tinycam/internal/metrics"
)

func TestHTTPHandler(t *testing.T) {
	device := "/dev/video-http-test"
	metrics.IncFrames(device)
	defer metrics.DeleteCaptureMetrics(device)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	HTTPHandler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "tinycam_capture_frames_total") {
		t.Error("expected capture counters in response")
	}
}
