// Package metrics provides Prometheus metrics for the capture loop and the
// preview server.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	captureFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tinycam",
		Subsystem: "capture",
		Name:      "frames_total",
		Help:      "Frames dequeued and handed to a sink",
	}, []string{"device"})

	captureRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tinycam",
		Subsystem: "capture",
		Name:      "retries_total",
		Help:      "Dequeue attempts that found no frame ready",
	}, []string{"device"})

	captureSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tinycam",
		Subsystem: "capture",
		Name:      "saves_total",
		Help:      "Frames written by the file writer",
	}, []string{"device"})

	captureSaveFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tinycam",
		Subsystem: "capture",
		Name:      "save_failures_total",
		Help:      "Frame writes that failed",
	}, []string{"device"})

	captureDequeueSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tinycam",
		Subsystem: "capture",
		Name:      "dequeue_seconds",
		Help:      "Time from the first dequeue attempt to a filled buffer",
		Buckets:   []float64{.001, .005, .01, .02, .04, .08, .16, .32, .64, 1.28},
	}, []string{"device"})

	captureState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tinycam",
		Subsystem: "capture",
		Name:      "state",
		Help:      "1 for the current camera state, 0 otherwise",
	}, []string{"device", "state"})

	// Local cache for the status API and SSE exporter.
	captureCache   = make(map[string]*CaptureStats)
	captureCacheMu sync.RWMutex
)

// CaptureStats holds the current counter values for a device.
type CaptureStats struct {
	State        string
	Frames       uint64
	Retries      uint64
	Saves        uint64
	SaveFailures uint64
}

// IncFrames counts one delivered frame.
func IncFrames(device string) {
	captureFrames.WithLabelValues(device).Inc()
	updateCapture(device, func(s *CaptureStats) { s.Frames++ })
}

// IncRetries counts one empty dequeue.
func IncRetries(device string) {
	captureRetries.WithLabelValues(device).Inc()
	updateCapture(device, func(s *CaptureStats) { s.Retries++ })
}

// IncSaves counts one written frame.
func IncSaves(device string) {
	captureSaves.WithLabelValues(device).Inc()
	updateCapture(device, func(s *CaptureStats) { s.Saves++ })
}

// IncSaveFailures counts one failed write.
func IncSaveFailures(device string) {
	captureSaveFailures.WithLabelValues(device).Inc()
	updateCapture(device, func(s *CaptureStats) { s.SaveFailures++ })
}

// ObserveDequeue records how long a dequeue took, retries included.
func ObserveDequeue(device string, seconds float64) {
	captureDequeueSeconds.WithLabelValues(device).Observe(seconds)
}

// SetState marks state as the current state of device.
func SetState(device, state string) {
	captureCacheMu.Lock()
	defer captureCacheMu.Unlock()
	s, ok := captureCache[device]
	if !ok {
		s = &CaptureStats{}
		captureCache[device] = s
	}
	if s.State != "" && s.State != state {
		captureState.WithLabelValues(device, s.State).Set(0)
	}
	captureState.WithLabelValues(device, state).Set(1)
	s.State = state
}

// DeleteCaptureMetrics removes all metrics for a device.
func DeleteCaptureMetrics(device string) {
	captureFrames.DeleteLabelValues(device)
	captureRetries.DeleteLabelValues(device)
	captureSaves.DeleteLabelValues(device)
	captureSaveFailures.DeleteLabelValues(device)
	captureDequeueSeconds.DeleteLabelValues(device)
	captureState.DeletePartialMatch(prometheus.Labels{"device": device})

	captureCacheMu.Lock()
	delete(captureCache, device)
	captureCacheMu.Unlock()
}

// GetCaptureStats returns the current values for a device, or nil.
func GetCaptureStats(device string) *CaptureStats {
	captureCacheMu.RLock()
	defer captureCacheMu.RUnlock()
	if s, ok := captureCache[device]; ok {
		dup := *s
		return &dup
	}
	return nil
}

// GetAllCaptureStats returns values for every device seen so far.
func GetAllCaptureStats() map[string]*CaptureStats {
	captureCacheMu.RLock()
	defer captureCacheMu.RUnlock()
	result := make(map[string]*CaptureStats, len(captureCache))
	for device, s := range captureCache {
		dup := *s
		result[device] = &dup
	}
	return result
}

func updateCapture(device string, update func(*CaptureStats)) {
	captureCacheMu.Lock()
	defer captureCacheMu.Unlock()
	s, ok := captureCache[device]
	if !ok {
		s = &CaptureStats{}
		captureCache[device] = s
	}
	update(s)
}
