package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCaptureStatsCache(t *testing.T) {
	device := "/dev/video-test-1"
	DeleteCaptureMetrics(device)

	if s := GetCaptureStats(device); s != nil {
		t.Error("expected nil for unseen device")
	}

	IncFrames(device)
	IncFrames(device)
	IncRetries(device)
	IncSaves(device)
	IncSaveFailures(device)
	SetState(device, "STREAM_ON")

	s := GetCaptureStats(device)
	if s == nil {
		t.Fatal("expected non-nil stats")
	}
	want := CaptureStats{State: "STREAM_ON", Frames: 2, Retries: 1, Saves: 1, SaveFailures: 1}
	if *s != want {
		t.Errorf("stats = %+v, want %+v", *s, want)
	}

	// Returned value is a copy.
	s.Frames = 999
	if GetCaptureStats(device).Frames != 2 {
		t.Error("cache was modified through returned stats")
	}

	if got := testutil.ToFloat64(captureFrames.WithLabelValues(device)); got != 2 {
		t.Errorf("frames_total = %v, want 2", got)
	}

	DeleteCaptureMetrics(device)
	if GetCaptureStats(device) != nil {
		t.Error("expected nil after delete")
	}
}

func TestSetStateMovesGauge(t *testing.T) {
	device := "/dev/video-test-2"
	DeleteCaptureMetrics(device)
	defer DeleteCaptureMetrics(device)

	SetState(device, "OPENED")
	SetState(device, "CONFIGURED")

	if got := testutil.ToFloat64(captureState.WithLabelValues(device, "OPENED")); got != 0 {
		t.Errorf("OPENED gauge = %v, want 0", got)
	}
	if got := testutil.ToFloat64(captureState.WithLabelValues(device, "CONFIGURED")); got != 1 {
		t.Errorf("CONFIGURED gauge = %v, want 1", got)
	}
}

func TestGetAllCaptureStats(t *testing.T) {
	DeleteCaptureMetrics("/dev/video-a")
	DeleteCaptureMetrics("/dev/video-b")
	defer DeleteCaptureMetrics("/dev/video-a")
	defer DeleteCaptureMetrics("/dev/video-b")

	IncFrames("/dev/video-a")
	IncRetries("/dev/video-b")

	all := GetAllCaptureStats()
	if all["/dev/video-a"] == nil || all["/dev/video-a"].Frames != 1 {
		t.Errorf("video-a = %+v, want 1 frame", all["/dev/video-a"])
	}
	if all["/dev/video-b"] == nil || all["/dev/video-b"].Retries != 1 {
		t.Errorf("video-b = %+v, want 1 retry", all["/dev/video-b"])
	}
}

func TestCaptureMetricsConcurrency(t *testing.T) {
	device := "/dev/video-concurrent"
	DeleteCaptureMetrics(device)
	defer DeleteCaptureMetrics(device)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			IncFrames(device)
			ObserveDequeue(device, 0.01)
			_ = GetAllCaptureStats()
		}()
	}
	wg.Wait()

	if got := GetCaptureStats(device).Frames; got != 100 {
		t.Errorf("Frames = %d, want 100", got)
	}
}

func TestWebRTCCounters(t *testing.T) {
	before := testutil.ToFloat64(webrtcPackets)
	AddRTPPacket(1200)
	AddRTPPacket(800)
	if got := testutil.ToFloat64(webrtcPackets) - before; got != 2 {
		t.Errorf("rtp packets delta = %v, want 2", got)
	}

	beforePLI := testutil.ToFloat64(webrtcRTCP.WithLabelValues(RTCPPictureLoss))
	IncRTCP(RTCPPictureLoss)
	if got := testutil.ToFloat64(webrtcRTCP.WithLabelValues(RTCPPictureLoss)) - beforePLI; got != 1 {
		t.Errorf("pli delta = %v, want 1", got)
	}

	AddWebRTCPeer(1)
	AddWebRTCPeer(-1)
	if got := testutil.ToFloat64(webrtcPeers); got != 0 {
		t.Errorf("peers = %v, want 0", got)
	}
}
