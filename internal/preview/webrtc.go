package preview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/smazurov/tinycam/internal/logging"
	"github.com/smazurov/tinycam/internal/metrics"
	"github.com/smazurov/tinycam/pkg/linuxav/v4l2"
)

// ErrNotH264 is returned when a WebRTC peer is requested for a non-H264
// capture.
var ErrNotH264 = errors.New("webrtc preview requires H264 capture")

// defaultFrameDuration is used when frame timestamps do not advance.
const defaultFrameDuration = 33 * time.Millisecond

// WebRTCConfig holds configuration for WebRTC peers.
type WebRTCConfig struct {
	// ICEServers for STUN/TURN (empty for LAN-only).
	ICEServers []pion.ICEServer

	// GatherTimeout bounds ICE candidate gathering for an answer.
	GatherTimeout time.Duration

	// OnKeyframeRequest is called when a peer reports picture loss.
	OnKeyframeRequest func()
}

// WebRTCManager sends H264 access units from the hub to browser peers
// over a single shared track.
type WebRTCManager struct {
	config WebRTCConfig
	api    *pion.API
	track  *pion.TrackLocalStaticSample
	logger logging.Logger

	mu    sync.Mutex
	peers map[string]*pion.PeerConnection
}

// NewWebRTCManager creates a manager. Frames only flow once Run is called.
func NewWebRTCManager(config WebRTCConfig, logger logging.Logger) (*WebRTCManager, error) {
	api, err := newWebRTCAPI()
	if err != nil {
		return nil, fmt.Errorf("create webrtc api: %w", err)
	}
	track, err := pion.NewTrackLocalStaticSample(h264Capability, "video", "tinycam")
	if err != nil {
		return nil, fmt.Errorf("create track: %w", err)
	}
	if config.GatherTimeout == 0 {
		config.GatherTimeout = 5 * time.Second
	}
	return &WebRTCManager{
		config: config,
		api:    api,
		track:  track,
		logger: logger,
		peers:  make(map[string]*pion.PeerConnection),
	}, nil
}

// CreatePeer answers an SDP offer from a browser. It returns the peer ID
// and the answer SDP with all ICE candidates included.
func (m *WebRTCManager) CreatePeer(ctx context.Context, offer string) (string, string, error) {
	pc, err := m.api.NewPeerConnection(pion.Configuration{ICEServers: m.config.ICEServers})
	if err != nil {
		return "", "", err
	}

	sender, err := pc.AddTrack(m.track)
	if err != nil {
		_ = pc.Close()
		return "", "", err
	}

	if err := pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: offer}); err != nil {
		_ = pc.Close()
		return "", "", fmt.Errorf("invalid offer: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		_ = pc.Close()
		return "", "", err
	}
	gathered := pion.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		_ = pc.Close()
		return "", "", err
	}

	timer := time.NewTimer(m.config.GatherTimeout)
	defer timer.Stop()
	select {
	case <-gathered:
	case <-timer.C:
		m.logger.Warn("ICE gathering timed out, answering with partial candidates")
	case <-ctx.Done():
		_ = pc.Close()
		return "", "", ctx.Err()
	}

	peerID := uuid.NewString()
	m.mu.Lock()
	m.peers[peerID] = pc
	count := len(m.peers)
	m.mu.Unlock()
	metrics.AddWebRTCPeer(1)
	m.logger.Info("WebRTC peer created", "peer_id", peerID, "total_peers", count)

	// RTCP must be read for the interceptors to see NACKs and reports.
	go func() {
		for {
			pkts, _, err := sender.ReadRTCP()
			if err != nil {
				return
			}
			if countRTCP(pkts) && m.config.OnKeyframeRequest != nil {
				m.config.OnKeyframeRequest()
			}
		}
	}()

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		m.logger.Debug("WebRTC peer state", "peer_id", peerID, "state", state.String())
		switch state {
		case pion.PeerConnectionStateFailed,
			pion.PeerConnectionStateDisconnected,
			pion.PeerConnectionStateClosed:
			m.removePeer(peerID)
		}
	})

	return peerID, pc.LocalDescription().SDP, nil
}

func (m *WebRTCManager) removePeer(peerID string) {
	m.mu.Lock()
	pc, ok := m.peers[peerID]
	delete(m.peers, peerID)
	remaining := len(m.peers)
	m.mu.Unlock()

	if !ok {
		return
	}
	_ = pc.Close()
	metrics.AddWebRTCPeer(-1)
	m.logger.Info("WebRTC peer closed", "peer_id", peerID, "remaining_peers", remaining)
}

// PeerCount returns the number of connected peers.
func (m *WebRTCManager) PeerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.peers)
}

// Run forwards H264 frames from hub to the shared track until ctx is done.
// Nothing is sent until the first keyframe.
func (m *WebRTCManager) Run(ctx context.Context, hub *Hub) {
	frames, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	var (
		ps      paramSets
		started bool
		last    time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-frames:
			if p.Format.PixelFormat != v4l2.PixelFormatH264 {
				continue
			}
			au, keyframe := ps.prepare(p.Data)
			if !started && !keyframe {
				continue
			}
			started = true

			duration := defaultFrameDuration
			if !last.IsZero() && p.Timestamp.After(last) {
				duration = p.Timestamp.Sub(last)
			}
			last = p.Timestamp

			if m.PeerCount() == 0 {
				continue
			}
			if err := m.track.WriteSample(media.Sample{Data: au, Duration: duration}); err != nil {
				m.logger.Debug("Failed to write sample", "frame", p.Number, "error", err)
			}
		}
	}
}

// Stop closes every peer connection.
func (m *WebRTCManager) Stop() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.removePeer(id)
	}
}
