package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webrtcPeers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tinycam",
		Subsystem: "webrtc",
		Name:      "peers",
		Help:      "Connected WebRTC preview peers",
	})

	webrtcPackets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tinycam",
		Subsystem: "webrtc",
		Name:      "rtp_packets_total",
		Help:      "RTP packets written to preview peers",
	})

	webrtcBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tinycam",
		Subsystem: "webrtc",
		Name:      "rtp_bytes_total",
		Help:      "RTP payload bytes written to preview peers",
	})

	webrtcRTCP = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tinycam",
		Subsystem: "webrtc",
		Name:      "rtcp_packets_total",
		Help:      "RTCP feedback received from preview peers",
	}, []string{"type"})
)

// RTCP feedback kinds used as the type label.
const (
	RTCPPictureLoss    = "pli"
	RTCPFullIntraReq   = "fir"
	RTCPNack           = "nack"
	RTCPReceiverReport = "receiver_report"
	RTCPOther          = "other"
)

// AddWebRTCPeer adjusts the connected peer gauge by delta.
func AddWebRTCPeer(delta float64) {
	webrtcPeers.Add(delta)
}

// AddRTPPacket counts one outgoing RTP packet with the given payload size.
func AddRTPPacket(payloadBytes int) {
	webrtcPackets.Inc()
	webrtcBytes.Add(float64(payloadBytes))
}

// IncRTCP counts one received RTCP packet of the given kind.
func IncRTCP(kind string) {
	webrtcRTCP.WithLabelValues(kind).Inc()
}
