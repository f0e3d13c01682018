package preview

import (
	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/interceptor/pkg/report"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	pion "github.com/pion/webrtc/v4"

	"github.com/smazurov/tinycam/internal/metrics"
)

// NACKBufferSize is the number of sent packets kept for retransmission.
const NACKBufferSize = 2048

// h264Capability is the codec of the preview track.
var h264Capability = pion.RTPCodecCapability{
	MimeType:    pion.MimeTypeH264,
	ClockRate:   90000,
	SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
}

// newWebRTCAPI builds a pion API that only offers H264 video.
func newWebRTCAPI() (*pion.API, error) {
	m := &pion.MediaEngine{}
	feedback := []pion.RTCPFeedback{
		{Type: "goog-remb"},
		{Type: "ccm", Parameter: "fir"},
		{Type: "nack"},
		{Type: "nack", Parameter: "pli"},
	}
	for i, fmtp := range []string{
		"level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
		"level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42001f",
		"level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=640028",
	} {
		err := m.RegisterCodec(pion.RTPCodecParameters{
			RTPCodecCapability: pion.RTPCodecCapability{
				MimeType:     pion.MimeTypeH264,
				ClockRate:    90000,
				SDPFmtpLine:  fmtp,
				RTCPFeedback: feedback,
			},
			PayloadType: pion.PayloadType(96 + i),
		}, pion.RTPCodecTypeVideo)
		if err != nil {
			return nil, err
		}
	}

	i := &interceptor.Registry{}
	responder, err := nack.NewResponderInterceptor(nack.ResponderSize(NACKBufferSize))
	if err != nil {
		return nil, err
	}
	i.Add(responder)

	sender, err := report.NewSenderInterceptor()
	if err != nil {
		return nil, err
	}
	i.Add(sender)
	i.Add(&rtpCounterFactory{})

	return pion.NewAPI(pion.WithMediaEngine(m), pion.WithInterceptorRegistry(i)), nil
}

// rtpCounterFactory creates interceptors that count outgoing RTP.
type rtpCounterFactory struct{}

func (f *rtpCounterFactory) NewInterceptor(_ string) (interceptor.Interceptor, error) {
	return &rtpCounter{}, nil
}

type rtpCounter struct {
	interceptor.NoOp
}

func (c *rtpCounter) BindLocalStream(_ *interceptor.StreamInfo, writer interceptor.RTPWriter) interceptor.RTPWriter {
	return interceptor.RTPWriterFunc(func(header *rtp.Header, payload []byte, attrs interceptor.Attributes) (int, error) {
		n, err := writer.Write(header, payload, attrs)
		if err == nil {
			metrics.AddRTPPacket(len(payload))
		}
		return n, err
	})
}

// countRTCP records the kinds of RTCP feedback in pkts and reports whether
// the peer asked for a keyframe.
func countRTCP(pkts []rtcp.Packet) (keyframe bool) {
	for _, pkt := range pkts {
		switch pkt.(type) {
		case *rtcp.PictureLossIndication:
			metrics.IncRTCP(metrics.RTCPPictureLoss)
			keyframe = true
		case *rtcp.FullIntraRequest:
			metrics.IncRTCP(metrics.RTCPFullIntraReq)
			keyframe = true
		case *rtcp.TransportLayerNack:
			metrics.IncRTCP(metrics.RTCPNack)
		case *rtcp.ReceiverReport:
			metrics.IncRTCP(metrics.RTCPReceiverReport)
		default:
			metrics.IncRTCP(metrics.RTCPOther)
		}
	}
	return keyframe
}
