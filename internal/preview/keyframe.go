package preview

import (
	"sync"
	"time"

	"github.com/smazurov/tinycam/internal/camera"
	"github.com/smazurov/tinycam/pkg/linuxav/v4l2"
)

// DefaultKeyframeInterval limits how often peers can force a keyframe.
const DefaultKeyframeInterval = time.Second

// KeyframeForcer turns peer picture-loss reports into writes of the
// encoder's force-keyframe button control. Requests are dropped when the
// device has no such control, the control queue is full, or the previous
// request was less than the interval ago.
type KeyframeForcer struct {
	controls chan<- camera.ControlValue
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	ctrl *v4l2.ControlInfo
	last time.Time
}

// NewKeyframeForcer creates a forcer that queues onto controls. A zero
// interval uses DefaultKeyframeInterval.
func NewKeyframeForcer(controls chan<- camera.ControlValue, interval time.Duration) *KeyframeForcer {
	if interval <= 0 {
		interval = DefaultKeyframeInterval
	}
	return &KeyframeForcer{controls: controls, interval: interval, now: time.Now}
}

// SetControls records whether the device exposes a usable force-keyframe
// control.
func (k *KeyframeForcer) SetControls(controls []v4l2.ControlInfo) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.ctrl = nil
	for _, c := range controls {
		if c.ID == v4l2.CIDForceKeyFrame && !c.Disabled() && !c.ReadOnly() {
			ctrl := c
			k.ctrl = &ctrl
			return
		}
	}
}

// Request queues a keyframe and reports whether it did.
func (k *KeyframeForcer) Request() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.ctrl == nil || k.controls == nil {
		return false
	}
	now := k.now()
	if !k.last.IsZero() && now.Sub(k.last) < k.interval {
		return false
	}
	select {
	case k.controls <- camera.ControlValue{ID: k.ctrl.ID, Value: k.ctrl.Minimum}:
		k.last = now
		return true
	default:
		return false
	}
}
