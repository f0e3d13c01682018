package preview

import (
	"bytes"
	"testing"
	"time"

	"github.com/smazurov/tinycam/internal/camera"
	"github.com/smazurov/tinycam/internal/capture"
	"github.com/smazurov/tinycam/pkg/linuxav/v4l2"
)

var yuyvFormat = camera.Format{Width: 4, Height: 2, PixelFormat: v4l2.PixelFormatYUYV, BytesPerLine: 8}

func TestHubFanOut(t *testing.T) {
	hub := NewHub()
	a, unsubA := hub.Subscribe()
	defer unsubA()
	b, unsubB := hub.Subscribe()

	hub.Publish(&Picture{Number: 1})

	for name, ch := range map[string]<-chan *Picture{"a": a, "b": b} {
		select {
		case p := <-ch:
			if p.Number != 1 {
				t.Errorf("subscriber %s got frame %d, want 1", name, p.Number)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s got nothing", name)
		}
	}

	unsubB()
	unsubB()
	if n := hub.Subscribers(); n != 1 {
		t.Errorf("Subscribers() = %d, want 1", n)
	}
}

func TestHubSlowSubscriberGetsLatest(t *testing.T) {
	hub := NewHub()
	ch, unsub := hub.Subscribe()
	defer unsub()

	for i := uint64(1); i <= 5; i++ {
		hub.Publish(&Picture{Number: i})
	}

	p := <-ch
	if p.Number != 5 {
		t.Errorf("pending frame = %d, want the latest (5)", p.Number)
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected queued frame %d", extra.Number)
	default:
	}

	latest, ok := hub.Latest()
	if !ok || latest.Number != 5 {
		t.Errorf("Latest() = %v, %v", latest, ok)
	}
}

func TestSinkCopiesFrame(t *testing.T) {
	hub := NewHub()
	sink := NewSink(hub)

	data := []byte{1, 2, 3, 4}
	if got := sink.Consume(capture.Frame{Number: 7, Format: yuyvFormat, Data: data}); got != capture.ActionContinue {
		t.Fatalf("Consume() = %v, want continue", got)
	}

	// The mapped buffer is reused by the driver after Consume returns.
	data[0] = 0xFF

	p, ok := hub.Latest()
	if !ok {
		t.Fatal("hub has no frame")
	}
	if !bytes.Equal(p.Data, []byte{1, 2, 3, 4}) {
		t.Errorf("hub frame = %v, aliases the borrowed buffer", p.Data)
	}
}

func TestSinkActions(t *testing.T) {
	tests := []struct {
		name    string
		request func(*Sink)
		want    []capture.Action
	}{
		{"no request", func(*Sink) {}, []capture.Action{capture.ActionContinue, capture.ActionContinue}},
		{"snapshot saves one frame", (*Sink).RequestSnapshot, []capture.Action{capture.ActionSave, capture.ActionContinue}},
		{"repeated snapshot collapses", func(s *Sink) {
			s.RequestSnapshot()
			s.RequestSnapshot()
		}, []capture.Action{capture.ActionSave, capture.ActionContinue}},
		{"stop is sticky", (*Sink).RequestStop, []capture.Action{capture.ActionStop, capture.ActionStop}},
		{"stop wins over snapshot", func(s *Sink) {
			s.RequestSnapshot()
			s.RequestStop()
		}, []capture.Action{capture.ActionStop}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := NewSink(NewHub())
			tt.request(sink)
			for i, want := range tt.want {
				if got := sink.Consume(capture.Frame{Number: uint64(i + 1), Format: yuyvFormat}); got != want {
					t.Errorf("frame %d: Consume() = %v, want %v", i+1, got, want)
				}
			}
		})
	}
}
