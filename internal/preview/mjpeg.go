package preview

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/smazurov/tinycam/internal/logging"
)

const mjpegBoundary = "tinycamframe"

// MJPEGHandler serves the hub as a multipart/x-mixed-replace JPEG stream.
func MJPEGHandler(hub *Hub, quality int, logger logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		frames, unsubscribe := hub.Subscribe()
		defer unsubscribe()

		mw := multipart.NewWriter(w)
		if err := mw.SetBoundary(mjpegBoundary); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		logger.Debug("MJPEG client connected", "remote_addr", r.RemoteAddr)
		defer logger.Debug("MJPEG client disconnected", "remote_addr", r.RemoteAddr)

		for {
			select {
			case <-r.Context().Done():
				return
			case p := <-frames:
				img, err := JPEG(p, quality)
				if errors.Is(err, ErrNotImage) {
					logger.Warn("Stream format cannot be shown as MJPEG", "format", p.Format.FourCC())
					return
				}
				if err != nil {
					logger.Debug("Skipping frame", "frame", p.Number, "error", err)
					continue
				}
				if err := writePart(mw, img); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	})
}

func writePart(mw *multipart.Writer, img []byte) error {
	header := textproto.MIMEHeader{}
	header.Set("Content-Type", "image/jpeg")
	header.Set("Content-Length", strconv.Itoa(len(img)))
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := part.Write(img); err != nil {
		return fmt.Errorf("write part: %w", err)
	}
	return nil
}
