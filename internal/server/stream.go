package server

import (
	"fmt"
	"net/http"
	"time"
)

const streamPollInterval = 33 * time.Millisecond // ~30 FPS

// JPEGSource provides the latest encoded overlay and a sequence number that
// changes whenever a new image is available.
type JPEGSource interface {
	JPEG() ([]byte, uint64)
}

// StreamHandler serves the rendered overlay as MJPEG.
type StreamHandler struct {
	source   JPEGSource
	interval time.Duration
}

// NewStreamHandler creates a new StreamHandler over the given source.
func NewStreamHandler(source JPEGSource) *StreamHandler {
	return &StreamHandler{source: source, interval: streamPollInterval}
}

// ServeHTTP streams each new overlay image until the client goes away.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		data, seq := h.source.JPEG()
		if seq != lastSeq && len(data) > 0 {
			lastSeq = seq

			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data))
			if _, err := w.Write(data); err != nil {
				return
			}
			fmt.Fprintf(w, "\r\n")

			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
