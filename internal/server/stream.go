package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// streamInterval paces the MJPEG stream at roughly 15 FPS.
const streamInterval = 66 * time.Millisecond

// Preview holds the most recent session frame as JPEG.
type Preview struct {
	mu   sync.RWMutex
	jpeg []byte
	seq  uint64
}

// NewPreview creates an empty preview buffer.
func NewPreview() *Preview {
	return &Preview{}
}

// Update encodes frame and makes it the latest preview.
func (p *Preview) Update(frame gocv.Mat) {
	if frame.Empty() {
		return
	}
	buf, err := gocv.IMEncode(".jpg", frame)
	if err != nil {
		return
	}
	defer buf.Close()

	// GetBytes aliases native memory released by Close.
	data := append([]byte(nil), buf.GetBytes()...)
	p.SetJPEG(data)
}

// SetJPEG stores an already encoded frame.
func (p *Preview) SetJPEG(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jpeg = data
	p.seq++
}

// Latest returns the current frame and its sequence number.
func (p *Preview) Latest() ([]byte, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.jpeg, p.seq
}

// StreamHandler serves the preview as MJPEG.
type StreamHandler struct {
	preview *Preview
}

// NewStreamHandler creates a new StreamHandler for preview.
func NewStreamHandler(preview *Preview) *StreamHandler {
	return &StreamHandler{preview: preview}
}

// ServeHTTP streams each new preview frame until the client goes away.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var sent uint64
	for {
		if data, seq := h.preview.Latest(); seq != sent && len(data) > 0 {
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
			sent = seq
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
