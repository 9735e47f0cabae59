package server

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/posecam/internal/transform"
	"github.com/gorilla/websocket"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestOverlayHub_Broadcast(t *testing.T) {
	hub := NewOverlayHub()
	ts := httptest.NewServer(New(Config{Hub: hub}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/overlay"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	waitFor(t, "client registration", func() bool { return hub.Clients() == 1 })

	// No frame rate measured yet.
	hub.Render(nil, nil)

	var first OverlayMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read error = %v", err)
	}
	if first.FPS != nil {
		t.Errorf("FPS = %v, want null before measurement", *first.FPS)
	}
	if first.Points == nil || len(first.Points) != 0 {
		t.Errorf("Points = %v, want empty list", first.Points)
	}

	a := transform.Point{Name: "left_hip", X: 10, Y: 20}
	b := transform.Point{Name: "left_knee", X: 12, Y: 40}
	hub.SetFPS(25, true)
	hub.Render([]transform.Edge{{From: a, To: b}}, []transform.Point{a, b})

	var second OverlayMessage
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read error = %v", err)
	}
	if second.FPS == nil || *second.FPS != 25 {
		t.Errorf("FPS = %v, want 25", second.FPS)
	}
	if second.Seq <= first.Seq {
		t.Errorf("Seq = %d, want greater than %d", second.Seq, first.Seq)
	}
	if len(second.Points) != 2 || len(second.Edges) != 1 || second.Edges[0].To != b {
		t.Errorf("unexpected overlay %+v", second)
	}

	conn.Close()
	waitFor(t, "client removal", func() bool { return hub.Clients() == 0 })
}

func TestOverlayHub_RenderWithoutClients(t *testing.T) {
	hub := NewOverlayHub()
	hub.SetFPS(30, true)
	hub.Render([]transform.Edge{}, []transform.Point{{X: 1, Y: 2}})

	if hub.Clients() != 0 {
		t.Errorf("Clients() = %d, want 0", hub.Clients())
	}
}

type fakeJPEG struct {
	mu   sync.Mutex
	data []byte
	seq  uint64
}

func (f *fakeJPEG) JPEG() ([]byte, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data, f.seq
}

func (f *fakeJPEG) set(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = data
	f.seq++
}

func TestStreamHandler(t *testing.T) {
	src := &fakeJPEG{}
	src.set([]byte{0xFF, 0xD8, 0xFF, 0xD9})

	ts := httptest.NewServer(New(Config{Frames: src}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/overlay.mjpg", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("Content-Type = %q, want multipart stream", ct)
	}

	r := bufio.NewReader(resp.Body)
	readPartHeader := func() map[string]string {
		t.Helper()
		headers := make(map[string]string)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				t.Fatalf("read error = %v", err)
			}
			line = strings.TrimRight(line, "\r\n")
			if line == "" {
				if len(headers) > 0 {
					return headers
				}
				continue
			}
			if k, v, ok := strings.Cut(line, ": "); ok {
				headers[k] = v
			}
		}
	}

	h := readPartHeader()
	if h["Content-Type"] != "image/jpeg" || h["Content-Length"] != "4" {
		t.Errorf("part headers = %v", h)
	}
	body := make([]byte, 4)
	if _, err := io.ReadFull(r, body); err != nil {
		t.Fatalf("read error = %v", err)
	}
	if body[0] != 0xFF || body[1] != 0xD8 {
		t.Errorf("part body = %x, want JPEG", body)
	}

	src.set([]byte{0xFF, 0xD8, 0x00, 0xFF, 0xD9})
	if h := readPartHeader(); h["Content-Length"] != "5" {
		t.Errorf("second part headers = %v, want the new image", h)
	}
}

func TestStreamHandler_MethodNotAllowed(t *testing.T) {
	s := New(Config{Frames: &fakeJPEG{}})

	req := httptest.NewRequest(http.MethodPost, "/api/overlay.mjpg", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
