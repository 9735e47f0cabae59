package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/posecam/internal/transform"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	clientSendBuffer = 4
	writeWait        = time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// OverlayMessage is one overlay frame as sent to websocket clients.
// FPS is null until a frame rate has been measured.
type OverlayMessage struct {
	Seq       uint64            `json:"seq"`
	FPS       *int              `json:"fps"`
	Points    []transform.Point `json:"points"`
	Edges     []transform.Edge  `json:"edges"`
	Timestamp int64             `json:"timestamp"`
}

type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// OverlayHub broadcasts overlay frames to websocket clients. It implements
// overlay.StatusPresenter. Slow clients drop frames rather than block Render.
type OverlayHub struct {
	mu      sync.RWMutex
	clients map[string]*hubClient
	fps     int
	hasFPS  bool
	seq     uint64
}

// NewOverlayHub creates an empty hub.
func NewOverlayHub() *OverlayHub {
	return &OverlayHub{clients: make(map[string]*hubClient)}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *OverlayHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := &hubClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	log.Printf("overlay client %s connected", c.id)

	writerDone := make(chan struct{})
	go c.writePump(writerDone)

	defer func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		close(c.send)
		h.mu.Unlock()
		<-writerDone
		log.Printf("overlay client %s disconnected", c.id)
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *hubClient) writePump(done chan struct{}) {
	defer close(done)
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			// Unblock the read loop so the client gets unregistered.
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

// SetFPS records the frame rate sent with the next overlay frame.
func (h *OverlayHub) SetFPS(fps int, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fps = fps
	h.hasFPS = ok
}

// Render sends the overlay to every connected client.
func (h *OverlayHub) Render(edges []transform.Edge, points []transform.Point) {
	h.mu.Lock()
	h.seq++
	msg := OverlayMessage{
		Seq:       h.seq,
		Points:    points,
		Edges:     edges,
		Timestamp: time.Now().UnixMilli(),
	}
	if h.hasFPS {
		fps := h.fps
		msg.FPS = &fps
	}
	if len(h.clients) == 0 {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	if msg.Points == nil {
		msg.Points = []transform.Point{}
	}
	if msg.Edges == nil {
		msg.Edges = []transform.Edge{}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("failed to encode overlay: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *OverlayHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
