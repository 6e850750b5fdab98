package render

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-coach/internal/avatar"
	"github.com/lexiqai/voice-coach/internal/coach"
	"github.com/lexiqai/voice-coach/internal/observability"
)

const (
	// DefaultQueueSize is how many frames a slow viewer may fall behind before frames are dropped
	DefaultQueueSize = 8

	writeTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The render stream is served to a local presentation layer
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// PanelView is one panel ready to draw
type PanelView struct {
	avatar.Panel
	CSS     string `json:"css"`
	Filter  string `json:"filter"`
	Variant string `json:"variant"`
	Image   string `json:"image,omitempty"`
}

// Message is what viewers receive, one per tick
type Message struct {
	Event      string       `json:"event"`
	Seq        uint64       `json:"seq"`
	At         time.Time    `json:"at"`
	Status     string       `json:"status"`
	Coach      string       `json:"coach"`
	Agent      PanelView    `json:"agent"`
	User       PanelView    `json:"user"`
	Processing bool         `json:"processing"`
	Vocabulary *avatar.Card `json:"vocabulary,omitempty"`
}

// NewMessage renders a frame for the given coach
func NewMessage(c coach.Coach, frame avatar.Frame) Message {
	return Message{
		Event:      "frame",
		Seq:        frame.Seq,
		At:         frame.At,
		Status:     frame.Status,
		Coach:      c.Name,
		Agent:      view(frame.Agent, c.Image(frame.Agent.Speaking)),
		User:       view(frame.User, ""),
		Processing: frame.Processing,
		Vocabulary: frame.Vocabulary,
	}
}

func view(p avatar.Panel, image string) PanelView {
	return PanelView{
		Panel:   p,
		CSS:     p.CSS(),
		Filter:  p.Filter(),
		Variant: p.Variant(),
		Image:   image,
	}
}

type viewer struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	dropped int
}

// Hub fans avatar frames out to websocket viewers. A viewer that cannot keep
// up loses frames rather than slowing the animation loop.
type Hub struct {
	coach     coach.Coach
	queueSize int
	logger    zerolog.Logger

	mu      sync.Mutex
	viewers map[string]*viewer
	latest  []byte
	closed  bool
}

// NewHub creates a hub rendering frames for c
func NewHub(c coach.Coach, queueSize int) *Hub {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		coach:     c,
		queueSize: queueSize,
		logger:    observability.GetLogger().With().Str("component", "render").Logger(),
		viewers:   make(map[string]*viewer),
	}
}

// Publish sends frame to every viewer without blocking
func (h *Hub) Publish(frame avatar.Frame) {
	payload, err := json.Marshal(NewMessage(h.coach, frame))
	if err != nil {
		h.logger.Warn().Err(err).Uint64("seq", frame.Seq).Msg("Failed to encode frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.latest = payload
	for _, v := range h.viewers {
		select {
		case v.send <- payload:
		default:
			v.dropped++
		}
	}
}

// Viewers returns the number of connected viewers
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// ServeHTTP upgrades the request and streams frames until the viewer leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to upgrade viewer connection")
		return
	}

	v := &viewer{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, h.queueSize),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.viewers[v.id] = v
	if h.latest != nil {
		v.send <- h.latest
	}
	count := len(h.viewers)
	h.mu.Unlock()

	observability.SetRenderViewers(count)
	h.logger.Info().Str("viewer_id", v.id).Str("remote", r.RemoteAddr).Msg("Viewer connected")

	go h.writeLoop(v)
	h.readLoop(v)
	h.remove(v)
}

// readLoop discards anything the viewer sends and returns when it goes away
func (h *Hub) readLoop(v *viewer) {
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("viewer_id", v.id).Msg("Viewer read error")
			}
			return
		}
	}
}

func (h *Hub) writeLoop(v *viewer) {
	defer v.conn.Close()

	for payload := range v.send {
		v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := v.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug().Err(err).Str("viewer_id", v.id).Msg("Viewer write failed")
			return
		}
	}

	v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	v.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended"))
}

func (h *Hub) remove(v *viewer) {
	h.mu.Lock()
	_, ok := h.viewers[v.id]
	if ok {
		delete(h.viewers, v.id)
		close(v.send)
	}
	count := len(h.viewers)
	h.mu.Unlock()

	if ok {
		observability.SetRenderViewers(count)
		h.logger.Info().Str("viewer_id", v.id).Int("dropped", v.dropped).Msg("Viewer disconnected")
	}
}

// Close disconnects every viewer and refuses new ones
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for id, v := range h.viewers {
		delete(h.viewers, id)
		close(v.send)
	}
	observability.SetRenderViewers(0)
	return nil
}
