package render

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-coach/internal/avatar"
	"github.com/lexiqai/voice-coach/internal/coach"
)

func testCoach(t *testing.T) coach.Coach {
	t.Helper()
	c, err := coach.NewCatalog().Lookup("Eva")
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Expected dial to succeed, got %v", err)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Expected a frame, got %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Expected JSON frame, got %v", err)
	}
	return msg
}

func testFrame(seq uint64, speaking bool) avatar.Frame {
	return avatar.Frame{
		Seq:    seq,
		At:     time.Unix(1700000000, 0),
		Status: "connected",
		Agent: avatar.Panel{
			Transform: avatar.VisemeState{ScaleX: 1.05, ScaleY: 1.1, TranslateY: -2, Brightness: 1.1},
			Speaking:  speaking,
			Gesture:   avatar.GestureNod,
		},
		User: avatar.Panel{Transform: avatar.NeutralState()},
	}
}

func TestNewMessage(t *testing.T) {
	c := testCoach(t)

	msg := NewMessage(c, testFrame(1, true))
	if msg.Event != "frame" {
		t.Errorf("Expected event frame, got %s", msg.Event)
	}
	if msg.Agent.Image != c.Talking {
		t.Errorf("Expected talking image, got %s", msg.Agent.Image)
	}
	if msg.Agent.Variant != "talking" {
		t.Errorf("Expected talking variant, got %s", msg.Agent.Variant)
	}
	if !strings.Contains(msg.Agent.CSS, "scale(1.0500, 1.1000)") {
		t.Errorf("Expected scale in CSS, got %s", msg.Agent.CSS)
	}
	if msg.Agent.Filter != "brightness(1.100)" {
		t.Errorf("Expected brightness filter, got %s", msg.Agent.Filter)
	}
	if msg.User.Variant != "neutral" {
		t.Errorf("Expected neutral user variant, got %s", msg.User.Variant)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"gesture":"nod"`) {
		t.Errorf("Expected gesture by name on the wire, got %s", data)
	}
}

func TestHub_LateJoinerGetsLatestFrame(t *testing.T) {
	hub := NewHub(testCoach(t), 4)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	hub.Publish(testFrame(7, false))

	conn := dialHub(t, srv)
	defer conn.Close()

	if msg := readMessage(t, conn); msg.Seq != 7 {
		t.Errorf("Expected latest frame 7 first, got %d", msg.Seq)
	}

	hub.Publish(testFrame(8, true))
	msg := readMessage(t, conn)
	if msg.Seq != 8 {
		t.Errorf("Expected frame 8, got %d", msg.Seq)
	}
	if !msg.Agent.Speaking {
		t.Error("Expected agent speaking")
	}
	if hub.Viewers() != 1 {
		t.Errorf("Expected 1 viewer, got %d", hub.Viewers())
	}
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	hub := NewHub(testCoach(t), 1)
	defer hub.Close()

	v := &viewer{id: "slow", send: make(chan []byte, 1)}
	hub.viewers[v.id] = v

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(testFrame(uint64(i), false))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected Publish to drop frames for a slow viewer")
	}
	if v.dropped != 99 {
		t.Errorf("Expected 99 dropped frames, got %d", v.dropped)
	}
}

func TestHub_CloseDisconnectsViewers(t *testing.T) {
	hub := NewHub(testCoach(t), 4)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	hub.Publish(testFrame(1, false))
	conn := dialHub(t, srv)
	defer conn.Close()
	readMessage(t, conn)

	hub.Close()
	hub.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected connection to close")
	}
	if hub.Viewers() != 0 {
		t.Errorf("Expected no viewers after close, got %d", hub.Viewers())
	}

	hub.Publish(testFrame(2, false))
}

func TestHub_PublishLogsUnencodableFrame(t *testing.T) {
	hub := NewHub(testCoach(t), 4)
	defer hub.Close()

	var logs bytes.Buffer
	hub.logger = zerolog.New(&logs)

	frame := testFrame(3, true)
	frame.Agent.Transform.ScaleX = math.NaN()
	hub.Publish(frame)

	if !strings.Contains(logs.String(), "Failed to encode frame") {
		t.Errorf("Expected encode failure to be logged, got %q", logs.String())
	}
	if hub.latest != nil {
		t.Error("Expected unencodable frame not to become the latest frame")
	}
}
