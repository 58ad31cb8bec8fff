package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yacoubb/roomhub/config"
	"github.com/yacoubb/roomhub/protocol"
	"github.com/yacoubb/roomhub/room"
)

// stubConn is a minimal protocol.Conn for exercising hub bookkeeping.
type stubConn struct {
	id     string
	events []string
}

func (s *stubConn) ID() string { return s.id }
func (s *stubConn) Notify(event string, payload any) {
	s.events = append(s.events, event)
}
func (s *stubConn) Challenge(ctx context.Context, kind string) (json.RawMessage, error) {
	return nil, protocol.ErrConnClosed
}
func (s *stubConn) Close() {}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.conns == nil {
		t.Error("Hub conns map is nil")
	}
	if hub.groups == nil {
		t.Error("Hub groups map is nil")
	}
}

func TestHubGroupMembership(t *testing.T) {
	hub := NewHub()
	a := &stubConn{id: "conn-a"}
	b := &stubConn{id: "conn-b"}

	hub.JoinGroup("lobby1", a)
	hub.JoinGroup("lobby1", b)

	if len(hub.groups["lobby1"]) != 2 {
		t.Errorf("Expected 2 members in group, got %d", len(hub.groups["lobby1"]))
	}

	hub.LeaveGroup("lobby1", "conn-a")
	if len(hub.groups["lobby1"]) != 1 {
		t.Errorf("Expected 1 member after leave, got %d", len(hub.groups["lobby1"]))
	}

	// Removing the last member cleans the group up entirely.
	hub.LeaveGroup("lobby1", "conn-b")
	if _, exists := hub.groups["lobby1"]; exists {
		t.Error("Empty group should have been removed")
	}
}

func TestHubBroadcastReachesGroupOnly(t *testing.T) {
	hub := NewHub()
	a := &stubConn{id: "conn-a"}
	b := &stubConn{id: "conn-b"}
	c := &stubConn{id: "conn-c"}

	hub.JoinGroup("lobby1", a)
	hub.JoinGroup("lobby1", b)
	hub.JoinGroup("lobby2", c)

	hub.Broadcast("lobby1", "info", "payload")

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Error("All group members should receive the broadcast")
	}
	if len(c.events) != 0 {
		t.Error("Members of other groups must not receive the broadcast")
	}
}

func TestHubRemoveDropsAllMemberships(t *testing.T) {
	hub := NewHub()
	a := &stubConn{id: "conn-a"}

	hub.JoinGroup("lobby1", a)
	hub.remove("conn-a")

	if _, exists := hub.groups["lobby1"]; exists {
		t.Error("remove should drop the connection from its groups")
	}
}

// wsMessage is a loose decode of any server-to-client frame.
type wsMessage struct {
	ID        string          `json:"id"`
	OK        *bool           `json:"ok"`
	Error     string          `json:"error"`
	Event     string          `json:"event"`
	Challenge string          `json:"challenge"`
	Data      json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

// readAck skips pushes until the acknowledgement for id arrives.
func readAck(t *testing.T, conn *websocket.Conn, id string) wsMessage {
	t.Helper()
	for i := 0; i < 10; i++ {
		msg := readFrame(t, conn)
		if msg.ID == id && msg.OK != nil {
			return msg
		}
	}
	t.Fatalf("No acknowledgement for %s", id)
	return wsMessage{}
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("Failed to write WebSocket message: %v", err)
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	cfg := config.Default()
	cfg.AppID = "hub-test"

	hub := NewHub()
	registry := room.NewRegistry()
	sessions := room.NewStore()
	hub.SetDispatcher(protocol.NewHandler(cfg, registry, sessions, hub))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r)
	}))
	t.Cleanup(server.Close)
	return server, hub
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketGreeting(t *testing.T) {
	server, hub := newTestServer(t)
	conn := dial(t, server)

	msg := readFrame(t, conn)
	if msg.Event != "handshake" {
		t.Errorf("Expected handshake greeting, got %q", msg.Event)
	}

	// Give registration time to settle.
	time.Sleep(20 * time.Millisecond)
	if hub.Clients() != 1 {
		t.Errorf("Expected 1 client, got %d", hub.Clients())
	}

	conn.Close()
	time.Sleep(20 * time.Millisecond)
	if hub.Clients() != 0 {
		t.Errorf("Expected 0 clients after close, got %d", hub.Clients())
	}
}

func TestWebSocketRequestAcknowledgement(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server)
	readFrame(t, conn) // greeting

	send(t, conn, map[string]any{"id": "r1", "op": "handshake", "args": []any{"hub-test"}})
	ack := readAck(t, conn, "r1")
	if !*ack.OK {
		t.Fatalf("Handshake should succeed, got error %s", ack.Error)
	}

	send(t, conn, map[string]any{"id": "r2", "op": "register", "args": []any{"ab"}})
	ack = readAck(t, conn, "r2")
	if *ack.OK {
		t.Fatal("Short username should be rejected")
	}
	if ack.Error != string(room.CodeUsernameLength) {
		t.Errorf("Expected %s, got %s", room.CodeUsernameLength, ack.Error)
	}
}

func TestWebSocketHandshakeFailureAckedBeforeClose(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server)
	readFrame(t, conn) // greeting

	send(t, conn, map[string]any{"id": "r1", "op": "handshake", "args": []any{"wrong-app"}})

	// The rejection must arrive before the server hangs up.
	ack := readAck(t, conn, "r1")
	if *ack.OK {
		t.Fatal("Wrong app id should be rejected")
	}
	if ack.Error != string(room.CodeNotVerified) {
		t.Errorf("Expected %s, got %s", room.CodeNotVerified, ack.Error)
	}

	// And then the connection goes down.
	conn.SetReadDeadline(time.Now().Add(time.Second))
	for i := 0; i < 5; i++ {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
	t.Error("Expected the server to close the connection after a failed handshake")
}

func TestWebSocketChallengeRoundTrip(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server)
	readFrame(t, conn) // greeting

	send(t, conn, map[string]any{"id": "r1", "op": "handshake", "args": []any{"hub-test"}})
	readAck(t, conn, "r1")
	send(t, conn, map[string]any{"id": "r2", "op": "register", "args": []any{"alice"}})
	readAck(t, conn, "r2")

	send(t, conn, map[string]any{"id": "r3", "op": "createRoom"})

	challenge := readFrame(t, conn)
	if challenge.Challenge != "roomInfo" {
		t.Fatalf("Expected roomInfo challenge, got %+v", challenge)
	}

	send(t, conn, map[string]any{
		"reply": challenge.ID,
		"data": map[string]any{
			"roomName":   "lobby1",
			"public":     true,
			"password":   "",
			"maxPlayers": 4,
		},
	})

	ack := readAck(t, conn, "r3")
	if !*ack.OK {
		t.Fatalf("createRoom should succeed, got error %s", ack.Error)
	}
	var name string
	if err := json.Unmarshal(ack.Data, &name); err != nil || name != "lobby1" {
		t.Errorf("Expected room name lobby1 in ack, got %s", ack.Data)
	}
}

func TestWebSocketEventFanout(t *testing.T) {
	server, _ := newTestServer(t)

	setup := func(id, username string) *websocket.Conn {
		conn := dial(t, server)
		readFrame(t, conn) // greeting
		send(t, conn, map[string]any{"id": id + "-hs", "op": "handshake", "args": []any{"hub-test"}})
		readAck(t, conn, id+"-hs")
		send(t, conn, map[string]any{"id": id + "-reg", "op": "register", "args": []any{username}})
		readAck(t, conn, id+"-reg")
		return conn
	}

	owner := setup("a", "alice")
	send(t, owner, map[string]any{"id": "a-create", "op": "createRoom"})
	challenge := readFrame(t, owner)
	send(t, owner, map[string]any{
		"reply": challenge.ID,
		"data":  map[string]any{"roomName": "lobby1", "public": true, "password": "", "maxPlayers": 4},
	})
	readAck(t, owner, "a-create")

	joiner := setup("b", "bob")
	send(t, joiner, map[string]any{"id": "b-join", "op": "join", "args": []any{"lobby1"}})
	readAck(t, joiner, "b-join")

	// The owner hears about the join.
	msg := readFrame(t, owner)
	if msg.Event != "info" {
		t.Fatalf("Expected info event, got %+v", msg)
	}
	var info protocol.EventInfo
	if err := json.Unmarshal(msg.Data, &info); err != nil {
		t.Fatalf("Failed to decode info event: %v", err)
	}
	if info.Event != room.EventPlayerJoined || info.Username != "bob" {
		t.Errorf("Unexpected join event: %+v", info)
	}
}
