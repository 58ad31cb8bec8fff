package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yacoubb/roomhub/room"
	"github.com/yacoubb/roomhub/transport/websocket"
)

func newTestServer(t *testing.T) (*Server, *room.Registry, *room.Store) {
	t.Helper()
	registry := room.NewRegistry()
	sessions := room.NewStore()
	return NewServer(registry, sessions, websocket.NewHub()), registry, sessions
}

// seedRoom creates a room owned by ownerID with the given username.
func seedRoom(t *testing.T, registry *room.Registry, sessions *room.Store, opts room.Options, ownerID, username string) {
	t.Helper()
	if err := registry.Reserve(opts.Name); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if err := registry.Commit(opts, ownerID); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := sessions.Create(ownerID).Register(username); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
}

func doGet(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	rr := doGet(t, s, "/healthz")
	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rr.Code)
	}
}

func TestListRoomsShowsPublicOnly(t *testing.T) {
	s, registry, sessions := newTestServer(t)
	seedRoom(t, registry, sessions, room.Options{Name: "open1", Public: true, MaxPlayers: 4}, "conn-a", "alice")
	seedRoom(t, registry, sessions, room.Options{Name: "hidden1", Public: false, MaxPlayers: 4}, "conn-b", "bob")

	rr := doGet(t, s, "/api/rooms")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	var summaries []room.Summary
	if err := json.Unmarshal(rr.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("Expected 1 room, got %d", len(summaries))
	}
	if summaries[0].Name != "open1" {
		t.Errorf("Expected open1, got %s", summaries[0].Name)
	}
}

func TestGetRoom(t *testing.T) {
	s, registry, sessions := newTestServer(t)
	seedRoom(t, registry, sessions, room.Options{Name: "lobby1", Public: true, Password: "pw", MaxPlayers: 4}, "conn-a", "alice")

	rr := doGet(t, s, "/api/rooms/lobby1")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	var detail roomDetail
	if err := json.Unmarshal(rr.Body.Bytes(), &detail); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if detail.Owner != "alice" {
		t.Errorf("Expected owner alice, got %s", detail.Owner)
	}
	if !detail.PasswordProtected {
		t.Error("Room should report password protection")
	}
	if len(detail.Members) != 1 || detail.Members[0] != "alice" {
		t.Errorf("Expected members [alice], got %v", detail.Members)
	}
}

func TestGetRoomNotFound(t *testing.T) {
	s, _, _ := newTestServer(t)

	rr := doGet(t, s, "/api/rooms/nowhere")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rr.Code)
	}
}

func TestStats(t *testing.T) {
	s, registry, sessions := newTestServer(t)
	seedRoom(t, registry, sessions, room.Options{Name: "lobby1", Public: true, MaxPlayers: 4}, "conn-a", "alice")

	rr := doGet(t, s, "/api/stats")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	var stats map[string]int
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if stats["rooms"] != 1 || stats["members"] != 1 {
		t.Errorf("Unexpected stats: %v", stats)
	}
}
