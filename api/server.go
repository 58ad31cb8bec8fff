package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/yacoubb/roomhub/room"
	"github.com/yacoubb/roomhub/transport/websocket"
)

// Server is the HTTP server for the coordinator.
type Server struct {
	registry *room.Registry
	sessions *room.Store
	hub      *websocket.Hub
	router   *mux.Router
}

// NewServer creates the API server.
func NewServer(registry *room.Registry, sessions *room.Store, hub *websocket.Hub) *Server {
	s := &Server{
		registry: registry,
		sessions: sessions,
		hub:      hub,
		router:   mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{name}", s.handleGetRoom).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.registry.List())
}

// roomDetail is the single-room response. Members are usernames resolved
// from live sessions.
type roomDetail struct {
	Name              string   `json:"name"`
	Public            bool     `json:"public"`
	PasswordProtected bool     `json:"passwordProtected"`
	MaxPlayers        int      `json:"maxPlayers"`
	Owner             string   `json:"owner"`
	Members           []string `json:"members"`
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	info, err := s.registry.Get(name)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			respondError(w, http.StatusNotFound, "room not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	members := make([]string, 0, len(info.Members))
	for _, id := range info.Members {
		members = append(members, s.sessions.Username(id))
	}
	respondJSON(w, http.StatusOK, roomDetail{
		Name:              info.Name,
		Public:            info.Public,
		PasswordProtected: info.PasswordProtected,
		MaxPlayers:        info.MaxPlayers,
		Owner:             s.sessions.Username(info.Owner),
		Members:           members,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	rooms, members := s.registry.Stats()
	respondJSON(w, http.StatusOK, map[string]int{
		"rooms":       rooms,
		"members":     members,
		"connections": s.hub.Clients(),
	})
}
