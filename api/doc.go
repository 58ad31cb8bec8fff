// Package api provides the HTTP server: the WebSocket endpoint clients
// connect to, plus a small read-only REST surface for inspecting the
// coordinator.
//
// Endpoints:
//
//	GET /ws               WebSocket upgrade
//	GET /healthz          liveness probe
//	GET /api/rooms        public room listing
//	GET /api/rooms/{name} single room detail
//	GET /api/stats        room, membership and connection counts
//
// The REST surface is deliberately read-only: all mutations flow through
// the WebSocket protocol, where the authorization pipeline applies.
package api
