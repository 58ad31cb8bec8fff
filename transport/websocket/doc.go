// Package websocket provides the WebSocket transport for the room
// coordinator.
//
// The package uses a hub-and-spoke model where a central Hub tracks all
// live connections and the named groups (rooms) they belong to. Each client
// connection is served by a read goroutine and a write goroutine; the write
// goroutine owns the socket for outbound traffic and keeps the connection
// alive with pings.
//
// Message Protocol:
//
// Messages are JSON-encoded. Clients send requests:
//
//	{"id": "r1", "op": "register", "args": ["alice"]}
//
// and receive acknowledgements keyed by the same id:
//
//	{"id": "r1", "ok": true, "data": "alice"}
//	{"id": "r1", "ok": false, "error": "ERR_USERNAME_LENGTH"}
//
// The server pushes unsolicited events ({"event": "info", "data": ...}) and
// may suspend a request on a challenge ({"challenge": "password", "id":
// "c1"}), which the client answers with {"reply": "c1", "data": "hunter2"}.
//
// Concurrency:
//
// Requests are dispatched on their own goroutines so that a request
// suspended on a challenge never blocks the read loop; challenge replies
// are routed inline to the waiting request. Multiple requests from one
// connection may therefore run concurrently.
package websocket
