package protocol

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrConnClosed is returned by a Conn when the peer disconnects while an
// operation is suspended on it.
var ErrConnClosed = errors.New("connection closed")

// Conn is one live client connection as seen by the protocol layer.
type Conn interface {
	// ID returns the transport-assigned connection identifier.
	ID() string

	// Notify pushes an unsolicited event to this connection.
	Notify(event string, payload any)

	// Challenge sends a server-initiated request of the given kind and
	// blocks until the client answers, ctx expires, or the connection
	// closes (ErrConnClosed).
	Challenge(ctx context.Context, kind string) (json.RawMessage, error)

	// Close hard-disconnects the peer.
	Close()
}

// Broadcaster fans events out to named groups of connections. A broadcast
// observes a consistent membership snapshot: a concurrently added or removed
// member either receives the whole event or none of it.
type Broadcaster interface {
	JoinGroup(group string, c Conn)
	LeaveGroup(group, connID string)
	Broadcast(group, event string, payload any)

	// Notify pushes an event to a single connection by ID; it reports
	// whether the connection was found.
	Notify(connID, event string, payload any) bool
}

// Ack is the single-use response callback for one request. The handler
// invokes it exactly once with a success flag and a payload; failed
// acknowledgements carry a room.Code.
type Ack func(ok bool, payload any)

// Dispatcher is the transport-facing surface of the protocol layer.
type Dispatcher interface {
	// Connected runs when the transport establishes a session.
	Connected(c Conn)

	// Disconnected runs when the transport session ends; it cleans up
	// room membership and runs ownership succession if needed.
	Disconnected(c Conn)

	// Handle gates and executes one inbound request.
	Handle(ctx context.Context, c Conn, op string, args []json.RawMessage, ack Ack)
}
