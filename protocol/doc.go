// Package protocol implements the room coordination protocol: the ordered
// authorization pipeline every inbound request passes through, and the
// operation handlers that mutate the room registry and connection sessions.
//
// Authorization Pipeline:
//
// Requests are gated in a fixed order before any handler runs. The verified
// gate admits only connections that completed the app-id handshake (or the
// handshake itself); the registered gate requires a username (or the
// handshake/register operations); the in-room gate applies to room-scoped
// operations only. Gates are pure checks against session state and the
// first failure rejects the request with its categorical code.
//
// Challenges:
//
// Two operations suspend mid-request to ask the caller for more data:
// createRoom requests the room configuration and join requests the password
// of a protected room. While a handler is suspended, other connections keep
// mutating the shared registry, so both operations re-validate at commit
// time: create re-checks name availability through the registry's atomic
// reservation and join re-checks capacity through Admit. Challenges are
// bounded by a timeout and abandoned without partial state if the caller
// disconnects.
//
// Transport Contract:
//
// The package talks to the transport through the Conn, Broadcaster and Ack
// types. Every request is acknowledged exactly once with a success flag and
// a payload or error code; room events reach members through named-group
// broadcasts whose membership snapshot is taken atomically per send.
package protocol
