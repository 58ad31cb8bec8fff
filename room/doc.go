// Package room holds the coordinator's domain state: the registry of live
// rooms and the per-connection sessions that move through the
// handshake → register → join lifecycle.
//
// Core Types:
//
// Registry owns the mapping from room name to Room. Creation is split into
// Reserve/Commit/Abort so that a name can be claimed atomically even though
// the creator's configuration arrives over a suspending network round trip.
// Join uses Admit, which re-verifies existence and capacity at commit time
// under the registry lock; a capacity check taken before a password
// challenge is never trusted on its own.
//
// Session tracks one connection's authorization state (verified flag,
// username, current room) behind its own mutex, because a connection can
// have several requests in flight while one of them is suspended on a
// challenge. Store maps connection IDs to sessions.
//
// Code is the categorical error taxonomy shared with clients on the wire.
//
// Policies:
//
// Rooms are destroyed as soon as their last member leaves. Members are kept
// in join order; when the owner leaves, the earliest-joined remaining member
// inherits the room. All state is process memory and is rebuilt from zero on
// restart.
package room
