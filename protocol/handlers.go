package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"

	"github.com/yacoubb/roomhub/config"
	"github.com/yacoubb/roomhub/room"
	"github.com/yacoubb/roomhub/validate"
)

// Operation names accepted on the wire.
const (
	OpHandshake  = "handshake"
	OpRegister   = "register"
	OpRoomList   = "roomList"
	OpCreateRoom = "createRoom"
	OpJoin       = "join"
	OpLeave      = "leave"
	OpRoomInfo   = "roomInfo"
	OpPlayers    = "players"
	OpMessage    = "message"
	OpKick       = "kick"
)

// Challenge kinds a handler may suspend on.
const (
	ChallengePassword = "password"
	ChallengeRoomInfo = "roomInfo"
)

// EventInfo is the envelope for room membership events, pushed to members on
// the "info" event.
type EventInfo struct {
	Event    string `json:"event"`
	ID       string `json:"id"`
	Username string `json:"username"`
}

// EventMessage is a chat message relayed to every room member.
type EventMessage struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// EventKicked is delivered to the removed player on the "kicked" event; it
// names who kicked them.
type EventKicked struct {
	Username string `json:"username"`
}

// RoomInfoReply is the roomInfo acknowledgement payload.
type RoomInfoReply struct {
	Name              string `json:"name"`
	Owner             string `json:"owner"`
	Public            bool   `json:"public"`
	PasswordProtected bool   `json:"passwordProtected"`
	Players           string `json:"players"`
}

var errUnknownOp = errors.New("unknown operation")

// roomScoped marks operations that require the caller to be in a room.
var roomScoped = map[string]bool{
	OpLeave:    true,
	OpRoomInfo: true,
	OpPlayers:  true,
	OpMessage:  true,
	OpKick:     true,
}

// Handler executes protocol operations against the shared registry and
// session store. It satisfies Dispatcher.
type Handler struct {
	cfg      config.Config
	registry *room.Registry
	sessions *room.Store
	bcast    Broadcaster
}

// NewHandler wires a Handler to its collaborators.
func NewHandler(cfg config.Config, registry *room.Registry, sessions *room.Store, bcast Broadcaster) *Handler {
	return &Handler{
		cfg:      cfg,
		registry: registry,
		sessions: sessions,
		bcast:    bcast,
	}
}

// Connected creates the session and greets the client so it knows to start
// the handshake.
func (h *Handler) Connected(c Conn) {
	h.sessions.Create(c.ID())
	log.Printf("client %s connected", c.ID())
	c.Notify("handshake", nil)
}

// Disconnected tears the session down, leaving its room first so succession
// and notifications run exactly as they would for an explicit leave.
func (h *Handler) Disconnected(c Conn) {
	sess, err := h.sessions.Get(c.ID())
	if err != nil {
		return
	}
	// Close first: any request suspended on a challenge must no longer be
	// able to commit membership for this connection.
	sess.Close()
	if _, in := sess.Room(); in {
		h.leaveRoom(c.ID(), sess)
	}

	who := sess.Username()
	if who == "" {
		who = c.ID()
	}
	log.Printf("client %s disconnected", who)
	h.sessions.Delete(c.ID())
}

// Handle gates and executes one request, acknowledging it exactly once. If
// the connection drops while the request is suspended on a challenge the
// request is abandoned and nothing is acknowledged.
func (h *Handler) Handle(ctx context.Context, c Conn, op string, args []json.RawMessage, ack Ack) {
	log.Printf("%s -> %s", c.ID(), op)

	sess, err := h.sessions.Get(c.ID())
	if err != nil {
		ack(false, room.CodeNotVerified)
		return
	}
	if code := gate(sess, op); code != "" {
		ack(false, code)
		return
	}

	payload, err := h.dispatch(ctx, c, sess, op, args)
	if err == nil {
		ack(true, payload)
		return
	}

	var code room.Code
	if errors.As(err, &code) {
		ack(false, code)
		// A failed handshake is terminal, but the rejection is delivered
		// before the connection goes down.
		if op == OpHandshake {
			c.Close()
		}
		return
	}
	if errors.Is(err, errUnknownOp) {
		log.Printf("%s sent unknown operation %q", c.ID(), op)
		ack(false, nil)
		return
	}
	// Challenge abandoned by disconnect or shutdown; the peer is gone, so
	// there is nobody left to acknowledge.
	log.Printf("%s %s abandoned: %v", c.ID(), op, err)
}

// gate applies the authorization pipeline in its fixed order: verified,
// registered, then in-room for room-scoped operations. Empty means pass.
func gate(sess *room.Session, op string) room.Code {
	if !sess.Verified() && op != OpHandshake {
		return room.CodeNotVerified
	}
	if sess.Username() == "" && op != OpHandshake && op != OpRegister {
		return room.CodeNotRegistered
	}
	if roomScoped[op] {
		if _, in := sess.Room(); !in {
			return room.CodeNotInRoom
		}
	}
	return ""
}

func (h *Handler) dispatch(ctx context.Context, c Conn, sess *room.Session, op string, args []json.RawMessage) (any, error) {
	switch op {
	case OpHandshake:
		return h.handshake(c, sess, args)
	case OpRegister:
		return h.register(sess, args)
	case OpRoomList:
		return h.registry.List(), nil
	case OpCreateRoom:
		return h.createRoom(ctx, c, sess)
	case OpJoin:
		return h.join(ctx, c, sess, args)
	case OpLeave:
		return nil, h.leave(sess)
	case OpRoomInfo:
		return h.roomInfo(sess)
	case OpPlayers:
		return h.players(sess)
	case OpMessage:
		return nil, h.message(sess, args)
	case OpKick:
		return nil, h.kick(c, sess, args)
	default:
		return nil, errUnknownOp
	}
}

// handshake verifies the client's app id. A mismatch fails the request;
// Handle drops the connection once the rejection is acknowledged.
func (h *Handler) handshake(c Conn, sess *room.Session, args []json.RawMessage) (any, error) {
	appID, _ := stringArg(args, 0)
	if appID != h.cfg.AppID {
		log.Printf("client %s failed handshake", c.ID())
		return nil, room.CodeNotVerified
	}
	sess.Verify()
	return nil, nil
}

func (h *Handler) register(sess *room.Session, args []json.RawMessage) (any, error) {
	if _, in := sess.Room(); in {
		return nil, room.CodeAlreadyInRoom
	}
	if sess.Username() != "" {
		return nil, room.CodeAlreadyRegistered
	}

	username, _ := stringArg(args, 0)
	if !validate.LengthWithin(username, h.cfg.UsernameMinLength, h.cfg.UsernameMaxLength) {
		return nil, room.CodeUsernameLength
	}
	if !validate.Alphanumeric(username) {
		return nil, room.CodeUsernameAlphanumeric
	}
	if err := sess.Register(username); err != nil {
		return nil, room.CodeAlreadyRegistered
	}
	log.Printf("client %s registered as %s", sess.ID(), username)
	return username, nil
}

// roomOptions is the challenge reply for createRoom. Pointer fields
// distinguish absent keys from zero values; every key is required.
type roomOptions struct {
	Name       *string  `json:"roomName"`
	Public     *bool    `json:"public"`
	Password   *string  `json:"password"`
	MaxPlayers *float64 `json:"maxPlayers"`
}

// createRoom collects the room configuration over a challenge, then
// validates and commits it. The registry reservation taken after the
// challenge is the atomic existence check, so concurrent creators racing on
// one name see exactly one winner. The successful acknowledgement carries
// the room name.
func (h *Handler) createRoom(ctx context.Context, c Conn, sess *room.Session) (any, error) {
	if _, in := sess.Room(); in {
		return nil, room.CodeAlreadyInRoom
	}

	raw, err := h.challenge(ctx, c, ChallengeRoomInfo)
	if err != nil {
		return nil, err
	}

	var opts roomOptions
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, room.CodeBadRoomInfo
	}
	if opts.Name == nil || opts.Public == nil || opts.Password == nil || opts.MaxPlayers == nil {
		return nil, room.CodeBadRoomInfo
	}

	name := *opts.Name
	if !validate.NonEmpty(name) {
		return nil, room.CodeRoomNameEmpty
	}
	if err := h.registry.Reserve(name); err != nil {
		return nil, room.CodeRoomAlreadyExist
	}
	// The name is reserved from here on; every failure path must Abort.
	if !validate.LengthBetween(name, h.cfg.UsernameMinLength, h.cfg.UsernameMaxLength) {
		h.registry.Abort(name)
		return nil, room.CodeRoomNameLength
	}
	if !validate.Alphanumeric(name) {
		h.registry.Abort(name)
		return nil, room.CodeRoomNameAlphanumeric
	}
	maxPlayers := *opts.MaxPlayers
	if maxPlayers < 1 || maxPlayers != math.Trunc(maxPlayers) {
		h.registry.Abort(name)
		return nil, room.CodeMinMaxPlayers
	}

	if err := sess.EnterRoom(name); err != nil {
		h.registry.Abort(name)
		if errors.Is(err, room.ErrSessionClosed) {
			return nil, ErrConnClosed
		}
		return nil, room.CodeAlreadyInRoom
	}
	err = h.registry.Commit(room.Options{
		Name:       name,
		Public:     *opts.Public,
		Password:   *opts.Password,
		MaxPlayers: int(maxPlayers),
	}, c.ID())
	if err != nil {
		sess.LeaveRoom()
		h.registry.Abort(name)
		return nil, room.CodeRoomAlreadyExist
	}

	h.bcast.JoinGroup(name, c)
	// A disconnect can land between the session claim and the commit; its
	// cleanup finds nothing to undo at that point, so the commit re-checks
	// liveness and tears its own work back down.
	if sess.Closed() {
		h.abandonMembership(name, c.ID(), sess)
		return nil, ErrConnClosed
	}
	log.Printf("%s created room %s", sess.Username(), name)
	return name, nil
}

// join admits the caller into an existing room, challenging for the password
// first when the room has one. Existence and capacity are re-verified inside
// Admit because the password round trip suspends the request.
func (h *Handler) join(ctx context.Context, c Conn, sess *room.Session, args []json.RawMessage) (any, error) {
	if _, in := sess.Room(); in {
		return nil, room.CodeAlreadyInRoom
	}

	name, _ := stringArg(args, 0)
	password, err := h.registry.Password(name)
	if err != nil {
		return nil, room.CodeRoomNotExist
	}

	if password != "" {
		raw, err := h.challenge(ctx, c, ChallengePassword)
		if err != nil {
			return nil, err
		}
		var supplied string
		if err := json.Unmarshal(raw, &supplied); err != nil {
			return nil, room.CodeBadPassword
		}
		if supplied != password {
			return nil, room.CodeBadPassword
		}
	}

	if err := sess.EnterRoom(name); err != nil {
		if errors.Is(err, room.ErrSessionClosed) {
			return nil, ErrConnClosed
		}
		return nil, room.CodeAlreadyInRoom
	}
	if err := h.registry.Admit(name, c.ID()); err != nil {
		sess.LeaveRoom()
		if errors.Is(err, room.ErrRoomFull) {
			return nil, room.CodeRoomFull
		}
		return nil, room.CodeRoomNotExist
	}

	// Broadcast before adding the joiner to the group so they do not
	// receive their own join event.
	h.bcast.Broadcast(name, "info", EventInfo{
		Event:    room.EventPlayerJoined,
		ID:       c.ID(),
		Username: sess.Username(),
	})
	h.bcast.JoinGroup(name, c)
	if sess.Closed() {
		h.abandonMembership(name, c.ID(), sess)
		return nil, ErrConnClosed
	}
	log.Printf("%s joined room %s", sess.Username(), name)
	return name, nil
}

// abandonMembership rolls a just-committed membership back because the
// owning connection disconnected mid-request. The disconnect cleanup and
// this rollback can race; registry removal is first-wins and the loser
// backs off, so membership settles removed either way.
func (h *Handler) abandonMembership(name, connID string, sess *room.Session) {
	h.bcast.LeaveGroup(name, connID)
	sess.LeaveRoom()
	res, err := h.registry.Leave(name, connID)
	if err != nil || res.Destroyed {
		return
	}
	h.bcast.Broadcast(name, "info", EventInfo{
		Event:    room.EventPlayerLeft,
		ID:       connID,
		Username: sess.Username(),
	})
	if res.NewOwner != "" {
		h.bcast.Broadcast(name, "info", EventInfo{
			Event:    room.EventNewOwner,
			ID:       res.NewOwner,
			Username: h.sessions.Username(res.NewOwner),
		})
	}
}

func (h *Handler) leave(sess *room.Session) error {
	return h.leaveRoom(sess.ID(), sess)
}

// leaveRoom is the shared leave flow for the leave operation and disconnect
// cleanup: release the session claim, drop the group subscription, update
// the registry, then notify the remaining members.
func (h *Handler) leaveRoom(connID string, sess *room.Session) error {
	name, err := sess.LeaveRoom()
	if err != nil {
		return room.CodeNotInRoom
	}
	h.bcast.LeaveGroup(name, connID)

	res, err := h.registry.Leave(name, connID)
	if err != nil {
		// The member was already removed, e.g. a kick that raced this
		// leave. Membership is settled either way.
		log.Printf("leave %s from %s: %v", connID, name, err)
		return nil
	}
	if res.Destroyed {
		log.Printf("room %s destroyed", name)
		return nil
	}

	h.bcast.Broadcast(name, "info", EventInfo{
		Event:    room.EventPlayerLeft,
		ID:       connID,
		Username: h.sessions.Username(connID),
	})
	if res.NewOwner != "" {
		h.bcast.Broadcast(name, "info", EventInfo{
			Event:    room.EventNewOwner,
			ID:       res.NewOwner,
			Username: h.sessions.Username(res.NewOwner),
		})
	}
	return nil
}

func (h *Handler) roomInfo(sess *room.Session) (any, error) {
	name, _ := sess.Room()
	info, err := h.registry.Get(name)
	if err != nil {
		return nil, room.CodeNotInRoom
	}
	return RoomInfoReply{
		Name:              info.Name,
		Owner:             h.sessions.Username(info.Owner),
		Public:            info.Public,
		PasswordProtected: info.PasswordProtected,
		Players:           info.Players(),
	}, nil
}

// players maps each member's connection ID to its username.
func (h *Handler) players(sess *room.Session) (any, error) {
	name, _ := sess.Room()
	members, err := h.registry.Members(name)
	if err != nil {
		return nil, room.CodeNotInRoom
	}
	byID := make(map[string]string, len(members))
	for _, id := range members {
		byID[id] = h.sessions.Username(id)
	}
	return byID, nil
}

func (h *Handler) message(sess *room.Session, args []json.RawMessage) error {
	name, _ := sess.Room()
	text, _ := stringArg(args, 0)
	h.bcast.Broadcast(name, "message", EventMessage{
		Username: sess.Username(),
		Message:  text,
	})
	return nil
}

// kick lets the room owner remove another member by username. When several
// members share the username, the earliest joiner goes; the owner is never a
// candidate, so owners with the targeted name cannot kick themselves.
func (h *Handler) kick(c Conn, sess *room.Session, args []json.RawMessage) error {
	name, _ := sess.Room()
	info, err := h.registry.Get(name)
	if err != nil {
		return room.CodeNotInRoom
	}
	if info.Owner != c.ID() {
		return room.CodeNotRoomOwner
	}

	target, _ := stringArg(args, 0)
	if !validate.NonEmpty(target) {
		return room.CodeKickUsernameEmpty
	}

	targetID := ""
	for _, id := range info.Members {
		if id == info.Owner {
			continue
		}
		if h.sessions.Username(id) == target {
			targetID = id
			break
		}
	}
	if targetID == "" {
		return room.CodeKickNotInRoom
	}

	if _, err := h.registry.Evict(name, targetID); err != nil {
		return room.CodeKickNotInRoom
	}
	if ts, err := h.sessions.Get(targetID); err == nil {
		ts.LeaveRoom()
	}
	h.bcast.LeaveGroup(name, targetID)
	h.bcast.Broadcast(name, "info", EventInfo{
		Event:    room.EventPlayerKicked,
		ID:       targetID,
		Username: target,
	})
	h.bcast.Notify(targetID, "kicked", EventKicked{Username: sess.Username()})
	log.Printf("%s kicked %s from room %s", sess.Username(), target, name)
	return nil
}

// challenge runs one suspending round trip under the configured timeout.
func (h *Handler) challenge(ctx context.Context, c Conn, kind string) (json.RawMessage, error) {
	cctx, cancel := context.WithTimeout(ctx, h.cfg.ChallengeTimeout)
	defer cancel()

	raw, err := c.Challenge(cctx, kind)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, room.CodeTimeout
		}
		return nil, err
	}
	return raw, nil
}

// stringArg decodes the i-th request argument as a JSON string. Missing or
// malformed arguments decode to "".
func stringArg(args []json.RawMessage, i int) (string, bool) {
	if i >= len(args) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(args[i], &s); err != nil {
		return "", false
	}
	return s, true
}
