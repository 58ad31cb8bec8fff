package room

// Code is a categorical protocol error reported to clients in failed
// acknowledgements. Codes are stable wire values.
type Code string

// Error implements the error interface so handlers can return a Code
// directly.
func (c Code) Error() string { return string(c) }

// Identity and handshake.
const (
	CodeNotVerified   Code = "ERR_NOTVERIFIED"   // wrong or missing app id
	CodeNotRegistered Code = "ERR_NOTREGISTERED" // no username registered yet
)

// Registration.
const (
	CodeUsernameLength       Code = "ERR_USERNAME_LENGTH"
	CodeUsernameAlphanumeric Code = "ERR_USERNAME_ALPHANUMERIC"
	CodeAlreadyRegistered    Code = "ERR_ALREADYREGISTERED"
)

// Room existence, capacity and password.
const (
	CodeRoomNotExist     Code = "ERR_ROOMNOTEXIST"
	CodeRoomAlreadyExist Code = "ERR_ROOMALREADYEXIST"
	CodeNotInRoom        Code = "ERR_NOTINROOM"
	CodeAlreadyInRoom    Code = "ERR_ALREADYINROOM"
	CodeRoomFull         Code = "ERR_ROOMFULL"
	CodeBadPassword      Code = "ERR_BADPASSWORD"
)

// Room configuration validation during create.
const (
	CodeBadRoomInfo          Code = "ERR_BADROOMINFO"
	CodeRoomNameEmpty        Code = "ERR_ROOMNAME_EMPTY"
	CodeRoomNameLength       Code = "ERR_ROOMNAME_LENGTH"
	CodeRoomNameAlphanumeric Code = "ERR_ROOMNAME_ALPHANUMERIC"
	CodeMinMaxPlayers        Code = "ERR_MIN_MAXPLAYERS"
)

// Ownership and kick.
const (
	CodeNotRoomOwner      Code = "ERR_NOTROOMOWNER"
	CodeKickUsernameEmpty Code = "ERR_KICK_USERNAMEEMPTY"
	CodeKickNotInRoom     Code = "ERR_KICK_NOTINROOM"
)

// CodeTimeout reports a challenge round trip that expired before the client
// answered. The originating request fails and no state is changed.
const CodeTimeout Code = "ERR_TIMEOUT"

// Room event names pushed to members.
const (
	EventPlayerJoined = "EVENT_PLAYERJOINED"
	EventPlayerLeft   = "EVENT_PLAYERLEFT"
	EventPlayerKicked = "EVENT_PLAYERKICKED"
	EventNewOwner     = "EVENT_NEWOWNER"
)
