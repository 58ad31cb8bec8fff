package room

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrRoomExists   = errors.New("room already exists")
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrNotAMember   = errors.New("connection is not a member of the room")
	ErrNotReserved  = errors.New("room name is not reserved")
)

// Options is the configuration a creator supplies for a new room.
type Options struct {
	Name       string `json:"roomName"`
	Public     bool   `json:"public"`
	Password   string `json:"password"`
	MaxPlayers int    `json:"maxPlayers"`
}

// Room is one live room. Fields are only touched while holding the owning
// Registry's lock; callers get copies through snapshot methods.
type Room struct {
	Name       string
	Public     bool
	Password   string
	MaxPlayers int
	Owner      string   // connection ID of the current owner
	members    []string // connection IDs in join order; Owner is always present
}

func (r *Room) memberIndex(connID string) int {
	for i, id := range r.members {
		if id == connID {
			return i
		}
	}
	return -1
}

func (r *Room) removeMember(connID string) bool {
	i := r.memberIndex(connID)
	if i < 0 {
		return false
	}
	r.members = append(r.members[:i], r.members[i+1:]...)
	return true
}

// Summary is a public listing entry.
type Summary struct {
	Name              string `json:"name"`
	PasswordProtected bool   `json:"passwordProtected"`
	CurrentPlayers    int    `json:"currentPlayers"`
	MaxPlayers        int    `json:"maxPlayers"`
}

// Info is a consistent snapshot of a single room.
type Info struct {
	Name              string
	Public            bool
	PasswordProtected bool
	MaxPlayers        int
	Owner             string   // connection ID
	Members           []string // connection IDs in join order
}

// Players renders the "<count>/<max>" occupancy string clients display.
func (i Info) Players() string {
	return fmt.Sprintf("%d/%d", len(i.Members), i.MaxPlayers)
}

// LeaveResult describes what happened when a member left a room.
type LeaveResult struct {
	NewOwner  string   // connection ID of the promoted member, "" if ownership did not move
	Destroyed bool     // the room was removed because it became empty
	Remaining []string // members after the leave, join order
}

// Registry owns all live rooms. Every mutation runs under a single mutex;
// expected contention is low and the sections are short.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	reserved map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		reserved: make(map[string]struct{}),
	}
}

// Reserve provisionally claims name for a pending create. It fails with
// ErrRoomExists if the name is a live room or already reserved by another
// creator. A successful reservation must be followed by Commit or Abort.
//
// Create requests collect their configuration over a suspending round trip,
// so two creators can race on the same name; the reservation is the atomic
// existence check taken at commit time, which guarantees exactly one wins.
func (reg *Registry) Reserve(name string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.rooms[name]; exists {
		return ErrRoomExists
	}
	if _, exists := reg.reserved[name]; exists {
		return ErrRoomExists
	}
	reg.reserved[name] = struct{}{}
	return nil
}

// Commit converts a reservation into a live room owned by ownerID, who
// becomes its first member.
func (reg *Registry) Commit(opts Options, ownerID string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.reserved[opts.Name]; !exists {
		return ErrNotReserved
	}
	delete(reg.reserved, opts.Name)

	reg.rooms[opts.Name] = &Room{
		Name:       opts.Name,
		Public:     opts.Public,
		Password:   opts.Password,
		MaxPlayers: opts.MaxPlayers,
		Owner:      ownerID,
		members:    []string{ownerID},
	}
	return nil
}

// Abort releases a reservation without creating a room.
func (reg *Registry) Abort(name string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.reserved, name)
}

// Password returns the room's password, which may be empty. It exists so a
// join handler can decide whether to challenge before committing anything.
func (reg *Registry) Password(name string) (string, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[name]
	if !exists {
		return "", ErrRoomNotFound
	}
	return r.Password, nil
}

// Admit adds connID to the room if it still exists and has capacity. Both
// conditions are re-verified here because the caller may have been suspended
// on a password challenge since its earlier checks.
func (reg *Registry) Admit(name, connID string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[name]
	if !exists {
		return ErrRoomNotFound
	}
	if len(r.members) >= r.MaxPlayers {
		return ErrRoomFull
	}
	if r.memberIndex(connID) >= 0 {
		// Already admitted; keep |members| <= maxPlayers honest.
		return nil
	}
	r.members = append(r.members, connID)
	return nil
}

// Leave removes connID from the room, promoting the earliest-joined
// remaining member if the owner left, and destroys the room when it empties.
func (reg *Registry) Leave(name, connID string) (LeaveResult, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[name]
	if !exists {
		return LeaveResult{}, ErrRoomNotFound
	}
	if !r.removeMember(connID) {
		return LeaveResult{}, ErrNotAMember
	}

	var res LeaveResult
	if len(r.members) == 0 {
		delete(reg.rooms, name)
		res.Destroyed = true
		return res, nil
	}

	if r.Owner == connID {
		// Members are kept in join order, so index 0 is the earliest joiner.
		r.Owner = r.members[0]
		res.NewOwner = r.Owner
	}
	res.Remaining = append([]string(nil), r.members...)
	return res, nil
}

// Evict removes connID from the room without ownership succession. Only
// non-owners are ever evicted, so succession cannot apply; evicting the
// owner is rejected.
func (reg *Registry) Evict(name, connID string) ([]string, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[name]
	if !exists {
		return nil, ErrRoomNotFound
	}
	if r.Owner == connID {
		return nil, ErrNotAMember
	}
	if !r.removeMember(connID) {
		return nil, ErrNotAMember
	}
	return append([]string(nil), r.members...), nil
}

// Get returns a snapshot of the named room.
func (reg *Registry) Get(name string) (Info, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[name]
	if !exists {
		return Info{}, ErrRoomNotFound
	}
	return reg.snapshot(r), nil
}

// List returns summaries of every public room. Order is unspecified.
func (reg *Registry) List() []Summary {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	summaries := make([]Summary, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		if !r.Public {
			continue
		}
		summaries = append(summaries, Summary{
			Name:              r.Name,
			PasswordProtected: r.Password != "",
			CurrentPlayers:    len(r.members),
			MaxPlayers:        r.MaxPlayers,
		})
	}
	return summaries
}

// Members returns the join-ordered member snapshot of the named room.
func (reg *Registry) Members(name string) ([]string, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[name]
	if !exists {
		return nil, ErrRoomNotFound
	}
	return append([]string(nil), r.members...), nil
}

// Stats reports the number of live rooms and total memberships across them.
func (reg *Registry) Stats() (rooms, members int) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rooms = len(reg.rooms)
	for _, r := range reg.rooms {
		members += len(r.members)
	}
	return rooms, members
}

func (reg *Registry) snapshot(r *Room) Info {
	return Info{
		Name:              r.Name,
		Public:            r.Public,
		PasswordProtected: r.Password != "",
		MaxPlayers:        r.MaxPlayers,
		Owner:             r.Owner,
		Members:           append([]string(nil), r.members...),
	}
}
