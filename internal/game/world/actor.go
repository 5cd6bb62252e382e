package world

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Sink receives rendered output for a connected player. Broadcast delivery is
// best-effort: a failed write never blocks delivery to other actors.
type Sink interface {
	Write(data []byte) error
	WriteLine(text string) error
	// Alive reports whether the underlying session can still receive output.
	Alive() bool
}

// Actor is an occupant of a room: a connected Player or an NPC. An actor is
// present in at most one room at a time, and that room's actor set agrees
// with the actor's room reference.
type Actor interface {
	// ID uniquely identifies the actor for the lifetime of the process.
	ID() string
	// Name is the display name shown to other actors.
	Name() string
	// Description is shown when the actor is looked at.
	Description() string
	// Room returns the room the actor currently occupies, or nil. Safe to
	// call from any goroutine.
	Room() *Room
	// Sink returns the actor's output sink, or nil for actors without a
	// connected session.
	Sink() Sink

	base() *actorBase
}

// actorBase holds the placement state shared by Player and NPC. The room
// pointer is published atomically so the scripting and storage goroutines
// can read an actor's position without the Graph's mutex; all writes, and
// the departed field, remain serialized by that mutex.
type actorBase struct {
	room atomic.Pointer[Room]
	// departed remembers the room the actor was silently detached from when
	// the leave event is deferred to the next AddActor call.
	departed *Room
}

func (b *actorBase) base() *actorBase { return b }

// Player is a human-controlled actor bound to a connected session.
type Player struct {
	actorBase

	id       string
	username string
	// AccountID is the backing account's database ID, used to persist the
	// player's last room on logout.
	AccountID int64

	out Sink
}

// NewPlayer creates a Player for the given account, bound to the session
// output sink.
//
// Precondition: username must be non-empty; out must be non-nil.
// Postcondition: Returns a Player with a fresh unique ID and no room.
func NewPlayer(accountID int64, username string, out Sink) *Player {
	return &Player{
		id:        uuid.NewString(),
		username:  username,
		AccountID: accountID,
		out:       out,
	}
}

// ID returns the player's session-unique identifier.
func (p *Player) ID() string { return p.id }

// Name returns the player's display name (the account username).
func (p *Player) Name() string { return p.username }

// Description returns the player's description. Players have none.
func (p *Player) Description() string { return "" }

// Room returns the room the player currently occupies, or nil.
func (p *Player) Room() *Room { return p.room.Load() }

// Sink returns the player's session output sink.
func (p *Player) Sink() Sink { return p.out }

// NPC is a scripted, non-player actor. It may carry a dialogue tree players
// can converse with and a behavior script reference.
type NPC struct {
	actorBase

	// Key is the stable storage key identifying this NPC kind.
	Key         string
	name        string
	description string

	// Dialogue is the NPC's conversation tree, or nil if it has none.
	Dialogue *DialogueTree
	// GoodbyeMsg is shown when a conversation with this NPC ends.
	GoodbyeMsg string
	// Script is an opaque behavior-script reference, empty for none.
	Script string
}

// NewNPC creates an NPC with the given stable key, name, and description.
//
// Precondition: key must be non-empty.
func NewNPC(key, name, description string) *NPC {
	return &NPC{
		Key:         key,
		name:        name,
		description: description,
	}
}

// ID returns the NPC's stable storage key.
func (n *NPC) ID() string { return n.Key }

// Name returns the NPC's display name.
func (n *NPC) Name() string { return n.name }

// Description returns the NPC's description.
func (n *NPC) Description() string { return n.description }

// Room returns the room the NPC currently occupies, or nil.
func (n *NPC) Room() *Room { return n.room.Load() }

// Sink returns nil; NPCs have no session.
func (n *NPC) Sink() Sink { return nil }

// Object is a static, non-actor thing in a room that players can look at.
type Object struct {
	// Key is the stable storage key identifying this object.
	Key         string
	Name        string
	Description string
	// Script is an opaque behavior-script reference, empty for none.
	Script string
}
