// Package world provides the shared game world graph: rooms, actors, ordered
// enter/leave events, and the lazy room store that populates the graph from
// persistent records.
package world

// Direction is one of the six movement directions between rooms.
type Direction string

// The six movement directions.
const (
	North Direction = "north"
	East  Direction = "east"
	South Direction = "south"
	West  Direction = "west"
	Up    Direction = "up"
	Down  Direction = "down"
)

// Directions lists the six movement directions in render order.
var Directions = []Direction{North, East, South, West, Up, Down}

// IsDirection reports whether s names one of the six movement directions.
func IsDirection(s string) bool {
	for _, d := range Directions {
		if Direction(s) == d {
			return true
		}
	}
	return false
}

// Room is a location in the game world. Identity is the stable Key; every
// reference to a given key resolves to the same Room instance for the
// process lifetime. All mutable state is guarded by the owning Graph.
type Room struct {
	// Key is the stable storage key identifying this room.
	Key string
	// Name is the short display name.
	Name string
	// Description is the prose shown when the room is rendered.
	Description string

	// actors is the ordered set of occupants. Guarded by the Graph mutex.
	actors []Actor
	// exits maps directions to destination rooms. Entries appear as the
	// store resolves them; navigation tolerates a still-absent exit.
	exits map[Direction]*Room
	// objects are the static objects present in the room.
	objects []*Object

	enterSubs []*Subscription
	leaveSubs []*Subscription

	// record is the backing storage record, kept until the store has
	// resolved the room's references.
	record *RoomRecord
}

// NewRoom creates an empty Room with the given identity.
//
// Precondition: key must be non-empty.
func NewRoom(key, name, description string) *Room {
	return &Room{
		Key:         key,
		Name:        name,
		Description: description,
		exits:       make(map[Direction]*Room),
	}
}

// EnterEvent describes an actor entering a room. PrevRoom is nil when the
// actor appeared from nowhere (login or spawn).
type EnterEvent struct {
	Room     *Room
	PrevRoom *Room
	Actor    Actor
}

// LeaveEvent describes an actor leaving a room. NextRoom is nil when the
// actor is not headed anywhere (logout or despawn).
type LeaveEvent struct {
	Room     *Room
	NextRoom *Room
	Actor    Actor
}

// EnterFunc observes enter events on a room.
type EnterFunc func(EnterEvent)

// LeaveFunc observes leave events on a room.
type LeaveFunc func(LeaveEvent)

// Subscription is a handle for a registered room event observer. Pass it to
// Graph.Unsubscribe to deregister.
type Subscription struct {
	room    *Room
	onEnter EnterFunc
	onLeave LeaveFunc
}
