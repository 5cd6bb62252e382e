package world

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/etherwake/mud/internal/render"
)

// Graph owns all mutable world state. Every structural mutation — actor
// placement and removal, exit resolution, object population, observer
// registration — is serialized through the Graph's single mutex, so no
// session ever observes a half-completed move. Actor room pointers are
// additionally published atomically, so Actor.Room needs no lock.
//
// Enter/leave observers run synchronously in the mutating goroutine, after
// the structural mutation has fully completed and the mutex is released.
// Observers may therefore call back into the Graph (subscribe, render a
// snapshot, trigger another move) without deadlocking.
type Graph struct {
	mu     sync.Mutex
	logger *zap.Logger
}

// NewGraph creates an empty world graph.
//
// Precondition: logger must be non-nil.
func NewGraph(logger *zap.Logger) *Graph {
	return &Graph{logger: logger}
}

// AddActor places an actor in a room, detaching it from its previous room
// first. Both structural mutations complete atomically; afterwards the leave
// event fires on the old room (with NextRoom set to the new room), then the
// enter event fires on the new room (with PrevRoom set to the old room).
// An actor with no previous room fires only the enter event, with a nil
// PrevRoom.
//
// Precondition: room and a must be non-nil.
func (g *Graph) AddActor(room *Room, a Actor) {
	g.mu.Lock()

	st := a.base()
	prev := st.room.Load()
	if prev != nil {
		prev.detachActor(a)
	} else if st.departed != nil {
		// A preceding RemoveActor with a destination deferred its leave
		// event to this call.
		prev = st.departed
		st.departed = nil
	}

	st.room.Store(room)
	room.actors = append(room.actors, a)

	g.mu.Unlock()

	if prev != nil {
		for _, sub := range g.leaveObservers(prev) {
			sub.onLeave(LeaveEvent{Room: prev, NextRoom: room, Actor: a})
		}
	}
	for _, sub := range g.enterObservers(room) {
		sub.onEnter(EnterEvent{Room: room, PrevRoom: prev, Actor: a})
	}
}

// RemoveActor detaches an actor from a room and clears its room reference.
// With a nil next room (logout, despawn) the leave event fires immediately
// with no destination. With next set, the leave event is deferred to the
// subsequent AddActor call on the destination, which guarantees
// leave-before-enter ordering with the destination known to observers and
// avoids a double leave emission.
//
// Removing an actor that is not in the room is a no-op.
func (g *Graph) RemoveActor(room *Room, a Actor, next *Room) {
	g.mu.Lock()

	if !room.detachActor(a) {
		g.mu.Unlock()
		return
	}
	st := a.base()
	st.room.Store(nil)
	if next != nil {
		st.departed = room
	}

	g.mu.Unlock()

	if next == nil {
		for _, sub := range g.leaveObservers(room) {
			sub.onLeave(LeaveEvent{Room: room, NextRoom: nil, Actor: a})
		}
	}
}

// detachActor removes a from the room's actor set. Caller holds the mutex.
// Returns false if the actor was not present.
func (r *Room) detachActor(a Actor) bool {
	for i, occupant := range r.actors {
		if occupant == a {
			r.actors = append(r.actors[:i], r.actors[i+1:]...)
			return true
		}
	}
	return false
}

// MoveInDirection moves the actor through the named exit of its current
// room. Returns false if the actor has no room, the direction has no exit,
// or the exit has not been resolved yet.
func (g *Graph) MoveInDirection(a Actor, dir Direction) bool {
	g.mu.Lock()
	room := a.base().room.Load()
	var target *Room
	if room != nil {
		target = room.exits[dir]
	}
	g.mu.Unlock()

	if target == nil {
		return false
	}
	g.AddActor(target, a)
	return true
}

// SubscribeEnter registers an observer for a room's enter events.
//
// Postcondition: Returns a non-nil Subscription for Unsubscribe.
func (g *Graph) SubscribeEnter(room *Room, fn EnterFunc) *Subscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub := &Subscription{room: room, onEnter: fn}
	room.enterSubs = append(room.enterSubs, sub)
	return sub
}

// SubscribeLeave registers an observer for a room's leave events.
//
// Postcondition: Returns a non-nil Subscription for Unsubscribe.
func (g *Graph) SubscribeLeave(room *Room, fn LeaveFunc) *Subscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub := &Subscription{room: room, onLeave: fn}
	room.leaveSubs = append(room.leaveSubs, sub)
	return sub
}

// Unsubscribe deregisters a previously registered observer. Unsubscribing
// twice is a no-op.
func (g *Graph) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	room := sub.room
	if sub.onEnter != nil {
		for i, s := range room.enterSubs {
			if s == sub {
				room.enterSubs = append(room.enterSubs[:i], room.enterSubs[i+1:]...)
				break
			}
		}
	}
	if sub.onLeave != nil {
		for i, s := range room.leaveSubs {
			if s == sub {
				room.leaveSubs = append(room.leaveSubs[:i], room.leaveSubs[i+1:]...)
				break
			}
		}
	}
}

// enterObservers snapshots a room's enter observers for dispatch.
func (g *Graph) enterObservers(room *Room) []*Subscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	subs := make([]*Subscription, len(room.enterSubs))
	copy(subs, room.enterSubs)
	return subs
}

// leaveObservers snapshots a room's leave observers for dispatch.
func (g *Graph) leaveObservers(room *Room) []*Subscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	subs := make([]*Subscription, len(room.leaveSubs))
	copy(subs, room.leaveSubs)
	return subs
}

// Broadcast sends a message to every actor in the room with a live session,
// in actor-set order. Delivery is best-effort; a failed write is logged and
// skipped, never retried.
func (g *Graph) Broadcast(room *Room, message string) {
	g.BroadcastExceptTo(room, nil, message)
}

// BroadcastExceptTo broadcasts to every actor in the room except the
// excluded one.
func (g *Graph) BroadcastExceptTo(room *Room, excluded Actor, message string) {
	g.mu.Lock()
	sinks := make([]Sink, 0, len(room.actors))
	for _, a := range room.actors {
		if a == excluded {
			continue
		}
		if out := a.Sink(); out != nil && out.Alive() {
			sinks = append(sinks, out)
		}
	}
	g.mu.Unlock()

	for _, out := range sinks {
		if err := out.WriteLine(render.Wrap(message, render.LineWidth)); err != nil {
			g.logger.Debug("broadcast write failed", zap.Error(err))
		}
	}
}

// Say broadcasts a quoted message from the actor to everyone else in its
// room. The speaking actor renders its own echo.
func (g *Graph) Say(a Actor, message string) {
	room := g.roomOf(a)
	if room == nil {
		return
	}
	g.BroadcastExceptTo(room, a, fmt.Sprintf("%s says, %q", a.Name(), message))
}

// Emote broadcasts a free-form action line from the actor to everyone in
// its room, the actor included.
func (g *Graph) Emote(a Actor, action string) {
	room := g.roomOf(a)
	if room == nil {
		return
	}
	g.Broadcast(room, fmt.Sprintf("%s %s", a.Name(), action))
}

func (g *Graph) roomOf(a Actor) *Room {
	return a.base().room.Load()
}

// SetExit assigns a resolved destination to one of the room's exits.
func (g *Graph) SetExit(room *Room, dir Direction, target *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room.exits[dir] = target
}

// Exit returns the destination of the room's exit in the given direction,
// or (nil, false) if the exit is absent or not yet resolved.
func (g *Graph) Exit(room *Room, dir Direction) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	target, ok := room.exits[dir]
	return target, ok && target != nil
}

// AddObject places a static object in the room.
func (g *Graph) AddObject(room *Room, obj *Object) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room.objects = append(room.objects, obj)
}

// Occupants returns a snapshot of the room's actor set, in order.
func (g *Graph) Occupants(room *Room) []Actor {
	g.mu.Lock()
	defer g.mu.Unlock()
	actors := make([]Actor, len(room.actors))
	copy(actors, room.actors)
	return actors
}

// FindNPC returns the first NPC in the room whose name contains the term,
// case-insensitively, or nil.
func (g *Graph) FindNPC(room *Room, term string) *NPC {
	term = strings.ToLower(strings.TrimSpace(term))
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, a := range room.actors {
		if npc, ok := a.(*NPC); ok {
			if strings.Contains(strings.ToLower(npc.Name()), term) {
				return npc
			}
		}
	}
	return nil
}

// FindObject returns the first object in the room whose name contains the
// term, case-insensitively, or nil.
func (g *Graph) FindObject(room *Room, term string) *Object {
	term = strings.ToLower(strings.TrimSpace(term))
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, obj := range room.objects {
		if strings.Contains(strings.ToLower(obj.Name), term) {
			return obj
		}
	}
	return nil
}

// ExitView is one resolved exit in a room snapshot.
type ExitView struct {
	Direction Direction
	RoomName  string
}

// RoomView is a consistent snapshot of a room for rendering. It is taken
// under the graph mutex so it never shows a half-completed move.
type RoomView struct {
	Name        string
	Description string
	Players     []string
	NPCs        []string
	Exits       []ExitView
	Objects     []string
}

// View snapshots the room for rendering. Exits appear in fixed direction
// order; players and NPCs in actor-set order.
func (g *Graph) View(room *Room) RoomView {
	g.mu.Lock()
	defer g.mu.Unlock()

	view := RoomView{
		Name:        room.Name,
		Description: room.Description,
	}
	for _, a := range room.actors {
		switch a.(type) {
		case *Player:
			view.Players = append(view.Players, a.Name())
		case *NPC:
			view.NPCs = append(view.NPCs, a.Name())
		}
	}
	for _, dir := range Directions {
		if target, ok := room.exits[dir]; ok && target != nil {
			view.Exits = append(view.Exits, ExitView{Direction: dir, RoomName: target.Name})
		}
	}
	for _, obj := range room.objects {
		view.Objects = append(view.Objects, obj.Name)
	}
	return view
}
