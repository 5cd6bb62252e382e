package state

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/etherwake/mud/internal/game/command"
	"github.com/etherwake/mud/internal/game/session"
	"github.com/etherwake/mud/internal/game/world"
	"github.com/etherwake/mud/internal/render"
)

// RoomState is the in-world session state: it renders the player's current
// room, narrates other actors' arrivals and departures, and turns input
// lines into game verbs. A player in the world always has exactly one
// RoomState at the bottom of their stack; moving between rooms swaps it
// for a fresh RoomState bound to the destination.
type RoomState struct {
	session  *session.Session
	graph    *world.Graph
	resolver *command.Resolver
	player   *world.Player
	room     *world.Room
	logger   *zap.Logger

	enterSub *world.Subscription
	leaveSub *world.Subscription
}

var _ session.State = (*RoomState)(nil)

// NewRoomState binds a session to a room. The state does not place the
// player in the room; callers move the player through the graph and the
// state narrates what it observes.
func NewRoomState(sess *session.Session, graph *world.Graph, resolver *command.Resolver, player *world.Player, room *world.Room, logger *zap.Logger) *RoomState {
	return &RoomState{
		session:  sess,
		graph:    graph,
		resolver: resolver,
		player:   player,
		room:     room,
		logger:   logger,
	}
}

// OnStart subscribes to the room's enter and leave events and renders it.
func (s *RoomState) OnStart() {
	s.subscribe()
	s.renderRoom()
}

// OnEnd drops the room subscriptions.
func (s *RoomState) OnEnd() {
	s.unsubscribe()
}

// OnPause drops the room subscriptions; a paused player does not see room
// traffic.
func (s *RoomState) OnPause() {
	s.unsubscribe()
}

// OnResume re-subscribes and re-renders the room.
func (s *RoomState) OnResume() {
	s.subscribe()
	s.renderRoom()
}

func (s *RoomState) subscribe() {
	s.enterSub = s.graph.SubscribeEnter(s.room, s.onEnter)
	s.leaveSub = s.graph.SubscribeLeave(s.room, s.onLeave)
}

func (s *RoomState) unsubscribe() {
	s.graph.Unsubscribe(s.enterSub)
	s.graph.Unsubscribe(s.leaveSub)
	s.enterSub, s.leaveSub = nil, nil
}

// onEnter narrates another actor's arrival. The player's own arrival is
// rendered by the fresh RoomState's OnStart, not here.
func (s *RoomState) onEnter(ev world.EnterEvent) {
	if ev.Actor == world.Actor(s.player) {
		return
	}
	if ev.PrevRoom != nil {
		render.Line(s.session, fmt.Sprintf("%s arrived from %s.", ev.Actor.Name(), ev.PrevRoom.Name))
	} else {
		render.Line(s.session, fmt.Sprintf("%s has arrived from the ether.", ev.Actor.Name()))
	}
}

// onLeave narrates another actor's departure. The player's own departure
// swaps this state for a RoomState bound to the destination.
func (s *RoomState) onLeave(ev world.LeaveEvent) {
	if ev.Actor == world.Actor(s.player) {
		if ev.NextRoom != nil {
			s.session.Pop()
			s.session.Push(NewRoomState(s.session, s.graph, s.resolver, s.player, ev.NextRoom, s.logger))
		}
		return
	}
	if ev.NextRoom != nil {
		render.Line(s.session, fmt.Sprintf("%s left for %s.", ev.Actor.Name(), ev.NextRoom.Name))
	} else {
		render.Line(s.session, fmt.Sprintf("%s poofed out of existence.", ev.Actor.Name()))
	}
}

// HandleInput tokenizes the line and dispatches the resolved verb.
func (s *RoomState) HandleInput(line string) {
	tokens := command.Tokenize(line)
	if len(tokens) == 0 {
		return
	}

	verb, suggestions, ok := s.resolver.Resolve(strings.ToLower(tokens[0]))
	if !ok {
		render.Line(s.session, "I don't recognize that command.")
		if len(suggestions) > 0 {
			render.Line(s.session, "Did you mean one of the following?")
			for _, suggestion := range suggestions {
				_ = s.session.WriteLine(render.Tab + suggestion)
			}
		}
		return
	}

	args := tokens[1:]
	switch verb {
	case command.VerbNorth, command.VerbEast, command.VerbSouth, command.VerbWest, command.VerbUp, command.VerbDown:
		s.move(world.Direction(verb))
	case command.VerbLook:
		s.look(args)
	case command.VerbTalk:
		s.talk(args)
	case command.VerbSay:
		s.say(args)
	case command.VerbEmote:
		s.emote(args)
	case command.VerbQuit:
		render.Line(s.session, "Goodbye.")
		s.session.Disconnect()
	}
}

func (s *RoomState) move(dir world.Direction) {
	if !s.graph.MoveInDirection(s.player, dir) {
		render.Line(s.session, "You can't move in that direction.")
	}
}

// look with no target re-renders the room; with a target it shows the
// description of a matching NPC or object.
func (s *RoomState) look(args []string) {
	if len(args) == 0 {
		s.renderRoom()
		return
	}

	term := strings.Join(args, " ")
	if npc := s.graph.FindNPC(s.room, term); npc != nil {
		render.LineColor(s.session, npc.Name(), render.ThemeNPCName)
		render.Line(s.session, npc.Description())
		return
	}
	if obj := s.graph.FindObject(s.room, term); obj != nil {
		render.LineColor(s.session, obj.Name, render.ThemeItemName)
		render.Line(s.session, obj.Description)
		return
	}
	render.Line(s.session, "You don't see that here.")
}

func (s *RoomState) talk(args []string) {
	if len(args) == 0 {
		render.Line(s.session, "Talk to whom?")
		return
	}

	term := strings.Join(args, " ")
	npc := s.graph.FindNPC(s.room, term)
	if npc == nil {
		render.Line(s.session, "There's no one here by that name.")
		return
	}
	if npc.Dialogue == nil {
		render.Line(s.session, fmt.Sprintf("%s has nothing to say.", npc.Name()))
		return
	}
	s.session.Push(NewDialogueState(s.session, s.graph, s.player, npc))
}

func (s *RoomState) say(args []string) {
	if len(args) == 0 {
		render.Line(s.session, "Say what?")
		return
	}
	message := strings.Join(args, " ")
	render.Line(s.session, fmt.Sprintf("You say, %q.", message))
	s.graph.Say(s.player, message)
}

func (s *RoomState) emote(args []string) {
	if len(args) == 0 {
		render.Line(s.session, "Emote what?")
		return
	}
	s.graph.Emote(s.player, strings.Join(args, " "))
}

// renderRoom writes the full room display: a banner with the room name,
// the description, and the players, exits, NPCs, and objects present.
func (s *RoomState) renderRoom() {
	view := s.graph.View(s.room)

	render.BlankLine(s.session)
	render.LineColor(s.session, banner(view.Name), render.ThemeLocation)
	render.Line(s.session, view.Description)

	others := make([]string, 0, len(view.Players))
	for _, name := range view.Players {
		if name == s.player.Name() {
			continue
		}
		others = append(others, name)
	}
	if len(others) > 0 {
		render.BlankLine(s.session)
		render.Line(s.session, "Players:")
		for _, name := range others {
			_ = s.session.WriteLine(render.Tab + name)
		}
	}

	if len(view.Exits) > 0 {
		render.BlankLine(s.session)
		render.Line(s.session, "Exits:")
		for _, exit := range view.Exits {
			_ = s.session.WriteLine(fmt.Sprintf("%s%s: %s", render.Tab, exit.Direction, exit.RoomName))
		}
	}

	for _, name := range view.NPCs {
		render.LineColor(s.session, "* "+name, render.ThemeNPCName)
	}
	for _, name := range view.Objects {
		render.LineColor(s.session, "* "+name, render.ThemeItemName)
	}
}

// banner frames a room name in a line of '=' padding out to the full line
// width, e.g. "[==== The Void ====]".
func banner(name string) string {
	decor := (render.LineWidth - utf8.RuneCountInString(name) - 4) / 2
	if decor < 1 {
		decor = 1
	}
	pad := strings.Repeat("=", decor)
	return fmt.Sprintf("[%s %s %s]", pad, name, pad)
}
