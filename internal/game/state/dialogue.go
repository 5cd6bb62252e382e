package state

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/etherwake/mud/internal/game/session"
	"github.com/etherwake/mud/internal/game/world"
	"github.com/etherwake/mud/internal/render"
)

// DialogueState runs a conversation with an NPC. The NPC's dialogue tree is
// walked node by node; at each node the player picks a numbered response,
// and a response with no follow-up node ends the conversation. The
// conversation also ends, immediately, if the NPC leaves the room.
type DialogueState struct {
	session *session.Session
	graph   *world.Graph
	player  *world.Player
	npc     *world.NPC

	cursor   string
	leaveSub *world.Subscription
	// responses holds the choices pending at the current node, in display
	// order, so input numbers map back to follow-up nodes.
	responses []world.DialogueResponse
	ended     bool
}

var _ session.State = (*DialogueState)(nil)

// NewDialogueState creates a conversation with the given NPC.
//
// Precondition: npc.Dialogue must be non-nil.
func NewDialogueState(sess *session.Session, graph *world.Graph, player *world.Player, npc *world.NPC) *DialogueState {
	return &DialogueState{
		session: sess,
		graph:   graph,
		player:  player,
		npc:     npc,
		cursor:  npc.Dialogue.First,
	}
}

// OnStart watches for the NPC leaving mid-conversation and shows the first
// dialogue node.
func (s *DialogueState) OnStart() {
	if room := s.npc.Room(); room != nil {
		s.leaveSub = s.graph.SubscribeLeave(room, s.onLeave)
	}
	s.showNode()
}

// OnEnd drops the NPC-departure watch.
func (s *DialogueState) OnEnd() {
	s.graph.Unsubscribe(s.leaveSub)
	s.leaveSub = nil
}

// OnPause is a no-op; nothing stacks above a conversation.
func (s *DialogueState) OnPause() {}

// OnResume re-shows the current node.
func (s *DialogueState) OnResume() {
	s.showNode()
}

// onLeave force-ends the conversation when the NPC departs.
func (s *DialogueState) onLeave(ev world.LeaveEvent) {
	if ev.Actor == world.Actor(s.npc) {
		s.end()
	}
}

// HandleInput interprets the line as a 1-based response number. Anything
// that is not a number naming one of the pending responses re-shows the
// choices.
func (s *DialogueState) HandleInput(line string) {
	choice, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || choice < 1 || choice > len(s.responses) {
		render.Line(s.session, "Please choose one of the responses.")
		s.showNode()
		return
	}

	next := s.responses[choice-1].Next
	if next == "" {
		s.end()
		return
	}
	s.cursor = next
	s.showNode()
}

// showNode renders the current node's text and numbered responses. A node
// with no responses, or a dangling node reference, ends the conversation
// after the text is shown.
func (s *DialogueState) showNode() {
	node, ok := s.npc.Dialogue.Node(s.cursor)
	if !ok {
		s.end()
		return
	}

	render.BlankLine(s.session)
	render.TextColor(s.session, s.npc.Name()+": ", render.ThemeNPCName)
	render.Line(s.session, node.Text)

	if len(node.Responses) == 0 {
		s.end()
		return
	}

	s.responses = node.Responses
	for i, resp := range node.Responses {
		_ = s.session.WriteLine(fmt.Sprintf("%s%d. %s", render.Tab, i+1, resp.Text))
	}
}

// end shows the NPC's goodbye and pops the conversation off the stack. It
// is idempotent; the departure watch and a terminal node can both reach it.
func (s *DialogueState) end() {
	if s.ended {
		return
	}
	s.ended = true

	if s.npc.GoodbyeMsg != "" {
		render.Line(s.session, s.npc.GoodbyeMsg)
	}
	s.session.Pop()
}
