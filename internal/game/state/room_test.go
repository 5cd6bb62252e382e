package state

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/etherwake/mud/internal/game/session"
	"github.com/etherwake/mud/internal/game/world"
)

func TestRoomState_RendersRoomOnStart(t *testing.T) {
	f := newWorldFixture()

	out := f.conn.dump()
	assert.Contains(t, out, "Room A")
	assert.Contains(t, out, "A quiet room.")
	assert.Contains(t, out, "Exits:")
	assert.Contains(t, out, "north: Room B")
	assert.NotContains(t, out, "Players:", "the player does not list itself")
}

func TestRoomState_UnknownCommand(t *testing.T) {
	f := newWorldFixture()
	f.conn.reset()

	f.state.HandleInput("dance")

	assert.Contains(t, f.conn.dump(), "I don't recognize that command.")
}

func TestRoomState_AmbiguousCommandSuggests(t *testing.T) {
	f := newWorldFixture()
	f.conn.reset()

	// "ta" prefixes only "talk" in the default vocabulary, so use a word
	// with no match at all and one with several.
	f.state.HandleInput("zz")
	assert.NotContains(t, f.conn.dump(), "Did you mean")

	f.conn.reset()
	f.state.HandleInput("lo")
	// "lo" prefixes only "look": resolves, no suggestion needed.
	assert.NotContains(t, f.conn.dump(), "Did you mean")
}

func TestRoomState_MoveSwapsRoomState(t *testing.T) {
	f := newWorldFixture()
	f.conn.reset()

	f.state.HandleInput("north")

	assert.Equal(t, f.roomB, f.player.Room())
	assert.Equal(t, 1, f.session.Depth())
	assert.NotSame(t, f.state, f.session.Current(), "a fresh room state replaces the old one")
	assert.Contains(t, f.conn.dump(), "Room B")
}

func TestRoomState_MoveAlias(t *testing.T) {
	f := newWorldFixture()

	f.state.HandleInput("n")

	assert.Equal(t, f.roomB, f.player.Room())
}

func TestRoomState_BlockedMove(t *testing.T) {
	f := newWorldFixture()
	f.conn.reset()

	f.state.HandleInput("west")

	assert.Equal(t, f.roomA, f.player.Room())
	assert.Contains(t, f.conn.dump(), "You can't move in that direction.")
}

func TestRoomState_ArrivalAndDepartureNotices(t *testing.T) {
	f := newWorldFixture()

	bobConn := newTestConn()
	bobSess := session.New(bobConn, zap.NewNop())
	bob := world.NewPlayer(2, "bob", bobSess)

	f.conn.reset()
	f.graph.AddActor(f.roomB, bob)
	f.graph.AddActor(f.roomA, bob)
	assert.Contains(t, f.conn.dump(), "bob arrived from Room B.")

	f.conn.reset()
	f.graph.AddActor(f.roomB, bob)
	assert.Contains(t, f.conn.dump(), "bob left for Room B.")

	f.conn.reset()
	f.graph.RemoveActor(f.roomB, bob, nil)
	assert.Empty(t, f.conn.dump(), "no notice for another room's traffic")
}

func TestRoomState_EtherNotices(t *testing.T) {
	f := newWorldFixture()

	bob := world.NewPlayer(2, "bob", nil)
	f.conn.reset()
	f.graph.AddActor(f.roomA, bob)
	assert.Contains(t, f.conn.dump(), "bob has arrived from the ether.")

	f.conn.reset()
	f.graph.RemoveActor(f.roomA, bob, nil)
	assert.Contains(t, f.conn.dump(), "bob poofed out of existence.")
}

func TestRoomState_Say(t *testing.T) {
	f := newWorldFixture()

	bobConn := newTestConn()
	bobSess := session.New(bobConn, zap.NewNop())
	bob := world.NewPlayer(2, "bob", bobSess)
	f.graph.AddActor(f.roomA, bob)
	f.conn.reset()

	f.state.HandleInput(`say hello there`)

	assert.Contains(t, f.conn.dump(), `You say, "hello there".`)
	assert.Contains(t, bobConn.dump(), `alice says, "hello there"`)
}

func TestRoomState_Emote(t *testing.T) {
	f := newWorldFixture()
	f.conn.reset()

	f.state.HandleInput("emote waves.")

	assert.Contains(t, f.conn.dump(), "alice waves.")
}

func TestRoomState_LookAtNPC(t *testing.T) {
	f := newWorldFixture()
	cat := world.NewNPC("cat", "a stray cat", "Thin and watchful.")
	f.graph.AddActor(f.roomA, cat)
	f.conn.reset()

	f.state.HandleInput("look cat")
	assert.Contains(t, f.conn.dump(), "Thin and watchful.")

	f.conn.reset()
	f.state.HandleInput("look unicorn")
	assert.Contains(t, f.conn.dump(), "You don't see that here.")
}

func TestRoomState_LookAtObject(t *testing.T) {
	f := newWorldFixture()
	f.graph.AddObject(f.roomA, &world.Object{
		Key: "lantern", Name: "a lantern", Description: "It burns without fuel.",
	})
	f.conn.reset()

	f.state.HandleInput("look lantern")
	assert.Contains(t, f.conn.dump(), "It burns without fuel.")
}

func TestRoomState_TalkRequiresDialogue(t *testing.T) {
	f := newWorldFixture()
	cat := world.NewNPC("cat", "a stray cat", "")
	f.graph.AddActor(f.roomA, cat)
	f.conn.reset()

	f.state.HandleInput("talk cat")
	assert.Contains(t, f.conn.dump(), "a stray cat has nothing to say.")
	assert.Equal(t, 1, f.session.Depth())

	f.conn.reset()
	f.state.HandleInput("talk nobody")
	assert.Contains(t, f.conn.dump(), "There's no one here by that name.")
}

func TestRoomState_Quit(t *testing.T) {
	f := newWorldFixture()
	f.conn.reset()

	f.state.HandleInput("quit")

	assert.Contains(t, f.conn.dump(), "Goodbye.")
	assert.False(t, f.session.Alive())
	assert.Zero(t, f.session.Depth())
}

func TestRoomState_PauseStopsNotices(t *testing.T) {
	f := newWorldFixture()

	// Simulate another state stacking on top of the room state.
	f.state.OnPause()
	f.conn.reset()

	bob := world.NewPlayer(2, "bob", nil)
	f.graph.AddActor(f.roomA, bob)
	assert.Empty(t, f.conn.dump())

	f.state.OnResume()
	require.Contains(t, f.conn.dump(), "Room A", "resume re-renders the room")
}

func TestBanner_MultibyteNameCountsRunes(t *testing.T) {
	// "Café" and "Cafe" hold the same number of runes, so their banners
	// must match in visual width.
	multibyte := banner("Café")
	ascii := banner("Cafe")
	assert.True(t, utf8.ValidString(multibyte))
	assert.Equal(t, utf8.RuneCountInString(ascii), utf8.RuneCountInString(multibyte))
}
