package scripting

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/etherwake/mud/internal/game/world"
)

// recordingSink captures broadcast lines. The tick loop delivers from its
// own goroutine, so access is locked.
type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSink) Write(data []byte) error { return nil }

func (s *recordingSink) WriteLine(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, text)
	return nil
}

func (s *recordingSink) Alive() bool { return true }

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// scriptFixture builds a two-room graph with a scripted NPC in roomA and a
// listening player beside it.
type scriptFixture struct {
	graph  *world.Graph
	roomA  *world.Room
	roomB  *world.Room
	npc    *world.NPC
	sink   *recordingSink
	runner *Runner
	dir    string
}

func newScriptFixture(t *testing.T, script string) *scriptFixture {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "behavior.lua"), []byte(script), 0644))

	graph := world.NewGraph(zap.NewNop())
	roomA := world.NewRoom("lighthouse", "The Lighthouse", "Salt wind and gull cries.")
	roomB := world.NewRoom("jetty", "The Jetty", "Weathered planks over dark water.")
	graph.SetExit(roomA, world.North, roomB)
	graph.SetExit(roomB, world.South, roomA)

	npc := world.NewNPC("keeper", "the keeper", "A stooped figure in oilskins.")
	npc.Script = "behavior.lua"
	graph.AddActor(roomA, npc)

	sink := &recordingSink{}
	player := world.NewPlayer(1, "alice", sink)
	graph.AddActor(roomA, player)

	runner := NewRunner(graph, dir, 0, time.Minute, zap.NewNop())
	t.Cleanup(func() {
		runner.mu.Lock()
		for id, as := range runner.actors {
			as.L.Close()
			delete(runner.actors, id)
		}
		runner.mu.Unlock()
	})
	return &scriptFixture{graph: graph, roomA: roomA, roomB: roomB, npc: npc, sink: sink, runner: runner, dir: dir}
}

func TestRunner_AttachWithoutScriptIsNoop(t *testing.T) {
	fix := newScriptFixture(t, `-- unused`)
	silent := world.NewNPC("cat", "a stray cat", "It ignores you.")
	require.NoError(t, fix.runner.Attach(silent))
	assert.Empty(t, fix.runner.actors)
}

func TestRunner_AttachMissingScriptFile(t *testing.T) {
	fix := newScriptFixture(t, `-- unused`)
	ghost := world.NewNPC("ghost", "a ghost", "Translucent.")
	ghost.Script = "nonexistent.lua"
	assert.Error(t, fix.runner.Attach(ghost))
}

func TestRunner_AttachBrokenScript(t *testing.T) {
	fix := newScriptFixture(t, `this is not lua`)
	assert.Error(t, fix.runner.Attach(fix.npc))
	assert.Empty(t, fix.runner.actors)
}

func TestRunner_TickCallsHook(t *testing.T) {
	fix := newScriptFixture(t, `
		count = 0
		function on_tick()
			count = count + 1
			mud.say("tick " .. count)
		end
	`)
	require.NoError(t, fix.runner.Attach(fix.npc))

	fix.runner.tick()
	fix.runner.tick()

	lines := fix.sink.all()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `tick 1`)
	assert.Contains(t, lines[1], `tick 2`)
}

func TestRunner_ScriptWithoutHookIsSkipped(t *testing.T) {
	fix := newScriptFixture(t, `local x = 1`)
	require.NoError(t, fix.runner.Attach(fix.npc))
	fix.runner.tick()
	assert.Empty(t, fix.sink.all())
}

func TestRunner_MudMove(t *testing.T) {
	fix := newScriptFixture(t, `
		function on_tick()
			moved = mud.move("north")
			blocked = mud.move("east")
		end
	`)
	require.NoError(t, fix.runner.Attach(fix.npc))

	fix.runner.tick()

	assert.Equal(t, fix.roomB, fix.npc.Room())
	as := fix.runner.actors[fix.npc.ID()]
	require.NotNil(t, as)
	assert.Equal(t, "true", as.L.GetGlobal("moved").String())
	assert.Equal(t, "false", as.L.GetGlobal("blocked").String())
}

func TestRunner_MudMoveRejectsBadDirection(t *testing.T) {
	fix := newScriptFixture(t, `
		function on_tick()
			moved = mud.move("sideways")
		end
	`)
	require.NoError(t, fix.runner.Attach(fix.npc))

	fix.runner.tick()

	assert.Equal(t, fix.roomA, fix.npc.Room())
	as := fix.runner.actors[fix.npc.ID()]
	assert.Equal(t, "false", as.L.GetGlobal("moved").String())
}

func TestRunner_MudRoomAndExits(t *testing.T) {
	fix := newScriptFixture(t, `
		function on_tick()
			here = mud.room()
			local ex = mud.exits()
			first = ex[1]
			n = #ex
		end
	`)
	require.NoError(t, fix.runner.Attach(fix.npc))

	fix.runner.tick()

	as := fix.runner.actors[fix.npc.ID()]
	assert.Equal(t, "lighthouse", as.L.GetGlobal("here").String())
	assert.Equal(t, "north", as.L.GetGlobal("first").String())
	assert.Equal(t, "1", as.L.GetGlobal("n").String())
}

func TestRunner_MudEmote(t *testing.T) {
	fix := newScriptFixture(t, `
		function on_tick()
			mud.emote("polishes the great lens.")
		end
	`)
	require.NoError(t, fix.runner.Attach(fix.npc))

	fix.runner.tick()

	lines := fix.sink.all()
	require.Len(t, lines, 1)
	assert.Equal(t, "the keeper polishes the great lens.", lines[0])
}

func TestRunner_MudRandomInRange(t *testing.T) {
	fix := newScriptFixture(t, `
		function on_tick()
			ok = true
			for i = 1, 50 do
				local v = mud.random(4)
				if v < 1 or v > 4 then ok = false end
			end
		end
	`)
	require.NoError(t, fix.runner.Attach(fix.npc))

	fix.runner.tick()

	as := fix.runner.actors[fix.npc.ID()]
	assert.Equal(t, "true", as.L.GetGlobal("ok").String())
}

func TestRunner_RunawayHookDoesNotStallTick(t *testing.T) {
	fix := newScriptFixture(t, `
		function on_tick()
			while true do end
		end
	`)
	fix.runner.instLimit = 1000
	require.NoError(t, fix.runner.Attach(fix.npc))

	done := make(chan struct{})
	go func() {
		fix.runner.tick()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tick did not return; instruction limit failed to fire")
	}
}

func TestRunner_HookErrorKeepsScriptAttached(t *testing.T) {
	fix := newScriptFixture(t, `
		calls = 0
		function on_tick()
			calls = calls + 1
			error("boom")
		end
	`)
	require.NoError(t, fix.runner.Attach(fix.npc))

	fix.runner.tick()
	fix.runner.tick()

	as := fix.runner.actors[fix.npc.ID()]
	require.NotNil(t, as, "script should stay attached after a hook error")
	assert.Equal(t, "2", as.L.GetGlobal("calls").String())
}

func TestRunner_ReattachReplacesVM(t *testing.T) {
	fix := newScriptFixture(t, `marker = "first"`)
	require.NoError(t, fix.runner.Attach(fix.npc))

	require.NoError(t, os.WriteFile(filepath.Join(fix.dir, "behavior.lua"), []byte(`marker = "second"`), 0644))
	require.NoError(t, fix.runner.Attach(fix.npc))

	require.Len(t, fix.runner.actors, 1)
	as := fix.runner.actors[fix.npc.ID()]
	assert.Equal(t, "second", as.L.GetGlobal("marker").String())
}

func TestRunner_Detach(t *testing.T) {
	fix := newScriptFixture(t, `function on_tick() mud.say("hi") end`)
	require.NoError(t, fix.runner.Attach(fix.npc))

	fix.runner.Detach(fix.npc)
	fix.runner.tick()

	assert.Empty(t, fix.runner.actors)
	assert.Empty(t, fix.sink.all())
}

func TestRunner_StartStop(t *testing.T) {
	fix := newScriptFixture(t, `
		function on_tick()
			mud.emote("stirs.")
		end
	`)
	fix.runner.interval = 10 * time.Millisecond
	require.NoError(t, fix.runner.Attach(fix.npc))

	errCh := make(chan error, 1)
	go func() { errCh <- fix.runner.Start() }()

	assert.Eventually(t, func() bool {
		return len(fix.sink.all()) > 0
	}, 2*time.Second, 10*time.Millisecond)

	fix.runner.Stop()
	require.NoError(t, <-errCh)
	assert.Empty(t, fix.runner.actors)
}
