package scripting

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/etherwake/mud/internal/game/world"
)

// tickHook is the Lua global each behavior script may define. It is called
// once per tick with no arguments.
const tickHook = "on_tick"

// DefaultTickInterval is how often attached scripts run when no interval is
// configured.
const DefaultTickInterval = 10 * time.Second

// Runner drives NPC behavior scripts. Each attached NPC owns its own
// sandboxed LState, so a runaway or broken script only ever affects its
// own actor. Hook errors are logged and the script stays attached;
// isolation is per call, not per lifetime.
type Runner struct {
	graph      *world.Graph
	scriptsDir string
	instLimit  int
	interval   time.Duration
	logger     *zap.Logger

	mu     sync.Mutex
	actors map[string]*actorScript

	stop chan struct{}
	done chan struct{}
}

// actorScript is one NPC's live VM. The Runner's tick loop is the only
// goroutine that executes it after Attach returns.
type actorScript struct {
	npc *world.NPC
	L   *lua.LState
}

// NewRunner creates a Runner loading scripts from scriptsDir.
//
// Precondition: graph and logger must be non-nil. instLimit bounds each
// hook call; 0 uses DefaultInstructionLimit. interval is the tick period;
// 0 uses DefaultTickInterval.
func NewRunner(graph *world.Graph, scriptsDir string, instLimit int, interval time.Duration, logger *zap.Logger) *Runner {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Runner{
		graph:      graph,
		scriptsDir: scriptsDir,
		instLimit:  instLimit,
		interval:   interval,
		logger:     logger,
		actors:     make(map[string]*actorScript),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Attach loads the NPC's behavior script into a fresh sandboxed VM and
// registers it for ticking. An NPC with no script is a no-op.
//
// Precondition: npc must be non-nil.
// Postcondition: The script file has run top-level; its hooks run on the
// tick loop until Detach.
func (r *Runner) Attach(npc *world.NPC) error {
	if npc.Script == "" {
		return nil
	}

	path := filepath.Join(r.scriptsDir, npc.Script)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("scripting: script %q for npc %q: %w", npc.Script, npc.Key, err)
	}

	L := NewSandboxedState()
	r.registerAPI(L, npc)

	cancel := armLimit(L, r.instLimit)
	err := L.DoFile(path)
	cancel()
	if err != nil {
		L.Close()
		return fmt.Errorf("scripting: loading %q for npc %q: %w", path, npc.Key, err)
	}

	r.mu.Lock()
	if old, ok := r.actors[npc.ID()]; ok {
		old.L.Close()
	}
	r.actors[npc.ID()] = &actorScript{npc: npc, L: L}
	r.mu.Unlock()
	return nil
}

// Detach stops ticking the NPC's script and releases its VM. Detaching an
// NPC that was never attached is a no-op.
func (r *Runner) Detach(npc *world.NPC) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if as, ok := r.actors[npc.ID()]; ok {
		as.L.Close()
		delete(r.actors, npc.ID())
	}
}

// Start runs the tick loop until Stop is called. It blocks.
func (r *Runner) Start() error {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.tick()
		case <-r.stop:
			return nil
		}
	}
}

// Stop ends the tick loop and closes every attached VM.
func (r *Runner) Stop() {
	close(r.stop)
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, as := range r.actors {
		as.L.Close()
		delete(r.actors, id)
	}
}

// tick calls on_tick in every attached VM. Each call gets a fresh
// instruction budget; a failing script is logged and skipped without
// affecting the others.
func (r *Runner) tick() {
	r.mu.Lock()
	scripts := make([]*actorScript, 0, len(r.actors))
	for _, as := range r.actors {
		scripts = append(scripts, as)
	}
	r.mu.Unlock()

	for _, as := range scripts {
		r.callHook(as, tickHook)
	}
}

// callHook invokes the named Lua global on the actor's VM, if defined.
// Runtime errors and panics are logged at Warn level and never propagated.
func (r *Runner) callHook(as *actorScript, hook string) {
	fn := as.L.GetGlobal(hook)
	if fn == lua.LNil {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("scripting: hook panicked",
				zap.String("npc", as.npc.Key),
				zap.String("hook", hook),
				zap.Any("panic", rec),
			)
		}
	}()

	cancel := armLimit(as.L, r.instLimit)
	defer cancel()

	if err := as.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}); err != nil {
		r.logger.Warn("scripting: Lua runtime error",
			zap.String("npc", as.npc.Key),
			zap.String("hook", hook),
			zap.Error(err),
		)
	}
}

// registerAPI installs the mud.* table bound to the given NPC. The API is
// intentionally narrow: scripts observe their room and act through the
// same world operations players use.
func (r *Runner) registerAPI(L *lua.LState, npc *world.NPC) {
	api := L.NewTable()

	L.SetField(api, "move", L.NewFunction(func(L *lua.LState) int {
		dir := L.CheckString(1)
		if !world.IsDirection(dir) {
			L.Push(lua.LBool(false))
			return 1
		}
		moved := r.graph.MoveInDirection(npc, world.Direction(dir))
		L.Push(lua.LBool(moved))
		return 1
	}))

	L.SetField(api, "say", L.NewFunction(func(L *lua.LState) int {
		r.graph.Say(npc, L.CheckString(1))
		return 0
	}))

	L.SetField(api, "emote", L.NewFunction(func(L *lua.LState) int {
		r.graph.Emote(npc, L.CheckString(1))
		return 0
	}))

	L.SetField(api, "room", L.NewFunction(func(L *lua.LState) int {
		if room := npc.Room(); room != nil {
			L.Push(lua.LString(room.Key))
		} else {
			L.Push(lua.LNil)
		}
		return 1
	}))

	L.SetField(api, "exits", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		room := npc.Room()
		if room != nil {
			for _, dir := range world.Directions {
				if _, ok := r.graph.Exit(room, dir); ok {
					tbl.Append(lua.LString(string(dir)))
				}
			}
		}
		L.Push(tbl)
		return 1
	}))

	L.SetField(api, "random", L.NewFunction(func(L *lua.LState) int {
		n := L.CheckInt(1)
		if n < 1 {
			n = 1
		}
		L.Push(lua.LNumber(rand.Intn(n) + 1))
		return 1
	}))

	L.SetGlobal("mud", api)
}
