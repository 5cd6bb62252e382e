package world

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeFetcher serves room records from memory, counting fetches per key.
type fakeFetcher struct {
	mu      sync.Mutex
	records map[string]*RoomRecord
	fetches map[string]int
	delay   time.Duration
	err     error
}

func newFakeFetcher(records ...*RoomRecord) *fakeFetcher {
	f := &fakeFetcher{
		records: make(map[string]*RoomRecord),
		fetches: make(map[string]int),
	}
	for _, rec := range records {
		f.records[rec.Key] = rec
	}
	return f
}

func (f *fakeFetcher) FetchRoom(ctx context.Context, key string) (*RoomRecord, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	f.fetches[key]++
	rec, ok := f.records[key]
	err := f.err
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRoomNotFound
	}
	return rec, nil
}

func (f *fakeFetcher) fetchCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[key]
}

func newTestStore(t *testing.T, repo RoomFetcher) (*Store, *Graph) {
	t.Helper()
	g := NewGraph(zap.NewNop())
	return NewStore(g, repo, nil, nil, time.Second, zap.NewNop()), g
}

func TestStore_FindByKey(t *testing.T) {
	repo := newFakeFetcher(&RoomRecord{Key: "a", Name: "Room A"})
	store, _ := newTestStore(t, repo)

	room, err := store.FindByKey(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", room.Key)
	assert.Equal(t, "Room A", room.Name)

	again, err := store.FindByKey(context.Background(), "a")
	require.NoError(t, err)
	assert.Same(t, room, again, "repeat lookups return the cached instance")
	assert.Equal(t, 1, repo.fetchCount("a"))
}

func TestStore_FindByKey_NotFound(t *testing.T) {
	store, _ := newTestStore(t, newFakeFetcher())

	_, err := store.FindByKey(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, ok := store.Cached("missing")
	assert.False(t, ok, "failed loads are not cached")
}

func TestStore_FindByKey_RetriesAfterFailure(t *testing.T) {
	repo := newFakeFetcher(&RoomRecord{Key: "a", Name: "Room A"})
	repo.err = errors.New("connection refused")
	store, _ := newTestStore(t, repo)

	_, err := store.FindByKey(context.Background(), "a")
	require.ErrorIs(t, err, ErrStorageUnavailable)

	repo.mu.Lock()
	repo.err = nil
	repo.mu.Unlock()

	room, err := store.FindByKey(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", room.Key)
}

func TestStore_FindByKey_Timeout(t *testing.T) {
	repo := newFakeFetcher(&RoomRecord{Key: "a", Name: "Room A"})
	repo.delay = time.Second
	g := NewGraph(zap.NewNop())
	store := NewStore(g, repo, nil, nil, 10*time.Millisecond, zap.NewNop())

	_, err := store.FindByKey(context.Background(), "a")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.NotErrorIs(t, err, ErrRoomNotFound)
}

func TestStore_CyclicExits(t *testing.T) {
	repo := newFakeFetcher(
		&RoomRecord{Key: "a", Name: "Room A", Exits: map[Direction]string{East: "b"}},
		&RoomRecord{Key: "b", Name: "Room B", Exits: map[Direction]string{West: "a"}},
	)
	store, g := newTestStore(t, repo)

	a, err := store.FindByKey(context.Background(), "a")
	require.NoError(t, err)
	store.Wait()

	b, ok := g.Exit(a, East)
	require.True(t, ok)
	back, ok := g.Exit(b, West)
	require.True(t, ok)
	assert.Same(t, a, back, "cycle resolves to the same instance")
	assert.Equal(t, 1, repo.fetchCount("a"))
	assert.Equal(t, 1, repo.fetchCount("b"))
}

func TestStore_SelfReferencingExit(t *testing.T) {
	repo := newFakeFetcher(
		&RoomRecord{Key: "a", Name: "Room A", Exits: map[Direction]string{Down: "a"}},
	)
	store, g := newTestStore(t, repo)

	a, err := store.FindByKey(context.Background(), "a")
	require.NoError(t, err)
	store.Wait()

	target, ok := g.Exit(a, Down)
	require.True(t, ok)
	assert.Same(t, a, target)
	assert.Equal(t, 1, repo.fetchCount("a"))
}

func TestStore_DanglingExit(t *testing.T) {
	repo := newFakeFetcher(
		&RoomRecord{Key: "a", Name: "Room A", Exits: map[Direction]string{North: "gone"}},
	)
	store, g := newTestStore(t, repo)

	a, err := store.FindByKey(context.Background(), "a")
	require.NoError(t, err)
	store.Wait()

	_, ok := g.Exit(a, North)
	assert.False(t, ok, "dangling exit stays unresolved")
}

func TestStore_SingleFlight(t *testing.T) {
	repo := newFakeFetcher(&RoomRecord{Key: "a", Name: "Room A"})
	repo.delay = 50 * time.Millisecond
	store, _ := newTestStore(t, repo)

	const callers = 16
	rooms := make([]*Room, callers)
	var failed atomic.Bool
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			room, err := store.FindByKey(context.Background(), "a")
			if err != nil {
				failed.Store(true)
				return
			}
			rooms[i] = room
		}()
	}
	wg.Wait()

	require.False(t, failed.Load())
	for i := 1; i < callers; i++ {
		assert.Same(t, rooms[0], rooms[i])
	}
	assert.Equal(t, 1, repo.fetchCount("a"), "concurrent first loads collapse to one fetch")
}

func TestStore_WaiterHonorsContext(t *testing.T) {
	repo := newFakeFetcher(&RoomRecord{Key: "a", Name: "Room A"})
	repo.delay = time.Second
	store, _ := newTestStore(t, repo)

	go func() {
		_, _ = store.FindByKey(context.Background(), "a")
	}()
	// Give the first caller time to claim the load.
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := store.FindByKey(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_PopulatesOccupants(t *testing.T) {
	repo := newFakeFetcher(
		&RoomRecord{Key: "a", Name: "Room A", NPCKeys: []string{"cat"}, ObjectKeys: []string{"lantern"}},
	)
	g := NewGraph(zap.NewNop())

	npcs := func(ctx context.Context, key string) (*NPC, error) {
		return NewNPC(key, "a stray cat", ""), nil
	}
	objects := func(ctx context.Context, key string) (*Object, error) {
		return &Object{Key: key, Name: "a lantern"}, nil
	}
	store := NewStore(g, repo, npcs, objects, time.Second, zap.NewNop())

	a, err := store.FindByKey(context.Background(), "a")
	require.NoError(t, err)
	store.Wait()

	view := g.View(a)
	assert.Equal(t, []string{"a stray cat"}, view.NPCs)
	assert.Equal(t, []string{"a lantern"}, view.Objects)
}

func TestStore_DanglingOccupantKeys(t *testing.T) {
	repo := newFakeFetcher(
		&RoomRecord{Key: "a", Name: "Room A", NPCKeys: []string{"ghost"}},
	)
	g := NewGraph(zap.NewNop())
	npcs := func(ctx context.Context, key string) (*NPC, error) {
		return nil, fmt.Errorf("npc %q not found", key)
	}
	store := NewStore(g, repo, npcs, nil, time.Second, zap.NewNop())

	a, err := store.FindByKey(context.Background(), "a")
	require.NoError(t, err)
	store.Wait()

	assert.Empty(t, g.Occupants(a), "unresolvable npc key leaves the room empty")
}
