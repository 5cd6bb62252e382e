package world

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrRoomNotFound is returned when a room key has no backing record.
var ErrRoomNotFound = errors.New("room not found")

// ErrStorageUnavailable is returned when a storage fetch or update was
// rejected or timed out. It is never conflated with a not-found result.
var ErrStorageUnavailable = errors.New("storage temporarily unavailable")

// RoomRecord is the persistent form of a room.
type RoomRecord struct {
	Key         string
	Name        string
	Description string
	// Exits maps directions to destination room keys.
	Exits map[Direction]string
	// NPCKeys lists the NPCs populating the room.
	NPCKeys []string
	// ObjectKeys lists the static objects present in the room.
	ObjectKeys []string
}

// RoomFetcher fetches room records by key. Implementations return
// ErrRoomNotFound for absent keys and wrap transient failures so they
// satisfy errors.Is(err, ErrStorageUnavailable).
type RoomFetcher interface {
	FetchRoom(ctx context.Context, key string) (*RoomRecord, error)
}

// NPCFactory constructs a live NPC actor from its storage key, including
// starting its behavior script. A nil factory disables NPC population.
type NPCFactory func(ctx context.Context, key string) (*NPC, error)

// ObjectFactory constructs a static object from its storage key. A nil
// factory disables object population.
type ObjectFactory func(ctx context.Context, key string) (*Object, error)

// Store is the process-wide room cache. Rooms are loaded lazily on first
// reference, deduplicated per key, and never evicted.
//
// The load order makes cyclic room graphs terminate: a new Room instance is
// registered in the cache before its exits are resolved, so a room whose
// exit points back at a room currently mid-load observes the in-progress
// instance instead of recursing. Concurrent first-time loads of the same key
// are single-flight: the second caller waits for and returns the first
// caller's instance.
type Store struct {
	graph   *Graph
	repo    RoomFetcher
	npcs    NPCFactory
	objects ObjectFactory
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	rooms    map[string]*Room
	inflight map[string]*roomLoad

	background sync.WaitGroup
}

// roomLoad tracks one in-flight load. room and err are set before done is
// closed.
type roomLoad struct {
	done chan struct{}
	room *Room
	err  error
}

// NewStore creates a Store populating the given graph from repo.
//
// Precondition: graph, repo, and logger must be non-nil. timeout bounds each
// storage fetch; 0 means unbounded.
func NewStore(graph *Graph, repo RoomFetcher, npcs NPCFactory, objects ObjectFactory, timeout time.Duration, logger *zap.Logger) *Store {
	return &Store{
		graph:    graph,
		repo:     repo,
		npcs:     npcs,
		objects:  objects,
		timeout:  timeout,
		logger:   logger,
		rooms:    make(map[string]*Room),
		inflight: make(map[string]*roomLoad),
	}
}

// FindByKey returns the room with the given key, loading it from storage on
// first reference. Exits and occupants are resolved in the background; an
// exit may be transiently absent on a freshly returned room.
//
// Postcondition: Returns the unique Room instance for key, ErrRoomNotFound
// if no record exists, or an ErrStorageUnavailable-wrapped error on fetch
// failure or timeout.
func (s *Store) FindByKey(ctx context.Context, key string) (*Room, error) {
	s.mu.Lock()
	if room, ok := s.rooms[key]; ok {
		s.mu.Unlock()
		return room, nil
	}
	if call, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.room, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &roomLoad{done: make(chan struct{})}
	s.inflight[key] = call
	s.mu.Unlock()

	room, err := s.load(ctx, key)

	s.mu.Lock()
	delete(s.inflight, key)
	if err == nil {
		s.rooms[key] = room
	}
	s.mu.Unlock()

	call.room = room
	call.err = err
	close(call.done)

	if err != nil {
		return nil, err
	}

	// The room is registered; resolve references in the background.
	s.resolveReferences(room)
	return room, nil
}

// Cached returns the already-loaded room for key, without touching storage.
func (s *Store) Cached(key string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[key]
	return room, ok
}

// load fetches the backing record and constructs the bare Room.
func (s *Store) load(ctx context.Context, key string) (*Room, error) {
	fctx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rec, err := s.repo.FetchRoom(fctx, key)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("fetching room %q: %w", key, ErrStorageUnavailable)
		}
		if errors.Is(err, ErrStorageUnavailable) {
			return nil, fmt.Errorf("fetching room %q: %w", key, err)
		}
		return nil, fmt.Errorf("fetching room %q: %w: %v", key, ErrStorageUnavailable, err)
	}

	room := NewRoom(rec.Key, rec.Name, rec.Description)
	room.record = rec
	return room, nil
}

// resolveReferences resolves the room's exits and populates its NPCs and
// objects, each in its own goroutine. A dangling reference yields a missing
// exit or occupant, never a load failure.
func (s *Store) resolveReferences(room *Room) {
	rec := room.record
	if rec == nil {
		return
	}

	for dir, targetKey := range rec.Exits {
		dir, targetKey := dir, targetKey
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			target, err := s.FindByKey(context.Background(), targetKey)
			if err != nil {
				s.logger.Warn("unresolvable exit",
					zap.String("room", room.Key),
					zap.String("direction", string(dir)),
					zap.String("target", targetKey),
					zap.Error(err),
				)
				return
			}
			s.graph.SetExit(room, dir, target)
		}()
	}

	if s.npcs != nil {
		for _, npcKey := range rec.NPCKeys {
			npcKey := npcKey
			s.background.Add(1)
			go func() {
				defer s.background.Done()
				npc, err := s.npcs(context.Background(), npcKey)
				if err != nil {
					s.logger.Warn("unresolvable npc",
						zap.String("room", room.Key),
						zap.String("npc", npcKey),
						zap.Error(err),
					)
					return
				}
				s.graph.AddActor(room, npc)
			}()
		}
	}

	if s.objects != nil {
		for _, objKey := range rec.ObjectKeys {
			objKey := objKey
			s.background.Add(1)
			go func() {
				defer s.background.Done()
				obj, err := s.objects(context.Background(), objKey)
				if err != nil {
					s.logger.Warn("unresolvable object",
						zap.String("room", room.Key),
						zap.String("object", objKey),
						zap.Error(err),
					)
					return
				}
				s.graph.AddObject(room, obj)
			}()
		}
	}
}

// Wait blocks until all background exit resolutions and occupant
// populations started so far have finished. Used by startup and tests to
// settle the graph deterministically.
func (s *Store) Wait() {
	s.background.Wait()
}
