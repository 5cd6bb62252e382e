// Package players binds authenticated accounts to in-world player actors:
// login places an actor in its last known room, logout removes it and
// persists its position.
package players

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/etherwake/mud/internal/game/world"
	"github.com/etherwake/mud/internal/storage/postgres"
)

// ErrAlreadyOnline is returned when an account that already has a live
// player tries to log in again.
var ErrAlreadyOnline = errors.New("account already online")

// Conn is the session surface the registry needs: an output sink for the
// player actor plus the one-time disconnect notification that triggers
// logout.
type Conn interface {
	world.Sink
	OnDisconnect(fn func())
}

// AccountStore is the account persistence surface the registry needs.
// *postgres.AccountRepository satisfies it.
type AccountStore interface {
	Create(ctx context.Context, username, password string) (postgres.Account, error)
	Authenticate(ctx context.Context, username, password string) (postgres.Account, error)
	UpdateCurrentRoom(ctx context.Context, accountID int64, roomKey string) error
}

// Registry tracks the players currently in the world, at most one per
// account.
type Registry struct {
	graph     *world.Graph
	store     *world.Store
	accounts  AccountStore
	startRoom string
	timeout   time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	online map[string]*world.Player
}

// NewRegistry creates a Registry. startRoom is the key of the room new and
// displaced players spawn in; timeout bounds the logout position write.
//
// Precondition: graph, store, accounts, and logger must be non-nil;
// startRoom must name an existing room.
func NewRegistry(graph *world.Graph, store *world.Store, accounts AccountStore, startRoom string, timeout time.Duration, logger *zap.Logger) *Registry {
	return &Registry{
		graph:     graph,
		store:     store,
		accounts:  accounts,
		startRoom: startRoom,
		timeout:   timeout,
		logger:    logger,
		online:    make(map[string]*world.Player),
	}
}

// Login authenticates the credentials and places a player actor in the
// account's last room. The returned room is where the actor now stands.
//
// Postcondition: On success the player is in the world and a logout is
// armed on conn's disconnect. Fails with ErrAlreadyOnline, the account
// store's credential errors, or a world load error.
func (r *Registry) Login(ctx context.Context, conn Conn, username, password string) (*world.Player, *world.Room, error) {
	if r.IsOnline(username) {
		return nil, nil, ErrAlreadyOnline
	}

	acct, err := r.accounts.Authenticate(ctx, username, password)
	if err != nil {
		return nil, nil, err
	}
	return r.enter(ctx, conn, acct)
}

// Register creates a new account and places its player actor in the start
// room.
//
// Postcondition: On success the account exists and its player is in the
// world. Fails with postgres.ErrAccountExists for a taken username.
func (r *Registry) Register(ctx context.Context, conn Conn, username, password string) (*world.Player, *world.Room, error) {
	acct, err := r.accounts.Create(ctx, username, password)
	if err != nil {
		return nil, nil, err
	}
	return r.enter(ctx, conn, acct)
}

// enter builds the player actor, loads its room, and moves it into the
// world. A stale room key falls back to the start room rather than
// failing the login.
func (r *Registry) enter(ctx context.Context, conn Conn, acct postgres.Account) (*world.Player, *world.Room, error) {
	roomKey := acct.CurrentRoom
	if roomKey == "" {
		roomKey = r.startRoom
	}

	room, err := r.store.FindByKey(ctx, roomKey)
	if errors.Is(err, world.ErrRoomNotFound) && roomKey != r.startRoom {
		r.logger.Warn("saved room gone, spawning at start",
			zap.String("username", acct.Username),
			zap.String("room", roomKey),
		)
		room, err = r.store.FindByKey(ctx, r.startRoom)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading room %q: %w", roomKey, err)
	}

	player := world.NewPlayer(acct.ID, acct.Username, conn)

	key := strings.ToLower(acct.Username)
	r.mu.Lock()
	if _, taken := r.online[key]; taken {
		r.mu.Unlock()
		return nil, nil, ErrAlreadyOnline
	}
	r.online[key] = player
	r.mu.Unlock()

	r.graph.AddActor(room, player)
	conn.OnDisconnect(func() { r.Logout(player) })

	r.logger.Info("player entered world",
		zap.String("username", acct.Username),
		zap.String("room", room.Key),
	)
	return player, room, nil
}

// Logout removes the player from the world and persists its last room. It
// is safe to call for a player that has already logged out.
func (r *Registry) Logout(player *world.Player) {
	key := strings.ToLower(player.Name())
	r.mu.Lock()
	current, ok := r.online[key]
	if !ok || current != player {
		r.mu.Unlock()
		return
	}
	delete(r.online, key)
	r.mu.Unlock()

	room := player.Room()
	if room == nil {
		return
	}
	r.graph.RemoveActor(room, player, nil)

	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := r.accounts.UpdateCurrentRoom(ctx, player.AccountID, room.Key); err != nil {
		r.logger.Warn("saving player position failed",
			zap.String("username", player.Name()),
			zap.String("room", room.Key),
			zap.Error(err),
		)
	}

	r.logger.Info("player left world",
		zap.String("username", player.Name()),
		zap.String("room", room.Key),
	)
}

// IsOnline reports whether the named account has a live player in the
// world. The check is case-insensitive.
func (r *Registry) IsOnline(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.online[strings.ToLower(username)]
	return ok
}

// Online returns the usernames of all players currently in the world.
func (r *Registry) Online() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.online))
	for _, p := range r.online {
		names = append(names, p.Name())
	}
	return names
}
