package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/etherwake/mud/internal/game/world"
)

// RoomRepository loads room records. It satisfies world.RoomFetcher.
type RoomRepository struct {
	db *pgxpool.Pool
}

// NewRoomRepository creates a RoomRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

// FetchRoom retrieves a room record by key. Exits are stored as a JSONB
// map of direction to destination room key.
//
// Postcondition: Returns world.ErrRoomNotFound for an absent key; any
// other failure satisfies errors.Is(err, world.ErrStorageUnavailable).
func (r *RoomRepository) FetchRoom(ctx context.Context, key string) (*world.RoomRecord, error) {
	rec := &world.RoomRecord{Key: key}
	var exits map[string]string

	err := r.db.QueryRow(ctx,
		`SELECT name, description, exits, npc_keys, object_keys
		 FROM rooms WHERE key = $1`,
		key,
	).Scan(&rec.Name, &rec.Description, &exits, &rec.NPCKeys, &rec.ObjectKeys)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, world.ErrRoomNotFound
		}
		return nil, fmt.Errorf("querying room %q: %w: %v", key, world.ErrStorageUnavailable, err)
	}

	rec.Exits = make(map[world.Direction]string, len(exits))
	for dir, target := range exits {
		if !world.IsDirection(dir) {
			return nil, fmt.Errorf("room %q: invalid exit direction %q", key, dir)
		}
		rec.Exits[world.Direction(dir)] = target
	}
	return rec, nil
}

// ListKeys returns the keys of every stored room, for preloading and
// integrity checks over the authored world.
func (r *RoomRepository) ListKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT key FROM rooms ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("querying room keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning room key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Upsert inserts or replaces a room record. Used by the seeder.
func (r *RoomRepository) Upsert(ctx context.Context, rec *world.RoomRecord) error {
	exits := make(map[string]string, len(rec.Exits))
	for dir, target := range rec.Exits {
		exits[string(dir)] = target
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO rooms (key, name, description, exits, npc_keys, object_keys)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (key) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			exits = EXCLUDED.exits,
			npc_keys = EXCLUDED.npc_keys,
			object_keys = EXCLUDED.object_keys`,
		rec.Key, rec.Name, rec.Description, exits, rec.NPCKeys, rec.ObjectKeys,
	)
	if err != nil {
		return fmt.Errorf("upserting room %q: %w", rec.Key, err)
	}
	return nil
}
