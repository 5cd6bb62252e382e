package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/etherwake/mud/internal/game/world"
)

// ErrNPCNotFound is returned when an NPC lookup yields no results.
var ErrNPCNotFound = errors.New("npc not found")

// NPCRecord is the persistent form of an NPC kind.
type NPCRecord struct {
	Key         string
	Name        string
	Description string
	// Dialogue is the NPC's conversation tree, or nil if it has none.
	Dialogue   *world.DialogueTree
	GoodbyeMsg string
	// Script names the Lua behavior script for this NPC, empty for none.
	Script string
}

// NPCRepository loads NPC records.
type NPCRepository struct {
	db *pgxpool.Pool
}

// NewNPCRepository creates an NPCRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewNPCRepository(db *pgxpool.Pool) *NPCRepository {
	return &NPCRepository{db: db}
}

// FetchNPC retrieves an NPC record by key. The dialogue tree is stored as
// JSONB and is NULL for NPCs without one.
//
// Postcondition: Returns the record or ErrNPCNotFound.
func (r *NPCRepository) FetchNPC(ctx context.Context, key string) (*NPCRecord, error) {
	rec := &NPCRecord{Key: key}

	err := r.db.QueryRow(ctx,
		`SELECT name, description, dialogue, goodbye_msg, script
		 FROM npcs WHERE key = $1`,
		key,
	).Scan(&rec.Name, &rec.Description, &rec.Dialogue, &rec.GoodbyeMsg, &rec.Script)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNPCNotFound
		}
		return nil, fmt.Errorf("querying npc %q: %w", key, err)
	}
	return rec, nil
}

// Upsert inserts or replaces an NPC record. Used by the seeder.
func (r *NPCRepository) Upsert(ctx context.Context, rec *NPCRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO npcs (key, name, description, dialogue, goodbye_msg, script)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (key) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			dialogue = EXCLUDED.dialogue,
			goodbye_msg = EXCLUDED.goodbye_msg,
			script = EXCLUDED.script`,
		rec.Key, rec.Name, rec.Description, rec.Dialogue, rec.GoodbyeMsg, rec.Script,
	)
	if err != nil {
		return fmt.Errorf("upserting npc %q: %w", rec.Key, err)
	}
	return nil
}
