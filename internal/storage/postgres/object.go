package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrObjectNotFound is returned when an object lookup yields no results.
var ErrObjectNotFound = errors.New("object not found")

// ObjectRecord is the persistent form of a static room object.
type ObjectRecord struct {
	Key         string
	Name        string
	Description string
	// Script names the Lua behavior script for this object, empty for none.
	Script string
}

// ObjectRepository loads object records.
type ObjectRepository struct {
	db *pgxpool.Pool
}

// NewObjectRepository creates an ObjectRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewObjectRepository(db *pgxpool.Pool) *ObjectRepository {
	return &ObjectRepository{db: db}
}

// FetchObject retrieves an object record by key.
//
// Postcondition: Returns the record or ErrObjectNotFound.
func (r *ObjectRepository) FetchObject(ctx context.Context, key string) (*ObjectRecord, error) {
	rec := &ObjectRecord{Key: key}

	err := r.db.QueryRow(ctx,
		`SELECT name, description, script FROM objects WHERE key = $1`,
		key,
	).Scan(&rec.Name, &rec.Description, &rec.Script)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("querying object %q: %w", key, err)
	}
	return rec, nil
}

// Upsert inserts or replaces an object record. Used by the seeder.
func (r *ObjectRepository) Upsert(ctx context.Context, rec *ObjectRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO objects (key, name, description, script)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			script = EXCLUDED.script`,
		rec.Key, rec.Name, rec.Description, rec.Script,
	)
	if err != nil {
		return fmt.Errorf("upserting object %q: %w", rec.Key, err)
	}
	return nil
}
