package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// favouritesKey is the fixed name the starred-plant list is stored
// under. The store is a plain string-list key/value shape so the same
// table could hold other named lists later without a migration.
const favouritesKey = "favourites"

// SaveFavourites replaces the persisted favourites list with the
// provided snapshot. Every toggle persists the full set; there is no
// dirty tracking, so a crash can lose at most the latest toggle.
func (db *Database) SaveFavourites(ctx context.Context, ids []string) error {
	if db == nil || db.DB == nil {
		return errors.New("database not initialized")
	}

	encoded, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode favourites: %w", err)
	}

	// DELETE + INSERT inside one transaction stays portable across all
	// four drivers; upsert syntax does not.
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin favourites tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var del, ins string
	switch strings.ToLower(db.Driver) {
	case "pgx", "duckdb":
		del = "DELETE FROM favourites WHERE name = $1"
		ins = "INSERT INTO favourites (name, ids) VALUES ($1, $2)"
	default:
		del = "DELETE FROM favourites WHERE name = ?"
		ins = "INSERT INTO favourites (name, ids) VALUES (?, ?)"
	}

	if _, err := tx.ExecContext(ctx, del, favouritesKey); err != nil {
		return fmt.Errorf("clear favourites: %w", err)
	}
	if _, err := tx.ExecContext(ctx, ins, favouritesKey, string(encoded)); err != nil {
		return fmt.Errorf("store favourites: %w", err)
	}
	return tx.Commit()
}

// LoadFavourites reads the persisted favourites list. A missing row
// means nothing was ever starred and yields an empty list.
func (db *Database) LoadFavourites(ctx context.Context) ([]string, error) {
	if db == nil || db.DB == nil {
		return nil, errors.New("database not initialized")
	}

	query := "SELECT ids FROM favourites WHERE name = ?"
	arg := any(favouritesKey)
	switch strings.ToLower(db.Driver) {
	case "pgx", "duckdb":
		query = "SELECT ids FROM favourites WHERE name = $1"
	}

	var encoded string
	err := db.DB.QueryRowContext(ctx, query, arg).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load favourites: %w", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(encoded), &ids); err != nil {
		return nil, fmt.Errorf("decode favourites: %w", err)
	}
	return ids, nil
}
