package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/dreamtheater/internal/ir"
)

// Save writes game, replacing any existing save for the same world.
// The existing row's id is kept; a new world gets a generated id unless
// game.ID is already set. Returns the game as stored.
func (s *Store) Save(ctx context.Context, game ir.SavedGame) (ir.SavedGame, error) {
	if game.WorldID == "" {
		return ir.SavedGame{}, fmt.Errorf("save: empty world id")
	}
	if game.Version == "" {
		game.Version = ir.SaveVersion
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.SavedGame{}, fmt.Errorf("save %q: begin: %w", game.WorldID, err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT id FROM saves WHERE world_id = ?`, game.WorldID).Scan(&existing)
	switch {
	case err == nil:
		game.ID = existing
	case errors.Is(err, sql.ErrNoRows):
		if game.ID == "" {
			game.ID = s.ids.Generate()
		}
	default:
		return ir.SavedGame{}, fmt.Errorf("save %q: lookup: %w", game.WorldID, err)
	}

	payload, hash, err := EncodeSave(game)
	if err != nil {
		return ir.SavedGame{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO saves (id, world_id, version, saved_at, events, payload, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(world_id) DO UPDATE SET
			version = excluded.version,
			saved_at = excluded.saved_at,
			events = excluded.events,
			payload = excluded.payload,
			hash = excluded.hash
	`, game.ID, game.WorldID, game.Version, game.Timestamp, len(game.History), payload, hash)
	if err != nil {
		return ir.SavedGame{}, fmt.Errorf("save %q: write: %w", game.WorldID, err)
	}

	if err := tx.Commit(); err != nil {
		return ir.SavedGame{}, fmt.Errorf("save %q: commit: %w", game.WorldID, err)
	}
	return game, nil
}

// Load returns the save for worldID, or ErrNotFound.
func (s *Store) Load(ctx context.Context, worldID string) (ir.SavedGame, error) {
	var payload, hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, hash FROM saves WHERE world_id = ?`, worldID,
	).Scan(&payload, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.SavedGame{}, fmt.Errorf("load %q: %w", worldID, ErrNotFound)
	}
	if err != nil {
		return ir.SavedGame{}, fmt.Errorf("load %q: %w", worldID, err)
	}

	game, err := DecodeSave(payload, hash)
	if err != nil {
		return ir.SavedGame{}, err
	}
	WarnVersion(s.logger, game)
	return game, nil
}

// Has reports whether a save exists for worldID.
func (s *Store) Has(ctx context.Context, worldID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM saves WHERE world_id = ?`, worldID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has %q: %w", worldID, err)
	}
	return n > 0, nil
}

// Delete removes the save for worldID. Deleting a missing save is not an error.
func (s *Store) Delete(ctx context.Context, worldID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM saves WHERE world_id = ?`, worldID); err != nil {
		return fmt.Errorf("delete %q: %w", worldID, err)
	}
	return nil
}

// List returns every readable save, most recent first. Corrupt rows are
// skipped with a warning.
func (s *Store) List(ctx context.Context) ([]ir.SavedGame, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT world_id, payload, hash FROM saves ORDER BY saved_at DESC, world_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	defer rows.Close()

	games := []ir.SavedGame{}
	for rows.Next() {
		var worldID, payload, hash string
		if err := rows.Scan(&worldID, &payload, &hash); err != nil {
			return nil, fmt.Errorf("list saves: scan: %w", err)
		}
		game, err := DecodeSave(payload, hash)
		if err != nil {
			s.logger.Warn("skipping unreadable save", "world", worldID, "error", err)
			continue
		}
		WarnVersion(s.logger, game)
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	return games, nil
}

// WarnVersion logs when a save was written by a different schema version.
// Such saves are still returned to the caller.
func WarnVersion(logger *slog.Logger, game ir.SavedGame) {
	if game.Version != ir.SaveVersion {
		logger.Warn("save version mismatch",
			"world", game.WorldID, "version", game.Version, "expected", ir.SaveVersion)
	}
}
