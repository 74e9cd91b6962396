package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/dreamtheater/internal/ir"
)

// EncodeSave converts a save to canonical JSON plus its content hash.
// An empty Version is filled with ir.SaveVersion before hashing.
func EncodeSave(game ir.SavedGame) (payload string, hash string, err error) {
	if game.Version == "" {
		game.Version = ir.SaveVersion
	}
	data, err := ir.MarshalCanonical(game)
	if err != nil {
		return "", "", fmt.Errorf("encode save: %w", err)
	}
	hash, err = ir.SaveHash(game)
	if err != nil {
		return "", "", fmt.Errorf("encode save: %w", err)
	}
	return string(data), hash, nil
}

// DecodeSave parses a stored payload and verifies it against hash.
// A mismatch returns ErrCorrupt.
func DecodeSave(payload, hash string) (ir.SavedGame, error) {
	var game ir.SavedGame
	if err := json.Unmarshal([]byte(payload), &game); err != nil {
		return ir.SavedGame{}, fmt.Errorf("decode save: %w: %v", ErrCorrupt, err)
	}
	got, err := ir.SaveHash(game)
	if err != nil {
		return ir.SavedGame{}, fmt.Errorf("decode save: %w", err)
	}
	if got != hash {
		return ir.SavedGame{}, fmt.Errorf("decode save %q: %w: hash %s, stored %s", game.WorldID, ErrCorrupt, got, hash)
	}
	return game, nil
}
