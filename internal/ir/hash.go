package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows a future
// algorithm change without colliding with stored hashes.
const (
	DomainSave    = "dreamtheater/save/v1"
	DomainProgram = "dreamtheater/program/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SaveHash computes the content hash of a saved game.
// The save ID is excluded so that re-saving the same content under a new
// identifier yields the same hash.
func SaveHash(save SavedGame) (string, error) {
	save.ID = ""
	canonical, err := MarshalCanonical(save)
	if err != nil {
		return "", fmt.Errorf("SaveHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSave, canonical), nil
}

// ProgramHash computes a stable identity for a rule list. The CLI prints it
// from compile and replay so two versions of a world can be told apart.
func ProgramHash(rules []Rule) (string, error) {
	canonical, err := MarshalCanonical(rules)
	if err != nil {
		return "", fmt.Errorf("ProgramHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProgram, canonical), nil
}
