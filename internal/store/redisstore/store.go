// Package redisstore keeps saved games in Redis.
//
// Each save is a hash at <prefix>world:<worldID> holding the id, canonical
// payload and content hash. A sorted set at <prefix>index scores world ids by
// save timestamp so List can return the most recent saves first. Save keys
// live under their own world: namespace so no world id can collide with the
// index.
package redisstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/roach88/dreamtheater/internal/ir"
	"github.com/roach88/dreamtheater/internal/store"
)

// DefaultPrefix namespaces save keys.
const DefaultPrefix = "dreamtheater:save:"

// Store implements store.GameStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	ids    store.IDGenerator
	logger *slog.Logger
}

var _ store.GameStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTTL expires saves after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for saves.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithIDGenerator sets the generator used for new save ids.
func WithIDGenerator(gen store.IDGenerator) Option {
	return func(s *Store) {
		s.ids = gen
	}
}

// WithLogger sets the logger for version and corruption warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Redis store connected to address.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultPrefix,
		ids:    store.UUIDv7Generator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(worldID string) string {
	return s.prefix + "world:" + worldID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save writes game, replacing any existing save for the same world and
// keeping its id.
func (s *Store) Save(ctx context.Context, game ir.SavedGame) (ir.SavedGame, error) {
	if game.WorldID == "" {
		return ir.SavedGame{}, fmt.Errorf("save: empty world id")
	}
	if game.Version == "" {
		game.Version = ir.SaveVersion
	}

	existing, err := s.client.HGet(ctx, s.key(game.WorldID), "id").Result()
	switch {
	case err == nil:
		game.ID = existing
	case errors.Is(err, backend.Nil):
		if game.ID == "" {
			game.ID = s.ids.Generate()
		}
	default:
		return ir.SavedGame{}, fmt.Errorf("save %q: lookup: %w", game.WorldID, err)
	}

	payload, hash, err := store.EncodeSave(game)
	if err != nil {
		return ir.SavedGame{}, err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(game.WorldID), map[string]any{
		"id":      game.ID,
		"payload": payload,
		"hash":    hash,
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(game.WorldID), s.ttl)
	} else {
		pipe.Persist(ctx, s.key(game.WorldID))
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(game.Timestamp),
		Member: game.WorldID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return ir.SavedGame{}, fmt.Errorf("save %q: write: %w", game.WorldID, err)
	}
	return game, nil
}

// Load returns the save for worldID, or store.ErrNotFound.
func (s *Store) Load(ctx context.Context, worldID string) (ir.SavedGame, error) {
	fields, err := s.client.HMGet(ctx, s.key(worldID), "payload", "hash").Result()
	if err != nil {
		return ir.SavedGame{}, fmt.Errorf("load %q: %w", worldID, err)
	}
	payload, _ := fields[0].(string)
	hash, _ := fields[1].(string)
	if fields[0] == nil {
		return ir.SavedGame{}, fmt.Errorf("load %q: %w", worldID, store.ErrNotFound)
	}

	game, err := store.DecodeSave(payload, hash)
	if err != nil {
		return ir.SavedGame{}, err
	}
	store.WarnVersion(s.logger, game)
	return game, nil
}

// Has reports whether a save exists for worldID.
func (s *Store) Has(ctx context.Context, worldID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(worldID)).Result()
	if err != nil {
		return false, fmt.Errorf("has %q: %w", worldID, err)
	}
	return n > 0, nil
}

// Delete removes the save for worldID. Deleting a missing save is not an error.
func (s *Store) Delete(ctx context.Context, worldID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(worldID))
	pipe.ZRem(ctx, s.indexKey(), worldID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete %q: %w", worldID, err)
	}
	return nil
}

// List returns every readable save, most recent first. Index entries whose
// save has expired are pruned; corrupt saves are skipped with a warning.
func (s *Store) List(ctx context.Context) ([]ir.SavedGame, error) {
	entries, err := s.client.ZRevRangeWithScores(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	worlds := byRecency(entries)

	games := []ir.SavedGame{}
	for _, worldID := range worlds {
		game, err := s.Load(ctx, worldID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if err := s.client.ZRem(ctx, s.indexKey(), worldID).Err(); err != nil {
				return nil, fmt.Errorf("list saves: prune %q: %w", worldID, err)
			}
			continue
		case errors.Is(err, store.ErrCorrupt):
			s.logger.Warn("skipping unreadable save", "world", worldID, "error", err)
			continue
		case err != nil:
			return nil, fmt.Errorf("list saves: %w", err)
		}
		games = append(games, game)
	}
	return games, nil
}

// byRecency orders index entries by score descending and breaks ties by
// world id ascending, matching the SQLite store.
func byRecency(entries []backend.Z) []string {
	slices.SortStableFunc(entries, func(a, b backend.Z) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(member(a), member(b))
	})
	worlds := make([]string, 0, len(entries))
	for _, z := range entries {
		worlds = append(worlds, member(z))
	}
	return worlds
}

func member(z backend.Z) string {
	if m, ok := z.Member.(string); ok {
		return m
	}
	return fmt.Sprint(z.Member)
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
