package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"

	"peer_valuation/pkg/core/utils"
	"peer_valuation/pkg/models"
)

// DefaultVectorCachePath is the JSON file used when no path is configured.
var DefaultVectorCachePath = filepath.Join("data", "vector_cache.json")

// VectorCache maps normalized company names to embedding vectors.
// Supports Hybrid Vault: DB (Primary) + File System (Local).
//
// Each entry records the vector space it was computed in; a lookup under a
// different space is a miss, so vectors from two embedding providers never mix.
// All entries are loaded into memory at construction. Set upserts into Postgres
// when a pool is configured, then rewrites the JSON file; memory changes only
// once both succeed. Safe for concurrent use.
type VectorCache struct {
	pool   *pgxpool.Pool
	path   string
	logger arbor.ILogger

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// cacheEntry is also the on-disk JSON shape of one vector.
type cacheEntry struct {
	Space  string    `json:"space"`
	Vector []float64 `json:"vector"`
}

// NewVectorCache opens the cache. pool may be nil; path may be empty for a
// purely in-memory cache (when pool is also nil).
func NewVectorCache(ctx context.Context, pool *pgxpool.Pool, path string, logger arbor.ILogger) (*VectorCache, error) {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	c := &VectorCache{
		pool:    pool,
		path:    path,
		logger:  logger,
		entries: make(map[string]cacheEntry),
	}

	if path != "" {
		if err := c.loadFile(); err != nil {
			return nil, err
		}
	}
	if pool != nil {
		if err := c.loadDB(ctx); err != nil {
			return nil, err
		}
	}

	logger.Debug().Int("entries", len(c.entries)).Str("path", path).Bool("db", pool != nil).Msg("Vector cache loaded")
	return c, nil
}

// Get returns the vector cached for name in space. Entries from another space
// and invalid stored vectors count as misses.
func (c *VectorCache) Get(ctx context.Context, name, space string) ([]float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[models.NormalizeName(name)]
	if !ok || e.Space != space || !models.ValidVector(e.Vector) {
		return nil, false
	}
	return append([]float64(nil), e.Vector...), true
}

// Set stores vector under name, replacing any entry from another space.
// Last write wins.
func (c *VectorCache) Set(ctx context.Context, name, space string, vector []float64) error {
	key := models.NormalizeName(name)
	if key == "" {
		return fmt.Errorf("vector cache: empty name: %w", models.ErrInvalidInput)
	}
	if !models.ValidVector(vector) {
		return fmt.Errorf("vector cache: invalid vector for %q: %w", key, models.ErrInvalidInput)
	}
	entry := cacheEntry{Space: space, Vector: append([]float64(nil), vector...)}

	c.mu.Lock()
	defer c.mu.Unlock()

	// 1. Save to DB
	if c.pool != nil {
		query := `
			INSERT INTO company_vectors (name, space, vector, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (name)
			DO UPDATE SET space = EXCLUDED.space, vector = EXCLUDED.vector, updated_at = EXCLUDED.updated_at
		`
		if _, err := c.pool.Exec(ctx, query, key, space, entry.Vector); err != nil {
			return fmt.Errorf("failed to save vector to db cache: %w", err)
		}
	}

	prev, had := c.entries[key]
	c.entries[key] = entry

	// 2. Save to File
	if c.path != "" {
		if err := c.writeFile(); err != nil {
			if had {
				c.entries[key] = prev
			} else {
				delete(c.entries, key)
			}
			return err
		}
	}
	return nil
}

// Len returns the number of cached entries.
func (c *VectorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Internal File Helpers

func (c *VectorCache) loadFile() error {
	raw, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read vector cache %s: %w", c.path, err)
	}
	if len(raw) == 0 {
		return nil
	}

	var entries map[string]cacheEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		// Interrupted writes leave truncated JSON behind; salvage what we can.
		if _, repairErr := utils.SmartParse(string(raw), &entries); repairErr != nil {
			c.logger.Warn().Err(err).Str("path", c.path).Msg("Vector cache file unreadable, starting empty")
			return nil
		}
		c.logger.Warn().Str("path", c.path).Msg("Vector cache file was malformed and has been repaired")
	}

	for name, e := range entries {
		if models.ValidVector(e.Vector) {
			c.entries[models.NormalizeName(name)] = e
		}
	}
	return nil
}

func (c *VectorCache) loadDB(ctx context.Context) error {
	rows, err := c.pool.Query(ctx, `SELECT name, space, vector FROM company_vectors`)
	if err != nil {
		return fmt.Errorf("failed to load db vector cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var e cacheEntry
		if err := rows.Scan(&name, &e.Space, &e.Vector); err != nil {
			return fmt.Errorf("failed to scan cached vector: %w", err)
		}
		if models.ValidVector(e.Vector) {
			c.entries[models.NormalizeName(name)] = e
		}
	}
	return rows.Err()
}

// writeFile rewrites the whole cache atomically. Caller holds c.mu.
func (c *VectorCache) writeFile() error {
	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("failed to marshal vector cache: %w", err)
	}
	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create cache dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write vector cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write vector cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save to file cache: %w", err)
	}
	return nil
}
