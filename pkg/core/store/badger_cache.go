package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"peer_valuation/pkg/models"
)

// VectorRecord is the badgerhold row for one cached vector.
type VectorRecord struct {
	Name      string
	Space     string
	Vector    []float64
	UpdatedAt time.Time
}

// BadgerVectorCache is an embedded, on-disk vector cache. Unlike VectorCache it
// persists one record per Set instead of rewriting a whole file.
type BadgerVectorCache struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// OpenBadgerVectorCache opens (or creates) a Badger database in dir.
func OpenBadgerVectorCache(dir string, logger arbor.ILogger) (*BadgerVectorCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil // Disable default badger logger to use arbor

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", dir).Msg("Badger vector cache initialized")
	return &BadgerVectorCache{store: store, logger: logger}, nil
}

// Get retrieves a vector by name (case-insensitive). A record from another
// space is a miss.
func (b *BadgerVectorCache) Get(ctx context.Context, name, space string) ([]float64, bool) {
	var rec VectorRecord
	err := b.store.Get(models.NormalizeName(name), &rec)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		b.logger.Warn().Err(err).Str("name", name).Msg("Failed to read cached vector")
		return nil, false
	}
	if rec.Space != space || !models.ValidVector(rec.Vector) {
		return nil, false
	}
	return rec.Vector, true
}

// Set inserts or replaces the vector for name.
func (b *BadgerVectorCache) Set(ctx context.Context, name, space string, vector []float64) error {
	key := models.NormalizeName(name)
	if key == "" {
		return fmt.Errorf("vector cache: empty name: %w", models.ErrInvalidInput)
	}
	if !models.ValidVector(vector) {
		return fmt.Errorf("vector cache: invalid vector for %q: %w", key, models.ErrInvalidInput)
	}

	rec := VectorRecord{Name: key, Space: space, Vector: vector, UpdatedAt: time.Now()}
	if err := b.store.Upsert(key, &rec); err != nil {
		return fmt.Errorf("failed to upsert vector: %w", err)
	}
	return nil
}

// Close closes the database connection
func (b *BadgerVectorCache) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
