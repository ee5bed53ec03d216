package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stock-analyzer/internal/cache"
	apperrors "stock-analyzer/internal/errors"
	"stock-analyzer/internal/models"
)

// SQLiteCache implements cache.Cache on the prediction_cache table.
type SQLiteCache struct {
	store *SQLiteStore
	owned bool
	now   func() time.Time
}

var _ cache.Cache = (*SQLiteCache)(nil)

// NewSQLiteCache opens a dedicated database at dbPath for cached predictions.
func NewSQLiteCache(dbPath string) (*SQLiteCache, error) {
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		return nil, err
	}
	c := s.PredictionCache()
	c.owned = true
	return c, nil
}

// PredictionCache returns a cache sharing this store's connection. Closing
// it leaves the store open.
func (s *SQLiteStore) PredictionCache() *SQLiteCache {
	return &SQLiteCache{store: s, now: time.Now}
}

// Get returns the stored prediction for key.
func (c *SQLiteCache) Get(ctx context.Context, key cache.Key) (*models.PredictionResult, error) {
	var payload []byte
	var expires sql.NullTime
	err := c.store.db.QueryRowContext(ctx, `
		SELECT payload, expires_at FROM prediction_cache WHERE cache_key = ?
	`, key.String()).Scan(&payload, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", key, apperrors.ErrCacheMiss)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if expires.Valid && !c.now().Before(expires.Time) {
		if err := c.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", key, apperrors.ErrCacheMiss)
	}
	return cache.Decode(payload)
}

// Set stores value under key; ttl <= 0 stores without expiry.
func (c *SQLiteCache) Set(ctx context.Context, key cache.Key, value *models.PredictionResult, ttl time.Duration) error {
	payload, err := cache.Encode(value)
	if err != nil {
		return err
	}
	var expires sql.NullTime
	if ttl > 0 {
		expires = sql.NullTime{Time: c.now().Add(ttl).UTC(), Valid: true}
	}

	_, err = c.store.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO prediction_cache (cache_key, payload, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, key.String(), payload, expires, time.Now())
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Delete removes key.
func (c *SQLiteCache) Delete(ctx context.Context, key cache.Key) error {
	if _, err := c.store.db.ExecContext(ctx, "DELETE FROM prediction_cache WHERE cache_key = ?", key.String()); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Purge removes every expired entry and returns how many were dropped.
func (c *SQLiteCache) Purge(ctx context.Context) (int64, error) {
	res, err := c.store.db.ExecContext(ctx,
		"DELETE FROM prediction_cache WHERE expires_at IS NOT NULL AND expires_at <= ?", c.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database when this cache opened it.
func (c *SQLiteCache) Close() error {
	if c.owned {
		return c.store.Close()
	}
	return nil
}
