package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analyzer/internal/models"
)

func sampleResult() *models.PredictionResult {
	return &models.PredictionResult{
		Ticker:         "000001.SZ",
		AsOf:           time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		Horizon:        5,
		CurrentPrice:   10.5,
		Forecast:       []float64{10.6, 10.7, 10.8, 10.9, 11.0},
		PredictedPrice: 11.0,
		Models: []models.ModelForecast{
			{Name: "gbrt", Params: map[string]float64{"max_depth": 3}, Weight: 1, Confidence: 0.9},
		},
	}
}

func sampleKey() Key {
	return Key{Ticker: "000001.sz", AsOf: time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)}
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "000001.SZ:2024-05-10", sampleKey().String())

	bars := []models.PriceBar{{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}}
	assert.Equal(t, "ABC:2024-01-02", NewKey("abc", bars).String())
}

// exercise runs the shared contract against any backend.
func exercise(t *testing.T, c Cache) {
	ctx := context.Background()
	key := sampleKey()

	_, err := c.Get(ctx, key)
	assert.True(t, IsMiss(err), "empty cache misses")

	require.NoError(t, c.Set(ctx, key, sampleResult(), time.Hour))
	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, sampleResult().Forecast, got.Forecast)
	assert.Equal(t, "gbrt", got.Models[0].Name)

	// last writer wins
	updated := sampleResult()
	updated.PredictedPrice = 12
	require.NoError(t, c.Set(ctx, key, updated, time.Hour))
	got, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 12.0, got.PredictedPrice)

	require.NoError(t, c.Delete(ctx, key))
	_, err = c.Get(ctx, key)
	assert.True(t, IsMiss(err))

	assert.Error(t, c.Set(ctx, key, nil, time.Hour))
}

func TestMemoryCache(t *testing.T) {
	exercise(t, NewMemoryCache())
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, sampleKey(), sampleResult(), time.Minute))
	_, err := c.Get(ctx, sampleKey())
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, sampleKey())
	assert.True(t, IsMiss(err))
	assert.Equal(t, 0, c.Len())

	require.NoError(t, c.Set(ctx, sampleKey(), sampleResult(), 0))
	now = now.Add(1000 * time.Hour)
	_, err = c.Get(ctx, sampleKey())
	assert.NoError(t, err, "zero ttl never expires")
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		client.Close()
		s.Close()
	})
	return s, client
}

func TestRedisCache(t *testing.T) {
	_, client := setupTestRedis(t)
	exercise(t, NewRedisCacheFromClient(client, "test"))
}

func TestRedisCache_TTLAndPrefix(t *testing.T) {
	s, client := setupTestRedis(t)
	c := NewRedisCacheFromClient(client, "")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, sampleKey(), sampleResult(), time.Minute))
	assert.True(t, s.Exists("stock-analyzer:prediction:000001.SZ:2024-05-10"))
	assert.Equal(t, time.Minute, s.TTL("stock-analyzer:prediction:000001.SZ:2024-05-10"))

	s.FastForward(2 * time.Minute)
	_, err := c.Get(ctx, sampleKey())
	assert.True(t, IsMiss(err))
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	s, client := setupTestRedis(t)
	c := NewRedisCacheFromClient(client, "x")
	require.NoError(t, s.Set("x:prediction:000001.SZ:2024-05-10", "{not json"))

	_, err := c.Get(context.Background(), sampleKey())
	require.Error(t, err)
	assert.False(t, IsMiss(err))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	addr := s.Addr()
	s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = NewRedisCache(ctx, RedisConfig{Addr: addr})
	assert.Error(t, err)
}
