package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

type memoryCache struct {
	data   map[string]string
	getErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string]string{}}
}

func (c *memoryCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, error) {
	if c.getErr != nil {
		return "", c.getErr
	}
	return c.data[key], nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func (c *memoryCache) Key(parts ...string) string {
	return "test:" + strings.Join(parts, ":")
}

func countingLocator(calls *int) *mockLocator {
	return &mockLocator{
		LocateFunc: func(ctx context.Context, pincode string) (*domain.Location, error) {
			*calls++
			return &domain.Location{Pincode: pincode, City: "Mumbai", State: "Maharashtra", Latitude: floatPtr(18.9), Longitude: floatPtr(72.8)}, nil
		},
	}
}

func TestCachedLocator_CachesHits(t *testing.T) {
	calls := 0
	c := newMemoryCache()
	l := NewCachedLocator(countingLocator(&calls), c, time.Hour, zap.NewNop())

	first, err := l.Locate(context.Background(), "400001")
	require.NoError(t, err)
	second, err := l.Locate(context.Background(), "400001")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first.City, second.City)
	require.True(t, second.HasCoordinates())
	assert.Equal(t, 18.9, *second.Latitude)
	assert.Contains(t, c.data, "test:pincode:400001")
}

func TestCachedLocator_CacheErrorFallsThrough(t *testing.T) {
	calls := 0
	c := newMemoryCache()
	c.getErr = errors.New("redis down")
	l := NewCachedLocator(countingLocator(&calls), c, time.Hour, zap.NewNop())

	loc, err := l.Locate(context.Background(), "400001")
	require.NoError(t, err)
	assert.Equal(t, "Mumbai", loc.City)
	assert.Equal(t, 1, calls)
}

func TestCachedLocator_CorruptEntryIgnored(t *testing.T) {
	calls := 0
	c := newMemoryCache()
	c.data["test:pincode:400001"] = "{not json"
	l := NewCachedLocator(countingLocator(&calls), c, time.Hour, zap.NewNop())

	_, err := l.Locate(context.Background(), "400001")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCachedLocator_MissIsNotCached(t *testing.T) {
	c := newMemoryCache()
	next := &mockLocator{
		LocateFunc: func(ctx context.Context, pincode string) (*domain.Location, error) {
			return nil, errors.New("not found")
		},
	}
	l := NewCachedLocator(next, c, time.Hour, zap.NewNop())

	_, err := l.Locate(context.Background(), "999999")
	assert.Error(t, err)
	assert.Empty(t, c.data)
}

func TestCachedLocator_Evict(t *testing.T) {
	calls := 0
	c := newMemoryCache()
	l := NewCachedLocator(countingLocator(&calls), c, time.Hour, zap.NewNop())

	_, err := l.Locate(context.Background(), "400001")
	require.NoError(t, err)
	require.NoError(t, l.Evict(context.Background(), "400001"))
	assert.Empty(t, c.data)

	_, err = l.Locate(context.Background(), "400001")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
