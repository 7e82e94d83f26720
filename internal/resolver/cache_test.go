package resolver

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/whereami/internal/domain"
)

func fakeClock(t *testing.T) *clockwork.FakeClock {
	t.Helper()
	fake := clockwork.NewFakeClockAt(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })
	return fake
}

func cachedResult(t *testing.T) domain.LocationResult {
	t.Helper()
	res, err := domain.NewSuccess(domain.MethodFixed, "fixed", 40.7128, -74.0060)
	require.NoError(t, err)
	return res
}

func TestCacheMissWhenEmpty(t *testing.T) {
	_, ok := NewCache(time.Minute).Get()
	assert.False(t, ok)
}

func TestCachePutThenGet(t *testing.T) {
	fakeClock(t)
	c := NewCache(5 * time.Minute)
	want := cachedResult(t)

	c.Put(want)

	got, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	fake := fakeClock(t)
	c := NewCache(5 * time.Minute)
	c.Put(cachedResult(t))

	fake.Advance(4 * time.Minute)
	_, ok := c.Get()
	assert.True(t, ok)

	fake.Advance(time.Minute)
	_, ok = c.Get()
	assert.False(t, ok)
}

func TestCacheClear(t *testing.T) {
	fakeClock(t)
	c := NewCache(5 * time.Minute)
	c.Put(cachedResult(t))

	c.Clear()

	_, ok := c.Get()
	assert.False(t, ok)
}

func TestCacheZeroTTLUsesDefault(t *testing.T) {
	fake := fakeClock(t)
	c := NewCache(0)
	c.Put(cachedResult(t))

	fake.Advance(DefaultCacheTTL - time.Second)
	_, ok := c.Get()
	assert.True(t, ok)

	fake.Advance(2 * time.Second)
	_, ok = c.Get()
	assert.False(t, ok)
}
