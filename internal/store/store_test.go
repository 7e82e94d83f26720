package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/whereami/internal/netcheck"
	"github.com/couchcryptid/whereami/internal/optimize"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "whereami.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadRankedEmpty(t *testing.T) {
	s := openTestStore(t)

	_, err := s.LoadRanked()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)

	want := optimize.RankedConfig{
		ProviderOrder: []string{"devloc", "ip", "fixed"},
		Settings: map[string]map[string]string{
			"geocode": {"address": "1 Main St"},
		},
		HybridEnabled: true,
		Condition:     netcheck.Condition{ConnectionType: netcheck.TypeWiFi, IsReliable: true},
		GeneratedAt:   time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveRanked(want))

	got, err := s.LoadRanked()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveRankedOverwrites(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveRanked(optimize.RankedConfig{ProviderOrder: []string{"ip"}}))
	require.NoError(t, s.SaveRanked(optimize.RankedConfig{ProviderOrder: []string{"fixed"}}))

	got, err := s.LoadRanked()
	require.NoError(t, err)
	assert.Equal(t, []string{"fixed"}, got.ProviderOrder)
}
