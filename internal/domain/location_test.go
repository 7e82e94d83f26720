package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSuccess_ValidCoordinates(t *testing.T) {
	fixed := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	defer SetClock(nil)

	r, err := NewSuccess(MethodFixed, "fixed", 40.7128, -74.0060)
	require.NoError(t, err)

	assert.True(t, r.Success)
	assert.Equal(t, 40.7128, r.Lat)
	assert.Equal(t, -74.0060, r.Lon)
	assert.Equal(t, MethodFixed, r.Method)
	assert.Equal(t, fixed, r.ObservedAt)
	assert.Equal(t, "Unknown", r.Place.City)
	require.NoError(t, r.Validate())
}

func TestNewSuccess_RejectsOutOfRange(t *testing.T) {
	tests := []struct {
		lat, lon float64
	}{
		{200, 0},
		{-91, 0},
		{0, 181},
		{0, -180.5},
		{90.0001, -74},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%g,%g", tt.lat, tt.lon), func(t *testing.T) {
			_, err := NewSuccess(MethodIP, "ip-api", tt.lat, tt.lon)
			assert.Error(t, err)
		})
	}
}

func TestNewFailure_CarriesReason(t *testing.T) {
	r := NewFailure(MethodIP, "ip-api", ReasonTimeout)
	assert.False(t, r.Success)
	assert.Equal(t, ReasonTimeout, r.ErrorReason)
	require.NoError(t, r.Validate())
}

func TestValidate_FailureWithoutReason(t *testing.T) {
	r := LocationResult{Success: false, Source: "ip-api"}
	assert.Error(t, r.Validate())
}

func TestWithPlace_NormalizesEmptyFields(t *testing.T) {
	r, err := NewSuccess(MethodIP, "ipwho.is", 59.3293, 18.0686)
	require.NoError(t, err)

	r = r.WithPlace(Place{City: "Stockholm", Country: "Sweden"})
	assert.Equal(t, "Stockholm", r.Place.City)
	assert.Equal(t, "Unknown", r.Place.Region)
	assert.Equal(t, "Sweden", r.Place.Country)
}

func TestDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		wantErr bool
	}{
		{"valid", Descriptor{Name: "ip", StaticWeight: 0.6}, false},
		{"weight one", Descriptor{Name: "fixed", StaticWeight: 1}, false},
		{"missing name", Descriptor{StaticWeight: 0.5}, true},
		{"zero weight", Descriptor{Name: "ip", StaticWeight: 0}, true},
		{"weight above one", Descriptor{Name: "ip", StaticWeight: 1.1}, true},
		{"negative weight", Descriptor{Name: "ip", StaticWeight: -0.2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, ReasonTimeout, FailureReason(fmt.Errorf("ip-api: %w", ErrTimeout)))
	assert.Equal(t, ReasonExhausted, FailureReason(ErrAllProvidersExhausted))
	assert.Empty(t, FailureReason(nil))
	assert.Equal(t, "boom", FailureReason(errors.New("boom")))
}
