package domain

import (
	"fmt"
	"time"
)

// Method identifies the strategy that produced a LocationResult.
type Method string

const (
	MethodIP      Method = "ip"
	MethodDevice  Method = "devloc"
	MethodFixed   Method = "fixed"
	MethodGeocode Method = "geocode"
	MethodHybrid  Method = "hybrid"
)

// Place holds human-readable location metadata. Fields default to "Unknown".
type Place struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

// UnknownPlace returns a Place with all fields set to "Unknown".
func UnknownPlace() Place {
	return Place{City: "Unknown", Region: "Unknown", Country: "Unknown"}
}

// normalize fills empty fields with "Unknown".
func (p Place) normalize() Place {
	if p.City == "" {
		p.City = "Unknown"
	}
	if p.Region == "" {
		p.Region = "Unknown"
	}
	if p.Country == "" {
		p.Country = "Unknown"
	}
	return p
}

// LocationResult is the immutable outcome of one resolution attempt.
// When Success is true the coordinates are range-valid; when false,
// ErrorReason is set and the coordinates are meaningless.
type LocationResult struct {
	Success        bool      `json:"success"`
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
	AccuracyMeters float64   `json:"accuracy_meters,omitempty"`
	Place          Place     `json:"place"`
	Method         Method    `json:"method"`
	Source         string    `json:"source"`
	ErrorReason    string    `json:"error_reason,omitempty"`
	ObservedAt     time.Time `json:"observed_at"`

	// Weight is assigned by the selector after the provider answers,
	// never by the provider itself.
	Weight float64 `json:"weight,omitempty"`

	// Consulted lists the providers actually probed during a hybrid cycle.
	Consulted []string `json:"consulted,omitempty"`
}

// NewSuccess builds a successful result, rejecting out-of-range coordinates.
func NewSuccess(method Method, source string, lat, lon float64) (LocationResult, error) {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return LocationResult{}, err
	}
	return LocationResult{
		Success:    true,
		Lat:        lat,
		Lon:        lon,
		Place:      UnknownPlace(),
		Method:     method,
		Source:     source,
		ObservedAt: Clock().Now().UTC(),
	}, nil
}

// NewFailure builds a failed result carrying the given reason.
func NewFailure(method Method, source, reason string) LocationResult {
	return LocationResult{
		Success:     false,
		Place:       UnknownPlace(),
		Method:      method,
		Source:      source,
		ErrorReason: reason,
		ObservedAt:  Clock().Now().UTC(),
	}
}

// WithPlace returns a copy of r with normalized place metadata attached.
func (r LocationResult) WithPlace(p Place) LocationResult {
	r.Place = p.normalize()
	return r
}

// Validate checks the result invariant: success implies range-valid
// coordinates, failure implies a populated error reason.
func (r LocationResult) Validate() error {
	if r.Success {
		return ValidateCoordinates(r.Lat, r.Lon)
	}
	if r.ErrorReason == "" {
		return fmt.Errorf("failed result without error reason (source %q)", r.Source)
	}
	return nil
}

// Age reports how old the result is relative to the domain clock.
func (r LocationResult) Age() time.Duration {
	return Clock().Since(r.ObservedAt)
}

// ValidateCoordinates rejects latitudes outside [-90,90] and longitudes
// outside [-180,180]. Values are never clamped.
func ValidateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %g out of range [-90,90]", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %g out of range [-180,180]", lon)
	}
	return nil
}
