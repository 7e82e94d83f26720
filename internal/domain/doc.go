// Package domain models multi-provider geographic location resolution.
//
// # Providers
//
// A Provider is one strategy for obtaining the machine's coordinates: an
// IP-geolocation lookup, an on-device location helper, a fixed configured
// coordinate, or a free-text address geocode. Providers share a small
// contract: a cheap Available check and a timeout-bounded Resolve. Each
// provider carries a Descriptor with a static weight in (0,1] that ranks its
// answer against the others when several succeed in the same cycle.
//
// # Coordinate conventions
//
// Latitude and longitude are decimal degrees, WGS84. A successful
// LocationResult always carries range-valid coordinates (lat in [-90,90],
// lon in [-180,180]); a failed one carries an ErrorReason and its coordinates
// are meaningless. Accuracy is a radius in meters, 0 meaning unknown. Place
// fields default to "Unknown" rather than empty strings so downstream
// renderers never print blanks.
//
// # Distance
//
// Distance computes great-circle distance in kilometers with the Haversine
// formula (earth radius 6371 km). It backs cross-provider consistency
// scoring: two endpoints that place the same machine tens of kilometers
// apart are telling us something about one of them.
//
// # Error taxonomy
//
// Provider failures are classified with sentinel errors so callers match with
// errors.Is instead of comparing message strings:
//
//	ErrUnavailable   prerequisite missing (binary, credential, config)
//	ErrConsentDenied user refused the on-device location permission
//	ErrTimeout       bounded wait exceeded; safe to retry next cycle
//	ErrTransport     network or malformed-response failure
//
// Only ErrAllProvidersExhausted ever reaches the external caller; individual
// provider failures are logged at the component boundary and swallowed.
package domain
