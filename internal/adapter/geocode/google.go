package geocode

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

// Google implements Backend using the official Google Maps client.
type Google struct {
	client *maps.Client
}

// NewGoogle creates a Google geocoding backend.
func NewGoogle(apiKey string) (*Google, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Google{client: client}, nil
}

func (g *Google) Name() string { return "google" }

// Geocode converts a free-text address to coordinates.
func (g *Google) Geocode(ctx context.Context, address string) (Result, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return Result{}, fmt.Errorf("google geocode: %w", err)
	}
	if len(results) == 0 {
		return Result{}, fmt.Errorf("no match for address %q", address)
	}

	r := results[0]
	out := Result{
		Lat:              r.Geometry.Location.Lat,
		Lon:              r.Geometry.Location.Lng,
		FormattedAddress: r.FormattedAddress,
	}
	for _, comp := range r.AddressComponents {
		for _, typ := range comp.Types {
			switch typ {
			case "locality":
				out.City = comp.LongName
			case "administrative_area_level_1":
				out.Region = comp.LongName
			case "country":
				out.Country = comp.LongName
			}
		}
	}
	return out, nil
}
