package ipgeo

import (
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/oschwald/maxminddb-golang"
)

// localDB answers coordinate lookups from a GeoLite2-City MMDB file.
type localDB struct {
	reader *maxminddb.Reader
}

// cityRecord maps the fields we read from a GeoLite2-City database.
type cityRecord struct {
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Subdivisions []struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"subdivisions"`
	Country struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
	Location struct {
		Latitude       float64 `maxminddb:"latitude"`
		Longitude      float64 `maxminddb:"longitude"`
		AccuracyRadius uint16  `maxminddb:"accuracy_radius"`
	} `maxminddb:"location"`
}

// openLocalDB tries to open the MMDB file. Returns nil when unavailable so
// the provider degrades to remote endpoints only.
func openLocalDB(path string, logger *slog.Logger) *localDB {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warn("mmdb file not found, local lookup disabled", "path", path)
		return nil
	}

	reader, err := maxminddb.Open(path)
	if err != nil {
		logger.Warn("failed to open mmdb, local lookup disabled", "path", path, "error", err)
		return nil
	}

	logger.Info("local geolocation database loaded", "path", path)
	return &localDB{reader: reader}
}

// Lookup answers a coordinate fix for the given IP from the local database.
func (db *localDB) Lookup(ipStr string) (Fix, error) {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return Fix{}, fmt.Errorf("invalid IP: %s", ipStr)
	}

	var record cityRecord
	if err := db.reader.Lookup(ip, &record); err != nil {
		return Fix{}, fmt.Errorf("mmdb lookup: %w", err)
	}
	if record.Location.Latitude == 0 && record.Location.Longitude == 0 {
		return Fix{}, fmt.Errorf("no location data for %s", ipStr)
	}

	fix := Fix{
		Lat:     record.Location.Latitude,
		Lon:     record.Location.Longitude,
		City:    record.City.Names["en"],
		Country: record.Country.Names["en"],
	}
	if len(record.Subdivisions) > 0 {
		fix.Region = record.Subdivisions[0].Names["en"]
	}
	return fix, nil
}

func (db *localDB) Close() error {
	return db.reader.Close()
}
