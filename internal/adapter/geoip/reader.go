// Package geoip resolves destination addresses to coordinates for pushed
// messages that arrive without them.
package geoip

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/oschwald/maxminddb-golang"

	"github.com/couchcryptid/vigil-feed-service/internal/domain"
)

// Reader implements domain.Locator over a MaxMind City database.
type Reader struct {
	db *maxminddb.Reader
}

// Open memory-maps the database at path.
func Open(path string) (*Reader, error) {
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}
	return &Reader{db: db}, nil
}

// Close releases the mapped database.
func (r *Reader) Close() error {
	return r.db.Close()
}

// cityRecord is the subset of a GeoIP2/GeoLite2 City record we read.
type cityRecord struct {
	Country struct {
		ISOCode string            `maxminddb:"iso_code"`
		Names   map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
	Location struct {
		Latitude  *float64 `maxminddb:"latitude"`
		Longitude *float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

// Locate looks addr up. Addresses the database has no coordinates for
// return domain.ErrLocationNotFound.
func (r *Reader) Locate(_ context.Context, addr netip.Addr) (domain.Location, error) {
	var rec cityRecord
	if err := r.db.Lookup(net.IP(addr.Unmap().AsSlice()), &rec); err != nil {
		return domain.Location{}, fmt.Errorf("lookup %s: %w", addr, err)
	}
	if rec.Location.Latitude == nil || rec.Location.Longitude == nil {
		return domain.Location{}, domain.ErrLocationNotFound
	}
	return domain.Location{
		Lat:         *rec.Location.Latitude,
		Lon:         *rec.Location.Longitude,
		Country:     rec.Country.Names["en"],
		CountryCode: rec.Country.ISOCode,
	}, nil
}
