package domain

import (
	"context"
	"errors"
	"net/netip"
)

// ErrLocationNotFound is returned by a Locator that has no entry for an address.
var ErrLocationNotFound = errors.New("location not found")

// Location is the geographic placement of an IP address.
type Location struct {
	Lat         float64
	Lon         float64
	Country     string
	CountryCode string
}

// Locator resolves destination addresses for pushed messages that arrive
// without coordinates.
type Locator interface {
	Locate(ctx context.Context, addr netip.Addr) (Location, error)
}

// Routable reports whether addr can be meaningfully geolocated. LAN,
// loopback, and link-local traffic never leave the building.
func Routable(addr netip.Addr) bool {
	return addr.IsValid() &&
		!addr.IsPrivate() &&
		!addr.IsLoopback() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsMulticast() &&
		!addr.IsUnspecified()
}
