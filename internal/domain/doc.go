// Package domain models the geolocated threat events shown by the Vigil
// visualizer.
//
// # Data Sources
//
// Events reach the service two ways. A periodic snapshot pulls three related
// payloads from the backend API:
//
//	GET {base}/events      → {"events": [Event]}
//	GET {base}/events/geo  → {"points": [GeoPoint]}
//	GET {base}/events/stats → Stats
//
// A persistent websocket pushes one message per intercepted connection:
//
//	{"lat": 37.75, "lon": -97.82, "country": "United States", "dst_ip": "8.8.8.8"}
//
// Pushed messages may also carry id, severity, title, source, and source_url.
// Unknown fields are ignored.
//
// # Severity
//
// Four levels form a closed, totally ordered set: critical, high, medium,
// low. Every Event and GeoPoint carries exactly one. The same table drives
// marker color and radius in every view:
//
//	critical  #ff3b30  r=10
//	high      #ff9500  r=8
//	medium    #ffcc00  r=6
//	low       #34c759  r=5
//
// Pushed messages without a severity are classified from their title by
// keyword (see [Classifier]); without a title they are low.
//
// # Identity
//
// An Event and its GeoPoint share an ID. Pushed messages without an ID get a
// deterministic one derived from destination address and coordinates (see
// [generateID]), so repeated traffic to the same host updates a single
// marker rather than stacking duplicates.
//
// # Coordinates
//
// Latitude must lie in [-90, 90] and longitude in [-180, 180]. Pushed
// messages missing coordinates are geolocated from dst_ip when a [Locator]
// is configured; private and loopback addresses are never looked up.
package domain
