package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/couchcryptid/vigil-feed-service/internal/domain"
)

type place struct {
	country string
	lat     float64
	lng     float64
}

var places = []place{
	{"Ukraine", 50.45, 30.52},
	{"Israel", 31.77, 35.21},
	{"Sudan", 15.50, 32.56},
	{"Germany", 52.52, 13.40},
	{"Brazil", -15.79, -47.88},
	{"Japan", 35.68, 139.69},
	{"Nigeria", 9.08, 7.40},
	{"United States", 38.90, -77.04},
	{"India", 28.61, 77.21},
	{"Australia", -35.28, 149.13},
}

var headlines = map[domain.Severity][]string{
	domain.SeverityCritical: {"Explosion reported near %s", "Bombing kills dozens in %s"},
	domain.SeverityHigh:     {"Protest turns to violence in %s", "Border conflict escalates in %s"},
	domain.SeverityMedium:   {"New sanction announced against %s", "Trade dispute deepens with %s"},
	domain.SeverityLow:      {"Elections scheduled in %s", "Summit held in %s"},
}

// generator produces synthetic backend payloads.
type generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	seq int
}

func newGenerator(seed uint64) *generator {
	return &generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))} //nolint:gosec // test traffic only
}

func (g *generator) severity() domain.Severity {
	sevs := domain.Severities()
	return sevs[g.rng.IntN(len(sevs))]
}

// snapshot builds n events, the subset that is mapped, and matching stats.
func (g *generator) snapshot(n int) ([]domain.Event, []domain.GeoPoint, domain.Stats) {
	g.mu.Lock()
	defer g.mu.Unlock()

	events := make([]domain.Event, 0, n)
	points := make([]domain.GeoPoint, 0, n)
	stats := domain.NewStats()
	for i := range n {
		sev := g.severity()
		p := places[g.rng.IntN(len(places))]
		tmpl := headlines[sev][g.rng.IntN(len(headlines[sev]))]
		id := fmt.Sprintf("gdelt-%d", i)
		title := fmt.Sprintf(tmpl, p.country)
		url := fmt.Sprintf("https://news.example.com/%s", id)

		events = append(events, domain.Event{ID: id, Title: title, Source: "gdelt", SourceURL: url, Severity: sev})
		stats.Total++
		stats.Severity[sev]++
		// Roughly a fifth of events have no location, like RSS items.
		if g.rng.IntN(5) == 0 {
			continue
		}
		points = append(points, domain.GeoPoint{
			ID:        id,
			Lat:       p.lat + g.rng.Float64() - 0.5,
			Lng:       p.lng + g.rng.Float64() - 0.5,
			Severity:  sev,
			Title:     title,
			Country:   p.country,
			SourceURL: url,
		})
	}
	stats.Mapped = len(points)
	return events, points, stats
}

// message builds one push payload, malformed with probability bad.
func (g *generator) message(bad float64) map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	p := places[g.rng.IntN(len(places))]
	msg := map[string]any{
		"lat":     p.lat + g.rng.Float64()*2 - 1,
		"lon":     p.lng + g.rng.Float64()*2 - 1,
		"country": p.country,
		"dst_ip":  fmt.Sprintf("%d.%d.%d.%d", 1+g.rng.IntN(222), g.rng.IntN(256), g.rng.IntN(256), 1+g.rng.IntN(254)),
	}
	if g.rng.IntN(2) == 0 {
		msg["severity"] = string(g.severity())
	}
	if bad > 0 && g.rng.Float64() < bad {
		switch g.rng.IntN(3) {
		case 0:
			msg["severity"] = "urgent"
		case 1:
			msg["lat"] = 123.4
		default:
			delete(msg, "dst_ip")
		}
	}
	return msg
}

func newMux(gen *generator, n int, rate time.Duration, malformed, failRate float64) *http.ServeMux {
	mux := http.NewServeMux()

	var (
		once   sync.Once
		events []domain.Event
		points []domain.GeoPoint
		stats  domain.Stats
	)
	data := func() {
		once.Do(func() { events, points, stats = gen.snapshot(n) })
	}

	snapshotHandler := func(body func() any) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			if flaky(failRate) {
				http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
				return
			}
			data()
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(body()) //nolint:errcheck // best-effort mock response
		}
	}
	mux.HandleFunc("GET /api/v1/events", snapshotHandler(func() any { return map[string]any{"events": events} }))
	mux.HandleFunc("GET /api/v1/events/geo", snapshotHandler(func() any { return map[string]any{"points": points} }))
	mux.HandleFunc("GET /api/v1/events/stats", snapshotHandler(func() any { return stats }))

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		log.Printf("push client connected from %s", r.RemoteAddr)

		// Drain client frames so pings are answered and closes are noticed.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(rate)
		defer ticker.Stop()
		for {
			select {
			case <-closed:
				log.Printf("push client %s disconnected", r.RemoteAddr)
				return
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(gen.message(malformed)); err != nil {
					return
				}
			}
		}
	})
	return mux
}
