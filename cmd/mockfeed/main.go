// Command mockfeed serves a local stand-in for the Vigil backend: the three
// snapshot endpoints and a websocket push feed of synthetic traffic. A share
// of pushed messages is deliberately malformed so rejection paths can be
// watched end to end.
//
// Usage:
//
//	go run ./cmd/mockfeed -addr :8000 -events 120 -rate 500ms -malformed 0.1
//
// Then point the service at it:
//
//	SNAPSHOT_BASE_URL=http://localhost:8000/api/v1 STREAM_URL=ws://localhost:8000/ws go run ./cmd/vigil
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	addr := flag.String("addr", ":8000", "listen address")
	events := flag.Int("events", 120, "events per snapshot")
	rate := flag.Duration("rate", 500*time.Millisecond, "delay between pushed messages")
	malformed := flag.Float64("malformed", 0.1, "fraction of pushed messages that are malformed")
	failRate := flag.Float64("fail-rate", 0, "fraction of snapshot requests answered with 503")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *events < 0 || *rate <= 0 || *malformed < 0 || *malformed > 1 || *failRate < 0 || *failRate > 1 {
		flag.Usage()
		return fmt.Errorf("invalid flags")
	}

	gen := newGenerator(*seed)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(gen, *events, *rate, *malformed, *failRate),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("mockfeed listening on %s (events=%d rate=%s malformed=%.2f fail-rate=%.2f)",
		*addr, *events, *rate, *malformed, *failRate)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// flaky reports true with probability p.
func flaky(p float64) bool {
	return p > 0 && rand.Float64() < p //nolint:gosec // test traffic only
}
