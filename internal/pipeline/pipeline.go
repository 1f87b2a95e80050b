// Package pipeline folds the two inbound sources, the periodic snapshot and
// the push stream, into the session's view model.
package pipeline

import (
	"context"

	"github.com/couchcryptid/vigil-feed-service/internal/domain"
)

// SnapshotFetcher retrieves the events, points, and stats that make up one
// snapshot. It returns everything or an error; never a partial set.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context) (domain.Snapshot, error)
}

// Relay forwards accepted stream records to a downstream consumer.
type Relay interface {
	Publish(ctx context.Context, rec domain.StreamRecord) error
}

// Normalizer validates a pushed message and builds its record.
type Normalizer interface {
	Normalize(ctx context.Context, msg domain.StreamMessage) (domain.StreamRecord, error)
}
