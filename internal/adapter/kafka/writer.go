// Package kafka relays accepted stream records to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/vigil-feed-service/internal/config"
	"github.com/couchcryptid/vigil-feed-service/internal/domain"
	"github.com/couchcryptid/vigil-feed-service/internal/observability"
)

// Writer produces relay messages to a Kafka topic.
// It implements pipeline.Relay.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates an asynchronous Kafka producer for the relay topic.
// Publish never blocks on the broker; delivery failures are logged and
// counted from the completion callback.
func NewWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaRelayTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 100 * time.Millisecond,
		Async:        true,
		Completion: func(msgs []kafkago.Message, err error) {
			if err == nil {
				return
			}
			metrics.RelayErrors.Add(float64(len(msgs)))
			logger.Error("relay delivery failed", "error", err, "messages", len(msgs))
		},
	}
	return &Writer{writer: w, logger: logger}
}

// Publish enqueues one stream record, keyed by event ID so updates to the
// same marker land on the same partition.
func (w *Writer) Publish(ctx context.Context, rec domain.StreamRecord) error {
	msg, err := serializeToMessage(rec)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// RelayEvent is the JSON value written for each accepted stream record.
type RelayEvent struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Source      string          `json:"source"`
	SourceURL   string          `json:"source_url,omitempty"`
	Severity    domain.Severity `json:"severity"`
	Lat         float64         `json:"lat"`
	Lng         float64         `json:"lng"`
	Country     string          `json:"country"`
	CountryCode string          `json:"country_code,omitempty"`
	DstIP       string          `json:"dst_ip"`
	ReceivedAt  time.Time       `json:"received_at"`
}

// serializeToMessage marshals a StreamRecord into a Kafka message.
func serializeToMessage(rec domain.StreamRecord) (kafkago.Message, error) {
	data, err := json.Marshal(RelayEvent{
		ID:          rec.Event.ID,
		Title:       rec.Event.Title,
		Source:      rec.Event.Source,
		SourceURL:   rec.Event.SourceURL,
		Severity:    rec.Event.Severity,
		Lat:         rec.Point.Lat,
		Lng:         rec.Point.Lng,
		Country:     rec.Point.Country,
		CountryCode: rec.Point.CountryCode,
		DstIP:       rec.DstIP,
		ReceivedAt:  rec.ReceivedAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize stream record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "severity", Value: []byte(rec.Event.Severity)},
			{Key: "received_at", Value: []byte(rec.ReceivedAt.Format(time.RFC3339))},
		},
	}, nil
}
