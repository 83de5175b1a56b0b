// Package ingest consumes audio detection messages from Kafka and records
// them as repetitions. The detector publishes one message per detected
// chant; the consumer is the only path by which audio reaches the ledger.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"japa/internal/ledger"
	id "japa/pkg/domain"
	dErrors "japa/pkg/domain-errors"
)

// Recorder is the ledger surface the consumer writes through.
type Recorder interface {
	RecordRepetitionAt(ctx context.Context, profileID id.ProfileID, source id.Source, dedupKey string, occurredAt time.Time) (ledger.Totals, error)
}

// detection is the wire format of one detector message.
type detection struct {
	ProfileID  string    `json:"profile_id"`
	DetectedAt time.Time `json:"detected_at"`
	DedupKey   string    `json:"dedup_key"`
}

// Consumer polls the detections topic and records each message. Offsets
// commit only after the repetition is durably counted, so a crash between
// poll and record redelivers rather than drops. Redelivery is safe: every
// detector message carries a dedup key.
type Consumer struct {
	client   *kgo.Client
	recorder Recorder
	logger   *slog.Logger
}

// NewConsumer connects a consumer group to the detections topic.
func NewConsumer(brokers []string, topic, group string, rec Recorder, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup(group),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Consumer{client: client, recorder: rec, logger: logger}, nil
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var failed bool
		fetches.EachRecord(func(record *kgo.Record) {
			if failed {
				return
			}
			if err := c.handle(ctx, record); err != nil {
				failed = true
			}
		})
		if failed {
			// Skip the commit; uncommitted records redeliver after the
			// next rebalance or restart and dedup keys absorb the repeats.
			continue
		}

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
			c.logger.ErrorContext(ctx, "offset commit failed", "error", err)
		}
	}
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}

// handle records one detection. Malformed messages are logged and skipped;
// storage outages retry with backoff until ctx ends, because a detection
// once fetched must not be silently dropped.
func (c *Consumer) handle(ctx context.Context, record *kgo.Record) error {
	var det detection
	if err := json.Unmarshal(record.Value, &det); err != nil {
		c.logger.WarnContext(ctx, "malformed detection skipped",
			"partition", record.Partition,
			"offset", record.Offset,
			"error", err,
		)
		return nil
	}

	profileID, err := id.ParseProfileID(det.ProfileID)
	if err != nil {
		c.logger.WarnContext(ctx, "detection with invalid profile skipped",
			"partition", record.Partition,
			"offset", record.Offset,
			"error", err,
		)
		return nil
	}

	detectedAt := det.DetectedAt
	if detectedAt.IsZero() {
		detectedAt = record.Timestamp
	}

	backoff := 250 * time.Millisecond
	for {
		_, err := c.recorder.RecordRepetitionAt(ctx, profileID, id.SourceAudio, det.DedupKey, detectedAt)
		if err == nil {
			return nil
		}
		if !dErrors.HasCode(err, dErrors.CodeStorageUnavailable) {
			c.logger.WarnContext(ctx, "unrecordable detection skipped",
				"profile_id", profileID,
				"offset", record.Offset,
				"error", err,
			)
			return nil
		}

		c.logger.WarnContext(ctx, "detection record failed, retrying",
			"profile_id", profileID,
			"offset", record.Offset,
			"backoff", backoff,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 8*time.Second {
			backoff *= 2
		}
	}
}
