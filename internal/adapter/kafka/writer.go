package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes unified rows to a Kafka topic, one message per row.
// It implements pipeline.Loader.
type Writer struct {
	writer      messageWriter
	logger      *slog.Logger
	batchSize   int
	maxAttempts int
	backoff     time.Duration
}

const maxBackoff = 5 * time.Second

// NewWriter creates a Kafka producer for topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{
		writer:      w,
		logger:      logger,
		batchSize:   500,
		maxAttempts: 3,
		backoff:     200 * time.Millisecond,
	}
}

// Load serializes every row of the batch and publishes them in chunks.
// Rows for the same username share a key and therefore a partition.
func (w *Writer) Load(ctx context.Context, batch domain.Batch) error {
	if batch.Table.Len() == 0 {
		return nil
	}

	msgs := make([]kafkago.Message, 0, w.batchSize)
	sent := 0
	for _, row := range batch.Table.Rows {
		msg, err := serializeRow(batch.RunID, batch.Table.Columns, row)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
		if len(msgs) == w.batchSize {
			if err := w.write(ctx, msgs); err != nil {
				return err
			}
			sent += len(msgs)
			msgs = msgs[:0]
		}
	}
	if len(msgs) > 0 {
		if err := w.write(ctx, msgs); err != nil {
			return err
		}
		sent += len(msgs)
	}

	w.logger.Info("kafka messages produced", "run_id", batch.RunID, "messages", sent)
	return nil
}

// write publishes one chunk, retrying with exponential backoff.
func (w *Writer) write(ctx context.Context, msgs []kafkago.Message) error {
	backoff := w.backoff
	for attempt := 1; ; attempt++ {
		err := w.writer.WriteMessages(ctx, msgs...)
		if err == nil {
			return nil
		}
		if attempt >= w.maxAttempts || ctx.Err() != nil {
			return fmt.Errorf("write kafka messages: %w", err)
		}
		w.logger.Warn("kafka write failed, retrying", "attempt", attempt, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return fmt.Errorf("write kafka messages: %w", ctx.Err())
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeRow marshals one row into a Kafka message. Only the table's
// columns are encoded; null cells become JSON null.
func serializeRow(runID string, columns []string, row domain.Row) (kafkago.Message, error) {
	payload := make(map[string]any, len(columns))
	for _, c := range columns {
		payload[c] = row[c]
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize location record: %w", err)
	}

	username, _ := row[domain.ColUsername].(string)
	recordType, _ := row[domain.ColType].(string)
	return kafkago.Message{
		Key:   []byte(username),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "record_type", Value: []byte(recordType)},
			{Key: "run_id", Value: []byte(runID)},
		},
	}, nil
}
