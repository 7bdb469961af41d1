package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/sounding-etl/internal/config"
	"github.com/couchcryptid/sounding-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes one message per written file.
// It implements pipeline.Notifier.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
	now    func() time.Time
}

// NewWriter creates a Kafka producer for the configured notification topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger, now: time.Now}
}

// Notify publishes a file-written message keyed by flight id, so every file
// of a flight lands on the same partition in write order.
func (w *Writer) Notify(ctx context.Context, runID string, file domain.OutputFile) error {
	msg, err := serializeToMessage(runID, file, w.now())
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", file.Path, err)
	}
	w.logger.Debug("file notification published", "flight_id", file.FlightID, "segment", file.Segment)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// notification is the JSON value of a file-written message.
type notification struct {
	RunID string `json:"run_id"`
	domain.OutputFile
}

// serializeToMessage marshals an OutputFile into a Kafka message.
func serializeToMessage(runID string, file domain.OutputFile, writtenAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(notification{RunID: runID, OutputFile: file})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize output file: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(file.FlightID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "flight_id", Value: []byte(file.FlightID)},
			{Key: "run_id", Value: []byte(runID)},
			{Key: "written_at", Value: []byte(writtenAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
