package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/selene/internal/appmessage"
	"github.com/segmentio/kafka-go"
)

// SessionHeader carries the bridge session id on Kafka records.
const SessionHeader = "session"

// KafkaConfig holds the broker and topic settings for the Kafka channel.
type KafkaConfig struct {
	Brokers       []string      // Brokers is the list of bootstrap brokers.
	InboundTopic  string        // InboundTopic carries device events to the phone.
	OutboundTopic string        // OutboundTopic carries app messages to the device.
	GroupID       string        // GroupID is the consumer group for the inbound topic.
	BatchTimeout  time.Duration // BatchTimeout caps how long the writer waits to fill a batch.
}

const defaultBatchTimeout = 10 * time.Millisecond

// KafkaReader defines the interface for a Kafka message reader.
// This allows for easy mocking in unit tests.
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaWriter defines the interface for a Kafka message writer.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaChannel implements Channel over a pair of Kafka topics.
// Inbound record keys name the event type; values hold the JSON dictionary.
type KafkaChannel struct {
	*dispatcher

	log     *slog.Logger
	reader  KafkaReader
	writer  KafkaWriter
	backoff time.Duration
}

// NewKafkaChannel creates a Kafka channel from config.
func NewKafkaChannel(config KafkaConfig, log *slog.Logger) *KafkaChannel {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: config.Brokers,
		Topic:   config.InboundTopic,
		GroupID: config.GroupID,
		// Offsets are committed explicitly after each record is dispatched.
		CommitInterval: 0,
		MinBytes:       1,
		MaxBytes:       10e6,
	})

	return NewKafkaChannelWithClients(reader, newKafkaWriter(config), log)
}

// newKafkaWriter builds the outbound writer. Every send is a single record, so
// the batch timeout is kept short instead of kafka-go's one second default.
func newKafkaWriter(config KafkaConfig) *kafka.Writer {
	batchTimeout := config.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = defaultBatchTimeout
	}

	return &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.OutboundTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: batchTimeout,
	}
}

// NewKafkaChannelWithClients allows injecting custom reader and writer.
func NewKafkaChannelWithClients(reader KafkaReader, writer KafkaWriter, log *slog.Logger) *KafkaChannel {
	return &KafkaChannel{
		dispatcher: newDispatcher(log),
		log:        log,
		reader:     reader,
		writer:     writer,
		backoff:    time.Second,
	}
}

// Run consumes inbound records until ctx is cancelled or the reader is closed.
func (c *KafkaChannel) Run(ctx context.Context) error {
	defer c.close(ctx)

	c.log.InfoContext(ctx, "Starting Kafka device channel")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.log.InfoContext(ctx, "Kafka device channel stopped")
				return nil
			}

			c.log.ErrorContext(ctx, "Error reading inbound record", "error", err)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		c.handleRecord(ctx, msg)

		if err = c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.ErrorContext(ctx, "Failed to commit inbound record",
				"partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

// SendAppMessage publishes msg to the outbound topic.
// Success means the broker acknowledged the write.
func (c *KafkaChannel) SendAppMessage(ctx context.Context, msg appmessage.Dictionary) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode app message: %w", err)
	}

	record := kafka.Message{
		Key:   []byte(appmessage.EventAppMessage),
		Value: value,
	}

	if err = c.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("failed to publish app message: %w", err)
	}

	return nil
}

func (c *KafkaChannel) handleRecord(ctx context.Context, msg kafka.Message) {
	evt := appmessage.Event{
		Type:    appmessage.EventType(msg.Key),
		Session: sessionFromHeaders(msg.Headers),
	}

	switch evt.Type {
	case appmessage.EventReady:
	case appmessage.EventAppMessage:
		if len(msg.Value) > 0 {
			if err := json.Unmarshal(msg.Value, &evt.Payload); err != nil {
				c.log.WarnContext(ctx, "Dropping malformed inbound record",
					"partition", msg.Partition, "offset", msg.Offset, "error", err)
				return
			}
		}
	default:
		c.log.WarnContext(ctx, "Unknown inbound event", "event", evt.Type, "offset", msg.Offset)
		return
	}

	c.dispatch(ctx, evt)
}

func (c *KafkaChannel) close(ctx context.Context) {
	if err := c.reader.Close(); err != nil {
		c.log.ErrorContext(ctx, "Failed to close Kafka reader", "error", err)
	}
	if err := c.writer.Close(); err != nil {
		c.log.ErrorContext(ctx, "Failed to close Kafka writer", "error", err)
	}
}

func sessionFromHeaders(headers []kafka.Header) string {
	for _, header := range headers {
		if header.Key == SessionHeader {
			return string(header.Value)
		}
	}

	return ""
}
