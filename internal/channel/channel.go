package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/selene/internal/appmessage"
)

// Handler reacts to a single inbound event.
type Handler func(ctx context.Context, evt appmessage.Event)

// Channel is a bidirectional message channel to the paired device.
type Channel interface {
	// On registers handler for every future event of the given type.
	On(event appmessage.EventType, handler Handler)
	// SendAppMessage delivers msg to the device and reports whether it was accepted.
	SendAppMessage(ctx context.Context, msg appmessage.Dictionary) error
	// Run serves the channel until ctx is cancelled.
	Run(ctx context.Context) error
}

// Common delivery errors.
var (
	ErrNoDevice     = errors.New("no device connected")
	ErrNacked       = errors.New("device rejected the app message")
	ErrAckTimeout   = errors.New("timed out waiting for device acknowledgement")
	ErrDisconnected = errors.New("device disconnected before acknowledging")
)

// Type represents the transport used to reach the device.
type Type string

const (
	// TypeWebSocket serves a websocket endpoint the device bridge connects to.
	TypeWebSocket Type = "websocket"
	// TypeKafka exchanges records with the device bridge through Kafka topics.
	TypeKafka Type = "kafka"
)

// Config holds configuration for creating a message channel.
type Config struct {
	Type       Type          // Type of channel to create
	Addr       string        // Listen address for the websocket channel
	AckTimeout time.Duration // How long the websocket channel waits for an ack
	Kafka      KafkaConfig   // Kafka settings for the kafka channel
	Logger     *slog.Logger  // Logger for the channel
}

// NewChannel creates a message channel based on the provided configuration.
func NewChannel(config Config) (Channel, error) {
	switch config.Type {
	case TypeWebSocket:
		if config.Addr == "" {
			return nil, errors.New("listen address is required for websocket channel")
		}
		return NewWebSocketChannel(config.Addr, config.AckTimeout, config.Logger), nil
	case TypeKafka:
		if len(config.Kafka.Brokers) == 0 {
			return nil, errors.New("at least one broker is required for kafka channel")
		}
		return NewKafkaChannel(config.Kafka, config.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported channel type: %s", config.Type)
	}
}
