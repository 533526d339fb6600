package config

import (
	"strings"
	"time"

	"github.com/UnknownOlympus/selene/internal/models"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Config holds the configuration settings for the location relay.
//
// Fields:
// - Env: The current environment (e.g., local, development, production).
// - Port: The port for the monitoring server.
// - LogFile: Optional path of a rotating log file.
// - ProviderType: The location provider to use (google, ipapi, static).
// - APIKey: The API key for the provider (required for Google).
// - RateLimit: Requests per second allowed against the provider.
// - StaticCoords: The fix reported by the static provider.
// - ChannelType: The transport to the device (websocket, kafka).
// - ChannelPort: The websocket listen port.
// - AckTimeout: How long to wait for the device to acknowledge a message.
// - Kafka: Broker settings for the kafka channel.
type Config struct {
	Env          string             `yaml:"env"`             // Env is the current environment: local, development, production.
	Port         int                `yaml:"health.port"`     // Port is the monitoring server port.
	LogFile      string             `yaml:"log_file"`        // LogFile enables rotating file output when set.
	ProviderType string             `yaml:"provider.type"`   // ProviderType specifies which location provider to use.
	APIKey       string             `yaml:"provider.key"`    // The API key for accessing external services.
	RateLimit    int                `yaml:"provider.rate"`   // Requests per second to the provider.
	StaticCoords models.Coordinates `yaml:"provider.static"` // Fix used by the static provider.
	ChannelType  string             `yaml:"channel.type"`    // ChannelType selects the device transport.
	ChannelPort  int                `yaml:"channel.port"`    // ChannelPort is the websocket listen port.
	AckTimeout   time.Duration      `yaml:"channel.ack"`     // AckTimeout bounds the wait for a device ack.
	Kafka        KafkaConfig        `yaml:"kafka"`           // Kafka holds the broker configuration.
}

// KafkaConfig holds the broker details for the kafka channel.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`        // Brokers is the list of bootstrap brokers.
	InboundTopic  string        `yaml:"inbound_topic"`  // InboundTopic carries device events to the relay.
	OutboundTopic string        `yaml:"outbound_topic"` // OutboundTopic carries coordinates to the device.
	GroupID       string        `yaml:"group_id"`       // GroupID is the consumer group of the relay.
	BatchTimeout  time.Duration `yaml:"batch_timeout"`  // BatchTimeout bounds how long the writer holds a record.
}

// MustLoad reads the configuration from the environment and an optional .env file.
func MustLoad() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	healthPort, err := cast.ToIntE(v.Get("SELENE_HEALTH_PORT"))
	if err != nil {
		panic("failed to parse port for monitoring server from configuration")
	}

	channelPort, err := cast.ToIntE(v.Get("SELENE_CHANNEL_PORT"))
	if err != nil {
		panic("failed to parse channel port from configuration")
	}

	rateLimit, err := cast.ToIntE(v.Get("SELENE_PROVIDER_RATE_LIMIT"))
	if err != nil {
		panic("failed to parse provider rate limit from configuration, must be an integer types")
	}

	ackTimeout, err := cast.ToDurationE(v.Get("SELENE_ACK_TIMEOUT"))
	if err != nil {
		panic("failed to parse ack timeout from configuration")
	}

	latitude, err := cast.ToFloat64E(v.Get("SELENE_STATIC_LATITUDE"))
	if err != nil {
		panic("failed to parse static latitude from configuration")
	}

	longitude, err := cast.ToFloat64E(v.Get("SELENE_STATIC_LONGITUDE"))
	if err != nil {
		panic("failed to parse static longitude from configuration")
	}

	batchTimeout, err := cast.ToDurationE(v.Get("KAFKA_WRITER_BATCH_TIMEOUT"))
	if err != nil {
		panic("failed to parse kafka writer batch timeout from configuration")
	}

	return &Config{
		Env:          v.GetString("SELENE_ENV"),
		Port:         healthPort,
		LogFile:      v.GetString("SELENE_LOG_FILE"),
		ProviderType: v.GetString("SELENE_PROVIDER_TYPE"),
		APIKey:       v.GetString("SELENE_PROVIDER_KEY"),
		RateLimit:    rateLimit,
		StaticCoords: models.Coordinates{Latitude: latitude, Longitude: longitude},
		ChannelType:  v.GetString("SELENE_CHANNEL_TYPE"),
		ChannelPort:  channelPort,
		AckTimeout:   ackTimeout,
		Kafka: KafkaConfig{
			Brokers:       splitList(v.GetString("KAFKA_BROKERS")),
			InboundTopic:  v.GetString("KAFKA_INBOUND_TOPIC"),
			OutboundTopic: v.GetString("KAFKA_OUTBOUND_TOPIC"),
			GroupID:       v.GetString("KAFKA_GROUP_ID"),
			BatchTimeout:  batchTimeout,
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SELENE_ENV", "production")
	v.SetDefault("SELENE_HEALTH_PORT", 8080)
	v.SetDefault("SELENE_LOG_FILE", "")
	v.SetDefault("SELENE_PROVIDER_TYPE", "ipapi")
	v.SetDefault("SELENE_PROVIDER_KEY", "")
	v.SetDefault("SELENE_PROVIDER_RATE_LIMIT", 1)
	v.SetDefault("SELENE_STATIC_LATITUDE", 0.0)
	v.SetDefault("SELENE_STATIC_LONGITUDE", 0.0)
	v.SetDefault("SELENE_CHANNEL_TYPE", "websocket")
	v.SetDefault("SELENE_CHANNEL_PORT", 9000)
	v.SetDefault("SELENE_ACK_TIMEOUT", 10*time.Second)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_INBOUND_TOPIC", "selene.inbound")
	v.SetDefault("KAFKA_OUTBOUND_TOPIC", "selene.outbound")
	v.SetDefault("KAFKA_GROUP_ID", "selene")
	v.SetDefault("KAFKA_WRITER_BATCH_TIMEOUT", 10*time.Millisecond)
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}
