package location

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/selene/internal/models"
	"googlemaps.github.io/maps"
)

// ProviderType represents the type of location provider.
type ProviderType string

const (
	// ProviderTypeGoogle represents the Google Geolocation API.
	ProviderTypeGoogle ProviderType = "google"
	// ProviderTypeIPAPI represents the ip-api.com IP geolocation service.
	ProviderTypeIPAPI ProviderType = "ipapi"
	// ProviderTypeStatic represents a fixed, configured position.
	ProviderTypeStatic ProviderType = "static"
)

// ProviderConfig holds configuration for creating a location provider.
type ProviderConfig struct {
	Type      ProviderType       // Type of provider to create
	APIKey    string             // API key (required by Google, optional for ip-api)
	RateLimit int                // Rate limit for requests per second
	Static    models.Coordinates // Coordinates reported by the static provider
	Logger    *slog.Logger       // Logger for the provider
}

// NewProvider creates a location provider based on the provided configuration.
//
// Supported provider types:
// - "google": Google Geolocation API (requires API key)
// - "ipapi": ip-api.com (free without a key)
// - "static": fixed coordinates
//
// Returns an error if the provider type is unsupported or if provider creation fails.
func NewProvider(config ProviderConfig) (Provider, error) {
	switch config.Type {
	case ProviderTypeGoogle:
		return newGoogleProvider(config)
	case ProviderTypeIPAPI:
		return newIPAPIProvider(config), nil
	case ProviderTypeStatic:
		return NewStaticProvider(config.Static), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}

// newGoogleProvider creates a Google Geolocation provider.
func newGoogleProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key is required for Google provider")
	}

	clientOpts := []maps.ClientOption{
		maps.WithAPIKey(config.APIKey),
	}

	if config.RateLimit > 0 {
		clientOpts = append(clientOpts, maps.WithRateLimit(config.RateLimit))
	}

	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return NewGoogleProvider(client, config.Logger), nil
}

// newIPAPIProvider creates an ip-api provider.
func newIPAPIProvider(config ProviderConfig) Provider {
	if config.RateLimit <= 0 {
		config.RateLimit = 1
		config.Logger.Warn("Rate limit for ip-api not set, set a default value", "value", config.RateLimit)
	}

	return NewIPAPIProvider(config.APIKey, config.RateLimit, config.Logger)
}
