package location

import (
	"context"
	"log/slog"
	"strings"

	"github.com/UnknownOlympus/selene/internal/models"
	"googlemaps.github.io/maps"
)

// GoogleProvider is a struct that holds the client for the Google Geolocation API
// and a logger for logging purposes. The phone has no radio scan to offer, so the
// API is asked to resolve the position from the caller's IP address.
type GoogleProvider struct {
	client GoogleAPIClient // client is the Google Maps API client
	log    *slog.Logger    // log is the logger for logging operations
}

type GoogleAPIClient interface {
	Geolocate(ctx context.Context, r *maps.GeolocationRequest) (*maps.GeolocationResult, error)
}

// NewGoogleProvider initializes a new GoogleProvider with the given client and logger.
func NewGoogleProvider(client GoogleAPIClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, log: log}
}

// Locate asks the Geolocation API for the current position.
// Rejected credentials are reported as CodePermissionDenied; other API failures
// and empty answers as CodePositionUnavailable.
func (gp *GoogleProvider) Locate(ctx context.Context) (*models.Position, error) {
	gp.log.DebugContext(ctx, "Locating using Google Geolocation API")

	req := maps.GeolocationRequest{ConsiderIP: true}
	result, err := gp.client.Geolocate(ctx, &req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isAuthFailure(err) {
			return nil, &PositionError{Code: CodePermissionDenied, Message: "google geolocation rejected credentials", Err: err}
		}
		return nil, unavailable("google geolocation request failed", err)
	}

	if result == nil {
		return nil, unavailable("google geolocation returned empty response", nil)
	}

	gp.log.DebugContext(ctx, "Google found position",
		"lat", result.Location.Lat, "lon", result.Location.Lng, "accuracy", result.Accuracy)

	return &models.Position{
		Coords:   models.Coordinates{Latitude: result.Location.Lat, Longitude: result.Location.Lng},
		Accuracy: result.Accuracy,
	}, nil
}

// The maps client flattens API errors into their message text.
var authFailureMarkers = []string{"api key", "not authorized", "permission", "forbidden"}

func isAuthFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range authFailureMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}
