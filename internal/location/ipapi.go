package location

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/UnknownOlympus/selene/internal/models"
	"golang.org/x/time/rate"
)

// IPAPI endpoints. The free tier is plain HTTP; the keyed tier is HTTPS.
const (
	IPAPIBaseURL    = "http://ip-api.com/json/"
	IPAPIProBaseURL = "https://pro.ip-api.com/json/"
)

// IPAPIProvider implements Provider using the ip-api.com IP geolocation service.
// The free tier allows 45 requests per minute.
type IPAPIProvider struct {
	client  HTTPClient    // HTTP client for making requests
	baseURL string        // Base URL for the ip-api endpoint
	apiKey  string        // API key for the pro endpoint, optional
	log     *slog.Logger  // Logger for logging operations
	limiter *rate.Limiter // Rate limiter
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ipapiResponse represents the JSON response from ip-api.
type ipapiResponse struct {
	Status  string  `json:"status"`  // "success" or "fail"
	Message string  `json:"message"` // Failure reason when Status is "fail"
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// NewIPAPIProvider creates a new ip-api provider.
// An empty apiKey selects the free endpoint.
func NewIPAPIProvider(apiKey string, rateLimit int, log *slog.Logger) *IPAPIProvider {
	const timeout = 10

	return NewIPAPIProviderWithClient(
		&http.Client{Timeout: timeout * time.Second},
		apiKey,
		rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
		log,
	)
}

// NewIPAPIProviderWithClient allows injecting custom HTTP client and limiter.
func NewIPAPIProviderWithClient(
	client HTTPClient,
	apiKey string,
	limiter *rate.Limiter,
	log *slog.Logger,
) *IPAPIProvider {
	baseURL := IPAPIBaseURL
	if apiKey != "" {
		baseURL = IPAPIProBaseURL
	}

	return &IPAPIProvider{
		client:  client,
		baseURL: baseURL,
		apiKey:  apiKey,
		log:     log,
		limiter: limiter,
	}
}

// Locate resolves the phone's public IP address to coordinates.
func (ip *IPAPIProvider) Locate(ctx context.Context) (*models.Position, error) {
	if err := ip.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	reqURL, err := url.Parse(ip.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query := reqURL.Query()
	query.Set("fields", "status,message,lat,lon")
	if ip.apiKey != "" {
		query.Set("key", ip.apiKey)
	}
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := ip.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute location request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &PositionError{
			Code:    CodePermissionDenied,
			Message: fmt.Sprintf("ip-api rejected the request with status %d", resp.StatusCode),
		}
	default:
		body, _ := io.ReadAll(resp.Body)
		ip.log.ErrorContext(ctx, "ip-api error", "status", resp.StatusCode, "body", string(body))
		return nil, unavailable(fmt.Sprintf("ip-api returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	ip.log.DebugContext(ctx, "ip-api raw response", "body", string(body))

	var result ipapiResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, unavailable("failed to decode ip-api response", err)
	}

	if result.Status != "success" {
		return nil, unavailable(fmt.Sprintf("ip-api lookup failed: %s", result.Message), nil)
	}

	ip.log.DebugContext(ctx, "ip-api found position", "lat", result.Lat, "lon", result.Lon)

	return &models.Position{
		Coords: models.Coordinates{Latitude: result.Lat, Longitude: result.Lon},
	}, nil
}
