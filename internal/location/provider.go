package location

import (
	"context"
	"time"

	"github.com/UnknownOlympus/selene/internal/models"
)

// Provider is an interface that defines a method for obtaining the current position.
// Locate returns a single fresh fix or an error; it honours ctx cancellation.
type Provider interface {
	Locate(ctx context.Context) (*models.Position, error)
}

// Locator answers "where is the phone right now" under the given options.
type Locator interface {
	CurrentPosition(ctx context.Context, opts Options) (*models.Position, error)
}

// Options tunes a single position request.
type Options struct {
	Timeout    time.Duration // Timeout is the maximum time to wait for a fresh fix; 0 means no bound.
	MaximumAge time.Duration // MaximumAge is how old a cached fix may be and still be returned; 0 disables the cache.
}

const (
	defaultTimeout    = 15 * time.Second
	defaultMaximumAge = 60 * time.Second
)

// DefaultOptions returns the fixed parameters used for every device request.
func DefaultOptions() Options {
	return Options{Timeout: defaultTimeout, MaximumAge: defaultMaximumAge}
}
