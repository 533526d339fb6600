package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/selene/internal/models"
)

// Geolocator implements Locator on top of a Provider.
// It bounds every provider call by Options.Timeout and serves the most recent
// fix while it is younger than Options.MaximumAge. Only one fix is retained.
type Geolocator struct {
	provider Provider         // provider produces fresh fixes
	log      *slog.Logger     // log is the logger for logging operations
	now      func() time.Time // now is the clock, replaceable in tests

	mu   sync.Mutex
	last *models.Position
}

// NewGeolocator wraps provider with timeout and maximum-age handling.
func NewGeolocator(provider Provider, log *slog.Logger) *Geolocator {
	return &Geolocator{provider: provider, log: log, now: time.Now}
}

// CurrentPosition returns a fix satisfying opts or an error.
// A provider call that outlives opts.Timeout yields a PositionError with CodeTimeout.
func (g *Geolocator) CurrentPosition(ctx context.Context, opts Options) (*models.Position, error) {
	if cached, ok := g.cached(opts.MaximumAge); ok {
		g.log.DebugContext(ctx, "Serving cached position",
			"age", cached.Age(g.now()), "maximum_age", opts.MaximumAge)
		return &cached, nil
	}

	locateCtx, cancel := ctx, context.CancelFunc(func() {})
	if opts.Timeout > 0 {
		locateCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}
	defer cancel()

	pos, err := g.provider.Locate(locateCtx)
	if err != nil {
		if errors.Is(locateCtx.Err(), context.DeadlineExceeded) {
			return nil, &PositionError{
				Code:    CodeTimeout,
				Message: fmt.Sprintf("no fix within %s", opts.Timeout),
				Err:     err,
			}
		}
		return nil, err
	}

	if pos == nil {
		return nil, unavailable("provider returned no position", nil)
	}

	fix := *pos
	if fix.Timestamp.IsZero() {
		fix.Timestamp = g.now()
	}
	g.store(fix)

	return &fix, nil
}

func (g *Geolocator) cached(maximumAge time.Duration) (models.Position, bool) {
	if maximumAge <= 0 {
		return models.Position{}, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.last == nil || g.last.Age(g.now()) > maximumAge {
		return models.Position{}, false
	}

	return *g.last, true
}

func (g *Geolocator) store(fix models.Position) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.last = &fix
}
