package location

import (
	"context"
	"time"

	"github.com/UnknownOlympus/selene/internal/models"
)

// StaticProvider always reports the same configured coordinates.
type StaticProvider struct {
	coords models.Coordinates
}

// NewStaticProvider creates a provider pinned to coords.
func NewStaticProvider(coords models.Coordinates) *StaticProvider {
	return &StaticProvider{coords: coords}
}

func (sp *StaticProvider) Locate(ctx context.Context) (*models.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &models.Position{Coords: sp.coords, Timestamp: time.Now()}, nil
}
