package models_test

import (
	"testing"

	"github.com/UnknownOlympus/selene/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestFallbackCoordinates(t *testing.T) {
	fallback := models.FallbackCoordinates()
	assert.Equal(t, models.Coordinates{Latitude: 43, Longitude: 76}, fallback)

	fallback.Latitude = -1
	assert.Equal(t, models.Coordinates{Latitude: 43, Longitude: 76}, models.FallbackCoordinates())
}
