package models

// Coordinates represents a geographical point defined by its latitude and longitude.
type Coordinates struct {
	Latitude  float64 // Latitude of the geographical point, in degrees.
	Longitude float64 // Longitude of the geographical point, in degrees.
}

// Fallback pair sent when no fix is available: northern hemisphere, Central Asia.
const (
	fallbackLatitude  = 43
	fallbackLongitude = 76
)

// FallbackCoordinates returns the pair sent to the device when no fix is available.
func FallbackCoordinates() Coordinates {
	return Coordinates{Latitude: fallbackLatitude, Longitude: fallbackLongitude}
}
