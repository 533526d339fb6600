package models

import "time"

// Position is a single location fix returned by a location provider.
type Position struct {
	Coords    Coordinates // Coords holds the latitude and longitude of the fix.
	Accuracy  float64     // Accuracy is the radius of uncertainty in metres, 0 when unknown.
	Timestamp time.Time   // Timestamp is the moment the fix was taken.
}

// Age returns how old the fix is relative to now.
func (p Position) Age(now time.Time) time.Duration {
	return now.Sub(p.Timestamp)
}
