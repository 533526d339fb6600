package appmessage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/UnknownOlympus/selene/internal/models"
)

// Key identifies a single value inside an app message dictionary.
type Key uint32

// Keys shared with the watchface.
const (
	KeyLatitude        Key = 0 // phone -> device, degrees
	KeyLongitude       Key = 1 // phone -> device, degrees
	KeyRequestLocation Key = 2 // device -> phone, request flag
)

// Dictionary is the structured record exchanged with the device.
// On the wire it is a JSON object whose keys are decimal integers.
type Dictionary map[Key]any

// Common errors for dictionary decoding.
var (
	ErrInvalidKey   = errors.New("app message key is not an unsigned 32-bit integer")
	ErrMissingKey   = errors.New("app message key is missing")
	ErrInvalidValue = errors.New("app message value is not numeric")
)

// EncodeCoordinates builds the outbound record for a coordinate pair.
// Values are copied as-is; no rounding or range checks are applied.
func EncodeCoordinates(coords models.Coordinates) Dictionary {
	return Dictionary{
		KeyLatitude:  coords.Latitude,
		KeyLongitude: coords.Longitude,
	}
}

// DecodeCoordinates reads a coordinate pair back out of a record.
func DecodeCoordinates(dict Dictionary) (models.Coordinates, error) {
	lat, err := dict.Float(KeyLatitude)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("failed to read latitude: %w", err)
	}

	lng, err := dict.Float(KeyLongitude)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("failed to read longitude: %w", err)
	}

	return models.Coordinates{Latitude: lat, Longitude: lng}, nil
}

// Float returns the value stored under key as a float64.
func (d Dictionary) Float(key Key) (float64, error) {
	value, ok := d[key]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrMissingKey, key)
	}

	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: key %d: %w", ErrInvalidValue, key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: key %d holds %T", ErrInvalidValue, key, value)
	}
}

// MarshalJSON encodes the record as a JSON object with decimal string keys.
func (d Dictionary) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}

	raw := make(map[string]any, len(d))
	for key, value := range d {
		raw[strconv.FormatUint(uint64(key), 10)] = value
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode app message: %w", err)
	}

	return data, nil
}

// UnmarshalJSON decodes a JSON object with decimal string keys.
func (d *Dictionary) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode app message: %w", err)
	}

	if raw == nil {
		*d = nil
		return nil
	}

	dict := make(Dictionary, len(raw))
	for k, v := range raw {
		key, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidKey, k)
		}
		dict[Key(key)] = v
	}
	*d = dict

	return nil
}
