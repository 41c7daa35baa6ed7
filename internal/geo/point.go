package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrInvalidLatitude is returned when a latitude is outside [-90, 90] or not finite.
	ErrInvalidLatitude = errors.New("latitude out of range")
	// ErrInvalidLongitude is returned when a longitude is outside [-180, 180] or not finite.
	ErrInvalidLongitude = errors.New("longitude out of range")
)

// Point is a geographic coordinate in degrees. It is a value type; copy it, never share pointers to mutate.
type Point struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// NewPoint builds a validated point.
func NewPoint(lat, lng float64) (Point, error) {
	p := Point{Latitude: lat, Longitude: lng}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate checks coordinate ranges.
func (p Point) Validate() error {
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) || p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: %v", ErrInvalidLatitude, p.Latitude)
	}
	if math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) || p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: %v", ErrInvalidLongitude, p.Longitude)
	}
	return nil
}

func (p Point) String() string {
	return strconv.FormatFloat(p.Latitude, 'f', 6, 64) + "," + strconv.FormatFloat(p.Longitude, 'f', 6, 64)
}

// ParsePoint parses a "lat, lng" string such as a venue address typed as raw coordinates.
// It returns false when the string is not a coordinate pair.
func ParsePoint(s string) (Point, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Point{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, false
	}
	p, err := NewPoint(lat, lng)
	if err != nil {
		return Point{}, false
	}
	return p, true
}
