package geo

import (
	"errors"
	"math"
	"testing"
)

// northOf returns the point d meters due north of p.
func northOf(p Point, d float64) Point {
	return Point{Latitude: p.Latitude + d/(EarthRadiusMeters*math.Pi/180), Longitude: p.Longitude}
}

func ptr(p Point) *Point { return &p }

func TestDistanceMeters(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want float64
		tol  float64
	}{
		{"identical", Point{40, -74}, Point{40, -74}, 0, 0},
		{"one degree of latitude", Point{0, 0}, Point{1, 0}, 111194.93, 0.5},
		{"across antimeridian", Point{0, 179.5}, Point{0, -179.5}, 111194.93, 0.5},
		{"pole to pole", Point{90, 0}, Point{-90, 0}, math.Pi * EarthRadiusMeters, 1},
		{"antipodal", Point{0, 0}, Point{0, 180}, math.Pi * EarthRadiusMeters, 1},
		{"150m north", Point{40, -74}, northOf(Point{40, -74}, 150), 150, 1e-6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceMeters(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tol {
				t.Fatalf("DistanceMeters(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDistanceSymmetry(t *testing.T) {
	points := []Point{
		{40, -74}, {-33.86, 151.2}, {51.5, -0.12}, {89.9, 45}, {-89.9, -135}, {0, 180}, {0, -180},
	}
	for _, a := range points {
		if d := DistanceMeters(a, a); d != 0 {
			t.Fatalf("distance of %v to itself = %f", a, d)
		}
		for _, b := range points {
			if DistanceMeters(a, b) != DistanceMeters(b, a) {
				t.Fatalf("asymmetric distance between %v and %v", a, b)
			}
		}
	}
}

func TestFindNearestVenue(t *testing.T) {
	origin := Point{40.0, -74.0}

	tests := []struct {
		name     string
		position Point
		venues   []VenueLocation
		want     string
	}{
		{
			name:     "user at venue",
			position: origin,
			venues:   []VenueLocation{{VenueID: "A", Coordinates: ptr(origin)}},
			want:     "A",
		},
		{
			name:     "user 150m away",
			position: northOf(origin, 150),
			venues:   []VenueLocation{{VenueID: "A", Coordinates: ptr(origin)}},
			want:     "",
		},
		{
			name:     "closest of two within radius",
			position: origin,
			venues: []VenueLocation{
				{VenueID: "B", Coordinates: ptr(northOf(origin, 80))},
				{VenueID: "A", Coordinates: ptr(northOf(origin, 50))},
			},
			want: "A",
		},
		{
			name:     "just beyond the radius",
			position: origin,
			venues:   []VenueLocation{{VenueID: "A", Coordinates: ptr(northOf(origin, 100.5))}},
			want:     "",
		},
		{
			name:     "tie resolves to first in input order",
			position: origin,
			venues: []VenueLocation{
				{VenueID: "first", Coordinates: ptr(northOf(origin, 20))},
				{VenueID: "second", Coordinates: ptr(northOf(origin, 20))},
			},
			want: "first",
		},
		{
			name:     "missing coordinates skipped",
			position: origin,
			venues: []VenueLocation{
				{VenueID: "nowhere"},
				{VenueID: "A", Coordinates: ptr(northOf(origin, 10))},
			},
			want: "A",
		},
		{
			name:     "all missing coordinates",
			position: origin,
			venues:   []VenueLocation{{VenueID: "x"}, {VenueID: "y"}},
			want:     "",
		},
		{
			name:     "empty list",
			position: origin,
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindNearestVenue(tt.position, tt.venues, DefaultRadiusMeters); got != tt.want {
				t.Fatalf("FindNearestVenue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindNearestVenueRadiusIsExclusive(t *testing.T) {
	origin := Point{40.0, -74.0}
	venue := northOf(origin, 60)
	venues := []VenueLocation{{VenueID: "A", Coordinates: &venue}}

	d := DistanceMeters(origin, venue)
	if got := FindNearestVenue(origin, venues, d); got != "" {
		t.Fatalf("venue at exactly the radius matched: %q", got)
	}
	if got := FindNearestVenue(origin, venues, math.Nextafter(d, math.Inf(1))); got != "A" {
		t.Fatalf("venue just inside the radius not matched: %q", got)
	}
}

func TestNearestReportsDistanceUnderRadius(t *testing.T) {
	origin := Point{51.5, -0.12}
	venues := []VenueLocation{
		{VenueID: "far", Coordinates: ptr(northOf(origin, 99.9))},
		{VenueID: "near", Coordinates: ptr(northOf(origin, 42))},
	}

	m, ok := Nearest(origin, venues, DefaultRadiusMeters)
	if !ok {
		t.Fatalf("expected a match")
	}
	if m.VenueID != "near" || m.DistanceMeters >= DefaultRadiusMeters {
		t.Fatalf("unexpected match: %+v", m)
	}
}

func TestPointValidate(t *testing.T) {
	if _, err := NewPoint(91, 0); !errors.Is(err, ErrInvalidLatitude) {
		t.Fatalf("expected ErrInvalidLatitude, got %v", err)
	}
	if _, err := NewPoint(0, -180.5); !errors.Is(err, ErrInvalidLongitude) {
		t.Fatalf("expected ErrInvalidLongitude, got %v", err)
	}
	if _, err := NewPoint(math.NaN(), 0); !errors.Is(err, ErrInvalidLatitude) {
		t.Fatalf("expected ErrInvalidLatitude for NaN, got %v", err)
	}
	if _, err := NewPoint(-90, 180); err != nil {
		t.Fatalf("boundary point rejected: %v", err)
	}
}

func TestParsePoint(t *testing.T) {
	tests := []struct {
		in   string
		want Point
		ok   bool
	}{
		{"40.7128, -74.0060", Point{40.7128, -74.0060}, true},
		{"40.7128,-74.0060", Point{40.7128, -74.0060}, true},
		{"123 Main St", Point{}, false},
		{"95, 10", Point{}, false},
		{"1,2,3", Point{}, false},
		{"", Point{}, false},
	}
	for _, tt := range tests {
		got, ok := ParsePoint(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParsePoint(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
