package core

import (
	"sync"

	"github.com/barscout/barscout-server/internal/geo"
)

// VenueDirectory is the server's last-known list of venue coordinates.
// It is refreshed by the caller and read by the hub when proximity verification is on.
type VenueDirectory struct {
	mu     sync.RWMutex
	venues []geo.VenueLocation
	byID   map[string]geo.Point
}

// NewVenueDirectory creates an empty directory.
func NewVenueDirectory() *VenueDirectory {
	return &VenueDirectory{byID: make(map[string]geo.Point)}
}

// Replace swaps the venue list. Venues without coordinates are kept in the list but cannot verify.
func (d *VenueDirectory) Replace(venues []geo.VenueLocation) {
	list := make([]geo.VenueLocation, 0, len(venues))
	byID := make(map[string]geo.Point, len(venues))
	for _, v := range venues {
		if v.Coordinates != nil {
			p := *v.Coordinates
			v.Coordinates = &p
			byID[v.VenueID] = p
		}
		list = append(list, v)
	}

	d.mu.Lock()
	d.venues = list
	d.byID = byID
	d.mu.Unlock()
}

// Venues returns a copy of the current list.
func (d *VenueDirectory) Venues() []geo.VenueLocation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]geo.VenueLocation, len(d.venues))
	copy(out, d.venues)
	return out
}

// Len returns the number of venues known.
func (d *VenueDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.venues)
}

// Within reports whether position is strictly closer than radiusMeters to venueID.
// Unknown venues and venues without coordinates never match.
func (d *VenueDirectory) Within(venueID string, position geo.Point, radiusMeters float64) bool {
	d.mu.RLock()
	p, ok := d.byID[venueID]
	d.mu.RUnlock()
	if !ok {
		return false
	}
	return geo.DistanceMeters(position, p) < radiusMeters
}
