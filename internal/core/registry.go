package core

import (
	"sort"
	"sync"
)

// Occupancy is the live presence of a single venue.
type Occupancy struct {
	Count          int
	PresentUserIDs []string
}

// Snapshot is a point-in-time, read-only view of the registry keyed by venue id.
// Callers must not modify it; it is shared between every client a broadcast reaches.
type Snapshot map[string]Occupancy

// Venue returns the occupancy of a single venue; unknown venues are empty.
func (s Snapshot) Venue(venueID string) Occupancy {
	if occ, ok := s[venueID]; ok {
		return occ
	}
	return Occupancy{PresentUserIDs: []string{}}
}

// Only narrows the snapshot to one venue. The venue is always present in the result.
func (s Snapshot) Only(venueID string) Snapshot {
	return Snapshot{venueID: s.Venue(venueID)}
}

// Registry tracks which users are present at which venue.
// A user is present at no more than one venue at a time; counts are always derived from set sizes.
// Mutations are expected from a single owner (the hub); the lock exists so that
// readers on other goroutines observe a consistent snapshot.
type Registry struct {
	mu     sync.RWMutex
	venues map[string]map[string]struct{}
	// userVenue indexes venues by user so the one-venue rule holds without scanning.
	userVenue map[string]string
}

// NewRegistry constructs an empty occupancy registry.
func NewRegistry() *Registry {
	return &Registry{
		venues:    make(map[string]map[string]struct{}),
		userVenue: make(map[string]string),
	}
}

// MarkPresent records userID at venueID, first removing the user from any other venue.
// It reports whether the registry changed.
func (r *Registry) MarkPresent(venueID, userID string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := r.markPresentLocked(venueID, userID)
	return r.snapshotLocked(), changed
}

// MarkAbsent removes userID from venueID. Absent users are a no-op.
// It reports whether the registry changed.
func (r *Registry) MarkAbsent(venueID, userID string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := r.markAbsentLocked(venueID, userID)
	return r.snapshotLocked(), changed
}

// Snapshot returns a copy of the current registry state.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// VenueOf returns the venue the user is currently present at.
func (r *Registry) VenueOf(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.userVenue[userID]
	return v, ok
}

// Count returns the number of users present at venueID.
func (r *Registry) Count(venueID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.venues[venueID])
}

// Reset clears all presence.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.venues = make(map[string]map[string]struct{})
	r.userVenue = make(map[string]string)
}

func (r *Registry) markPresentLocked(venueID, userID string) bool {
	if prev, ok := r.userVenue[userID]; ok {
		if prev == venueID {
			return false
		}
		r.markAbsentLocked(prev, userID)
	}

	users, ok := r.venues[venueID]
	if !ok {
		users = make(map[string]struct{})
		r.venues[venueID] = users
	}
	users[userID] = struct{}{}
	r.userVenue[userID] = venueID
	return true
}

func (r *Registry) markAbsentLocked(venueID, userID string) bool {
	users, ok := r.venues[venueID]
	if !ok {
		return false
	}
	if _, present := users[userID]; !present {
		return false
	}
	delete(users, userID)
	if r.userVenue[userID] == venueID {
		delete(r.userVenue, userID)
	}
	// Emptied venues stay in the map so snapshots report them as zero.
	return true
}

func (r *Registry) snapshotLocked() Snapshot {
	snap := make(Snapshot, len(r.venues))
	for venueID, users := range r.venues {
		ids := make([]string, 0, len(users))
		for id := range users {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		snap[venueID] = Occupancy{Count: len(ids), PresentUserIDs: ids}
	}
	return snap
}
