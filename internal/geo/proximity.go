package geo

// DefaultRadiusMeters is the distance under which a user counts as physically at a venue.
const DefaultRadiusMeters = 100.0

// VenueLocation pairs a venue id with its coordinates. Coordinates is nil when the location is unknown.
type VenueLocation struct {
	VenueID     string `json:"venueId"`
	Coordinates *Point `json:"coordinates"`
}

// Match is the result of a successful proximity search.
type Match struct {
	VenueID        string
	DistanceMeters float64
}

// FindNearestVenue returns the id of the closest venue strictly within maxRadiusMeters of position.
// Venues without coordinates are skipped. Ties keep the first venue in input order.
// It returns "" when nothing qualifies.
func FindNearestVenue(position Point, venues []VenueLocation, maxRadiusMeters float64) string {
	m, ok := Nearest(position, venues, maxRadiusMeters)
	if !ok {
		return ""
	}
	return m.VenueID
}

// Nearest is FindNearestVenue that also reports the matched distance.
func Nearest(position Point, venues []VenueLocation, maxRadiusMeters float64) (Match, bool) {
	var (
		best  Match
		found bool
	)
	for _, v := range venues {
		if v.Coordinates == nil {
			continue
		}
		d := DistanceMeters(position, *v.Coordinates)
		if d >= maxRadiusMeters {
			continue
		}
		if !found || d < best.DistanceMeters {
			best = Match{VenueID: v.VenueID, DistanceMeters: d}
			found = true
		}
	}
	return best, found
}
