package store

import (
	"context"
	"errors"
	"time"

	"github.com/barscout/barscout-server/internal/geo"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a unique constraint would be violated.
var ErrConflict = errors.New("conflict")

// Role distinguishes regular users from administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a registered user.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Venue represents a bar tracked by the system.
type Venue struct {
	ID      string
	Name    string
	Address string
	// Coordinates is nil when the venue location is unknown.
	Coordinates *geo.Point
	ImageURL    string
	CreatedBy   *int64
	CreatedAt   time.Time
}

// TrafficLevel is a crowd report submitted by a user.
type TrafficLevel string

const (
	TrafficEmpty    TrafficLevel = "Empty"
	TrafficModerate TrafficLevel = "Moderate"
	TrafficBusy     TrafficLevel = "Busy"
	TrafficPacked   TrafficLevel = "Packed"
)

// Valid reports whether the level is one of the known values.
func (l TrafficLevel) Valid() bool {
	switch l {
	case TrafficEmpty, TrafficModerate, TrafficBusy, TrafficPacked:
		return true
	}
	return false
}

// CoverFee is a reported entry price.
type CoverFee struct {
	ID        int64
	VenueID   string
	UserID    int64
	Amount    float64
	CreatedAt time.Time
}

// TrafficReport is a reported crowd level.
type TrafficReport struct {
	ID        int64
	VenueID   string
	UserID    int64
	Level     TrafficLevel
	CreatedAt time.Time
}

// VenueStats aggregates user reports for a venue.
type VenueStats struct {
	RatingCount   int
	AverageRating *float64
	LatestCover   *CoverFee
	LatestTraffic *TrafficReport
	// QueueCount is derived from queue entries, never stored separately.
	QueueCount int
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SetUserRole changes a user's role. Existing tokens keep the old role until they expire.
	SetUserRole(ctx context.Context, username string, role Role) error
}

// VenueStore handles venue persistence and user reports.
type VenueStore interface {
	// CreateVenue inserts a venue. An empty ID is filled in.
	CreateVenue(ctx context.Context, v *Venue) error

	// GetVenue retrieves a venue by ID.
	GetVenue(ctx context.Context, id string) (*Venue, error)

	// ListVenues lists all venues, newest first.
	ListVenues(ctx context.Context) ([]*Venue, error)

	// ListVenueLocations lists venues that have coordinates.
	ListVenueLocations(ctx context.Context) ([]geo.VenueLocation, error)

	// SetRating records a 1-5 rating, replacing the user's previous rating.
	SetRating(ctx context.Context, venueID string, userID int64, value int) error

	// AddCoverFee records a cover fee report.
	AddCoverFee(ctx context.Context, venueID string, userID int64, amount float64) (*CoverFee, error)

	// AddTrafficReport records a crowd level report.
	AddTrafficReport(ctx context.Context, venueID string, userID int64, level TrafficLevel) (*TrafficReport, error)

	// GetVenueStats aggregates ratings, latest reports, and queue size.
	GetVenueStats(ctx context.Context, venueID string) (*VenueStats, error)
}

// QueueStore handles the virtual entry queue.
type QueueStore interface {
	// JoinQueue adds the user to the venue queue. Returns false if already queued.
	JoinQueue(ctx context.Context, venueID string, userID int64) (bool, error)

	// LeaveQueue removes the user from the venue queue. Returns false if not queued.
	LeaveQueue(ctx context.Context, venueID string, userID int64) (bool, error)

	// InQueue checks if the user is queued at the venue.
	InQueue(ctx context.Context, venueID string, userID int64) (bool, error)

	// QueueCount returns the number of queued users.
	QueueCount(ctx context.Context, venueID string) (int, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	VenueStore
	QueueStore

	// Close closes the underlying database connection.
	Close() error
}
