package core

import "github.com/barscout/barscout-server/internal/geo"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandIdentify binds a verified user identity to the connection.
	CommandIdentify CommandKind = iota
	// CommandLocationUpdate reports a position and the venue the client matched ("" for none).
	CommandLocationUpdate
	// CommandLeave reports that the user left a venue.
	CommandLeave
	// CommandRequestSnapshot asks for the current registry state, delivered to the requester only.
	CommandRequestSnapshot

	// commandDisconnect is queued by the hub itself once a client's command stream ends.
	commandDisconnect
)

// Command represents an action requested by a client.
type Command struct {
	Kind     CommandKind
	UserID   string
	VenueID  string
	Position *geo.Point
}
