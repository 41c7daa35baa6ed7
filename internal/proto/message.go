package proto

import (
	"encoding/json"

	"github.com/barscout/barscout-server/internal/geo"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello           = "hello"
	InboundTypeLocationUpdate  = "location-update"
	InboundTypeLeave           = "leave"
	InboundTypeRequestSnapshot = "request-snapshot"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventPopularitySnapshot = "popularity-snapshot"
)

// HelloData is sent by the client to introduce itself.
type HelloData struct {
	User     string `json:"user,omitempty" validate:"omitempty,max=128"`
	Token    string `json:"token,omitempty"`
	Protocol int    `json:"protocol,omitempty"`
}

// Position is a coordinate pair on the wire. Pointers distinguish a missing field from zero.
type Position struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

// Point converts a validated position.
func (p Position) Point() geo.Point {
	return geo.Point{Latitude: *p.Latitude, Longitude: *p.Longitude}
}

// NewPosition builds a wire position from a point.
func NewPosition(p geo.Point) *Position {
	lat, lng := p.Latitude, p.Longitude
	return &Position{Latitude: &lat, Longitude: &lng}
}

// LocationUpdateData reports the client's position and the venue it matched.
// VenueID is null when the client is not at any venue.
type LocationUpdateData struct {
	UserID   string    `json:"userId,omitempty" validate:"omitempty,max=128"`
	Position *Position `json:"position" validate:"required"`
	VenueID  *string   `json:"venueId" validate:"omitempty,max=128"`
}

// LeaveData reports that the user left a venue.
type LeaveData struct {
	UserID  string `json:"userId,omitempty" validate:"omitempty,max=128"`
	VenueID string `json:"venueId" validate:"required,max=128"`
}

// RequestSnapshotData asks for the current popularity, optionally for one venue.
type RequestSnapshotData struct {
	VenueID string `json:"venueId,omitempty" validate:"omitempty,max=128"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// VenuePopularity is one venue's entry in a popularity snapshot.
type VenuePopularity struct {
	Count          int      `json:"count"`
	PresentUserIDs []string `json:"presentUserIds"`
}

// PopularitySnapshot maps venue ids to their live popularity.
type PopularitySnapshot map[string]VenuePopularity

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
