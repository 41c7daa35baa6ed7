// Package metrics exposes Prometheus instrumentation for the realtime presence subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WSConnections is the number of open realtime connections.
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "barscout_ws_connections",
			Help: "Current number of open realtime connections",
		},
	)

	// VenueOccupancy mirrors the registry count for venues touched by a transition.
	VenueOccupancy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "barscout_venue_occupancy",
			Help: "Users currently present at a venue",
		},
		[]string{"venue_id"},
	)

	PresenceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscout_presence_transitions_total",
			Help: "Presence state machine transitions that mutated the registry",
		},
		[]string{"kind"}, // "enter", "switch", "leave"
	)

	// InboundDropped counts realtime messages rejected before reaching the hub.
	InboundDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscout_ws_inbound_dropped_total",
			Help: "Inbound realtime messages dropped at the boundary",
		},
		[]string{"reason"}, // "malformed", "rate_limited", "unknown_type"
	)

	ProximityRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "barscout_proximity_rejected_total",
			Help: "Candidate venues rejected by server-side distance verification",
		},
	)

	BroadcastsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "barscout_snapshot_broadcasts_total",
			Help: "Popularity snapshots fanned out to all clients",
		},
	)

	// BroadcastDropped counts per-client deliveries skipped because the client buffer was full.
	BroadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "barscout_snapshot_deliveries_dropped_total",
			Help: "Snapshot deliveries skipped for slow consumers",
		},
	)

	VenueDirectorySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "barscout_venue_directory_size",
			Help: "Venues known to the server-side venue directory",
		},
	)
)
