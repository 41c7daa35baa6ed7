package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/barscout/barscout-server/internal/geo"
	"github.com/barscout/barscout-server/internal/metrics"
)

// ProximityVerifier re-checks a client-reported candidate venue against server-side coordinates.
type ProximityVerifier interface {
	Within(venueID string, position geo.Point, radiusMeters float64) bool
}

type envelope struct {
	client *Client
	cmd    *Command
}

// Hub owns the occupancy registry and every presence session.
// All registry mutations and broadcasts happen on the Run goroutine, one command at a time.
type Hub struct {
	registry *Registry
	clients  *audience

	register chan *Client
	inbox    chan envelope
	done     chan struct{}

	verifier     ProximityVerifier
	radiusMeters float64
	log          *zerolog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.log = logger
		}
	}
}

// WithProximityVerifier enables server-side verification of candidate venues.
func WithProximityVerifier(v ProximityVerifier, radiusMeters float64) Option {
	return func(h *Hub) {
		h.verifier = v
		if radiusMeters > 0 {
			h.radiusMeters = radiusMeters
		}
	}
}

// NewHub creates a hub around the given registry. A nil registry gets a fresh one.
func NewHub(registry *Registry, opts ...Option) *Hub {
	if registry == nil {
		registry = NewRegistry()
	}
	nop := zerolog.Nop()
	h := &Hub{
		registry:     registry,
		clients:      newAudience(),
		register:     make(chan *Client),
		inbox:        make(chan envelope, 64),
		done:         make(chan struct{}),
		radiusMeters: geo.DefaultRadiusMeters,
		log:          &nop,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Snapshot returns the current registry state without going through the hub loop.
func (h *Hub) Snapshot() Snapshot {
	return h.registry.Snapshot()
}

// VenueOf reports the venue a user is currently present at.
func (h *Hub) VenueOf(userID string) (string, bool) {
	return h.registry.VenueOf(userID)
}

// RegisterClient attaches a client. It returns false when the hub is no longer running.
func (h *Hub) RegisterClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// UnregisterClient ends the client's command stream. Commands already queued are still
// processed in order, then the disconnect transition runs and Events is closed.
func (h *Hub) UnregisterClient(c *Client) {
	c.closeCommands()
}

// Run processes client lifecycle and commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.handleRegister(ctx, c)
		case env := <-h.inbox:
			h.handle(env.client, env.cmd)
		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

func (h *Hub) handleRegister(ctx context.Context, c *Client) {
	if !h.clients.add(c, NewSession(c.ID)) {
		return
	}
	metrics.WSConnections.Inc()
	h.log.Info().Str("client_id", c.ID).Int("clients", h.clients.size()).Msg("client registered")
	go h.pump(ctx, c)
}

// pump forwards one client's commands into the hub inbox, preserving their order,
// and queues the disconnect once the stream is closed.
func (h *Hub) pump(ctx context.Context, c *Client) {
	for cmd := range c.Commands {
		if cmd == nil {
			continue
		}
		select {
		case h.inbox <- envelope{client: c, cmd: cmd}:
		case <-ctx.Done():
			return
		}
	}
	select {
	case h.inbox <- envelope{client: c, cmd: &Command{Kind: commandDisconnect}}:
	case <-ctx.Done():
	}
}

func (h *Hub) handle(c *Client, cmd *Command) {
	session, ok := h.clients.session(c)
	if !ok {
		return
	}

	switch cmd.Kind {
	case CommandIdentify:
		if err := session.Bind(cmd.UserID); err != nil {
			h.reject(c, session, err)
		}
	case CommandLocationUpdate:
		if err := session.Bind(cmd.UserID); err != nil {
			h.reject(c, session, err)
			return
		}
		candidate := cmd.VenueID
		if candidate != "" && h.verifier != nil && cmd.Position != nil &&
			!h.verifier.Within(candidate, *cmd.Position, h.radiusMeters) {
			metrics.ProximityRejected.Inc()
			h.log.Debug().
				Str("client_id", c.ID).
				Str("user_id", session.UserID).
				Str("venue_id", candidate).
				Msg("candidate venue failed proximity verification")
			candidate = ""
		}
		h.apply(c, session.Update(h.registry, candidate))
	case CommandLeave:
		if err := session.Bind(cmd.UserID); err != nil {
			h.reject(c, session, err)
			return
		}
		h.apply(c, session.Leave(h.registry, cmd.VenueID))
	case CommandRequestSnapshot:
		snap := h.registry.Snapshot()
		if cmd.VenueID != "" {
			snap = snap.Only(cmd.VenueID)
		}
		if !send(c, &Event{Kind: EventSnapshot, Snapshot: snap}) {
			metrics.BroadcastDropped.Inc()
		}
	case commandDisconnect:
		h.handleDisconnect(c, session)
	}
}

func (h *Hub) handleDisconnect(c *Client, session *Session) {
	h.clients.remove(c)
	metrics.WSConnections.Dec()
	tr := session.Close(h.registry)
	close(c.Events)

	h.log.Info().
		Str("client_id", c.ID).
		Str("user_id", session.UserID).
		Str("venue_id", tr.From).
		Int("clients", h.clients.size()).
		Msg("client disconnected")
	h.apply(c, tr)
}

// apply broadcasts the transition's snapshot to every connected client when the registry changed.
func (h *Hub) apply(c *Client, tr Transition) {
	if !tr.Changed {
		return
	}
	metrics.PresenceTransitions.WithLabelValues(tr.Kind.String()).Inc()
	for _, venueID := range []string{tr.From, tr.To} {
		setOccupancyGauge(venueID, tr.Snapshot.Venue(venueID).Count)
	}

	h.log.Debug().
		Str("client_id", c.ID).
		Str("user_id", tr.UserID).
		Str("transition", tr.Kind.String()).
		Str("from", tr.From).
		Str("to", tr.To).
		Msg("presence changed")

	metrics.BroadcastsSent.Inc()
	if dropped := h.clients.broadcast(&Event{Kind: EventSnapshot, Snapshot: tr.Snapshot}); dropped > 0 {
		metrics.BroadcastDropped.Add(float64(dropped))
		h.log.Warn().Int("dropped", dropped).Msg("snapshot not delivered to slow clients")
	}
}

// setOccupancyGauge keeps a series only while a venue is occupied, so client-supplied
// venue ids cannot grow the metric without bound.
func setOccupancyGauge(venueID string, count int) {
	if venueID == "" {
		return
	}
	if count == 0 {
		metrics.VenueOccupancy.DeleteLabelValues(venueID)
		return
	}
	metrics.VenueOccupancy.WithLabelValues(venueID).Set(float64(count))
}

func (h *Hub) reject(c *Client, session *Session, err error) {
	code := ErrCodeBadRequest
	if errors.Is(err, ErrIdentityMismatch) {
		code = ErrCodeUnauthorized
	}
	h.log.Warn().
		Err(err).
		Str("client_id", c.ID).
		Str("user_id", session.UserID).
		Msg("command rejected")
	send(c, &Event{Kind: EventError, Error: coreError(code, err.Error())})
}

// shutdown closes every client's event stream so transport writers can finish.
func (h *Hub) shutdown() {
	for c := range h.clients.clients {
		h.clients.remove(c)
		metrics.WSConnections.Dec()
		close(c.Events)
	}
	h.log.Info().Msg("hub stopped")
}
