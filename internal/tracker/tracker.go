// Package tracker implements the client side of presence tracking: it follows device
// location samples, matches them against known venues and reports the matched venue
// over the realtime channel.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/barscout/barscout-server/internal/geo"
)

// ErrLocationUnavailable is returned by Run when the location source kept failing
// after every retry.
var ErrLocationUnavailable = errors.New("location unavailable")

const finalUpdateTimeout = 5 * time.Second

// Sample is one position reported by the location source. A non-nil Err means the
// platform lost the fix; Position is meaningless in that case.
type Sample struct {
	Position geo.Point
	Err      error
}

// LocationSource delivers samples as the platform produces them. The channel is closed
// when the source has nothing more to deliver.
type LocationSource interface {
	Watch(ctx context.Context) (<-chan Sample, error)
}

// VenueSource returns the last-known venue list.
type VenueSource interface {
	Venues(ctx context.Context) ([]geo.VenueLocation, error)
}

// Update is a location-update as sent to the realtime channel. VenueID is "" when the
// position matched no venue.
type Update struct {
	UserID   string
	Position geo.Point
	VenueID  string
}

// Emitter sends updates to the realtime channel.
type Emitter interface {
	EmitLocation(ctx context.Context, u Update) error
}

// Status is the tracker state surfaced to the caller.
type Status int

const (
	StatusIdle Status = iota
	StatusTracking
	// StatusLocationUnavailable means the source failed and the tracker is backing off.
	StatusLocationUnavailable
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusTracking:
		return "tracking"
	case StatusLocationUnavailable:
		return "location_unavailable"
	case StatusStopped:
		return "stopped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRadius overrides the proximity radius in meters.
func WithRadius(meters float64) Option {
	return func(t *Tracker) {
		if meters > 0 {
			t.radius = meters
		}
	}
}

// WithBackOff sets the retry policy used after the location source fails.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(t *Tracker) {
		t.newBackOff = newBackOff
	}
}

// WithStatusFunc registers a callback for status changes. It runs on the tracker goroutine.
func WithStatusFunc(fn func(Status, error)) Option {
	return func(t *Tracker) {
		t.onStatus = fn
	}
}

// WithLogger sets the tracker logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.log = logger
		}
	}
}

// Tracker runs the tracking loop for one user.
type Tracker struct {
	userID     string
	locations  LocationSource
	venues     VenueSource
	emitter    Emitter
	radius     float64
	newBackOff func() backoff.BackOff
	onStatus   func(Status, error)
	log        *zerolog.Logger

	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	done     chan struct{}

	mu     sync.Mutex
	status Status

	// Owned by the Run goroutine.
	emitted    bool
	current    string
	lastPos    geo.Point
	lastVenues []geo.VenueLocation
}

// New creates a tracker for userID.
func New(userID string, locations LocationSource, venues VenueSource, emitter Emitter, opts ...Option) *Tracker {
	nop := zerolog.Nop()
	t := &Tracker{
		userID:     userID,
		locations:  locations,
		venues:     venues,
		emitter:    emitter,
		radius:     geo.DefaultRadiusMeters,
		newBackOff: defaultBackOff,
		log:        &nop,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 5 * time.Minute
	return b
}

// Status returns the current tracker status.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Stop ends sampling. No update is emitted for samples arriving after Stop; a final
// null-candidate update is sent if the user was matched to a venue. Stop blocks until
// Run has returned and is safe to call more than once, but not from a status callback.
func (t *Tracker) Stop() {
	t.stopped.Store(true)
	t.stopOnce.Do(func() { close(t.stopCh) })
	if t.started.Load() {
		<-t.done
	}
}

// Run samples locations until ctx is cancelled, Stop is called or the source ends.
// It may be called once.
func (t *Tracker) Run(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return errors.New("tracker already started")
	}
	defer close(t.done)

	err := t.loop(ctx)
	t.finish(ctx)
	t.setStatus(StatusStopped, err)
	return err
}

func (t *Tracker) loop(ctx context.Context) error {
	policy := t.newBackOff()

	for {
		if t.stopped.Load() {
			return nil
		}

		sourceErr := t.watch(ctx, policy)
		if sourceErr == nil {
			return nil
		}

		t.setStatus(StatusLocationUnavailable, sourceErr)
		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			t.log.Warn().Err(sourceErr).Str("user_id", t.userID).Msg("giving up on location source")
			return fmt.Errorf("%w: %v", ErrLocationUnavailable, sourceErr)
		}
		t.log.Debug().Err(sourceErr).Dur("retry_in", wait).Msg("location source failed")

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-t.stopCh:
			timer.Stop()
			return nil
		case <-ctx.Done():
			timer.Stop()
			return nil
		}
	}
}

// watch consumes one subscription of the location source. It returns nil when sampling
// should end for good, and the source error when it should be retried.
func (t *Tracker) watch(ctx context.Context, policy backoff.BackOff) error {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	samples, err := t.locations.Watch(watchCtx)
	if err != nil {
		return err
	}
	t.setStatus(StatusTracking, nil)

	for {
		select {
		case s, ok := <-samples:
			if !ok {
				return nil
			}
			if t.stopped.Load() {
				return nil
			}
			if s.Err != nil {
				return s.Err
			}
			policy.Reset()
			t.handleSample(ctx, s.Position)
		case <-t.stopCh:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (t *Tracker) handleSample(ctx context.Context, pos geo.Point) {
	t.lastPos = pos

	venues, err := t.venues.Venues(ctx)
	if err != nil {
		t.log.Warn().Err(err).Msg("venue list unavailable, using last known")
		venues = t.lastVenues
	} else {
		t.lastVenues = venues
	}

	candidate := geo.FindNearestVenue(pos, venues, t.radius)
	if t.emitted && candidate == t.current {
		return
	}

	if err := t.emitter.EmitLocation(ctx, Update{UserID: t.userID, Position: pos, VenueID: candidate}); err != nil {
		// State is left unchanged so the next sample retries the transition.
		t.log.Warn().Err(err).Str("venue_id", candidate).Msg("emit location update")
		return
	}
	t.log.Debug().Str("from", t.current).Str("to", candidate).Msg("venue match changed")
	t.emitted = true
	t.current = candidate
}

// finish sends the final null-candidate update if the user is still matched to a venue.
func (t *Tracker) finish(ctx context.Context) {
	if t.current == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalUpdateTimeout)
	defer cancel()

	if err := t.emitter.EmitLocation(ctx, Update{UserID: t.userID, Position: t.lastPos}); err != nil {
		t.log.Warn().Err(err).Str("venue_id", t.current).Msg("emit final leave")
		return
	}
	t.current = ""
}

func (t *Tracker) setStatus(s Status, err error) {
	t.mu.Lock()
	changed := t.status != s
	t.status = s
	t.mu.Unlock()

	if changed && t.onStatus != nil {
		t.onStatus(s, err)
	}
}
