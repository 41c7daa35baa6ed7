package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/barscout/barscout-server/internal/core"
	"github.com/barscout/barscout-server/internal/metrics"
	"github.com/barscout/barscout-server/internal/store"
)

// venueRefresher keeps the hub's venue directory in sync with the venue store.
type venueRefresher struct {
	store     store.VenueStore
	directory *core.VenueDirectory
	interval  time.Duration
	trigger   chan struct{}
	log       *zerolog.Logger
}

func newVenueRefresher(st store.VenueStore, dir *core.VenueDirectory, interval time.Duration, logger *zerolog.Logger) *venueRefresher {
	return &venueRefresher{
		store:     st,
		directory: dir,
		interval:  interval,
		trigger:   make(chan struct{}, 1),
		log:       logger,
	}
}

// Notify requests a refresh without waiting for the next tick.
func (r *venueRefresher) Notify(context.Context) {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

func (r *venueRefresher) refresh(ctx context.Context) error {
	locations, err := r.store.ListVenueLocations(ctx)
	if err != nil {
		return err
	}
	r.directory.Replace(locations)
	metrics.VenueDirectorySize.Set(float64(len(locations)))
	return nil
}

func (r *venueRefresher) Run(ctx context.Context) {
	if err := r.refresh(ctx); err != nil {
		r.log.Warn().Err(err).Msg("initial venue refresh failed")
	}

	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
		case <-r.trigger:
		case <-ctx.Done():
			return
		}
		if err := r.refresh(ctx); err != nil {
			r.log.Warn().Err(err).Msg("venue refresh failed, keeping last known list")
			continue
		}
		r.log.Debug().Int("venues", r.directory.Len()).Msg("venue directory refreshed")
	}
}
