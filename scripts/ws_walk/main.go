// ws_walk replays a route against a running server and prints the popularity
// snapshots it receives along the way.
//
//	go run ./scripts/ws_walk --user alice --point 40.7128,-74.0060 --point 40.7306,-73.9866
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/barscout/barscout-server/internal/geo"
	"github.com/barscout/barscout-server/internal/log"
	"github.com/barscout/barscout-server/internal/tracker"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ws_walk: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		server   string
		user     string
		token    string
		points   []string
		interval time.Duration
		radius   float64
		timeout  time.Duration
		level    string
	)

	cmd := &cobra.Command{
		Use:           "ws_walk",
		Short:         "Walk a route and watch venue popularity change",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user == "" && token == "" {
				return fmt.Errorf("one of --user or --token is required")
			}

			route := make([]geo.Point, 0, len(points))
			for _, raw := range points {
				p, ok := geo.ParsePoint(raw)
				if !ok {
					return fmt.Errorf("invalid point %q, want lat,lng", raw)
				}
				route = append(route, p)
			}

			logger := log.New(level)
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			emitter, err := tracker.Dial(ctx, server, tracker.DialOptions{User: user, Token: token, Logger: logger})
			if err != nil {
				return err
			}
			defer emitter.Close()

			done := make(chan struct{})
			go func() {
				defer close(done)
				for {
					select {
					case snap, ok := <-emitter.Snapshots():
						if !ok {
							return
						}
						for venueID, occ := range snap {
							fmt.Printf("%s: %d %v\n", venueID, occ.Count, occ.PresentUserIDs)
						}
						fmt.Println("--")
					case e, ok := <-emitter.Errors():
						if !ok {
							return
						}
						fmt.Printf("error %s: %s\n", e.Code, e.Msg)
					}
				}
			}()

			tr := tracker.New(user,
				tracker.RouteSource{Points: route, Interval: interval},
				tracker.NewHTTPVenueSource(server, time.Minute),
				emitter,
				tracker.WithRadius(radius),
				tracker.WithLogger(log.Component(logger, "tracker")),
				tracker.WithStatusFunc(func(s tracker.Status, err error) {
					if err != nil {
						logger.Info().Err(err).Str("status", s.String()).Msg("tracker status")
						return
					}
					logger.Info().Str("status", s.String()).Msg("tracker status")
				}),
			)
			if err := tr.Run(ctx); err != nil {
				return err
			}

			// Let the last broadcast arrive before closing.
			time.Sleep(200 * time.Millisecond)
			emitter.Close()
			<-done
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&server, "server", "http://localhost:8080", "server base URL")
	flags.StringVar(&user, "user", "", "user id for anonymous sessions; with --token the token's user id is used")
	flags.StringVar(&token, "token", "", "JWT from /api/auth/login")
	flags.StringArrayVar(&points, "point", nil, "route point as lat,lng (repeatable)")
	flags.DurationVar(&interval, "interval", 2*time.Second, "delay between route points")
	flags.Float64Var(&radius, "radius", geo.DefaultRadiusMeters, "proximity radius in meters")
	flags.DurationVar(&timeout, "timeout", 2*time.Minute, "total timeout for the run")
	flags.StringVar(&level, "log-level", "info", "log level")
	_ = cmd.MarkFlagRequired("point")

	return cmd
}
