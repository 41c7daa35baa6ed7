package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/barscout/barscout-server/internal/geo"
)

// StaticVenues is a fixed venue list.
type StaticVenues []geo.VenueLocation

// Venues returns the list.
func (s StaticVenues) Venues(context.Context) ([]geo.VenueLocation, error) {
	return s, nil
}

// HTTPVenueSource fetches venue locations from the server's /api/venues/locations
// endpoint and caches them for MaxAge.
type HTTPVenueSource struct {
	BaseURL string
	Client  *http.Client
	MaxAge  time.Duration

	mu        sync.Mutex
	cached    []geo.VenueLocation
	fetchedAt time.Time
}

// NewHTTPVenueSource creates a source for the server at baseURL (http or ws scheme).
func NewHTTPVenueSource(baseURL string, maxAge time.Duration) *HTTPVenueSource {
	base := strings.TrimRight(baseURL, "/")
	base = strings.Replace(base, "ws://", "http://", 1)
	base = strings.Replace(base, "wss://", "https://", 1)
	return &HTTPVenueSource{
		BaseURL: base,
		Client:  &http.Client{Timeout: 10 * time.Second},
		MaxAge:  maxAge,
	}
}

// Venues returns the cached list, refreshing it once it is older than MaxAge.
func (s *HTTPVenueSource) Venues(ctx context.Context) ([]geo.VenueLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && time.Since(s.fetchedAt) < s.MaxAge {
		return s.cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/api/venues/locations", nil)
	if err != nil {
		return nil, fmt.Errorf("build venue request: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch venues: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch venues: unexpected status %d", resp.StatusCode)
	}

	var venues []geo.VenueLocation
	if err := json.NewDecoder(resp.Body).Decode(&venues); err != nil {
		return nil, fmt.Errorf("decode venues: %w", err)
	}
	if venues == nil {
		venues = []geo.VenueLocation{}
	}

	s.cached = venues
	s.fetchedAt = time.Now()
	return venues, nil
}

// RouteSource replays a fixed route, one point per Interval, then closes the channel.
type RouteSource struct {
	Points   []geo.Point
	Interval time.Duration
}

// Watch starts replaying the route.
func (r RouteSource) Watch(ctx context.Context) (<-chan Sample, error) {
	if len(r.Points) == 0 {
		return nil, fmt.Errorf("%w: empty route", ErrLocationUnavailable)
	}

	out := make(chan Sample)
	go func() {
		defer close(out)

		for i, p := range r.Points {
			if i > 0 && r.Interval > 0 {
				select {
				case <-time.After(r.Interval):
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- Sample{Position: p}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
