package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/barscout/barscout-server/internal/geo"
	"github.com/barscout/barscout-server/internal/metrics"
)

func startHub(t *testing.T, opts ...Option) (*Hub, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	hub := NewHub(NewRegistry(), opts...)
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func connect(t *testing.T, hub *Hub, id string) *Client {
	t.Helper()

	c := NewClient(id)
	if !hub.RegisterClient(c) {
		t.Fatalf("register %s: hub not running", id)
	}
	return c
}

func TestHubSwitchBroadcastsToAll(t *testing.T) {
	hub, _ := startHub(t)

	alice := connect(t, hub, "a")
	bob := connect(t, hub, "b")

	alice.Commands <- locationUpdate("alice", "A")

	ev := mustEvent(t, bob.Events, EventSnapshot)
	if ev.Snapshot.Venue("A").Count != 1 {
		t.Fatalf("bob did not see alice enter: %+v", ev.Snapshot)
	}
	ev = mustEvent(t, alice.Events, EventSnapshot)
	if ev.Snapshot.Venue("A").Count != 1 {
		t.Fatalf("alice did not see her own enter: %+v", ev.Snapshot)
	}

	alice.Commands <- locationUpdate("alice", "B")

	ev = mustEvent(t, bob.Events, EventSnapshot)
	if ev.Snapshot.Venue("A").Count != 0 || ev.Snapshot.Venue("B").Count != 1 {
		t.Fatalf("switch not reflected in one broadcast: %+v", ev.Snapshot)
	}
	if got := ev.Snapshot.Venue("B").PresentUserIDs; len(got) != 1 || got[0] != "alice" {
		t.Fatalf("unexpected users at B: %v", got)
	}
}

func TestHubRepeatedCandidateDoesNotBroadcast(t *testing.T) {
	hub, _ := startHub(t)

	alice := connect(t, hub, "a")
	bob := connect(t, hub, "b")

	alice.Commands <- locationUpdate("alice", "A")
	mustEvent(t, bob.Events, EventSnapshot)

	alice.Commands <- locationUpdate("alice", "A")
	mustNoEvent(t, bob.Events)
}

func TestHubDisconnectLeavesVenue(t *testing.T) {
	hub, _ := startHub(t)

	alice := connect(t, hub, "a")
	bob := connect(t, hub, "b")

	alice.Commands <- locationUpdate("alice", "A")
	mustEvent(t, bob.Events, EventSnapshot)
	bob.Commands <- locationUpdate("bob", "A")
	ev := mustEvent(t, bob.Events, EventSnapshot)
	for ev.Snapshot.Venue("A").Count != 2 {
		ev = mustEvent(t, bob.Events, EventSnapshot)
	}

	hub.UnregisterClient(alice)

	ev = mustEvent(t, bob.Events, EventSnapshot)
	occ := ev.Snapshot.Venue("A")
	if occ.Count != 1 || occ.PresentUserIDs[0] != "bob" {
		t.Fatalf("disconnect not reflected: %+v", occ)
	}
	mustClosed(t, alice.Events)

	if hub.Snapshot().Venue("A").Count != 1 {
		t.Fatalf("registry still counts alice")
	}
}

func TestHubQueuedCommandsRunBeforeDisconnect(t *testing.T) {
	hub, _ := startHub(t)

	alice := connect(t, hub, "a")
	bob := connect(t, hub, "b")

	alice.Commands <- locationUpdate("alice", "A")
	hub.UnregisterClient(alice)

	// The enter is broadcast first, then the disconnect clears it.
	ev := mustEvent(t, bob.Events, EventSnapshot)
	if ev.Snapshot.Venue("A").Count != 1 {
		t.Fatalf("expected enter first: %+v", ev.Snapshot)
	}
	ev = mustEvent(t, bob.Events, EventSnapshot)
	if ev.Snapshot.Venue("A").Count != 0 {
		t.Fatalf("expected leave after disconnect: %+v", ev.Snapshot)
	}
}

func TestHubRequestSnapshotRepliesToRequesterOnly(t *testing.T) {
	hub, _ := startHub(t)

	alice := connect(t, hub, "a")
	alice.Commands <- locationUpdate("alice", "A")
	mustEvent(t, alice.Events, EventSnapshot)

	before := hub.Snapshot()
	fresh := connect(t, hub, "fresh")
	observer := connect(t, hub, "observer")

	fresh.Commands <- &Command{Kind: CommandRequestSnapshot}
	ev := mustEvent(t, fresh.Events, EventSnapshot)
	if ev.Snapshot.Venue("A").Count != 1 || len(ev.Snapshot) != len(before) {
		t.Fatalf("unexpected snapshot: %+v", ev.Snapshot)
	}
	mustNoEvent(t, observer.Events)

	fresh.Commands <- &Command{Kind: CommandRequestSnapshot, VenueID: "B"}
	ev = mustEvent(t, fresh.Events, EventSnapshot)
	if len(ev.Snapshot) != 1 || ev.Snapshot.Venue("B").Count != 0 {
		t.Fatalf("unexpected filtered snapshot: %+v", ev.Snapshot)
	}
}

func TestHubExplicitLeave(t *testing.T) {
	hub, _ := startHub(t)

	alice := connect(t, hub, "a")
	alice.Commands <- locationUpdate("alice", "A")
	mustEvent(t, alice.Events, EventSnapshot)

	alice.Commands <- &Command{Kind: CommandLeave, UserID: "alice", VenueID: "A"}
	ev := mustEvent(t, alice.Events, EventSnapshot)
	if ev.Snapshot.Venue("A").Count != 0 {
		t.Fatalf("leave not applied: %+v", ev.Snapshot)
	}
}

func TestHubIdentityMismatchRejected(t *testing.T) {
	hub, _ := startHub(t)

	alice := connect(t, hub, "a")
	alice.Commands <- &Command{Kind: CommandIdentify, UserID: "alice"}
	alice.Commands <- locationUpdate("mallory", "A")

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %+v", ev)
	}
	if hub.Snapshot().Venue("A").Count != 0 {
		t.Fatalf("mismatched identity mutated registry")
	}
}

func TestHubAnonymousUpdateRejected(t *testing.T) {
	hub, _ := startHub(t)

	alice := connect(t, hub, "a")
	alice.Commands <- locationUpdate("", "A")

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request error, got %+v", ev)
	}
}

func TestHubProximityVerification(t *testing.T) {
	venue := geo.Point{Latitude: 40, Longitude: -74}
	dir := NewVenueDirectory()
	dir.Replace([]geo.VenueLocation{{VenueID: "A", Coordinates: &venue}})

	hub, _ := startHub(t, WithProximityVerifier(dir, geo.DefaultRadiusMeters))
	alice := connect(t, hub, "a")

	far := geo.Point{Latitude: 40.01, Longitude: -74}
	alice.Commands <- &Command{Kind: CommandLocationUpdate, UserID: "alice", VenueID: "A", Position: &far}
	mustNoEvent(t, alice.Events)

	alice.Commands <- &Command{Kind: CommandLocationUpdate, UserID: "alice", VenueID: "A", Position: &venue}
	ev := mustEvent(t, alice.Events, EventSnapshot)
	if ev.Snapshot.Venue("A").Count != 1 {
		t.Fatalf("verified candidate not applied: %+v", ev.Snapshot)
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub, cancel := startHub(t)

	alice := connect(t, hub, "a")
	cancel()

	mustClosed(t, alice.Events)
	if hub.RegisterClient(NewClient("late")) {
		t.Fatalf("register succeeded after shutdown")
	}
}

func TestHubOccupancyGaugeDroppedWhenVenueEmpties(t *testing.T) {
	hub, _ := startHub(t)

	alice := connect(t, hub, "a")
	alice.Commands <- locationUpdate("alice", "gauge-venue")
	mustEvent(t, alice.Events, EventSnapshot)

	if got := testutil.ToFloat64(metrics.VenueOccupancy.WithLabelValues("gauge-venue")); got != 1 {
		t.Fatalf("expected occupancy 1, got %v", got)
	}

	alice.Commands <- locationUpdate("alice", "")
	mustEvent(t, alice.Events, EventSnapshot)

	// Any venue id a client sends would otherwise leave a series behind.
	if metrics.VenueOccupancy.DeleteLabelValues("gauge-venue") {
		t.Fatalf("series for an empty venue still exported")
	}
}
