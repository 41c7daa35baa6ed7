package core

import (
	"fmt"
	"math/rand"
	"reflect"
	"sync"
	"testing"
)

func TestRegistryMarkPresentMovesUser(t *testing.T) {
	reg := NewRegistry()

	reg.MarkPresent("A", "u1")
	snap, changed := reg.MarkPresent("B", "u1")
	if !changed {
		t.Fatalf("expected change when moving venues")
	}
	if snap.Venue("A").Count != 0 || snap.Venue("B").Count != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if v, ok := reg.VenueOf("u1"); !ok || v != "B" {
		t.Fatalf("VenueOf = %q, %v", v, ok)
	}
}

func TestRegistryMarkPresentIdempotent(t *testing.T) {
	reg := NewRegistry()

	once, _ := reg.MarkPresent("A", "u1")
	twice, changed := reg.MarkPresent("A", "u1")
	if changed {
		t.Fatalf("second MarkPresent reported a change")
	}
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("state differs after repeat: %+v vs %+v", once, twice)
	}
}

func TestRegistryMarkAbsentNoop(t *testing.T) {
	reg := NewRegistry()

	if _, changed := reg.MarkAbsent("ghost", "u1"); changed {
		t.Fatalf("absent user reported a change")
	}
	if len(reg.Snapshot()) != 0 {
		t.Fatalf("MarkAbsent on unknown venue created an entry")
	}

	reg.MarkPresent("A", "u1")
	if _, changed := reg.MarkAbsent("B", "u1"); changed {
		t.Fatalf("removing from the wrong venue reported a change")
	}
	if reg.Count("A") != 1 {
		t.Fatalf("user removed from A by a MarkAbsent on B")
	}
}

func TestRegistrySnapshotIsCopy(t *testing.T) {
	reg := NewRegistry()
	reg.MarkPresent("A", "u2")
	reg.MarkPresent("A", "u1")

	snap := reg.Snapshot()
	if got := snap.Venue("A").PresentUserIDs; !reflect.DeepEqual(got, []string{"u1", "u2"}) {
		t.Fatalf("unexpected users: %v", got)
	}

	reg.MarkAbsent("A", "u1")
	if snap.Venue("A").Count != 2 {
		t.Fatalf("snapshot changed after later mutation")
	}
}

func TestSnapshotOnly(t *testing.T) {
	reg := NewRegistry()
	reg.MarkPresent("A", "u1")
	reg.MarkPresent("B", "u2")

	only := reg.Snapshot().Only("A")
	if len(only) != 1 || only["A"].Count != 1 {
		t.Fatalf("unexpected filtered snapshot: %+v", only)
	}

	missing := reg.Snapshot().Only("Z")
	if occ, ok := missing["Z"]; !ok || occ.Count != 0 || occ.PresentUserIDs == nil {
		t.Fatalf("unknown venue should be reported empty: %+v", missing)
	}
}

func TestRegistryOneVenuePerUserUnderRandomOps(t *testing.T) {
	reg := NewRegistry()
	rng := rand.New(rand.NewSource(42))
	venues := []string{"A", "B", "C", "D"}

	for i := 0; i < 5000; i++ {
		user := fmt.Sprintf("u%d", rng.Intn(20))
		venue := venues[rng.Intn(len(venues))]
		if rng.Intn(3) == 0 {
			reg.MarkAbsent(venue, user)
		} else {
			reg.MarkPresent(venue, user)
		}
		assertOneVenuePerUser(t, reg.Snapshot())
	}
}

func TestRegistryConcurrentUsers(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.MarkPresent("A", user)
				reg.MarkPresent("B", user)
				_ = reg.Snapshot()
			}
			reg.MarkAbsent("B", user)
		}(fmt.Sprintf("u%d", i))
	}
	wg.Wait()

	snap := reg.Snapshot()
	if snap.Venue("A").Count != 0 || snap.Venue("B").Count != 0 {
		t.Fatalf("expected empty registry, got %+v", snap)
	}
}

func assertOneVenuePerUser(t *testing.T, snap Snapshot) {
	t.Helper()

	seen := make(map[string]string)
	for venue, occ := range snap {
		if occ.Count != len(occ.PresentUserIDs) {
			t.Fatalf("venue %s count %d != %d users", venue, occ.Count, len(occ.PresentUserIDs))
		}
		for _, u := range occ.PresentUserIDs {
			if prev, dup := seen[u]; dup {
				t.Fatalf("user %s present at %s and %s", u, prev, venue)
			}
			seen[u] = venue
		}
	}
}
