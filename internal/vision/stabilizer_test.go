package vision

import (
	"testing"

	"github.com/cafesense/occupancy.report/internal/geo"
)

func ob(raw int64, x, y float64, c Color) Observation {
	return Observation{RawTrackID: raw, Anchor: geo.Point{X: x, Y: y}, Appearance: c}
}

var gray = Color{100, 100, 100}

func TestStabilizerContinuity(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())

	res := s.Step([]Observation{ob(7, 100, 100, gray)}, 1.0, 1)
	id := res.Assignments[7]
	if id == nil {
		t.Fatal("no identity assigned")
	}
	if id.ID != 1 {
		t.Errorf("first identity id = %d, want 1", id.ID)
	}
	if id.HasVelocity {
		t.Error("velocity should be undefined after a single observation")
	}

	res = s.Step([]Observation{ob(7, 110, 100, gray)}, 1.1, 2)
	id2 := res.Assignments[7]
	if id2.ID != id.ID {
		t.Errorf("same raw track got new stable id %d, want %d", id2.ID, id.ID)
	}
	if !id2.HasVelocity || id2.Velocity != (geo.Vec{X: 10, Y: 0}) {
		t.Errorf("velocity = %+v (has=%v), want {10 0}", id2.Velocity, id2.HasVelocity)
	}
	if id2.FirstSeen != 1.0 || id2.LastSeen != 1.1 {
		t.Errorf("span = [%f, %f], want [1.0, 1.1]", id2.FirstSeen, id2.LastSeen)
	}
}

func TestStabilizerGhostMerge(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())

	// Track 7 walks right, then vanishes.
	s.Step([]Observation{ob(7, 100, 100, gray)}, 1.0, 1)
	s.Step([]Observation{ob(7, 120, 100, gray)}, 1.5, 2)
	res := s.Step(nil, 2.0, 3)
	if len(res.Lost) != 1 {
		t.Fatalf("lost = %d identities, want 1", len(res.Lost))
	}
	stable := res.Lost[0].ID

	// Track 12 appears 50px further along the same direction, same shirt.
	res = s.Step([]Observation{ob(12, 170, 100, gray)}, 3.0, 4)
	got := res.Assignments[12]
	if got == nil || got.ID != stable {
		t.Fatalf("new raw track was not merged into ghost %d", stable)
	}
	if res.Merges != 1 {
		t.Errorf("merges = %d, want 1", res.Merges)
	}
	if got.State != IdentityActive {
		t.Errorf("state = %s, want active", got.State)
	}
	if got.RawTrackID != 12 {
		t.Errorf("raw track id = %d, want 12", got.RawTrackID)
	}
	if got.FirstSeen != 1.0 {
		t.Errorf("merge must preserve FirstSeen, got %f", got.FirstSeen)
	}
	if s.GhostCount() != 0 {
		t.Errorf("ghost count = %d, want 0", s.GhostCount())
	}
}

func TestStabilizerGhostTTLExpiry(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())

	s.Step([]Observation{ob(7, 100, 100, gray)}, 20.0, 1)
	s.Step(nil, 20.0, 2) // lost at t=20

	// 7 seconds later: past the 5s TTL, even at the same spot.
	res := s.Step([]Observation{ob(12, 100, 100, gray)}, 27.0, 3)
	got := res.Assignments[12]
	if got.ID == 1 {
		t.Error("expired ghost must not merge")
	}
	if got.ID != 2 {
		t.Errorf("new identity id = %d, want 2", got.ID)
	}
	if len(res.Retired) != 1 || res.Retired[0].ID != 1 {
		t.Errorf("retired = %+v, want identity 1", res.Retired)
	}
	if res.Retired[0].State != IdentityRetired {
		t.Errorf("retired state = %s", res.Retired[0].State)
	}
}

func TestStabilizerTTLBoundary(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())

	s.Step([]Observation{ob(7, 100, 100, gray)}, 10.0, 1)
	s.Step(nil, 10.0, 2)

	// Exactly at the deadline: ghost lifetime is [loss, loss+TTL).
	res := s.Step([]Observation{ob(12, 100, 100, gray)}, 15.0, 3)
	if res.Assignments[12].ID == 1 {
		t.Error("ghost at exactly TTL must not merge")
	}
}

func TestStabilizerNoIDReuse(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())

	seen := make(map[int64]bool)
	for i := 0; i < 5; i++ {
		raw := int64(100 + i)
		now := float64(i) * 10 // each track expires before the next arrives
		res := s.Step([]Observation{ob(raw, 500, 500, gray)}, now, i*2)
		id := res.Assignments[raw].ID
		if seen[id] {
			t.Fatalf("stable id %d reused", id)
		}
		seen[id] = true
		s.Step(nil, now+0.1, i*2+1)
	}
}

func TestStabilizerNearestGhostWins(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())

	// Two stationary tracks, both lost.
	s.Step([]Observation{ob(1, 100, 100, gray), ob(2, 140, 100, gray)}, 1.0, 1)
	res := s.Step(nil, 1.5, 2)
	if len(res.Lost) != 2 {
		t.Fatalf("lost = %d, want 2", len(res.Lost))
	}

	// New track 30px from track 2's ghost, 70px from track 1's.
	res = s.Step([]Observation{ob(9, 170, 100, gray)}, 2.0, 3)
	got := res.Assignments[9]
	if got.ID != 2 {
		t.Errorf("merged into identity %d, want nearest ghost 2", got.ID)
	}
}

func TestStabilizerVelocityGateRejectsReversal(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())

	// Ghost was moving right at loss.
	s.Step([]Observation{ob(7, 100, 100, gray)}, 1.0, 1)
	s.Step([]Observation{ob(7, 130, 100, gray)}, 1.5, 2)
	s.Step(nil, 2.0, 3)

	// Candidate implies motion to the left: cosine -1.
	res := s.Step([]Observation{ob(12, 90, 100, gray)}, 2.5, 4)
	if res.Assignments[12].ID == 1 {
		t.Error("direction reversal must not merge")
	}
	if res.Merges != 0 {
		t.Errorf("merges = %d, want 0", res.Merges)
	}
}

func TestStabilizerVelocityGateSkippedWhenUndefined(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())

	// Single observation: ghost has no velocity, so only the spatial and
	// appearance gates apply.
	s.Step([]Observation{ob(7, 100, 100, gray)}, 1.0, 1)
	s.Step(nil, 1.5, 2)

	res := s.Step([]Observation{ob(12, 60, 100, gray)}, 2.0, 3)
	if res.Assignments[12].ID != 1 {
		t.Error("velocity-undefined ghost should merge on spatial and appearance gates alone")
	}
}

func TestStabilizerAppearanceGateRejects(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())

	s.Step([]Observation{ob(7, 100, 100, Color{10, 10, 10})}, 1.0, 1)
	s.Step(nil, 1.5, 2)

	// Same spot, very different shirt.
	res := s.Step([]Observation{ob(12, 100, 100, Color{200, 200, 200})}, 2.0, 3)
	if res.Assignments[12].ID == 1 {
		t.Error("appearance mismatch must not merge")
	}
}

func TestStabilizerSpatialGateBoundary(t *testing.T) {
	cfg := DefaultStabilizerConfig()

	// Exactly 60px away still merges; 61px does not.
	for _, tc := range []struct {
		x     float64
		merge bool
	}{
		{160, true},
		{161, false},
	} {
		s := NewStabilizer(cfg)
		s.Step([]Observation{ob(7, 100, 100, gray)}, 1.0, 1)
		s.Step(nil, 1.5, 2)
		res := s.Step([]Observation{ob(12, tc.x, 100, gray)}, 2.0, 3)
		merged := res.Assignments[12].ID == 1
		if merged != tc.merge {
			t.Errorf("distance %dpx: merged = %v, want %v", int(tc.x-100), merged, tc.merge)
		}
	}
}

func TestStabilizerAppearanceBlending(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())

	s.Step([]Observation{ob(7, 100, 100, Color{100, 100, 100})}, 1.0, 1)
	res := s.Step([]Observation{ob(7, 100, 100, Color{120, 100, 100})}, 1.1, 2)

	got := res.Assignments[7].Appearance
	if got[0] != 110 || got[1] != 100 || got[2] != 100 {
		t.Errorf("blended appearance = %v, want {110 100 100}", got)
	}
}

func TestStabilizerEmptyFrameSweeps(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())

	s.Step([]Observation{ob(7, 100, 100, gray)}, 1.0, 1)
	s.Step(nil, 2.0, 2)
	if s.GhostCount() != 1 {
		t.Fatalf("ghost count = %d, want 1", s.GhostCount())
	}

	res := s.Step(nil, 10.0, 3)
	if len(res.Retired) != 1 {
		t.Errorf("empty frame at t=10 should retire the ghost, got %d", len(res.Retired))
	}
	if s.GhostCount() != 0 {
		t.Errorf("ghost count = %d after sweep, want 0", s.GhostCount())
	}
}
