package vision

import (
	"sort"

	"github.com/cafesense/occupancy.report/internal/geo"
)

// IdentityState represents the lifecycle state of a stable identity.
type IdentityState string

const (
	IdentityActive  IdentityState = "active"  // Currently reported by the tracker
	IdentityGhost   IdentityState = "ghost"   // Raw track lost, merge-eligible
	IdentityRetired IdentityState = "retired" // Ghost TTL elapsed, terminal
)

// StabilizerConfig holds the merge gates and ghost lifetime. The thresholds
// are empirically validated scalars; changing defaults requires re-checking
// the recorded merge scenarios.
type StabilizerConfig struct {
	MergeMaxDistancePx     float64 // Spatial gate: ghost anchor to new anchor
	MergeMinVelocityCosine float64 // Motion gate: rejects direction reversals
	MergeMaxColorDistance  float64 // Appearance gate: Euclidean over mean BGR
	GhostTTLSeconds        float64 // Ghost retirement deadline after loss
}

// DefaultStabilizerConfig returns the validated default gates.
func DefaultStabilizerConfig() StabilizerConfig {
	return StabilizerConfig{
		MergeMaxDistancePx:     60.0,
		MergeMinVelocityCosine: 0.5,
		MergeMaxColorDistance:  50.0,
		GhostTTLSeconds:        5.0,
	}
}

// StableIdentity is the unit of customer continuity. Its ID is
// process-unique, assigned once, and never reused, no matter how many raw
// track numbers the tracker burns through for the same person.
type StableIdentity struct {
	ID    int64
	State IdentityState

	// RawTrackID is the tracker id currently mapped to this identity.
	// Meaningful only while Active.
	RawTrackID int64

	LastAnchor  geo.Point
	Velocity    geo.Vec
	HasVelocity bool // false until two anchors have been observed

	// Appearance is a running mean of the per-frame BGR samples.
	Appearance Color

	FirstSeen     float64 // video seconds
	LastSeen      float64
	LastSeenFrame int
	LostAt        float64 // loss stamp, set on Active -> Ghost

	observations int
}

// Observation is one frame's input to the stabilizer: the raw track id, the
// extracted anchor, and the appearance sample.
type Observation struct {
	RawTrackID int64
	Anchor     geo.Point
	Appearance Color
}

// StepResult reports what one frame did to the identity population.
type StepResult struct {
	// Assignments maps each observed raw track id to its stable identity.
	Assignments map[int64]*StableIdentity
	// Lost identities moved Active -> Ghost this frame.
	Lost []*StableIdentity
	// Retired identities swept out this frame; their ids are dead forever.
	Retired []*StableIdentity
	// Merges counts ghost promotions this frame.
	Merges int
}

// Stabilizer recovers identity continuity across tracker failures. It holds
// the Active set keyed by raw track id and the Ghost set keyed by stable id
// (the raw id that will reclaim a ghost is unknown until it happens).
//
// The merge policy is deliberately biased toward splitting one person into
// two ids over fusing two people into one: a false merge corrupts every
// downstream occupancy duration.
type Stabilizer struct {
	cfg    StabilizerConfig
	active map[int64]*StableIdentity // raw track id -> identity
	ghosts map[int64]*StableIdentity // stable id -> identity
	nextID int64
}

// NewStabilizer creates a stabilizer with the given gates.
func NewStabilizer(cfg StabilizerConfig) *Stabilizer {
	return &Stabilizer{
		cfg:    cfg,
		active: make(map[int64]*StableIdentity),
		ghosts: make(map[int64]*StableIdentity),
		nextID: 1,
	}
}

// Step processes one frame of observations at video time now (seconds).
// It must be called exactly once per frame, in frame order, including for
// empty frames so that loss and retirement sweeps still run.
func (s *Stabilizer) Step(obs []Observation, now float64, frameIdx int) StepResult {
	res := StepResult{Assignments: make(map[int64]*StableIdentity, len(obs))}

	seen := make(map[int64]bool, len(obs))
	for _, o := range obs {
		seen[o.RawTrackID] = true
	}

	// Existing raw ids: plain update, no merge evaluation.
	var fresh []Observation
	for _, o := range obs {
		if id, ok := s.active[o.RawTrackID]; ok {
			s.update(id, o, now, frameIdx)
			res.Assignments[o.RawTrackID] = id
			continue
		}
		if _, dup := res.Assignments[o.RawTrackID]; dup {
			// Tracker contract violation (duplicate raw id in one frame);
			// fold into the identity already assigned this frame.
			continue
		}
		fresh = append(fresh, o)
	}

	// New raw ids: try to reclaim a ghost, otherwise mint an identity.
	for _, o := range fresh {
		if _, ok := s.active[o.RawTrackID]; ok {
			continue
		}
		if g := s.bestGhost(o, now); g != nil {
			delete(s.ghosts, g.ID)
			g.State = IdentityActive
			g.RawTrackID = o.RawTrackID
			motion := o.Anchor.Sub(g.LastAnchor)
			g.Velocity = motion
			g.HasVelocity = motion.Norm() > 0
			g.LastAnchor = o.Anchor
			s.blendAppearance(g, o.Appearance)
			g.LastSeen = now
			g.LastSeenFrame = frameIdx
			s.active[o.RawTrackID] = g
			res.Assignments[o.RawTrackID] = g
			res.Merges++
			continue
		}
		id := &StableIdentity{
			ID:            s.nextID,
			State:         IdentityActive,
			RawTrackID:    o.RawTrackID,
			LastAnchor:    o.Anchor,
			Appearance:    o.Appearance,
			FirstSeen:     now,
			LastSeen:      now,
			LastSeenFrame: frameIdx,
			observations:  1,
		}
		s.nextID++
		s.active[o.RawTrackID] = id
		res.Assignments[o.RawTrackID] = id
	}

	// Raw ids that vanished this frame become ghosts.
	for raw, id := range s.active {
		if seen[raw] {
			continue
		}
		delete(s.active, raw)
		id.State = IdentityGhost
		id.LostAt = now
		s.ghosts[id.ID] = id
		res.Lost = append(res.Lost, id)
	}

	// Ghost sweep: TTL elapsed unmerged means permanent retirement.
	for gid, g := range s.ghosts {
		if now-g.LostAt >= s.cfg.GhostTTLSeconds {
			delete(s.ghosts, gid)
			g.State = IdentityRetired
			res.Retired = append(res.Retired, g)
		}
	}
	sort.Slice(res.Lost, func(i, j int) bool { return res.Lost[i].ID < res.Lost[j].ID })
	sort.Slice(res.Retired, func(i, j int) bool { return res.Retired[i].ID < res.Retired[j].ID })

	return res
}

// update applies one observation to an identity that stayed associated.
func (s *Stabilizer) update(id *StableIdentity, o Observation, now float64, frameIdx int) {
	id.Velocity = o.Anchor.Sub(id.LastAnchor)
	id.HasVelocity = true
	id.LastAnchor = o.Anchor
	s.blendAppearance(id, o.Appearance)
	id.LastSeen = now
	id.LastSeenFrame = frameIdx
}

// blendAppearance folds a new sample into the running mean signature.
func (s *Stabilizer) blendAppearance(id *StableIdentity, sample Color) {
	id.observations++
	n := float64(id.observations)
	for i := range id.Appearance {
		id.Appearance[i] = ((n-1)*id.Appearance[i] + sample[i]) / n
	}
}

// bestGhost returns the ghost the observation should merge into, or nil.
// All three gates must pass; among passing ghosts the nearest wins, and ties
// go to the most recently lost.
func (s *Stabilizer) bestGhost(o Observation, now float64) *StableIdentity {
	var best *StableIdentity
	bestDist := s.cfg.MergeMaxDistancePx
	for _, g := range s.ghosts {
		if now-g.LostAt >= s.cfg.GhostTTLSeconds {
			continue // expired, sweep will retire it this frame
		}
		dist := g.LastAnchor.Dist(o.Anchor)
		if dist > s.cfg.MergeMaxDistancePx {
			continue
		}
		if g.HasVelocity {
			implied := o.Anchor.Sub(g.LastAnchor)
			if cos, ok := geo.Cosine(g.Velocity, implied); ok && cos < s.cfg.MergeMinVelocityCosine {
				continue
			}
		}
		if g.Appearance.Dist(o.Appearance) > s.cfg.MergeMaxColorDistance {
			continue
		}
		switch {
		case best == nil, dist < bestDist:
			best = g
			bestDist = dist
		case dist == bestDist && g.LostAt > best.LostAt:
			best = g
		}
	}
	return best
}

// ActiveIdentities returns the Active set ordered by stable id.
func (s *Stabilizer) ActiveIdentities() []*StableIdentity {
	out := make([]*StableIdentity, 0, len(s.active))
	for _, id := range s.active {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GhostCount returns how many identities are currently merge-eligible.
func (s *Stabilizer) GhostCount() int { return len(s.ghosts) }

// Ghosts returns the Ghost set ordered by stable id. Used by the shutdown
// path to force-close their sessions.
func (s *Stabilizer) Ghosts() []*StableIdentity {
	out := make([]*StableIdentity, 0, len(s.ghosts))
	for _, g := range s.ghosts {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
