package vision

import (
	"sort"
	"sync"
)

// PipelineConfig wires the three stateful components together.
type PipelineConfig struct {
	FrameWidth  int
	FrameHeight int
	HeatRadius  int
	Stabilizer  StabilizerConfig
	Sessions    SessionConfig
	Tables      []Table
}

// IdentitySummary aggregates one stable identity across its whole existence,
// for the per-customer section of the end-of-run report.
type IdentitySummary struct {
	ID           int64
	FirstSeen    float64
	LastSeen     float64
	TableSeconds map[string]float64 // confirmed occupancy per table
}

// TotalSeconds is the identity's total appearance duration, walking included.
func (s *IdentitySummary) TotalSeconds() float64 { return s.LastSeen - s.FirstSeen }

// IdentityStatus is one row of the live status surface.
type IdentityStatus struct {
	ID    int64  `json:"id"`
	State string `json:"state"` // "Walking" or the table name
}

// Status is the live snapshot consumed by the rendering layer. It is copied
// out under a lock so the HTTP surface never observes a half-updated frame.
type Status struct {
	FrameIndex       int              `json:"frame_index"`
	VideoSeconds     float64          `json:"video_seconds"`
	ActiveIdentities int              `json:"active_identities"`
	GhostIdentities  int              `json:"ghost_identities"`
	Identities       []IdentityStatus `json:"identities"`
	OccupiedTables   []string         `json:"occupied_tables"`
	TableCount       int              `json:"table_count"`
	SessionsLogged   int              `json:"sessions_logged"`
}

// StateWalking is the live state for an identity with no open session.
const StateWalking = "Walking"

// Pipeline is the per-frame stage: reference extraction, identity
// stabilization, occupancy sessions, spatial accumulation. All mutation
// happens on the single ProcessFrame caller; only the status snapshot is
// shared with concurrent readers.
type Pipeline struct {
	stabilizer *Stabilizer
	sessions   *SessionEngine
	heat       *Heatmap

	summaries map[int64]*IdentitySummary
	frames    int
	lastTime  float64
	flushed   bool

	mu     sync.Mutex
	status Status
}

// NewPipeline builds the stage from configuration. Table validity (vertex
// counts, disjointness) is enforced upstream at config load.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		stabilizer: NewStabilizer(cfg.Stabilizer),
		sessions:   NewSessionEngine(cfg.Sessions, cfg.Tables),
		heat:       NewHeatmap(cfg.FrameWidth, cfg.FrameHeight, cfg.HeatRadius),
		summaries:  make(map[int64]*IdentitySummary),
	}
	p.status.TableCount = p.sessions.TableCount()
	return p
}

// ProcessFrame runs the full stage for one frame and returns the confirmed
// session records it closed. Frames must arrive in timestamp order; empty
// frames still drive aging, patience, and sweep logic.
func (p *Pipeline) ProcessFrame(f Frame) []SessionRecord {
	p.frames++
	p.lastTime = f.Timestamp

	obs := make([]Observation, 0, len(f.Detections))
	anchors := make(map[int64]Observation, len(f.Detections))
	for _, d := range f.Detections {
		o := Observation{
			RawTrackID: d.RawTrackID,
			Anchor:     AnchorFor(d),
			Appearance: d.MeanColor,
		}
		obs = append(obs, o)
		anchors[d.RawTrackID] = o
	}

	res := p.stabilizer.Step(obs, f.Timestamp, f.Index)

	var records []SessionRecord

	// Retired identities are flushed from memory; any open session closes
	// with them before this frame's containment runs.
	for _, gone := range res.Retired {
		if rec := p.sessions.ForceClose(gone.ID); rec != nil {
			records = append(records, *rec)
		}
	}

	// Advance each active identity's table state machine, in stable id
	// order so a run replays deterministically.
	type step struct {
		id  *StableIdentity
		obs Observation
	}
	steps := make([]step, 0, len(res.Assignments))
	for raw, id := range res.Assignments {
		steps = append(steps, step{id: id, obs: anchors[raw]})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].id.ID < steps[j].id.ID })
	for _, st := range steps {
		p.noteSeen(st.id)
		if rec := p.sessions.Step(st.id.ID, st.obs.Anchor, f.Timestamp); rec != nil {
			records = append(records, *rec)
		}
	}

	// Density accumulates for every anchor, identity and occupancy aside.
	for _, o := range obs {
		p.heat.Add(o.Anchor)
	}

	p.noteRecords(records)
	p.snapshotStatus(f)
	return records
}

// Flush force-closes every remaining open session (Active and Ghost alike)
// and returns the confirmed records. Must be called exactly once, after the
// final frame or on cancellation, before the heatmap is normalized.
func (p *Pipeline) Flush() []SessionRecord {
	if p.flushed {
		return nil
	}
	p.flushed = true
	records := p.sessions.FlushAll()
	p.noteRecords(records)

	p.mu.Lock()
	p.status.SessionsLogged = p.sessions.LoggedCount()
	p.status.OccupiedTables = nil
	p.mu.Unlock()
	return records
}

// noteSeen keeps the per-identity appearance span current.
func (p *Pipeline) noteSeen(id *StableIdentity) {
	sum, ok := p.summaries[id.ID]
	if !ok {
		sum = &IdentitySummary{
			ID:           id.ID,
			FirstSeen:    id.FirstSeen,
			TableSeconds: make(map[string]float64),
		}
		p.summaries[id.ID] = sum
	}
	sum.LastSeen = id.LastSeen
}

// noteRecords rolls confirmed sessions into the identity summaries.
func (p *Pipeline) noteRecords(records []SessionRecord) {
	for _, rec := range records {
		sum, ok := p.summaries[rec.IdentityID]
		if !ok {
			// Session for an identity never stepped this run; should not
			// happen, but never lose a confirmed record over it.
			sum = &IdentitySummary{ID: rec.IdentityID, TableSeconds: make(map[string]float64)}
			p.summaries[rec.IdentityID] = sum
		}
		sum.TableSeconds[rec.Table] += rec.Duration()
	}
}

// snapshotStatus publishes the live status for this frame.
func (p *Pipeline) snapshotStatus(f Frame) {
	active := p.stabilizer.ActiveIdentities()
	ids := make([]IdentityStatus, 0, len(active))
	for _, id := range active {
		state := StateWalking
		if table, ok := p.sessions.Location(id.ID); ok {
			state = table
		}
		ids = append(ids, IdentityStatus{ID: id.ID, State: state})
	}

	p.mu.Lock()
	p.status = Status{
		FrameIndex:       f.Index,
		VideoSeconds:     f.Timestamp,
		ActiveIdentities: len(active),
		GhostIdentities:  p.stabilizer.GhostCount(),
		Identities:       ids,
		OccupiedTables:   p.sessions.OccupiedTables(),
		TableCount:       p.sessions.TableCount(),
		SessionsLogged:   p.sessions.LoggedCount(),
	}
	p.mu.Unlock()
}

// Status returns a copy of the most recent live snapshot. Safe to call from
// other goroutines while frames are processing.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.status
	st.Identities = append([]IdentityStatus(nil), p.status.Identities...)
	st.OccupiedTables = append([]string(nil), p.status.OccupiedTables...)
	return st
}

// Summaries returns all identity summaries ordered by stable id.
func (p *Pipeline) Summaries() []*IdentitySummary {
	out := make([]*IdentitySummary, 0, len(p.summaries))
	for _, s := range p.summaries {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Heatmap exposes the spatial accumulator for shutdown rendering.
func (p *Pipeline) Heatmap() *Heatmap { return p.heat }

// Frames returns how many frames have been processed.
func (p *Pipeline) Frames() int { return p.frames }

// VideoSeconds returns the timestamp of the most recent frame.
func (p *Pipeline) VideoSeconds() float64 { return p.lastTime }
