package vision

import (
	"sort"

	"github.com/cafesense/occupancy.report/internal/geo"
)

// SessionState represents the lifecycle state of an occupancy session.
type SessionState string

const (
	SessionPending   SessionState = "pending"   // Entered, not yet past the stay threshold
	SessionConfirmed SessionState = "confirmed" // Real occupancy, will be logged on close
	SessionEnded     SessionState = "ended"     // Closed, terminal
)

// SessionConfig holds the hysteresis windows for the table state machine.
type SessionConfig struct {
	// StayThresholdSeconds is the minimum continuous presence before a
	// session counts as real occupancy rather than passing through.
	StayThresholdSeconds float64
	// PatienceSeconds is the grace period during which a momentary exit
	// from the polygon still counts as occupying the table.
	PatienceSeconds float64
}

// DefaultSessionConfig returns the validated default windows.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		StayThresholdSeconds: 4.0,
		PatienceSeconds:      5.0,
	}
}

// Table is one configured table region in frame pixel coordinates.
type Table struct {
	Name    string
	Outline geo.Polygon
}

// Session is one contiguous occupancy episode of a stable identity at a
// table. At most one open session exists per identity at any instant.
type Session struct {
	IdentityID int64
	Table      string
	State      SessionState
	EntryTime  float64 // first frame the anchor entered the polygon
	LastInside float64 // most recent frame the anchor was inside
}

// SessionRecord is the log output for one confirmed, closed session.
type SessionRecord struct {
	IdentityID int64
	Table      string
	EntryTime  float64
	ExitTime   float64
}

// Duration returns the logged occupancy length in seconds.
func (r SessionRecord) Duration() float64 { return r.ExitTime - r.EntryTime }

// SessionEngine maintains one patience-buffered state machine per open
// (identity, table) pair. Tables are assumed disjoint by configuration
// contract; containment resolves to the first (name-ordered) table whose
// polygon holds the anchor.
type SessionEngine struct {
	cfg    SessionConfig
	tables []Table // sorted by name for deterministic containment
	open   map[int64]*Session
	logged int
}

// NewSessionEngine creates an engine over the configured tables.
func NewSessionEngine(cfg SessionConfig, tables []Table) *SessionEngine {
	sorted := make([]Table, len(tables))
	copy(sorted, tables)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &SessionEngine{
		cfg:    cfg,
		tables: sorted,
		open:   make(map[int64]*Session),
	}
}

// containing returns the table holding the anchor, boundary inclusive.
func (e *SessionEngine) containing(anchor geo.Point) (string, bool) {
	for _, t := range e.tables {
		if t.Outline.Contains(anchor) {
			return t.Name, true
		}
	}
	return "", false
}

// Step advances one identity's state machine to video time now. It returns
// the confirmed session record if this frame closed one (nil otherwise).
// Pending sessions that close are discarded as false seatings.
func (e *SessionEngine) Step(identityID int64, anchor geo.Point, now float64) *SessionRecord {
	table, inside := e.containing(anchor)
	sess := e.open[identityID]

	var closed *SessionRecord
	if sess != nil {
		if inside && table == sess.Table {
			sess.LastInside = now
			if sess.State == SessionPending && now-sess.EntryTime >= e.cfg.StayThresholdSeconds {
				sess.State = SessionConfirmed
			}
			return nil
		}
		// Outside, or inside a different table: flicker inside the
		// patience window keeps the session open and opens nothing new.
		if now-sess.LastInside <= e.cfg.PatienceSeconds {
			return nil
		}
		closed = e.close(sess)
	}

	if inside {
		e.open[identityID] = &Session{
			IdentityID: identityID,
			Table:      table,
			State:      SessionPending,
			EntryTime:  now,
			LastInside: now,
		}
	}
	return closed
}

// close ends a session and returns its log record if it was confirmed.
func (e *SessionEngine) close(sess *Session) *SessionRecord {
	delete(e.open, sess.IdentityID)
	state := sess.State
	sess.State = SessionEnded
	if state != SessionConfirmed {
		return nil
	}
	e.logged++
	return &SessionRecord{
		IdentityID: sess.IdentityID,
		Table:      sess.Table,
		EntryTime:  sess.EntryTime,
		ExitTime:   sess.LastInside,
	}
}

// ForceClose ends an identity's open session immediately, promoting a
// Pending session that already satisfies the stay threshold (the confirm
// check that would have run on its final inside frame). Used on identity
// retirement and at shutdown. Exit time is the last frame the anchor was
// inside the polygon, never later.
func (e *SessionEngine) ForceClose(identityID int64) *SessionRecord {
	sess := e.open[identityID]
	if sess == nil {
		return nil
	}
	if sess.State == SessionPending && sess.LastInside-sess.EntryTime >= e.cfg.StayThresholdSeconds {
		sess.State = SessionConfirmed
	}
	return e.close(sess)
}

// FlushAll force-closes every open session, in identity order. Called once
// at end-of-run or cancellation so partial sessions never silently vanish.
func (e *SessionEngine) FlushAll() []SessionRecord {
	ids := make([]int64, 0, len(e.open))
	for id := range e.open {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var records []SessionRecord
	for _, id := range ids {
		if rec := e.ForceClose(id); rec != nil {
			records = append(records, *rec)
		}
	}
	return records
}

// Location returns the table name of the identity's open session. The
// second return is false when the identity is walking.
func (e *SessionEngine) Location(identityID int64) (string, bool) {
	sess, ok := e.open[identityID]
	if !ok {
		return "", false
	}
	return sess.Table, true
}

// OccupiedTables returns the distinct tables with an open session, sorted.
func (e *SessionEngine) OccupiedTables() []string {
	set := make(map[string]bool, len(e.open))
	for _, sess := range e.open {
		set[sess.Table] = true
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TableCount returns the number of configured tables.
func (e *SessionEngine) TableCount() int { return len(e.tables) }

// LoggedCount returns how many confirmed sessions have closed so far.
func (e *SessionEngine) LoggedCount() int { return e.logged }
