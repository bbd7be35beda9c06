package vision

import (
	"testing"

	"github.com/cafesense/occupancy.report/internal/geo"
)

func twoTables() []Table {
	return []Table{
		{Name: "Table-1", Outline: geo.Polygon{{X: 100, Y: 100}, {X: 200, Y: 100}, {X: 200, Y: 200}, {X: 100, Y: 200}}},
		{Name: "Table-2", Outline: geo.Polygon{{X: 300, Y: 100}, {X: 400, Y: 100}, {X: 400, Y: 200}, {X: 300, Y: 200}}},
	}
}

var (
	inT1    = geo.Point{X: 150, Y: 150}
	inT2    = geo.Point{X: 350, Y: 150}
	walking = geo.Point{X: 600, Y: 600}
)

func TestSessionConfirmAndClose(t *testing.T) {
	e := NewSessionEngine(DefaultSessionConfig(), twoTables())

	// Inside from 10.0 to 16.0 at half-second steps.
	for ts := 10.0; ts <= 16.0; ts += 0.5 {
		if rec := e.Step(1, inT1, ts); rec != nil {
			t.Fatalf("unexpected record at t=%f", ts)
		}
	}
	// Outside; patience holds for 5s after the last inside frame.
	if rec := e.Step(1, walking, 20.0); rec != nil {
		t.Fatal("record inside the patience window")
	}
	rec := e.Step(1, walking, 21.5)
	if rec == nil {
		t.Fatal("no record after patience expired")
	}
	if rec.Table != "Table-1" {
		t.Errorf("table = %q, want Table-1", rec.Table)
	}
	if rec.EntryTime != 10.0 {
		t.Errorf("entry = %f, want 10.0", rec.EntryTime)
	}
	if rec.ExitTime != 16.0 {
		t.Errorf("exit = %f, want last inside time 16.0, not the close time", rec.ExitTime)
	}
	if rec.Duration() != 6.0 {
		t.Errorf("duration = %f, want 6.0", rec.Duration())
	}
	if e.LoggedCount() != 1 {
		t.Errorf("logged = %d, want 1", e.LoggedCount())
	}
}

func TestSessionShortVisitDiscarded(t *testing.T) {
	e := NewSessionEngine(DefaultSessionConfig(), twoTables())

	// 1.5 seconds at the table: under the stay threshold.
	e.Step(1, inT1, 10.0)
	e.Step(1, inT1, 11.5)
	for ts := 12.0; ts <= 20.0; ts += 1.0 {
		if rec := e.Step(1, walking, ts); rec != nil {
			t.Fatalf("pending session produced a record at t=%f", ts)
		}
	}
	if e.LoggedCount() != 0 {
		t.Errorf("logged = %d, want 0", e.LoggedCount())
	}
}

func TestSessionPatienceBridgesFlicker(t *testing.T) {
	e := NewSessionEngine(DefaultSessionConfig(), twoTables())

	for ts := 10.0; ts <= 20.0; ts += 1.0 {
		e.Step(1, inT1, ts)
	}
	// 4-second dip: shorter than patience, the session must survive.
	for ts := 21.0; ts <= 24.0; ts += 1.0 {
		if rec := e.Step(1, walking, ts); rec != nil {
			t.Fatalf("session closed during a bridgeable dip at t=%f", ts)
		}
	}
	for ts := 24.5; ts <= 30.0; ts += 0.5 {
		e.Step(1, inT1, ts)
	}

	rec := e.Step(1, walking, 36.0)
	if rec == nil {
		t.Fatal("expected one record for the bridged session")
	}
	if rec.EntryTime != 10.0 || rec.ExitTime != 30.0 {
		t.Errorf("bridged session = [%f, %f], want [10.0, 30.0]", rec.EntryTime, rec.ExitTime)
	}
	if e.LoggedCount() != 1 {
		t.Errorf("logged = %d, want a single bridged session", e.LoggedCount())
	}
}

func TestSessionTableSwitch(t *testing.T) {
	e := NewSessionEngine(DefaultSessionConfig(), twoTables())

	for ts := 10.0; ts <= 20.0; ts += 1.0 {
		e.Step(1, inT1, ts)
	}
	// Reappears at the other table after patience has lapsed: the old
	// session closes and a new Pending opens in the same step.
	rec := e.Step(1, inT2, 26.0)
	if rec == nil {
		t.Fatal("expected the Table-1 session to close")
	}
	if rec.Table != "Table-1" || rec.ExitTime != 20.0 {
		t.Errorf("closed %q at %f, want Table-1 at 20.0", rec.Table, rec.ExitTime)
	}
	loc, ok := e.Location(1)
	if !ok || loc != "Table-2" {
		t.Errorf("location = %q (%v), want Table-2", loc, ok)
	}
}

func TestSessionWithinPatienceOpensNothingNew(t *testing.T) {
	e := NewSessionEngine(DefaultSessionConfig(), twoTables())

	e.Step(1, inT1, 10.0)
	e.Step(1, inT1, 12.0)
	// At the other table 3s later: still within patience of Table-1, so the
	// original session holds and no Table-2 session opens.
	if rec := e.Step(1, inT2, 15.0); rec != nil {
		t.Fatal("patience window produced a record")
	}
	loc, ok := e.Location(1)
	if !ok || loc != "Table-1" {
		t.Errorf("location = %q (%v), want Table-1", loc, ok)
	}
}

func TestSessionForceClose(t *testing.T) {
	e := NewSessionEngine(DefaultSessionConfig(), twoTables())

	for ts := 10.0; ts <= 15.0; ts += 1.0 {
		e.Step(1, inT1, ts)
	}
	rec := e.ForceClose(1)
	if rec == nil {
		t.Fatal("force close of a confirmed session must log it")
	}
	if rec.ExitTime != 15.0 {
		t.Errorf("exit = %f, want last inside time 15.0", rec.ExitTime)
	}
	if _, ok := e.Location(1); ok {
		t.Error("session still open after force close")
	}

	// A short Pending session force-closes silently.
	e.Step(2, inT1, 20.0)
	e.Step(2, inT1, 21.0)
	if rec := e.ForceClose(2); rec != nil {
		t.Errorf("short pending session logged on force close: %+v", rec)
	}

	if rec := e.ForceClose(99); rec != nil {
		t.Error("force close of an unknown identity returned a record")
	}
}

func TestSessionFlushAll(t *testing.T) {
	e := NewSessionEngine(DefaultSessionConfig(), twoTables())

	for ts := 10.0; ts <= 16.0; ts += 1.0 {
		e.Step(3, inT1, ts)
		e.Step(1, inT2, ts)
	}
	e.Step(2, inT1, 16.0) // short, stays pending

	records := e.FlushAll()
	if len(records) != 2 {
		t.Fatalf("flush produced %d records, want 2", len(records))
	}
	// Identity order, not insertion order.
	if records[0].IdentityID != 1 || records[1].IdentityID != 3 {
		t.Errorf("flush order = [%d, %d], want [1, 3]", records[0].IdentityID, records[1].IdentityID)
	}
	if len(e.OccupiedTables()) != 0 {
		t.Error("tables still occupied after flush")
	}
}

func TestSessionOccupiedTables(t *testing.T) {
	e := NewSessionEngine(DefaultSessionConfig(), twoTables())

	e.Step(1, inT1, 10.0)
	e.Step(2, inT2, 10.0)
	e.Step(3, inT2, 10.0)

	got := e.OccupiedTables()
	if len(got) != 2 || got[0] != "Table-1" || got[1] != "Table-2" {
		t.Errorf("occupied = %v, want [Table-1 Table-2]", got)
	}
	if e.TableCount() != 2 {
		t.Errorf("table count = %d, want 2", e.TableCount())
	}
}

func TestSessionBoundaryAnchorCounts(t *testing.T) {
	e := NewSessionEngine(DefaultSessionConfig(), twoTables())

	// Anchor exactly on the outline is inside.
	edge := geo.Point{X: 100, Y: 150}
	e.Step(1, edge, 10.0)
	loc, ok := e.Location(1)
	if !ok || loc != "Table-1" {
		t.Errorf("boundary anchor: location = %q (%v), want Table-1", loc, ok)
	}
}
