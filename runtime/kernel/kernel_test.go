package kernel

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aledsdavies/logica/core/value"
)

func testClock() Clock {
	var t int64
	return func() int64 { t++; return t }
}

func TestWriteAndReadOwnPartition(t *testing.T) {
	k := New(testClock(), nil)
	a := k.DeclareSpeaker("A")

	if err := k.Write(a, "x", value.NewInt(42)); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	v, err := k.Read(a, a, "x")
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if v.Kind != value.Int || v.I != 42 {
		t.Fatalf("expected int 42, got %#v", v)
	}
}

func TestCrossSpeakerReadIsPermitted(t *testing.T) {
	k := New(testClock(), nil)
	a := k.DeclareSpeaker("A")
	b := k.DeclareSpeaker("B")

	_ = k.Write(a, "x", value.NewInt(7))
	v, err := k.Read(b, a, "x")
	if err != nil {
		t.Fatalf("unexpected error on cross-speaker read: %v", err)
	}
	if v.I != 7 {
		t.Fatalf("expected 7, got %v", v.I)
	}
}

func TestReadUnwrittenVariableIsNone(t *testing.T) {
	k := New(testClock(), nil)
	a := k.DeclareSpeaker("A")
	v, err := k.Read(a, a, "ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != value.None {
		t.Fatalf("expected None, got %#v", v)
	}
}

func TestSealRejectsFurtherWrites(t *testing.T) {
	k := New(testClock(), nil)
	a := k.DeclareSpeaker("A")
	_ = k.Write(a, "g", value.NewInt(1))
	if err := k.Seal(a, "g"); err != nil {
		t.Fatalf("unexpected seal error: %v", err)
	}
	if err := k.Write(a, "g", value.NewInt(2)); err == nil {
		t.Fatal("expected write to sealed variable to fail")
	}
}

func TestRequestRespondOnlyAddresseeMayRespond(t *testing.T) {
	k := New(testClock(), nil)
	a := k.DeclareSpeaker("A")
	b := k.DeclareSpeaker("B")
	c := k.DeclareSpeaker("C")

	id, err := k.RequestOp(a, b, "borrow cup")
	if err != nil {
		t.Fatalf("unexpected request error: %v", err)
	}
	if err := k.Respond(c, id, true); err == nil {
		t.Fatal("expected error: C is not the addressee")
	}
	if err := k.Respond(b, id, true); err != nil {
		t.Fatalf("unexpected respond error: %v", err)
	}
	pending := k.PendingRequests(b)
	if len(pending) != 0 {
		t.Fatalf("expected no pending requests after resolution, got %d", len(pending))
	}
}

func TestSubmitSupersedesPriorExpression(t *testing.T) {
	k := New(testClock(), nil)
	a := k.DeclareSpeaker("A")

	first := k.Submit(a, "cond", "action", true, true)
	if first.Version != "current" {
		t.Fatalf("expected first submission current, got %s", first.Version)
	}
	second := k.Submit(a, "cond", "action", true, true)
	if second.Version != "current" {
		t.Fatalf("expected second submission current, got %s", second.Version)
	}
	if len(k.expressionLog) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(k.expressionLog))
	}
	if k.expressionLog[0].Version != "superseded" {
		t.Fatalf("expected first entry superseded, got %s", k.expressionLog[0].Version)
	}
}

func TestSubmitLoopReportsBrokenOnMaxExceeded(t *testing.T) {
	k := New(testClock(), nil)
	a := k.DeclareSpeaker("A")

	iterations := 0
	res := k.SubmitLoop(a, "always", "tick", 3, func() bool { return true }, func() bool {
		iterations++
		return true
	})
	if res.Status != ExprBroken {
		t.Fatalf("expected broken status, got %s", res.Status)
	}
	if res.Iterations != 3 {
		t.Fatalf("expected 3 iterations, got %d", res.Iterations)
	}
}

func TestLedgerVerifyDetectsTamper(t *testing.T) {
	k := New(testClock(), nil)
	a := k.DeclareSpeaker("A")
	_ = k.Write(a, "x", value.NewInt(1))
	_ = k.Write(a, "y", value.NewInt(2))

	if ok, detail := k.LedgerVerify(); !ok {
		t.Fatalf("expected clean ledger, got failure: %s", detail)
	}

	k.ledger.entries[1].Action = "tampered"
	ok, detail := k.LedgerVerify()
	if ok {
		t.Fatal("expected tamper to be detected")
	}
	if detail == "" {
		t.Fatal("expected a non-empty tamper detail")
	}
}

func TestCreateSpeakerRequiresAliveCaller(t *testing.T) {
	k := New(testClock(), nil)
	id, err := k.CreateSpeaker(RootSpeakerID, "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected id 1 after root, got %d", id)
	}
	if _, err := k.CreateSpeaker(RootSpeakerID, "A"); err == nil {
		t.Fatal("expected duplicate speaker name to be rejected")
	}
	if _, err := k.CreateSpeaker(99, "B"); err == nil {
		t.Fatal("expected unknown caller to be rejected")
	}
}

func TestSuspendSpeakerIsRootOnly(t *testing.T) {
	k := New(testClock(), nil)
	a := k.DeclareSpeaker("A")
	b := k.DeclareSpeaker("B")

	if err := k.SuspendSpeaker(a, b); err == nil {
		t.Fatal("expected non-root suspend to be rejected")
	}
	if err := k.SuspendSpeaker(RootSpeakerID, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := k.Write(b, "x", value.NewInt(1)); err == nil {
		t.Fatal("expected write by suspended speaker to be rejected")
	}
}

func TestInspectVariableReportsValueAndSealState(t *testing.T) {
	k := New(testClock(), nil)
	a := k.DeclareSpeaker("A")
	_ = k.Write(a, "g", value.NewInt(9))
	_ = k.Seal(a, "g")

	v, sealed, err := k.InspectVariable(a, a, "g")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.I != 9 || !sealed {
		t.Fatalf("expected (9, sealed), got (%v, %v)", v, sealed)
	}
	v, sealed, err = k.InspectVariable(a, a, "ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != value.None || sealed {
		t.Fatalf("expected (none, unsealed) for absent variable, got (%v, %v)", v, sealed)
	}
}

func TestHistoryOfTracksWriteEntryIDs(t *testing.T) {
	k := New(testClock(), nil)
	a := k.DeclareSpeaker("A")
	_ = k.Write(a, "x", value.NewInt(1))
	_ = k.Write(a, "x", value.NewInt(2))

	v, written, ids, err := k.HistoryOf(a, "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !written || v.I != 2 {
		t.Fatalf("expected current value 2, got (%v, written=%v)", v, written)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 write entry ids, got %v", ids)
	}
	if ids[0] >= ids[1] {
		t.Fatalf("expected monotonically increasing entry ids, got %v", ids)
	}

	_, written, ids, err = k.HistoryOf(a, "ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written || len(ids) != 0 {
		t.Fatalf("expected no history for unwritten variable, got written=%v ids=%v", written, ids)
	}
}

func TestListVarsKeepsInsertionOrder(t *testing.T) {
	k := New(testClock(), nil)
	a := k.DeclareSpeaker("A")
	_ = k.Write(a, "b", value.NewInt(1))
	_ = k.Write(a, "a", value.NewInt(2))
	_ = k.Write(a, "b", value.NewInt(3)) // rewrite must not reorder

	vars, err := k.ListVars(a, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"b", "a"}, vars); diff != "" {
		t.Fatalf("variable order mismatch (-want +got):\n%s", diff)
	}
}

func TestLedgerLastIsMostRecentFirst(t *testing.T) {
	k := New(testClock(), nil)
	a := k.DeclareSpeaker("A")
	_ = k.Write(a, "x", value.NewInt(1))
	_ = k.Write(a, "y", value.NewInt(2))

	last := k.LedgerLast(2)
	actions := make([]string, len(last))
	for i, e := range last {
		actions[i] = e.Action
	}
	if diff := cmp.Diff([]string{"y", "x"}, actions); diff != "" {
		t.Fatalf("entry order mismatch (-want +got):\n%s", diff)
	}
}
