package kernel

import "testing"

func buildLedger(n int) *Ledger {
	l := newLedger(1)
	for i := 0; i < n; i++ {
		l.append(0, KindWrite, "x", "active", int64(i+2), "")
	}
	return l
}

func TestChainLinksBackToGenesis(t *testing.T) {
	l := buildLedger(3)
	entries := l.All()
	if entries[0].PrevHash != genesisHash {
		t.Fatalf("entry 0 prev_hash = %q, want %q", entries[0].PrevHash, genesisHash)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].PrevHash != entries[i-1].EntryHash {
			t.Fatalf("entry %d prev_hash does not link to entry %d", i, i-1)
		}
	}
	if ok, detail := l.Verify(); !ok {
		t.Fatalf("expected intact chain, got: %s", detail)
	}
}

func TestHashIsDeterministic(t *testing.T) {
	a := hashEntry(1, 2, KindWrite, "x", 42, "prev")
	b := hashEntry(1, 2, KindWrite, "x", 42, "prev")
	if a != b {
		t.Fatalf("same inputs hashed differently: %q vs %q", a, b)
	}
	if c := hashEntry(1, 2, KindWrite, "x", 43, "prev"); c == a {
		t.Fatal("different timestamp produced the same hash")
	}
	if len(a) != 32 { // 16 bytes hex-encoded
		t.Fatalf("unexpected digest length %d", len(a))
	}
}

func TestVerifyDetectsHashedFieldMutation(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(*Entry)
	}{
		{"id", func(e *Entry) { e.ID++ }},
		{"speaker", func(e *Entry) { e.SpeakerID++ }},
		{"operation", func(e *Entry) { e.Operation = KindRead }},
		{"action", func(e *Entry) { e.Action = "tampered" }},
		{"timestamp", func(e *Entry) { e.Timestamp++ }},
		{"prev_hash", func(e *Entry) { e.PrevHash = "forged" }},
		{"entry_hash", func(e *Entry) { e.EntryHash = "forged" }},
	}
	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			l := buildLedger(3)
			tt.mutate(&l.entries[2])
			if ok, _ := l.Verify(); ok {
				t.Fatalf("mutating %s went undetected", tt.name)
			}
		})
	}
}

func TestVerifyDetectsGapInChain(t *testing.T) {
	l := buildLedger(4)
	l.entries = append(l.entries[:2], l.entries[3:]...)
	if ok, _ := l.Verify(); ok {
		t.Fatal("removing an entry went undetected")
	}
}

func TestLastClampsToLength(t *testing.T) {
	l := buildLedger(2) // 3 entries including boot
	if got := l.Last(10); len(got) != 3 {
		t.Fatalf("expected all 3 entries, got %d", len(got))
	}
	if got := l.Last(0); got != nil {
		t.Fatalf("expected nil for n=0, got %v", got)
	}
}

func TestSearchFiltersByOperation(t *testing.T) {
	l := buildLedger(3)
	l.append(1, KindSeal, "g", "active", 99, "")
	writes := l.Search(KindWrite)
	if len(writes) != 3 {
		t.Fatalf("expected 3 write entries, got %d", len(writes))
	}
	seals := l.Search(KindSeal)
	if len(seals) != 1 || seals[0].Action != "g" {
		t.Fatalf("unexpected seal search result: %v", seals)
	}
}
