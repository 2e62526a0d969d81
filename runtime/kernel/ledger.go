package kernel

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// genesisHash seeds the hash chain before the first entry is appended.
const genesisHash = "genesis"

// ledgerKey is a fixed, process-local key for the keyed BLAKE2b digest used
// to chain ledger entries. It only needs to be deterministic within one
// kernel's lifetime -- it is not a secret, since ledger entries and their
// hashes are meant to be publicly verifiable via ledger_verify.
var ledgerKey = []byte("logica-mary-kernel-ledger-v1")

// EntryKind identifies what a ledger entry records.
type EntryKind string

const (
	KindBoot          EntryKind = "boot"
	KindCreateSpeaker EntryKind = "create_speaker"
	KindSuspend       EntryKind = "suspend_speaker"
	KindWrite         EntryKind = "write"
	KindRead          EntryKind = "read"
	KindSubmit        EntryKind = "submit"
	KindSubmitLoop    EntryKind = "submit_loop"
	KindRequest       EntryKind = "request"
	KindRespond       EntryKind = "respond"
	KindSeal          EntryKind = "seal"
	KindInspect       EntryKind = "inspect"
)

// Entry is one append-only ledger record.
type Entry struct {
	ID          int
	SpeakerID   int
	Operation   EntryKind
	Action      string
	Status      string
	Timestamp   int64
	PrevHash    string
	EntryHash   string
	BreakReason string // "" unless Status == "broken"
}

// hashEntry computes entry_hash deterministically from
// (entry_id, speaker_id, operation, action, timestamp, prev_hash). A keyed
// BLAKE2b-256 digest, truncated to a 16-byte hex string, gives a short,
// stable fingerprint per entry.
func hashEntry(id, speakerID int, op EntryKind, action string, timestamp int64, prevHash string) string {
	text := fmt.Sprintf("%d:%d:%s:%s:%d:%s", id, speakerID, op, action, timestamp, prevHash)
	h, err := blake2b.New256(ledgerKey)
	if err != nil {
		// ledgerKey is a fixed, valid key length; this cannot happen.
		panic(fmt.Sprintf("logica: ledger hash init failed: %v", err))
	}
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// Ledger is the append-only, hash-chained audit log.
type Ledger struct {
	entries  []Entry
	lastHash string
	nextID   int
}

// newLedger creates a Ledger seeded with the synthetic boot entry.
func newLedger(bootTimestamp int64) *Ledger {
	l := &Ledger{lastHash: genesisHash}
	l.append(0, KindBoot, "boot", "active", bootTimestamp, "")
	return l
}

// append computes the entry hash, appends the entry, and advances the chain.
func (l *Ledger) append(speakerID int, op EntryKind, action, status string, timestamp int64, breakReason string) Entry {
	id := l.nextID
	l.nextID++
	prev := l.lastHash
	hash := hashEntry(id, speakerID, op, action, timestamp, prev)
	e := Entry{
		ID: id, SpeakerID: speakerID, Operation: op, Action: action,
		Status: status, Timestamp: timestamp, PrevHash: prev, EntryHash: hash,
		BreakReason: breakReason,
	}
	l.entries = append(l.entries, e)
	l.lastHash = hash
	return e
}

// All returns every ledger entry in append order.
func (l *Ledger) All() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Last returns the last n entries, most-recent first.
func (l *Ledger) Last(n int) []Entry {
	if n <= 0 || len(l.entries) == 0 {
		return nil
	}
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = l.entries[len(l.entries)-1-i]
	}
	return out
}

// Search returns every entry whose Operation matches op.
func (l *Ledger) Search(op EntryKind) []Entry {
	var out []Entry
	for _, e := range l.entries {
		if e.Operation == op {
			out = append(out, e)
		}
	}
	return out
}

// Verify recomputes every entry's hash and checks prev_hash linkage,
// detecting tampering with any hashed field (id, speaker, operation, action,
// timestamp, prev_hash) or with entry_hash itself, and any gap in the chain.
// Status and BreakReason are not part of the hash, so changes to them are
// not detected.
func (l *Ledger) Verify() (bool, string) {
	prev := genesisHash
	for _, e := range l.entries {
		if e.PrevHash != prev {
			return false, fmt.Sprintf("entry #%d: prev_hash mismatch", e.ID)
		}
		want := hashEntry(e.ID, e.SpeakerID, e.Operation, e.Action, e.Timestamp, e.PrevHash)
		if want != e.EntryHash {
			return false, fmt.Sprintf("entry #%d: hash mismatch", e.ID)
		}
		prev = e.EntryHash
	}
	return true, ""
}
