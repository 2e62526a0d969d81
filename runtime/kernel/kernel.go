// Package kernel implements the Mary kernel: partitioned per-speaker memory,
// a sealed-variable registry, a hash-chained ledger, and a request bus with
// an accept/refuse protocol. The kernel is single-threaded and synchronous --
// it uses interior mutability for its append-and-mutate semantics but
// exposes no concurrent mutators.
package kernel

import (
	"fmt"
	"log/slog"

	"github.com/aledsdavies/logica/core/errors"
	"github.com/aledsdavies/logica/core/invariant"
	"github.com/aledsdavies/logica/core/value"
)

// SpeakerStatus is a speaker's lifecycle state.
type SpeakerStatus string

const (
	Alive     SpeakerStatus = "alive"
	Suspended SpeakerStatus = "suspended"
)

// RootSpeakerID is the id of the pre-seeded root speaker created at boot.
const RootSpeakerID = 0

// Speaker is one entry in the kernel's speaker table.
type Speaker struct {
	ID        int
	Name      string
	CreatedAt int64
	Status    SpeakerStatus
}

// RequestStatus is the lifecycle state of a pending inter-speaker request.
type RequestStatus string

const (
	Pending  RequestStatus = "pending"
	Accepted RequestStatus = "accepted"
	Refused  RequestStatus = "refused"
)

// Request is one entry on the request bus.
type Request struct {
	ID        int
	From      int
	To        int
	Action    string
	Status    RequestStatus
	CreatedAt int64
}

// ExpressionStatus is a submitted expression's lifecycle status.
type ExpressionStatus string

const (
	ExprActive   ExpressionStatus = "active"
	ExprInactive ExpressionStatus = "inactive"
	ExprBroken   ExpressionStatus = "broken"
)

// Expression is a submitted (condition, action) pair.
type Expression struct {
	Speaker        int
	ConditionLabel string
	Action         string
	Status         ExpressionStatus
	Version        string // "current" or "superseded"
}

type partitionEntry struct {
	value value.Value
	kind  value.Kind
}

type sealKey struct {
	speaker int
	name    string
}

type expressionKey struct {
	speaker int
	label   string
	action  string
}

// Clock supplies timestamps for ledger hashing. Tests should use a monotone
// counter for reproducible hashes; production can wrap time.Now().UnixNano.
type Clock func() int64

// Kernel is the Mary runtime: speakers, partitions, ledger, and request bus.
type Kernel struct {
	logger *slog.Logger
	clock  Clock

	speakers   []Speaker
	byName     map[string]int
	partitions map[int]map[string]partitionEntry

	// varOrder keeps per-speaker variable insertion order; writeLog maps
	// owner -> var -> the ledger entry ids of every write.
	varOrder map[int][]string
	writeLog map[int]map[string][]int

	ledger *Ledger
	sealed map[sealKey]bool

	requests  []Request
	nextReqID int

	// expressions maps a submission key to the index of its current entry in
	// expressionLog.
	expressions   map[expressionKey]int
	expressionLog []Expression

	nextSpeakerID int
}

// New creates a Mary kernel pre-seeded with the root speaker (id 0).
func New(clock Clock, logger *slog.Logger) *Kernel {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		var t int64
		clock = func() int64 { t++; return t }
	}
	k := &Kernel{
		logger:      logger,
		clock:       clock,
		byName:      make(map[string]int),
		partitions:  make(map[int]map[string]partitionEntry),
		varOrder:    make(map[int][]string),
		writeLog:    make(map[int]map[string][]int),
		sealed:      make(map[sealKey]bool),
		expressions: make(map[expressionKey]int),
	}
	k.ledger = newLedger(k.clock())
	k.createSpeakerUnchecked("root")
	return k
}

func (k *Kernel) createSpeakerUnchecked(name string) int {
	id := k.nextSpeakerID
	k.nextSpeakerID++
	k.speakers = append(k.speakers, Speaker{ID: id, Name: name, CreatedAt: k.clock(), Status: Alive})
	k.byName[name] = id
	k.partitions[id] = make(map[string]partitionEntry)
	k.writeLog[id] = make(map[string][]int)
	return id
}

// DeclareSpeaker registers name as a speaker at kernel boot time (called by
// the interpreter's façade once per declared speaker, before execution). It
// is distinct from CreateSpeaker, which is the runtime (logged) operation.
func (k *Kernel) DeclareSpeaker(name string) int {
	if id, ok := k.byName[name]; ok {
		return id
	}
	return k.createSpeakerUnchecked(name)
}

// SpeakerID resolves a speaker name to its id.
func (k *Kernel) SpeakerID(name string) (int, bool) {
	id, ok := k.byName[name]
	return id, ok
}

func (k *Kernel) speaker(id int) *Speaker {
	invariant.Precondition(id >= 0 && id < len(k.speakers), "speaker id %d out of range", id)
	return &k.speakers[id]
}

// CreateSpeaker registers a new speaker at runtime. caller must be an
// existing alive speaker.
func (k *Kernel) CreateSpeaker(caller int, name string) (int, error) {
	if err := k.requireAlive(caller); err != nil {
		return 0, err
	}
	if _, exists := k.byName[name]; exists {
		return 0, &errors.RuntimeError{Message: "speaker '" + name + "' already exists"}
	}
	id := k.createSpeakerUnchecked(name)
	k.ledger.append(caller, KindCreateSpeaker, name, "active", k.clock(), "")
	k.logger.Debug("speaker created", "caller", caller, "name", name, "id", id)
	return id, nil
}

// SuspendSpeaker suspends target. Root-only.
func (k *Kernel) SuspendSpeaker(caller, target int) error {
	if caller != RootSpeakerID {
		return &errors.RuntimeError{Message: "only root may suspend a speaker"}
	}
	if target < 0 || target >= len(k.speakers) {
		return &errors.RuntimeError{Message: "unknown speaker id"}
	}
	k.speakers[target].Status = Suspended
	k.ledger.append(caller, KindSuspend, k.speakers[target].Name, "active", k.clock(), "")
	return nil
}

func (k *Kernel) requireAlive(id int) error {
	if id < 0 || id >= len(k.speakers) {
		return &errors.RuntimeError{Message: "unknown speaker id"}
	}
	if k.speakers[id].Status != Alive {
		return &errors.RuntimeError{Message: "speaker '" + k.speakers[id].Name + "' is suspended"}
	}
	return nil
}

// Write stores value under (caller, varName) in caller's own partition --
// partition writes require caller == owner. It rejects writes to a sealed
// variable.
func (k *Kernel) Write(caller int, varName string, v value.Value) error {
	if err := k.requireAlive(caller); err != nil {
		return err
	}
	if k.sealed[sealKey{speaker: caller, name: varName}] {
		return &errors.RuntimeError{Message: "variable '" + varName + "' is sealed"}
	}
	part := k.partitions[caller]
	if _, existed := part[varName]; !existed {
		k.varOrder[caller] = append(k.varOrder[caller], varName)
	}
	part[varName] = partitionEntry{value: v, kind: v.Kind}

	entry := k.ledger.append(caller, KindWrite, varName, "active", k.clock(), "")
	k.writeLog[caller][varName] = append(k.writeLog[caller][varName], entry.ID)
	return nil
}

// Read returns owner's variable value to caller. Cross-owner reads are
// permitted unconditionally and are themselves logged under the caller.
func (k *Kernel) Read(caller, owner int, varName string) (value.Value, error) {
	if err := k.requireAlive(caller); err != nil {
		return value.Value{}, err
	}
	part, ok := k.partitions[owner]
	if !ok {
		return value.Value{}, &errors.RuntimeError{Message: "unknown speaker id"}
	}
	entry, ok := part[varName]

	action := k.speaker(owner).Name + "." + varName
	k.ledger.append(caller, KindRead, action, "active", k.clock(), "")

	if !ok {
		return value.NewNone(), nil
	}
	return entry.value, nil
}

// ListVars returns owner's variable names in insertion order.
func (k *Kernel) ListVars(caller, owner int) ([]string, error) {
	if _, ok := k.partitions[owner]; !ok {
		return nil, &errors.RuntimeError{Message: "unknown speaker id"}
	}
	return append([]string(nil), k.varOrder[owner]...), nil
}

// Seal freezes (speaker, varName) against future writes.
func (k *Kernel) Seal(speaker int, varName string) error {
	if err := k.requireAlive(speaker); err != nil {
		return err
	}
	k.sealed[sealKey{speaker: speaker, name: varName}] = true
	k.ledger.append(speaker, KindSeal, varName, "active", k.clock(), "")
	return nil
}

// IsSealed reports whether (speaker, varName) has been sealed.
func (k *Kernel) IsSealed(speaker int, varName string) bool {
	return k.sealed[sealKey{speaker: speaker, name: varName}]
}

// Submit records a condition/action submission. A fresh submission sharing
// (speaker, conditionLabel, action) with an earlier one marks the earlier one
// superseded and the new one current.
func (k *Kernel) Submit(speaker int, conditionLabel, action string, condHeld bool, actionOK bool) Expression {
	key := expressionKey{speaker: speaker, label: conditionLabel, action: action}
	if prevIdx, ok := k.expressions[key]; ok {
		k.expressionLog[prevIdx].Version = "superseded"
	}

	status := ExprInactive
	if condHeld {
		if actionOK {
			status = ExprActive
		} else {
			status = ExprBroken
		}
	}
	expr := Expression{Speaker: speaker, ConditionLabel: conditionLabel, Action: action, Status: status, Version: "current"}
	k.expressionLog = append(k.expressionLog, expr)
	k.expressions[key] = len(k.expressionLog) - 1

	breakReason := ""
	if status == ExprBroken {
		breakReason = "action failed"
	}
	k.ledger.append(speaker, KindSubmit, conditionLabel+":"+action, string(status), k.clock(), breakReason)
	return expr
}

// SubmitLoopResult is SubmitLoop's outcome.
type SubmitLoopResult struct {
	Status     ExpressionStatus
	Iterations int
}

// SubmitLoop repeats runOnce while loopCond() holds, up to max iterations.
// Exceeding max reports broken with reason "max iterations exceeded".
func (k *Kernel) SubmitLoop(speaker int, conditionLabel, action string, max int, loopCond func() bool, runOnce func() bool) SubmitLoopResult {
	invariant.Precondition(max > 0, "SubmitLoop max must be positive")

	iterations := 0
	status := ExprInactive
	breakReason := ""
	for loopCond() {
		if iterations >= max {
			status = ExprBroken
			breakReason = "max iterations exceeded"
			break
		}
		ok := runOnce()
		iterations++
		if !ok {
			status = ExprBroken
			breakReason = "action failed"
			break
		}
		status = ExprActive
	}
	k.ledger.append(speaker, KindSubmitLoop, fmt.Sprintf("%s:%s (x%d)", conditionLabel, action, iterations), string(status), k.clock(), breakReason)
	return SubmitLoopResult{Status: status, Iterations: iterations}
}

// RequestOp enqueues a request from one speaker to another.
func (k *Kernel) RequestOp(from, to int, action string) (int, error) {
	if err := k.requireAlive(from); err != nil {
		return 0, err
	}
	if to < 0 || to >= len(k.speakers) {
		return 0, &errors.RuntimeError{Message: "unknown request target"}
	}
	id := k.nextReqID
	k.nextReqID++
	req := Request{ID: id, From: from, To: to, Action: action, Status: Pending, CreatedAt: k.clock()}
	k.requests = append(k.requests, req)
	k.ledger.append(from, KindRequest, fmt.Sprintf("#%d -> %s: %s", id, k.speaker(to).Name, action), "active", k.clock(), "")
	return id, nil
}

// Respond resolves requestID. Only the addressed speaker may respond.
func (k *Kernel) Respond(responder, requestID int, accept bool) error {
	for i := range k.requests {
		if k.requests[i].ID != requestID {
			continue
		}
		if k.requests[i].To != responder {
			return &errors.RuntimeError{Message: "only the addressed speaker may respond to this request"}
		}
		if k.requests[i].Status != Pending {
			return &errors.RuntimeError{Message: "request already resolved"}
		}
		if accept {
			k.requests[i].Status = Accepted
		} else {
			k.requests[i].Status = Refused
		}
		k.ledger.append(responder, KindRespond, fmt.Sprintf("#%d", requestID), string(k.requests[i].Status), k.clock(), "")
		return nil
	}
	return &errors.RuntimeError{Message: "unknown request id"}
}

// PendingRequests returns every request addressed to speaker still pending.
func (k *Kernel) PendingRequests(speaker int) []Request {
	var out []Request
	for _, r := range k.requests {
		if r.To == speaker && r.Status == Pending {
			out = append(out, r)
		}
	}
	return out
}

// InspectSpeaker returns target's record for the `inspect` statement.
func (k *Kernel) InspectSpeaker(caller, target int) (Speaker, []string, error) {
	if target < 0 || target >= len(k.speakers) {
		return Speaker{}, nil, &errors.RuntimeError{Message: "unknown speaker id"}
	}
	k.ledger.append(caller, KindInspect, k.speaker(target).Name, "active", k.clock(), "")
	return k.speakers[target], append([]string(nil), k.varOrder[target]...), nil
}

// HistoryOf returns owner's current value for var, whether the variable has
// ever been written, and the ledger entry ids of every write to it.
func (k *Kernel) HistoryOf(owner int, varName string) (value.Value, bool, []int, error) {
	if _, ok := k.partitions[owner]; !ok {
		return value.Value{}, false, nil, &errors.RuntimeError{Message: "unknown speaker id"}
	}
	entry, ok := k.partitions[owner][varName]
	ids := append([]int(nil), k.writeLog[owner][varName]...)
	if !ok {
		return value.NewNone(), false, ids, nil
	}
	return entry.value, true, ids, nil
}

// InspectVariable returns owner's current value for var (None if absent) and
// whether it is sealed. The inspection itself is logged under the caller.
func (k *Kernel) InspectVariable(caller, owner int, varName string) (value.Value, bool, error) {
	if err := k.requireAlive(caller); err != nil {
		return value.Value{}, false, err
	}
	part, ok := k.partitions[owner]
	if !ok {
		return value.Value{}, false, &errors.RuntimeError{Message: "unknown speaker id"}
	}
	k.ledger.append(caller, KindInspect, k.speaker(owner).Name+"."+varName, "active", k.clock(), "")
	sealed := k.sealed[sealKey{speaker: owner, name: varName}]
	entry, ok := part[varName]
	if !ok {
		return value.NewNone(), sealed, nil
	}
	return entry.value, sealed, nil
}

// LedgerAll returns every ledger entry, in append order.
func (k *Kernel) LedgerAll() []Entry { return k.ledger.All() }

// LedgerLast returns the last n entries, most-recent first.
func (k *Kernel) LedgerLast(n int) []Entry { return k.ledger.Last(n) }

// LedgerSearch returns every entry matching the given operation kind.
func (k *Kernel) LedgerSearch(op EntryKind) []Entry { return k.ledger.Search(op) }

// LedgerVerify recomputes the hash chain and reports whether it is intact.
func (k *Kernel) LedgerVerify() (bool, string) { return k.ledger.Verify() }

// SpeakerName resolves id to a name, for interpreter-side formatting.
func (k *Kernel) SpeakerName(id int) string { return k.speaker(id).Name }
