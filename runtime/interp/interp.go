// Package interp walks a compiled operation stream, evaluating expressions
// against a kernel and collecting the output lines a Logica program produces.
package interp

import (
	"fmt"
	"io"
	"strings"

	"github.com/aledsdavies/logica/core/errors"
	"github.com/aledsdavies/logica/core/invariant"
	"github.com/aledsdavies/logica/core/value"
	"github.com/aledsdavies/logica/runtime/compiler"
	"github.com/aledsdavies/logica/runtime/kernel"
)

// maxCallDepth bounds function-call recursion so a runaway recursive
// function reports a runtime error instead of exhausting the Go stack.
const maxCallDepth = 512

// Result is everything an interpreted run produced.
type Result struct {
	Output []string
}

// Interp executes one CompiledProgram against a Kernel.
type Interp struct {
	kernel        *kernel.Kernel
	program       *compiler.CompiledProgram
	speakerStack  []int
	scopeStack    []map[string]value.Value // one entry per active function call frame
	output        []string
	writer        io.Writer    // optional: each output line is streamed here as produced
	pendingReturn *value.Value // set by a Return op, read by the call site
}

// Run declares every speaker named in cp, then executes its operation
// stream against k.
func Run(cp *compiler.CompiledProgram, k *kernel.Kernel) (*Result, error) {
	return RunTo(cp, k, nil)
}

// RunTo is Run, additionally streaming each output line to w as the program
// produces it (e.g. so a CLI can show progress before the run completes). A
// nil w behaves exactly like Run.
func RunTo(cp *compiler.CompiledProgram, k *kernel.Kernel, w io.Writer) (*Result, error) {
	for _, name := range cp.Speakers {
		k.DeclareSpeaker(name)
	}
	it := &Interp{kernel: k, program: cp, writer: w}
	sig, err := it.execBlock(cp.Ops)
	if err != nil {
		return nil, err
	}
	if sig == sigReturn {
		return nil, &errors.RuntimeError{Message: "'return' outside a function"}
	}
	return &Result{Output: it.output}, nil
}

// emit appends line to the collected output and, if a writer is attached,
// streams it there immediately.
func (it *Interp) emit(line string) {
	it.output = append(it.output, line)
	if it.writer != nil {
		fmt.Fprintln(it.writer, line)
	}
}

type signal int

const (
	sigNone signal = iota
	sigReturn
)

func (it *Interp) currentSpeaker() int {
	invariant.Precondition(len(it.speakerStack) > 0, "no active speaker context")
	return it.speakerStack[len(it.speakerStack)-1]
}

func (it *Interp) speakerByName(name string) int {
	id, ok := it.kernel.SpeakerID(name)
	invariant.Invariant(ok, "speaker '%s' was not declared", name)
	return id
}

func (it *Interp) inFrame() bool { return len(it.scopeStack) > 0 }

func (it *Interp) frame() map[string]value.Value {
	return it.scopeStack[len(it.scopeStack)-1]
}

// execBlock runs ops in order, stopping early on a return signal or error.
func (it *Interp) execBlock(ops []compiler.Op) (signal, error) {
	for _, op := range ops {
		sig, err := it.execOp(op)
		if err != nil {
			return sigNone, err
		}
		if sig == sigReturn {
			return sigReturn, nil
		}
	}
	return sigNone, nil
}

func (it *Interp) execOp(op compiler.Op) (signal, error) {
	switch o := op.(type) {
	case *compiler.SetSpeaker:
		it.speakerStack = append(it.speakerStack, it.speakerByName(o.Name))
		return sigNone, nil

	case *compiler.PopSpeaker:
		it.speakerStack = it.speakerStack[:len(it.speakerStack)-1]
		return sigNone, nil

	case *compiler.Store:
		return it.execStore(o)

	case *compiler.EvalSpeak:
		v, err := it.eval(o.Value)
		if err != nil {
			return sigNone, err
		}
		it.emit(fmt.Sprintf("[%s] %s", it.kernel.SpeakerName(it.currentSpeaker()), v.String()))
		return sigNone, nil

	case *compiler.When:
		return it.execWhen(o)

	case *compiler.IfChain:
		return it.execIfChain(o)

	case *compiler.While:
		return it.execWhile(o)

	case *compiler.ExprStmtOp:
		_, err := it.eval(o.Value)
		return sigNone, err

	case *compiler.Return:
		v := value.NewNone()
		if o.Value != nil {
			var err error
			v, err = it.eval(o.Value)
			if err != nil {
				return sigNone, err
			}
		}
		it.pendingReturn = &v
		return sigReturn, nil

	case *compiler.Request:
		target := it.speakerByName(o.Target)
		av, err := it.eval(o.Action)
		if err != nil {
			return sigNone, err
		}
		_, err = it.kernel.RequestOp(it.currentSpeaker(), target, av.String())
		return sigNone, err

	case *compiler.Respond:
		pending := it.kernel.PendingRequests(it.currentSpeaker())
		if len(pending) == 0 {
			return sigNone, &errors.RuntimeError{Message: "no pending request to respond to"}
		}
		return sigNone, it.kernel.Respond(it.currentSpeaker(), pending[0].ID, o.Accept)

	case *compiler.Inspect:
		target := it.speakerByName(o.Target)
		sp, vars, err := it.kernel.InspectSpeaker(it.currentSpeaker(), target)
		if err != nil {
			return sigNone, err
		}
		it.emit(fmt.Sprintf("--- inspect %s ---", sp.Name))
		it.emit(fmt.Sprintf("id: %d", sp.ID))
		it.emit(fmt.Sprintf("status: %s", sp.Status))
		it.emit("vars: " + strings.Join(vars, ", "))
		it.emit("---")
		return sigNone, nil

	case *compiler.History:
		owner := it.speakerByName(o.Owner)
		v, written, ids, err := it.kernel.HistoryOf(owner, o.Var)
		if err != nil {
			return sigNone, err
		}
		rendered := "null"
		if written {
			rendered = v.String()
		}
		it.emit(fmt.Sprintf("%s.%s = %s (writes %v)", o.Owner, o.Var, rendered, ids))
		return sigNone, nil

	case *compiler.LedgerLast:
		for _, e := range it.kernel.LedgerLast(o.N) {
			it.emit(fmt.Sprintf("#%d [%s] %s:%s %s",
				e.ID, it.kernel.SpeakerName(e.SpeakerID), e.Operation, e.Action, e.Status))
		}
		return sigNone, nil

	case *compiler.VerifyLedger:
		ok, detail := it.kernel.LedgerVerify()
		if ok {
			it.emit("VALID")
		} else {
			it.emit("BROKEN: " + detail)
		}
		return sigNone, nil

	case *compiler.Seal:
		return sigNone, it.kernel.Seal(it.currentSpeaker(), o.Var)

	case *compiler.World:
		return sigNone, nil // tracked at compile time; no runtime effect

	case *compiler.Pass:
		return sigNone, nil

	case *compiler.Fail:
		reason := "fail"
		if o.Reason != nil {
			v, err := it.eval(o.Reason)
			if err != nil {
				return sigNone, err
			}
			reason = v.String()
		}
		return sigNone, &errors.RuntimeError{Message: reason}

	default:
		invariant.Invariant(false, "unhandled op type %T", op)
		return sigNone, nil
	}
}

func (it *Interp) execStore(o *compiler.Store) (signal, error) {
	v, err := it.eval(o.Value)
	if err != nil {
		return sigNone, err
	}
	owner := it.currentSpeaker()
	if o.Owner != "" {
		owner = it.speakerByName(o.Owner)
	}
	return sigNone, it.kernel.Write(owner, o.Var, v)
}

// execWhen runs the submission construct: Body if Cond holds, Otherwise if
// it doesn't. A body that errors counts as a failed action: Broken (if
// present) handles it and the error stops there; without Broken the error
// propagates.
func (it *Interp) execWhen(o *compiler.When) (signal, error) {
	cond, err := it.eval(o.Cond)
	if err != nil {
		return sigNone, err
	}
	held := cond.Truthy()

	var runErr error
	var sig signal
	if held {
		sig, runErr = it.execBlock(o.Body)
	} else if len(o.Otherwise) > 0 {
		sig, runErr = it.execBlock(o.Otherwise)
	}

	it.kernel.Submit(it.currentSpeaker(), exprLabel(o.Cond), blockLabel(o.Body), held, runErr == nil)

	if runErr != nil {
		if len(o.Broken) > 0 {
			if _, brokenErr := it.execBlock(o.Broken); brokenErr != nil {
				return sigNone, brokenErr
			}
			return sigNone, nil
		}
		return sigNone, runErr
	}
	return sig, nil
}

func (it *Interp) execIfChain(o *compiler.IfChain) (signal, error) {
	for _, branch := range o.Branches {
		v, err := it.eval(branch.Cond)
		if err != nil {
			return sigNone, err
		}
		if v.Truthy() {
			return it.execBlock(branch.Body)
		}
	}
	if o.Else != nil {
		return it.execBlock(o.Else)
	}
	return sigNone, nil
}

// execWhile drives the kernel's submission bookkeeping for a bounded loop:
// each iteration is one SubmitLoop runOnce call, and an error inside the
// body both ends the loop and propagates once SubmitLoop returns.
func (it *Interp) execWhile(o *compiler.While) (signal, error) {
	var loopErr error
	var retSig signal

	loopCond := func() bool {
		if loopErr != nil {
			return false
		}
		v, err := it.eval(o.Cond)
		if err != nil {
			loopErr = err
			return false
		}
		return v.Truthy()
	}
	runOnce := func() bool {
		sig, err := it.execBlock(o.Body)
		if err != nil {
			loopErr = err
			return false
		}
		if sig == sigReturn {
			retSig = sigReturn
			loopErr = errStopReturn
			return false
		}
		return true
	}

	it.kernel.SubmitLoop(it.currentSpeaker(), exprLabel(o.Cond), blockLabel(o.Body), o.Max, loopCond, runOnce)

	if loopErr == errStopReturn {
		return retSig, nil
	}
	if loopErr != nil {
		return sigNone, loopErr
	}
	return sigNone, nil
}

// errStopReturn is an internal sentinel: a `return` inside a while body
// should unwind to the enclosing function call, not be reported as a
// runtime error.
var errStopReturn = fmt.Errorf("return inside loop")
