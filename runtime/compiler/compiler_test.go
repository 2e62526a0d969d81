package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aledsdavies/logica/core/errors"
	"github.com/aledsdavies/logica/runtime/parser"
)

func compileSrc(t *testing.T, src string) (*CompiledProgram, error) {
	t.Helper()
	prog, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return Compile(prog)
}

func TestCompileSimpleSpeak(t *testing.T) {
	cp, err := compileSrc(t, `speaker J
as J {
	speak "Hello"
}`)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	if diff := cmp.Diff([]string{"J"}, cp.Speakers); diff != "" {
		t.Fatalf("speakers mismatch (-want +got):\n%s", diff)
	}
	if len(cp.Ops) != 3 { // SetSpeaker, EvalSpeak, PopSpeaker
		t.Fatalf("expected 3 ops, got %d: %#v", len(cp.Ops), cp.Ops)
	}
	if _, ok := cp.Ops[0].(*SetSpeaker); !ok {
		t.Fatalf("expected SetSpeaker first, got %T", cp.Ops[0])
	}
	if _, ok := cp.Ops[len(cp.Ops)-1].(*PopSpeaker); !ok {
		t.Fatalf("expected PopSpeaker last, got %T", cp.Ops[len(cp.Ops)-1])
	}
}

func axiomOf(t *testing.T, err error) int {
	t.Helper()
	av, ok := err.(*errors.AxiomViolation)
	if !ok {
		t.Fatalf("expected *errors.AxiomViolation, got %T (%v)", err, err)
	}
	return av.Axiom
}

func TestAxiom8WriteOwnershipTopLevel(t *testing.T) {
	_, err := compileSrc(t, `speaker A
speaker B
as A {
	let B.x = 1
}`)
	if err == nil {
		t.Fatal("expected axiom_violation(8)")
	}
	if got := axiomOf(t, err); got != 8 {
		t.Fatalf("expected axiom 8, got %d", got)
	}
}

func TestAxiom8InsideIf(t *testing.T) {
	_, err := compileSrc(t, `speaker A
speaker B
as A {
	if true {
		let B.x = 1
	}
}`)
	if got := axiomOf(t, err); got != 8 {
		t.Fatalf("expected axiom 8 inside if, got %d", got)
	}
}

func TestAxiom8InsideWhile(t *testing.T) {
	_, err := compileSrc(t, `speaker A
speaker B
as A {
	while true, max 3 {
		let B.x = 1
	}
}`)
	if got := axiomOf(t, err); got != 8 {
		t.Fatalf("expected axiom 8 inside while, got %d", got)
	}
}

func TestAxiom8InsideWhen(t *testing.T) {
	_, err := compileSrc(t, `speaker A
speaker B
as A {
	when true {
		let B.x = 1
	}
}`)
	if got := axiomOf(t, err); got != 8 {
		t.Fatalf("expected axiom 8 inside when, got %d", got)
	}
}

func TestAxiom8InsideFn(t *testing.T) {
	_, err := compileSrc(t, `speaker A
speaker B
as A {
	fn bad() {
		let B.x = 1
	}
}`)
	if got := axiomOf(t, err); got != 8 {
		t.Fatalf("expected axiom 8 inside fn, got %d", got)
	}
}

func TestAxiom9MissingMax(t *testing.T) {
	_, err := compileSrc(t, `speaker X
as X {
	while true {
		speak "x"
	}
}`)
	if got := axiomOf(t, err); got != 9 {
		t.Fatalf("expected axiom 9, got %d", got)
	}
}

func TestAxiom9NestedMissingMax(t *testing.T) {
	_, err := compileSrc(t, `speaker X
as X {
	if true {
		while true {
			speak "x"
		}
	}
}`)
	if got := axiomOf(t, err); got != 9 {
		t.Fatalf("expected axiom 9 nested, got %d", got)
	}
}

func TestAxiom5SealedVariable(t *testing.T) {
	_, err := compileSrc(t, `speaker X
as X {
	let g = 92
	seal g
	let g = 100
}`)
	if got := axiomOf(t, err); got != 5 {
		t.Fatalf("expected axiom 5, got %d", got)
	}
}

func TestAxiom1UndeclaredRequestTarget(t *testing.T) {
	_, err := compileSrc(t, `speaker A
as A {
	request Ghost "hi"
}`)
	if got := axiomOf(t, err); got != 1 {
		t.Fatalf("expected axiom 1, got %d", got)
	}
}

func TestFunctionDeclEmitsNoRuntimeOp(t *testing.T) {
	cp, err := compileSrc(t, `speaker X
as X {
	fn greet(name) {
		return name
	}
	speak "hi"
}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fn, ok := cp.Functions["greet"]
	if !ok {
		t.Fatalf("expected function 'greet' registered")
	}
	if diff := cmp.Diff([]string{"name"}, fn.Params); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
	// ops: SetSpeaker, EvalSpeak, PopSpeaker (fn decl contributes no op)
	if len(cp.Ops) != 3 {
		t.Fatalf("expected 3 ops, got %d: %#v", len(cp.Ops), cp.Ops)
	}
}
