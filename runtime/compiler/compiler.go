package compiler

import (
	"github.com/aledsdavies/logica/core/ast"
	"github.com/aledsdavies/logica/core/errors"
	"github.com/aledsdavies/logica/core/invariant"
)

// sealedKey identifies a sealed (owner, variable) pair.
type sealedKey struct{ owner, name string }

// compiler walks the AST once, emitting operations in execution order and
// rejecting axiom violations statically. It never sees a program that isn't
// already syntactically valid -- that is the parser's job.
type compiler struct {
	declared  map[string]bool // declared speaker names
	speakers  []string        // insertion order, for CompiledProgram.Speakers
	stack     []string        // compile-time speaker stack; top is the current speaker
	sealed    map[sealedKey]bool
	functions map[string]*FnDef
	worlds    []string
}

// Compile lowers prog into a CompiledProgram, or returns the first
// axiom_violation / structural error encountered.
func Compile(prog *ast.Program) (*CompiledProgram, error) {
	c := &compiler{
		declared:  make(map[string]bool),
		sealed:    make(map[sealedKey]bool),
		functions: make(map[string]*FnDef),
	}

	var ops []Op
	for _, stmt := range prog.Statements {
		switch s := stmt.(type) {
		case *ast.SpeakerDecl:
			if !c.declared[s.Name] {
				c.declared[s.Name] = true
				c.speakers = append(c.speakers, s.Name)
			}
		case *ast.WorldStmt:
			c.worlds = append(c.worlds, s.Name)
			ops = append(ops, &World{Name: s.Name})
		case *ast.AsBlock:
			blockOps, err := c.compileAsBlock(s)
			if err != nil {
				return nil, err
			}
			ops = append(ops, blockOps...)
		default:
			invariant.Invariant(false, "unexpected top-level statement %T", stmt)
		}
	}

	return &CompiledProgram{
		Ops:       ops,
		Speakers:  c.speakers,
		Functions: c.functions,
		Worlds:    c.worlds,
	}, nil
}

func (c *compiler) compileAsBlock(s *ast.AsBlock) ([]Op, error) {
	if !c.declared[s.Speaker] {
		return nil, &errors.AxiomViolation{
			Axiom: 1, Message: "speaker '" + s.Speaker + "' is not declared",
			Line: s.P.Line, Col: s.P.Col,
		}
	}
	c.stack = append(c.stack, s.Speaker)
	body, err := c.compileBlock(s.Body)
	c.stack = c.stack[:len(c.stack)-1]
	if err != nil {
		return nil, err
	}

	ops := make([]Op, 0, len(body)+2)
	ops = append(ops, &SetSpeaker{Name: s.Speaker})
	ops = append(ops, body...)
	ops = append(ops, &PopSpeaker{})
	return ops, nil
}

// currentSpeaker returns the compile-time effective speaker, or "" if none
// (the outermost compile-time context, outside any as-block).
func (c *compiler) currentSpeaker() string {
	if len(c.stack) == 0 {
		return ""
	}
	return c.stack[len(c.stack)-1]
}

func (c *compiler) compileBlock(stmts []ast.Stmt) ([]Op, error) {
	var ops []Op
	for _, stmt := range stmts {
		op, err := c.compileStmt(stmt)
		if err != nil {
			return nil, err
		}
		if op != nil {
			ops = append(ops, op)
		}
	}
	return ops, nil
}

func (c *compiler) compileStmt(stmt ast.Stmt) (Op, error) {
	speaker := c.currentSpeaker()
	invariant.Precondition(speaker != "", "compileStmt called outside any speaker context")

	switch s := stmt.(type) {
	case *ast.LetStmt:
		return c.compileLet(s, speaker)

	case *ast.SpeakStmt:
		return &EvalSpeak{Value: s.Value}, nil

	case *ast.WhenStmt:
		body, err := c.compileBlock(s.Body)
		if err != nil {
			return nil, err
		}
		otherwise, err := c.compileBlock(s.Otherwise)
		if err != nil {
			return nil, err
		}
		broken, err := c.compileBlock(s.Broken)
		if err != nil {
			return nil, err
		}
		return &When{Cond: s.Cond, Body: body, Otherwise: otherwise, Broken: broken}, nil

	case *ast.IfStmt:
		return c.compileIf(s)

	case *ast.WhileStmt:
		return c.compileWhile(s)

	case *ast.FnDecl:
		return c.compileFnDecl(s)

	case *ast.ReturnStmt:
		return &Return{Value: s.Value}, nil

	case *ast.RequestStmt:
		if !c.declared[s.Target] {
			return nil, &errors.AxiomViolation{
				Axiom: 1, Message: "request target '" + s.Target + "' is not a declared speaker",
				Line: s.P.Line, Col: s.P.Col,
			}
		}
		return &Request{Target: s.Target, Action: s.Action}, nil

	case *ast.RespondStmt:
		return &Respond{Accept: s.Accept}, nil

	case *ast.InspectStmt:
		return &Inspect{Target: s.Target}, nil

	case *ast.HistoryStmt:
		return &History{Owner: s.Owner, Var: s.Var}, nil

	case *ast.LedgerStmt:
		return &LedgerLast{N: s.N}, nil

	case *ast.VerifyStmt:
		return &VerifyLedger{}, nil

	case *ast.SealStmt:
		c.sealed[sealedKey{owner: speaker, name: s.Target}] = true
		return &Seal{Var: s.Target}, nil

	case *ast.PassStmt:
		return &Pass{}, nil

	case *ast.FailStmt:
		return &Fail{Reason: s.Reason}, nil

	case *ast.ExprStmt:
		return &ExprStmtOp{Value: s.Value}, nil

	case *ast.WorldStmt:
		c.worlds = append(c.worlds, s.Name)
		return &World{Name: s.Name}, nil

	default:
		invariant.Invariant(false, "unhandled statement type %T", stmt)
		return nil, nil
	}
}

// compileLet enforces Axiom 5 (sealed variables) and Axiom 8 (write
// ownership): a `let` whose dotted target names a speaker other than the
// current compile-time speaker is rejected, and a `let` to a (owner, var)
// pair already sealed in this compilation is rejected.
func (c *compiler) compileLet(s *ast.LetStmt, speaker string) (Op, error) {
	owner, name, err := c.letTarget(s, speaker)
	if err != nil {
		return nil, err
	}
	if c.sealed[sealedKey{owner: owner, name: name}] {
		return nil, &errors.AxiomViolation{
			Axiom: 5, Message: "variable '" + name + "' is sealed and cannot be reassigned",
			Line: s.P.Line, Col: s.P.Col,
		}
	}
	storeOwner := owner
	if owner == speaker {
		storeOwner = "" // bare or self-dotted target: current speaker's partition
	}
	return &Store{Owner: storeOwner, Var: name, Value: s.Value}, nil
}

func (c *compiler) letTarget(s *ast.LetStmt, speaker string) (owner, name string, err error) {
	switch t := s.Target.(type) {
	case *ast.Ident:
		return speaker, t.Name, nil
	case *ast.MemberAccess:
		obj, ok := t.Object.(*ast.Ident)
		if !ok {
			return "", "", &errors.AxiomViolation{
				Axiom: 8, Message: "write target must be a plain identifier or <speaker>.<var>",
				Line: t.P.Line, Col: t.P.Col,
			}
		}
		if obj.Name != speaker {
			return "", "", &errors.AxiomViolation{
				Axiom: 8, Message: "speaker '" + speaker + "' cannot write to '" + obj.Name + "." + t.Name + "'",
				Line: t.P.Line, Col: t.P.Col,
			}
		}
		return obj.Name, t.Name, nil
	default:
		invariant.Invariant(false, "unexpected let target type %T", s.Target)
		return "", "", nil
	}
}

func (c *compiler) compileIf(s *ast.IfStmt) (Op, error) {
	body, err := c.compileBlock(s.Body)
	if err != nil {
		return nil, err
	}
	chain := &IfChain{Branches: []IfBranch{{Cond: s.Cond, Body: body}}}
	for _, elif := range s.Elifs {
		elifBody, err := c.compileBlock(elif.Body)
		if err != nil {
			return nil, err
		}
		chain.Branches = append(chain.Branches, IfBranch{Cond: elif.Cond, Body: elifBody})
	}
	if s.Else != nil {
		elseBody, err := c.compileBlock(s.Else)
		if err != nil {
			return nil, err
		}
		chain.Else = elseBody
	}
	return chain, nil
}

// compileWhile enforces Axiom 9: every while must carry `max N` with a
// positive integer literal N.
func (c *compiler) compileWhile(s *ast.WhileStmt) (Op, error) {
	if s.Max == nil {
		return nil, &errors.AxiomViolation{
			Axiom: 9, Message: "while loop must carry a 'max N' clause",
			Line: s.P.Line, Col: s.P.Col,
		}
	}
	if *s.Max <= 0 {
		return nil, &errors.AxiomViolation{
			Axiom: 9, Message: "while loop 'max' must be a positive integer",
			Line: s.P.Line, Col: s.P.Col,
		}
	}
	body, err := c.compileBlock(s.Body)
	if err != nil {
		return nil, err
	}
	return &While{Cond: s.Cond, Max: *s.Max, Body: body}, nil
}

func (c *compiler) compileFnDecl(s *ast.FnDecl) (Op, error) {
	body, err := c.compileBlock(s.Body)
	if err != nil {
		return nil, err
	}
	params := make([]string, len(s.Params))
	for i, p := range s.Params {
		params[i] = p.Name
	}
	c.functions[s.Name] = &FnDef{Name: s.Name, Params: params, Body: body}
	return nil, nil // function declarations register; they emit no runtime op
}
