package interp

import (
	"fmt"

	"github.com/aledsdavies/logica/core/ast"
	"github.com/aledsdavies/logica/core/errors"
	"github.com/aledsdavies/logica/core/invariant"
	"github.com/aledsdavies/logica/core/token"
	"github.com/aledsdavies/logica/core/value"
)

func (it *Interp) eval(e ast.Expr) (value.Value, error) {
	switch n := e.(type) {
	case *ast.IntLit:
		return value.NewInt(n.Value), nil
	case *ast.FloatLit:
		return value.NewFloat(n.Value), nil
	case *ast.StringLit:
		return value.NewString(n.Value), nil
	case *ast.BoolLit:
		return value.NewBool(n.Value), nil
	case *ast.NoneLit:
		return value.NewNone(), nil
	case *ast.StatusLit:
		return value.NewStatus(n.Value), nil

	case *ast.Ident:
		if it.inFrame() {
			if v, ok := it.frame()[n.Name]; ok {
				return v, nil
			}
		}
		v, err := it.kernel.Read(it.currentSpeaker(), it.currentSpeaker(), n.Name)
		if err != nil {
			return value.Value{}, err
		}
		return v, nil

	case *ast.MemberAccess:
		owner, ok := n.Object.(*ast.Ident)
		if !ok {
			return value.Value{}, &errors.RuntimeError{Message: "member access target must be a speaker name"}
		}
		ownerID := it.speakerByName(owner.Name)
		return it.kernel.Read(it.currentSpeaker(), ownerID, n.Name)

	case *ast.ReadExpr:
		ownerID := it.speakerByName(n.Owner)
		return it.kernel.Read(it.currentSpeaker(), ownerID, n.Name)

	case *ast.IndexAccess:
		return value.Value{}, &errors.RuntimeError{Message: "indexing is not supported"}

	case *ast.UnaryExpr:
		return it.evalUnary(n)

	case *ast.BinaryExpr:
		return it.evalBinary(n)

	case *ast.CallExpr:
		return it.evalCall(n)

	default:
		invariant.Invariant(false, "unhandled expression type %T", e)
		return value.Value{}, nil
	}
}

func (it *Interp) evalUnary(n *ast.UnaryExpr) (value.Value, error) {
	v, err := it.eval(n.Operand)
	if err != nil {
		return value.Value{}, err
	}
	switch n.Op {
	case token.NOT:
		return value.NewBool(!v.Truthy()), nil
	case token.MINUS:
		r, err := value.Neg(v)
		if err != nil {
			return value.Value{}, &errors.RuntimeError{Message: err.Error()}
		}
		return r, nil
	default:
		invariant.Invariant(false, "unhandled unary operator %v", n.Op)
		return value.Value{}, nil
	}
}

func (it *Interp) evalBinary(n *ast.BinaryExpr) (value.Value, error) {
	if n.Op == token.AND {
		l, err := it.eval(n.Left)
		if err != nil {
			return value.Value{}, err
		}
		if !l.Truthy() {
			return value.NewBool(false), nil
		}
		r, err := it.eval(n.Right)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewBool(r.Truthy()), nil
	}
	if n.Op == token.OR {
		l, err := it.eval(n.Left)
		if err != nil {
			return value.Value{}, err
		}
		if l.Truthy() {
			return value.NewBool(true), nil
		}
		r, err := it.eval(n.Right)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewBool(r.Truthy()), nil
	}

	l, err := it.eval(n.Left)
	if err != nil {
		return value.Value{}, err
	}
	r, err := it.eval(n.Right)
	if err != nil {
		return value.Value{}, err
	}

	switch n.Op {
	case token.PLUS:
		return value.Add(l, r), nil
	case token.MINUS:
		return value.Sub(l, r), nil
	case token.STAR:
		return value.Mul(l, r), nil
	case token.SLASH:
		return value.Div(l, r), nil
	case token.PERCENT:
		return value.Mod(l, r), nil
	case token.EQ:
		return value.NewBool(value.Equal(l, r)), nil
	case token.NEQ:
		return value.NewBool(!value.Equal(l, r)), nil
	case token.LT:
		less, _, ok := value.Compare(l, r)
		return value.NewBool(ok && less), nil
	case token.LE:
		less, eq, ok := value.Compare(l, r)
		return value.NewBool(ok && (less || eq)), nil
	case token.GT:
		less, eq, ok := value.Compare(l, r)
		return value.NewBool(ok && !less && !eq), nil
	case token.GE:
		less, _, ok := value.Compare(l, r)
		return value.NewBool(ok && !less), nil
	default:
		invariant.Invariant(false, "unhandled binary operator %v", n.Op)
		return value.Value{}, nil
	}
}

func (it *Interp) evalCall(n *ast.CallExpr) (value.Value, error) {
	callee, ok := n.Callee.(*ast.Ident)
	if !ok {
		return value.Value{}, &errors.RuntimeError{Message: "call target must be a function name"}
	}
	fn, ok := it.program.Functions[callee.Name]
	if !ok {
		return value.Value{}, &errors.RuntimeError{Message: "unknown function '" + callee.Name + "'"}
	}
	if len(n.Args) != len(fn.Params) {
		return value.Value{}, &errors.RuntimeError{
			Message: fmt.Sprintf("function '%s' expects %d argument(s), got %d", fn.Name, len(fn.Params), len(n.Args)),
		}
	}
	if len(it.scopeStack) >= maxCallDepth {
		return value.Value{}, &errors.RuntimeError{Message: "call stack too deep"}
	}

	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := it.eval(a)
		if err != nil {
			return value.Value{}, err
		}
		args[i] = v
	}

	frame := make(map[string]value.Value, len(fn.Params))
	for i, p := range fn.Params {
		frame[p] = args[i]
	}
	it.scopeStack = append(it.scopeStack, frame)
	savedReturn := it.pendingReturn
	it.pendingReturn = nil

	sig, err := it.execBlock(fn.Body)

	var result value.Value
	if it.pendingReturn != nil {
		result = *it.pendingReturn
	} else {
		result = value.NewNone()
	}
	it.pendingReturn = savedReturn
	it.scopeStack = it.scopeStack[:len(it.scopeStack)-1]

	if err != nil {
		return value.Value{}, err
	}
	invariant.Invariant(sig == sigNone || sig == sigReturn, "unexpected control signal %v from function body", sig)
	return result, nil
}
