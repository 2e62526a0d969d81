package interp

import (
	"fmt"

	"github.com/aledsdavies/logica/core/ast"
	"github.com/aledsdavies/logica/core/token"
	"github.com/aledsdavies/logica/runtime/compiler"
)

// exprLabel renders a short human-readable form of an expression for ledger
// and submission bookkeeping. It is not a parser round-trip, just enough to
// tell two conditions apart in `ledger last N` output.
func exprLabel(e ast.Expr) string {
	switch n := e.(type) {
	case *ast.IntLit:
		return fmt.Sprintf("%d", n.Value)
	case *ast.FloatLit:
		return fmt.Sprintf("%g", n.Value)
	case *ast.StringLit:
		return fmt.Sprintf("%q", n.Value)
	case *ast.BoolLit:
		return fmt.Sprintf("%t", n.Value)
	case *ast.NoneLit:
		return "none"
	case *ast.StatusLit:
		return n.Value
	case *ast.Ident:
		return n.Name
	case *ast.MemberAccess:
		return exprLabel(n.Object) + "." + n.Name
	case *ast.ReadExpr:
		return "read " + n.Owner + "." + n.Name
	case *ast.UnaryExpr:
		if n.Op == token.NOT {
			return "not " + exprLabel(n.Operand)
		}
		return "-" + exprLabel(n.Operand)
	case *ast.BinaryExpr:
		return exprLabel(n.Left) + " " + opSymbol(n.Op) + " " + exprLabel(n.Right)
	case *ast.CallExpr:
		if callee, ok := n.Callee.(*ast.Ident); ok {
			return callee.Name + "(...)"
		}
		return "call(...)"
	default:
		return "<expr>"
	}
}

func opSymbol(k token.Kind) string { return k.String() }

// opLabel is a short descriptor for one compiled op, used by blockLabel.
func opLabel(op compiler.Op) string {
	switch o := op.(type) {
	case *compiler.Store:
		return "let " + o.Var
	case *compiler.EvalSpeak:
		return "speak " + exprLabel(o.Value)
	case *compiler.Request:
		return "request " + o.Target
	case *compiler.Respond:
		if o.Accept {
			return "respond accept"
		}
		return "respond refuse"
	case *compiler.Inspect:
		return "inspect " + o.Target
	case *compiler.History:
		return "history " + o.Owner + "." + o.Var
	case *compiler.LedgerLast:
		return "ledger last"
	case *compiler.VerifyLedger:
		return "verify ledger"
	case *compiler.Seal:
		return "seal " + o.Var
	case *compiler.World:
		return "world " + o.Name
	case *compiler.Pass:
		return "pass"
	case *compiler.Fail:
		return "fail"
	case *compiler.IfChain:
		return "if"
	case *compiler.While:
		return "while"
	case *compiler.Return:
		return "return"
	case *compiler.ExprStmtOp:
		return "expr"
	default:
		return "<op>"
	}
}

// blockLabel summarizes a body's first three operations for ledger
// action text, rather than logging the whole block verbatim.
func blockLabel(ops []compiler.Op) string {
	if len(ops) == 0 {
		return "<empty>"
	}
	n := len(ops)
	if n > 3 {
		n = 3
	}
	out := opLabel(ops[0])
	for i := 1; i < n; i++ {
		out += "; " + opLabel(ops[i])
	}
	if len(ops) > n {
		out += "; ..."
	}
	return out
}
