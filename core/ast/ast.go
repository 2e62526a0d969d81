// Package ast defines the Logica abstract syntax tree: statement and
// expression sum types produced by the parser and consumed by the compiler.
package ast

import "github.com/aledsdavies/logica/core/token"

// Position is the source location a node was parsed from, used for
// diagnostics throughout the compiler and interpreter.
type Position struct {
	Line int
	Col  int
}

// Node is implemented by every statement and expression.
type Node interface {
	Pos() Position
}

// ---- Expressions ----------------------------------------------------------

// Expr is implemented by every expression variant.
type Expr interface {
	Node
	exprNode()
}

type IntLit struct {
	Value int64
	P     Position
}

type FloatLit struct {
	Value float64
	P     Position
}

type StringLit struct {
	Value string
	P     Position
}

type BoolLit struct {
	Value bool
	P     Position
}

type NoneLit struct {
	P Position
}

// StatusLit is one of active/inactive/broken used as a literal expression.
type StatusLit struct {
	Value string
	P     Position
}

type Ident struct {
	Name string
	P    Position
}

// MemberAccess is `object.name`, used for both reads (owner.var) and, when it
// is a let-target, for cross-speaker write checks (Axiom 8).
type MemberAccess struct {
	Object Expr
	Name   string
	P      Position
}

type IndexAccess struct {
	Collection Expr
	Index      Expr
	P          Position
}

type UnaryExpr struct {
	Op      token.Kind // MINUS or NOT
	Operand Expr
	P       Position
}

type BinaryExpr struct {
	Op    token.Kind
	Left  Expr
	Right Expr
	P     Position
}

type CallExpr struct {
	Callee Expr
	Args   []Expr
	P      Position
}

// ReadExpr is `read owner.name`.
type ReadExpr struct {
	Owner string
	Name  string
	P     Position
}

func (e *IntLit) Pos() Position       { return e.P }
func (e *FloatLit) Pos() Position     { return e.P }
func (e *StringLit) Pos() Position    { return e.P }
func (e *BoolLit) Pos() Position      { return e.P }
func (e *NoneLit) Pos() Position      { return e.P }
func (e *StatusLit) Pos() Position    { return e.P }
func (e *Ident) Pos() Position        { return e.P }
func (e *MemberAccess) Pos() Position { return e.P }
func (e *IndexAccess) Pos() Position  { return e.P }
func (e *UnaryExpr) Pos() Position    { return e.P }
func (e *BinaryExpr) Pos() Position   { return e.P }
func (e *CallExpr) Pos() Position     { return e.P }
func (e *ReadExpr) Pos() Position     { return e.P }

func (*IntLit) exprNode()       {}
func (*FloatLit) exprNode()     {}
func (*StringLit) exprNode()    {}
func (*BoolLit) exprNode()      {}
func (*NoneLit) exprNode()      {}
func (*StatusLit) exprNode()    {}
func (*Ident) exprNode()        {}
func (*MemberAccess) exprNode() {}
func (*IndexAccess) exprNode()  {}
func (*UnaryExpr) exprNode()    {}
func (*BinaryExpr) exprNode()   {}
func (*CallExpr) exprNode()     {}
func (*ReadExpr) exprNode()     {}

// ---- Statements -------------------------------------------------------------

// Stmt is implemented by every statement variant.
type Stmt interface {
	Node
	stmtNode()
}

// SpeakerDecl declares a speaker name at top level.
type SpeakerDecl struct {
	Name string
	P    Position
}

// AsBlock executes Body under the named speaker context.
type AsBlock struct {
	Speaker string
	Body    []Stmt
	P       Position
}

// LetStmt assigns Value to Target, which is either a bare identifier or a
// dotted `speaker.var` member access.
type LetStmt struct {
	Target Expr // *Ident or *MemberAccess
	Value  Expr
	P      Position
}

type SpeakStmt struct {
	Value Expr
	P     Position
}

// WhenStmt is Logica's submission construct: Body runs if Cond is truthy,
// Otherwise runs if it is not, and Broken runs if Body's action fails.
type WhenStmt struct {
	Cond      Expr
	Body      []Stmt
	Otherwise []Stmt
	Broken    []Stmt
	P         Position
}

type ElifClause struct {
	Cond Expr
	Body []Stmt
}

type IfStmt struct {
	Cond  Expr
	Body  []Stmt
	Elifs []ElifClause
	Else  []Stmt
	P     Position
}

// WhileStmt loops while Cond holds, up to Max iterations (Max == nil is
// accepted by the parser and rejected by the compiler under Axiom 9).
type WhileStmt struct {
	Cond Expr
	Max  *int
	Body []Stmt
	P    Position
}

type Param struct {
	Name string
}

type FnDecl struct {
	Name   string
	Params []Param
	Body   []Stmt
	P      Position
}

type ReturnStmt struct {
	Value Expr // nil for bare `return`
	P     Position
}

// RequestStmt is `request <target> <action-expr>`.
type RequestStmt struct {
	Target string
	Action Expr
	P      Position
}

type RespondStmt struct {
	Accept bool
	P      Position
}

type InspectStmt struct {
	Target string
	P      Position
}

// HistoryStmt is `history <owner>.<var>`.
type HistoryStmt struct {
	Owner string
	Var   string
	P     Position
}

// LedgerStmt is `ledger last N`.
type LedgerStmt struct {
	N int
	P Position
}

type VerifyStmt struct {
	P Position
}

type SealStmt struct {
	Target string
	P      Position
}

type WorldStmt struct {
	Name string
	P    Position
}

type PassStmt struct {
	P Position
}

type FailStmt struct {
	Reason Expr // nil if no reason given
	P      Position
}

// ExprStmt is a bare expression used as a statement, e.g. a function call
// whose return value is discarded.
type ExprStmt struct {
	Value Expr
	P     Position
}

func (s *SpeakerDecl) Pos() Position { return s.P }
func (s *AsBlock) Pos() Position     { return s.P }
func (s *LetStmt) Pos() Position     { return s.P }
func (s *SpeakStmt) Pos() Position   { return s.P }
func (s *WhenStmt) Pos() Position    { return s.P }
func (s *IfStmt) Pos() Position      { return s.P }
func (s *WhileStmt) Pos() Position   { return s.P }
func (s *FnDecl) Pos() Position      { return s.P }
func (s *ReturnStmt) Pos() Position  { return s.P }
func (s *RequestStmt) Pos() Position { return s.P }
func (s *RespondStmt) Pos() Position { return s.P }
func (s *InspectStmt) Pos() Position { return s.P }
func (s *HistoryStmt) Pos() Position { return s.P }
func (s *LedgerStmt) Pos() Position  { return s.P }
func (s *VerifyStmt) Pos() Position  { return s.P }
func (s *SealStmt) Pos() Position    { return s.P }
func (s *WorldStmt) Pos() Position   { return s.P }
func (s *PassStmt) Pos() Position    { return s.P }
func (s *FailStmt) Pos() Position    { return s.P }
func (s *ExprStmt) Pos() Position    { return s.P }

func (*SpeakerDecl) stmtNode() {}
func (*AsBlock) stmtNode()     {}
func (*LetStmt) stmtNode()     {}
func (*SpeakStmt) stmtNode()   {}
func (*WhenStmt) stmtNode()    {}
func (*IfStmt) stmtNode()      {}
func (*WhileStmt) stmtNode()   {}
func (*FnDecl) stmtNode()      {}
func (*ReturnStmt) stmtNode()  {}
func (*RequestStmt) stmtNode() {}
func (*RespondStmt) stmtNode() {}
func (*InspectStmt) stmtNode() {}
func (*HistoryStmt) stmtNode() {}
func (*LedgerStmt) stmtNode()  {}
func (*VerifyStmt) stmtNode()  {}
func (*SealStmt) stmtNode()    {}
func (*WorldStmt) stmtNode()   {}
func (*PassStmt) stmtNode()    {}
func (*FailStmt) stmtNode()    {}
func (*ExprStmt) stmtNode()    {}

// Program is the root of the parse tree: a sequence of top-level speaker
// declarations, as-blocks, and world declarations.
type Program struct {
	Statements []Stmt
}
