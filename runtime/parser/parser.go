// Package parser implements Logica's recursive-descent parser with
// Pratt-style expression precedence: one token of lookahead, explicit
// precedence tables, fail-fast error reporting with source position
// attached.
package parser

import (
	"strconv"

	"github.com/aledsdavies/logica/core/ast"
	"github.com/aledsdavies/logica/core/errors"
	"github.com/aledsdavies/logica/core/token"
	"github.com/aledsdavies/logica/runtime/lexer"
)

// precedence levels, lowest to highest.
const (
	precLowest = iota
	precOr
	precAnd
	precNot
	precCompare
	precAdditive
	precMultiplicative
	precUnary
	precPostfix
)

var binaryPrecedence = map[token.Kind]int{
	token.OR:      precOr,
	token.AND:     precAnd,
	token.EQ:      precCompare,
	token.NEQ:     precCompare,
	token.LT:      precCompare,
	token.LE:      precCompare,
	token.GT:      precCompare,
	token.GE:      precCompare,
	token.PLUS:    precAdditive,
	token.MINUS:   precAdditive,
	token.STAR:    precMultiplicative,
	token.SLASH:   precMultiplicative,
	token.PERCENT: precMultiplicative,
}

// Parser builds an *ast.Program from a token stream.
type Parser struct {
	tokens []token.Token
	pos    int
}

// Parse tokenizes and parses source in one call.
func Parse(source string) (*ast.Program, error) {
	tokens, err := lexer.Tokenize(source, nil)
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).ParseProgram()
}

// NewParser builds a Parser over an already-lexed token stream.
func NewParser(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

func (p *Parser) cur() token.Token  { return p.tokens[p.pos] }
func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) skipNewlines() {
	for p.cur().Kind == token.NEWLINE {
		p.advance()
	}
}

func (p *Parser) expect(k token.Kind, context string) (token.Token, error) {
	if p.cur().Kind != k {
		return token.Token{}, p.unexpected(context)
	}
	return p.advance(), nil
}

func (p *Parser) unexpected(context string) error {
	t := p.cur()
	return &errors.ParseError{
		Message: "unexpected token " + t.Kind.String() + " (" + t.Value + ")",
		Line:    t.Line, Col: t.Column, Context: context,
	}
}

func pos(t token.Token) ast.Position { return ast.Position{Line: t.Line, Col: t.Column} }

// ParseProgram parses the top level: a sequence of speaker-decls, as-blocks,
// and world-decls.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	p.skipNewlines()
	for p.cur().Kind != token.EOF {
		stmt, err := p.parseTopLevel()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
		p.skipNewlines()
	}
	return prog, nil
}

func (p *Parser) parseTopLevel() (ast.Stmt, error) {
	switch p.cur().Kind {
	case token.SPEAKER:
		return p.parseSpeakerDecl()
	case token.AS:
		return p.parseAsBlock()
	case token.WORLD:
		return p.parseWorld()
	default:
		return nil, p.unexpected("top level")
	}
}

func (p *Parser) parseSpeakerDecl() (ast.Stmt, error) {
	t := p.advance() // 'speaker'
	name, err := p.expect(token.IDENT, "speaker declaration")
	if err != nil {
		return nil, err
	}
	return &ast.SpeakerDecl{Name: name.Value, P: pos(t)}, nil
}

func (p *Parser) parseWorld() (ast.Stmt, error) {
	t := p.advance() // 'world'
	name, err := p.expect(token.IDENT, "world declaration")
	if err != nil {
		return nil, err
	}
	return &ast.WorldStmt{Name: name.Value, P: pos(t)}, nil
}

func (p *Parser) parseAsBlock() (ast.Stmt, error) {
	t := p.advance() // 'as'
	name, err := p.expect(token.IDENT, "as block")
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.AsBlock{Speaker: name.Value, Body: body, P: pos(t)}, nil
}

// parseBlock parses `{ stmt* }`.
func (p *Parser) parseBlock() ([]ast.Stmt, error) {
	if _, err := p.expect(token.LBRACE, "block"); err != nil {
		return nil, err
	}
	p.skipNewlines()
	var stmts []ast.Stmt
	for p.cur().Kind != token.RBRACE {
		if p.cur().Kind == token.EOF {
			return nil, p.unexpected("block (missing '}')")
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		p.skipNewlines()
	}
	p.advance() // consume '}'
	return stmts, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	switch p.cur().Kind {
	case token.LET:
		return p.parseLet()
	case token.SPEAK:
		return p.parseSpeak()
	case token.WHEN:
		return p.parseWhen()
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.FN:
		return p.parseFn()
	case token.RETURN:
		return p.parseReturn()
	case token.REQUEST:
		return p.parseRequest()
	case token.RESPOND:
		return p.parseRespond()
	case token.INSPECT:
		return p.parseInspect()
	case token.HISTORY:
		return p.parseHistory()
	case token.LEDGER:
		return p.parseLedger()
	case token.VERIFY:
		return p.parseVerify()
	case token.SEAL:
		return p.parseSeal()
	case token.WORLD:
		return p.parseWorld()
	case token.PASS:
		t := p.advance()
		return &ast.PassStmt{P: pos(t)}, nil
	case token.FAIL:
		return p.parseFail()
	default:
		t := p.cur()
		expr, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{Value: expr, P: pos(t)}, nil
	}
}

func (p *Parser) parseLet() (ast.Stmt, error) {
	t := p.advance() // 'let'
	target, err := p.parseLetTarget()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ASSIGN, "let statement"); err != nil {
		return nil, err
	}
	value, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	return &ast.LetStmt{Target: target, Value: value, P: pos(t)}, nil
}

// parseLetTarget parses a bare identifier or a dotted `speaker.var` target.
func (p *Parser) parseLetTarget() (ast.Expr, error) {
	name, err := p.expect(token.IDENT, "let target")
	if err != nil {
		return nil, err
	}
	ident := &ast.Ident{Name: name.Value, P: pos(name)}
	if p.cur().Kind == token.DOT {
		dot := p.advance()
		field, err := p.expect(token.IDENT, "member access")
		if err != nil {
			return nil, err
		}
		return &ast.MemberAccess{Object: ident, Name: field.Value, P: pos(dot)}, nil
	}
	return ident, nil
}

func (p *Parser) parseSpeak() (ast.Stmt, error) {
	t := p.advance() // 'speak'
	value, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	return &ast.SpeakStmt{Value: value, P: pos(t)}, nil
}

func (p *Parser) parseWhen() (ast.Stmt, error) {
	t := p.advance() // 'when'
	cond, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &ast.WhenStmt{Cond: cond, Body: body, P: pos(t)}
	p.skipNewlines()
	if p.cur().Kind == token.OTHERWISE {
		p.advance()
		otherwise, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Otherwise = otherwise
		p.skipNewlines()
	}
	if p.cur().Kind == token.BROKEN {
		p.advance()
		broken, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Broken = broken
	}
	return stmt, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	t := p.advance() // 'if'
	cond, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &ast.IfStmt{Cond: cond, Body: body, P: pos(t)}
	p.skipNewlines()
	for p.cur().Kind == token.ELIF {
		p.advance()
		elifCond, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		elifBody, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Elifs = append(stmt.Elifs, ast.ElifClause{Cond: elifCond, Body: elifBody})
		p.skipNewlines()
	}
	if p.cur().Kind == token.ELSE {
		p.advance()
		elseBody, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Else = elseBody
	}
	return stmt, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	t := p.advance() // 'while'
	cond, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	stmt := &ast.WhileStmt{Cond: cond, P: pos(t)}
	if p.cur().Kind == token.COMMA {
		p.advance()
		if _, err := p.expect(token.MAX, "while max clause"); err != nil {
			return nil, err
		}
		n, err := p.expect(token.INT, "while max clause")
		if err != nil {
			return nil, err
		}
		v, convErr := strconv.Atoi(n.Value)
		if convErr != nil {
			return nil, &errors.ParseError{Message: "invalid max iteration literal", Line: n.Line, Col: n.Column}
		}
		stmt.Max = &v
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

func (p *Parser) parseFn() (ast.Stmt, error) {
	t := p.advance() // 'fn'
	name, err := p.expect(token.IDENT, "function declaration")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN, "function parameters"); err != nil {
		return nil, err
	}
	var params []ast.Param
	for p.cur().Kind != token.RPAREN {
		pn, err := p.expect(token.IDENT, "function parameter")
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Name: pn.Value})
		if p.cur().Kind == token.COMMA {
			p.advance()
		}
	}
	p.advance() // consume ')'
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FnDecl{Name: name.Value, Params: params, Body: body, P: pos(t)}, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	t := p.advance() // 'return'
	if p.atStmtEnd() {
		return &ast.ReturnStmt{P: pos(t)}, nil
	}
	value, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	return &ast.ReturnStmt{Value: value, P: pos(t)}, nil
}

func (p *Parser) atStmtEnd() bool {
	k := p.cur().Kind
	return k == token.NEWLINE || k == token.RBRACE || k == token.EOF
}

func (p *Parser) parseRequest() (ast.Stmt, error) {
	t := p.advance() // 'request'
	target, err := p.expect(token.IDENT, "request statement")
	if err != nil {
		return nil, err
	}
	action, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	return &ast.RequestStmt{Target: target.Value, Action: action, P: pos(t)}, nil
}

func (p *Parser) parseRespond() (ast.Stmt, error) {
	t := p.advance() // 'respond'
	switch p.cur().Kind {
	case token.ACCEPT:
		p.advance()
		return &ast.RespondStmt{Accept: true, P: pos(t)}, nil
	case token.REFUSE:
		p.advance()
		return &ast.RespondStmt{Accept: false, P: pos(t)}, nil
	default:
		return nil, p.unexpected("respond statement (expected accept|refuse)")
	}
}

func (p *Parser) parseInspect() (ast.Stmt, error) {
	t := p.advance() // 'inspect'
	target, err := p.expect(token.IDENT, "inspect statement")
	if err != nil {
		return nil, err
	}
	return &ast.InspectStmt{Target: target.Value, P: pos(t)}, nil
}

func (p *Parser) parseHistory() (ast.Stmt, error) {
	t := p.advance() // 'history'
	owner, err := p.expect(token.IDENT, "history statement")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.DOT, "history statement"); err != nil {
		return nil, err
	}
	v, err := p.expect(token.IDENT, "history statement")
	if err != nil {
		return nil, err
	}
	return &ast.HistoryStmt{Owner: owner.Value, Var: v.Value, P: pos(t)}, nil
}

func (p *Parser) parseLedger() (ast.Stmt, error) {
	t := p.advance() // 'ledger'
	// 'ledger last N'
	last, err := p.expect(token.IDENT, "ledger statement (expected 'last')")
	if err != nil {
		return nil, err
	}
	if last.Value != "last" {
		return nil, &errors.ParseError{Message: "expected 'last' after 'ledger'", Line: last.Line, Col: last.Column, Context: "ledger statement"}
	}
	n, err := p.expect(token.INT, "ledger statement")
	if err != nil {
		return nil, err
	}
	v, convErr := strconv.Atoi(n.Value)
	if convErr != nil {
		return nil, &errors.ParseError{Message: "invalid ledger count literal", Line: n.Line, Col: n.Column}
	}
	return &ast.LedgerStmt{N: v, P: pos(t)}, nil
}

func (p *Parser) parseVerify() (ast.Stmt, error) {
	t := p.advance() // 'verify'
	if _, err := p.expect(token.LEDGER, "verify statement (expected 'ledger')"); err != nil {
		return nil, err
	}
	return &ast.VerifyStmt{P: pos(t)}, nil
}

func (p *Parser) parseSeal() (ast.Stmt, error) {
	t := p.advance() // 'seal'
	target, err := p.expect(token.IDENT, "seal statement")
	if err != nil {
		return nil, err
	}
	return &ast.SealStmt{Target: target.Value, P: pos(t)}, nil
}

func (p *Parser) parseFail() (ast.Stmt, error) {
	t := p.advance() // 'fail'
	if p.atStmtEnd() {
		return &ast.FailStmt{P: pos(t)}, nil
	}
	reason, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	return &ast.FailStmt{Reason: reason, P: pos(t)}, nil
}

// ---- Expressions (Pratt parser) --------------------------------------------

func (p *Parser) parseExpr(minPrec int) (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.cur().Kind
		prec, ok := binaryPrecedence[op]
		if !ok || prec < minPrec {
			return left, nil
		}
		opTok := p.advance()
		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, P: pos(opTok)}
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	switch p.cur().Kind {
	case token.NOT:
		// `not` binds looser than comparison: `not a == b` is `not (a == b)`.
		t := p.advance()
		operand, err := p.parseExpr(precCompare)
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: token.NOT, Operand: operand, P: pos(t)}, nil
	case token.MINUS:
		t := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: token.MINUS, Operand: operand, P: pos(t)}, nil
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Kind {
		case token.DOT:
			dot := p.advance()
			name, err := p.expect(token.IDENT, "member access")
			if err != nil {
				return nil, err
			}
			expr = &ast.MemberAccess{Object: expr, Name: name.Value, P: pos(dot)}
		case token.LBRACKET:
			lb := p.advance()
			idx, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBRACKET, "index access"); err != nil {
				return nil, err
			}
			expr = &ast.IndexAccess{Collection: expr, Index: idx, P: pos(lb)}
		case token.LPAREN:
			lp := p.advance()
			var args []ast.Expr
			for p.cur().Kind != token.RPAREN {
				arg, err := p.parseExpr(precLowest)
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.cur().Kind == token.COMMA {
					p.advance()
				}
			}
			p.advance() // consume ')'
			expr = &ast.CallExpr{Callee: expr, Args: args, P: pos(lp)}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	t := p.cur()
	switch t.Kind {
	case token.INT:
		p.advance()
		v, err := strconv.ParseInt(t.Value, 10, 64)
		if err != nil {
			return nil, &errors.ParseError{Message: "invalid integer literal", Line: t.Line, Col: t.Column}
		}
		return &ast.IntLit{Value: v, P: pos(t)}, nil
	case token.FLOAT:
		p.advance()
		v, err := strconv.ParseFloat(t.Value, 64)
		if err != nil {
			return nil, &errors.ParseError{Message: "invalid float literal", Line: t.Line, Col: t.Column}
		}
		return &ast.FloatLit{Value: v, P: pos(t)}, nil
	case token.STRING:
		p.advance()
		return &ast.StringLit{Value: t.Value, P: pos(t)}, nil
	case token.TRUE:
		p.advance()
		return &ast.BoolLit{Value: true, P: pos(t)}, nil
	case token.FALSE:
		p.advance()
		return &ast.BoolLit{Value: false, P: pos(t)}, nil
	case token.NONE:
		p.advance()
		return &ast.NoneLit{P: pos(t)}, nil
	case token.ACTIVE:
		p.advance()
		return &ast.StatusLit{Value: "active", P: pos(t)}, nil
	case token.INACTIVE:
		p.advance()
		return &ast.StatusLit{Value: "inactive", P: pos(t)}, nil
	case token.BROKEN:
		p.advance()
		return &ast.StatusLit{Value: "broken", P: pos(t)}, nil
	case token.READ:
		return p.parseReadExpr()
	case token.IDENT:
		p.advance()
		return &ast.Ident{Name: t.Value, P: pos(t)}, nil
	case token.LPAREN:
		p.advance()
		expr, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN, "parenthesized expression"); err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, p.unexpected("expression")
	}
}

func (p *Parser) parseReadExpr() (ast.Expr, error) {
	t := p.advance() // 'read'
	owner, err := p.expect(token.IDENT, "read expression")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.DOT, "read expression"); err != nil {
		return nil, err
	}
	name, err := p.expect(token.IDENT, "read expression")
	if err != nil {
		return nil, err
	}
	return &ast.ReadExpr{Owner: owner.Value, Name: name.Value, P: pos(t)}, nil
}
