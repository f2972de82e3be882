// Package parser builds an internal/ast tree from a token stream. It is
// not part of the compiler/VM core (see spec §1) but is what exercises
// that core's input contract end to end.
package parser

import (
	"fmt"
	"strconv"

	"lumen/internal/ast"
	"lumen/internal/lexer"
	"lumen/internal/token"
)

type Parser struct {
	l *lexer.Lexer

	cur  token.Token
	peek token.Token

	errors []string
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) nextToken() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) errorf(pos token.Position, format string, args ...interface{}) {
	msg := fmt.Sprintf("%d:%d: ", pos.Line, pos.Column) + fmt.Sprintf(format, args...)
	p.errors = append(p.errors, msg)
}

func (p *Parser) expect(kind token.Kind) token.Token {
	if p.cur.Kind != kind {
		p.errorf(p.cur.Pos, "expected %s, got %s (%q)", kind, p.cur.Kind, p.cur.Lit)
	}
	tok := p.cur
	p.nextToken()
	return tok
}

// ---------- Top level ----------

func (p *Parser) ParseProgram() *ast.Program {
	pos := p.cur.Pos
	var stmts []ast.Stmt
	for p.cur.Kind != token.EOF {
		stmts = append(stmts, p.parseStmt())
	}
	return ast.NewProgram(pos, stmts)
}

func (p *Parser) parseBlock() *ast.Block {
	pos := p.expect(token.LBrace).Pos
	var stmts []ast.Stmt
	for p.cur.Kind != token.RBrace && p.cur.Kind != token.EOF {
		stmts = append(stmts, p.parseStmt())
	}
	p.expect(token.RBrace)
	return &ast.Block{Base: ast.Base{At: pos}, Stmts: stmts}
}

// ---------- Statements ----------

func (p *Parser) parseStmt() ast.Stmt {
	switch p.cur.Kind {
	case token.Let, token.Const:
		return p.parseDecl()
	case token.Break:
		pos := p.cur.Pos
		p.nextToken()
		p.skipSemi()
		return &ast.Jump{Base: ast.Base{At: pos}, Kind: ast.JumpBreak}
	case token.Continue:
		pos := p.cur.Pos
		p.nextToken()
		p.skipSemi()
		return &ast.Jump{Base: ast.Base{At: pos}, Kind: ast.JumpContinue}
	case token.Return:
		pos := p.cur.Pos
		p.nextToken()
		var val ast.Expr
		if p.cur.Kind != token.Semicolon && p.cur.Kind != token.RBrace && p.cur.Kind != token.EOF {
			val = p.parseExpr()
		}
		p.skipSemi()
		return &ast.Jump{Base: ast.Base{At: pos}, Kind: ast.JumpReturn, Value: val}
	case token.Import:
		return p.parseImport()
	default:
		pos := p.cur.Pos
		x := p.parseExpr()
		p.skipSemi()
		return &ast.ExprStmt{Base: ast.Base{At: pos}, X: x}
	}
}

func (p *Parser) skipSemi() {
	if p.cur.Kind == token.Semicolon {
		p.nextToken()
	}
}

func (p *Parser) parseImport() ast.Stmt {
	pos := p.cur.Pos
	p.nextToken()
	pathTok := p.expect(token.String)
	alias := ""
	if p.cur.Kind == token.As {
		p.nextToken()
		alias = p.expect(token.Ident).Lit
	}
	p.skipSemi()
	return &ast.Import{Base: ast.Base{At: pos}, Path: pathTok.Lit, Alias: alias}
}

func (p *Parser) parseDecl() ast.Stmt {
	pos := p.cur.Pos
	kind := ast.DeclLet
	if p.cur.Kind == token.Const {
		kind = ast.DeclConst
	}
	p.nextToken()
	pat := p.parsePattern()
	p.expect(token.Assign)
	val := p.parseExpr()
	p.skipSemi()
	return &ast.Decl{Base: ast.Base{At: pos}, Kind: kind, Pattern: pat, Value: val}
}

func (p *Parser) parsePattern() *ast.Pattern {
	pos := p.cur.Pos
	switch p.cur.Kind {
	case token.Underscore:
		p.nextToken()
		return &ast.Pattern{Pos: pos, Discard: true}
	case token.LParen:
		p.nextToken()
		var elems []*ast.Pattern
		for p.cur.Kind != token.RParen {
			elems = append(elems, p.parsePattern())
			if p.cur.Kind == token.Comma {
				p.nextToken()
				continue
			}
			break
		}
		p.expect(token.RParen)
		return &ast.Pattern{Pos: pos, Elems: elems}
	case token.LBracket:
		p.nextToken()
		var elems []*ast.Pattern
		for p.cur.Kind != token.RBracket {
			elems = append(elems, p.parsePattern())
			if p.cur.Kind == token.Comma {
				p.nextToken()
				continue
			}
			break
		}
		p.expect(token.RBracket)
		return &ast.Pattern{Pos: pos, Elems: elems, IsList: true}
	default:
		name := p.expect(token.Ident).Lit
		return &ast.Pattern{Pos: pos, Name: name}
	}
}

// ---------- Expressions: precedence climbing ----------

func (p *Parser) parseExpr() ast.Expr {
	return p.parseAssign()
}

func (p *Parser) parseAssign() ast.Expr {
	left := p.parseOr()
	var op ast.AssignOp
	switch p.cur.Kind {
	case token.Assign:
		op = ast.AssignPlain
	case token.PlusEq:
		op = ast.AssignAdd
	case token.MinusEq:
		op = ast.AssignSub
	case token.StarEq:
		op = ast.AssignMul
	case token.SlashEq:
		op = ast.AssignDiv
	default:
		return left
	}
	pos := p.cur.Pos
	p.nextToken()
	right := p.parseAssign()
	return &ast.Assign{Base: ast.Base{At: pos}, Op: op, Target: left, Value: right}
}

func (p *Parser) parseOr() ast.Expr {
	left := p.parseAnd()
	for p.cur.Kind == token.Or {
		pos := p.cur.Pos
		p.nextToken()
		right := p.parseAnd()
		left = &ast.Infix{Base: ast.Base{At: pos}, Op: ast.OpOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() ast.Expr {
	left := p.parseNot()
	for p.cur.Kind == token.And {
		pos := p.cur.Pos
		p.nextToken()
		right := p.parseNot()
		left = &ast.Infix{Base: ast.Base{At: pos}, Op: ast.OpAnd, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseNot() ast.Expr {
	if p.cur.Kind == token.Not {
		pos := p.cur.Pos
		p.nextToken()
		x := p.parseNot()
		return &ast.Prefix{Base: ast.Base{At: pos}, Op: ast.PrefixNot, X: x}
	}
	return p.parseEquality()
}

func (p *Parser) parseEquality() ast.Expr {
	left := p.parseRelational()
	for p.cur.Kind == token.EqEq || p.cur.Kind == token.NotEq {
		op := ast.OpEq
		if p.cur.Kind == token.NotEq {
			op = ast.OpNotEq
		}
		pos := p.cur.Pos
		p.nextToken()
		right := p.parseRelational()
		left = &ast.Infix{Base: ast.Base{At: pos}, Op: op, Left: left, Right: right}
	}
	return left
}

var relOps = map[token.Kind]ast.InfixOp{
	token.Lt: ast.OpLt, token.LtEq: ast.OpLtEq, token.Gt: ast.OpGt, token.GtEq: ast.OpGtEq,
}

func (p *Parser) parseRelational() ast.Expr {
	left := p.parseTypeInfix()
	for {
		if op, ok := relOps[p.cur.Kind]; ok {
			pos := p.cur.Pos
			p.nextToken()
			right := p.parseTypeInfix()
			left = &ast.Infix{Base: ast.Base{At: pos}, Op: op, Left: left, Right: right}
			continue
		}
		if p.cur.Kind == token.In {
			pos := p.cur.Pos
			p.nextToken()
			right := p.parseTypeInfix()
			left = &ast.Infix{Base: ast.Base{At: pos}, Op: ast.OpIn, Left: left, Right: right}
			continue
		}
		break
	}
	return left
}

func (p *Parser) parseTypeInfix() ast.Expr {
	left := p.parseBitOr()
	for p.cur.Kind == token.As || p.cur.Kind == token.Is {
		op := ast.TypeAs
		if p.cur.Kind == token.Is {
			op = ast.TypeIs
		}
		pos := p.cur.Pos
		p.nextToken()
		tag := p.parseTypeTag()
		left = &ast.TypeInfix{Base: ast.Base{At: pos}, Op: op, X: left, Type: tag}
	}
	return left
}

var typeTagNames = map[string]ast.TypeTag{
	"null": ast.TypeNull, "bool": ast.TypeBool, "int": ast.TypeInt, "num": ast.TypeNum,
	"str": ast.TypeStr, "tuple": ast.TypeTuple, "list": ast.TypeList, "map": ast.TypeMap,
	"range": ast.TypeRangeTag, "error": ast.TypeError, "tagged": ast.TypeTagged,
	"function": ast.TypeFunction, "iterator": ast.TypeIterator,
}

func (p *Parser) parseTypeTag() ast.TypeTag {
	name := p.cur.Lit
	if p.cur.Kind == token.Error {
		name = "error"
	}
	tag, ok := typeTagNames[name]
	if !ok {
		p.errorf(p.cur.Pos, "unknown type tag %q", name)
	}
	p.nextToken()
	return tag
}

func (p *Parser) parseBitOr() ast.Expr {
	left := p.parseBitXor()
	for p.cur.Kind == token.Pipe {
		pos := p.cur.Pos
		p.nextToken()
		right := p.parseBitXor()
		left = &ast.Infix{Base: ast.Base{At: pos}, Op: ast.OpBitOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseBitXor() ast.Expr {
	left := p.parseBitAnd()
	for p.cur.Kind == token.Caret {
		pos := p.cur.Pos
		p.nextToken()
		right := p.parseBitAnd()
		left = &ast.Infix{Base: ast.Base{At: pos}, Op: ast.OpBitXor, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseBitAnd() ast.Expr {
	left := p.parseShift()
	for p.cur.Kind == token.Amp {
		pos := p.cur.Pos
		p.nextToken()
		right := p.parseShift()
		left = &ast.Infix{Base: ast.Base{At: pos}, Op: ast.OpBitAnd, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseShift() ast.Expr {
	left := p.parseRange()
	for p.cur.Kind == token.Shl || p.cur.Kind == token.Shr {
		op := ast.OpShl
		if p.cur.Kind == token.Shr {
			op = ast.OpShr
		}
		pos := p.cur.Pos
		p.nextToken()
		right := p.parseRange()
		left = &ast.Infix{Base: ast.Base{At: pos}, Op: op, Left: left, Right: right}
	}
	return left
}

// parseRange handles `a:b` and `a:b:step`; it sits below shift and above
// additive so `x+1:y-1` parses as `(x+1):(y-1)`.
func (p *Parser) parseRange() ast.Expr {
	left := p.parseAdditive()
	if p.cur.Kind != token.Colon {
		return left
	}
	pos := p.cur.Pos
	p.nextToken()
	end := p.parseAdditive()
	var step ast.Expr
	if p.cur.Kind == token.Colon {
		p.nextToken()
		step = p.parseAdditive()
	}
	return &ast.Range{Base: ast.Base{At: pos}, Start: left, End: end, Step: step}
}

func (p *Parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for p.cur.Kind == token.Plus || p.cur.Kind == token.Minus {
		op := ast.OpAdd
		if p.cur.Kind == token.Minus {
			op = ast.OpSub
		}
		pos := p.cur.Pos
		p.nextToken()
		right := p.parseMultiplicative()
		left = &ast.Infix{Base: ast.Base{At: pos}, Op: op, Left: left, Right: right}
	}
	return left
}

var mulOps = map[token.Kind]ast.InfixOp{
	token.Star: ast.OpMul, token.Slash: ast.OpDiv, token.SlashSlash: ast.OpDivFloor, token.Percent: ast.OpRem,
}

func (p *Parser) parseMultiplicative() ast.Expr {
	left := p.parseUnary()
	for {
		op, ok := mulOps[p.cur.Kind]
		if !ok {
			break
		}
		pos := p.cur.Pos
		p.nextToken()
		right := p.parseUnary()
		left = &ast.Infix{Base: ast.Base{At: pos}, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.cur.Kind {
	case token.Minus:
		pos := p.cur.Pos
		p.nextToken()
		return &ast.Prefix{Base: ast.Base{At: pos}, Op: ast.PrefixNeg, X: p.parseUnary()}
	case token.Bang:
		pos := p.cur.Pos
		p.nextToken()
		return &ast.Prefix{Base: ast.Base{At: pos}, Op: ast.PrefixNot, X: p.parseUnary()}
	case token.Tilde:
		pos := p.cur.Pos
		p.nextToken()
		return &ast.Prefix{Base: ast.Base{At: pos}, Op: ast.PrefixBitNot, X: p.parseUnary()}
	default:
		return p.parsePow()
	}
}

// parsePow is right-associative and binds tighter than unary minus's
// operand parse, so `-2 ** 2` parses as `-(2 ** 2)`.
func (p *Parser) parsePow() ast.Expr {
	left := p.parseSuffix()
	if p.cur.Kind == token.StarStar {
		pos := p.cur.Pos
		p.nextToken()
		right := p.parseUnary()
		return &ast.Infix{Base: ast.Base{At: pos}, Op: ast.OpPow, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseSuffix() ast.Expr {
	expr := p.parsePrimary()
	for {
		switch p.cur.Kind {
		case token.LParen:
			pos := p.cur.Pos
			p.nextToken()
			var args []ast.Expr
			for p.cur.Kind != token.RParen {
				args = append(args, p.parseExpr())
				if p.cur.Kind == token.Comma {
					p.nextToken()
					continue
				}
				break
			}
			p.expect(token.RParen)
			expr = &ast.Suffix{Base: ast.Base{At: pos}, Kind: ast.SuffixCall, X: expr, Args: args}
		case token.LBracket:
			pos := p.cur.Pos
			p.nextToken()
			idx := p.parseExpr()
			p.expect(token.RBracket)
			expr = &ast.Suffix{Base: ast.Base{At: pos}, Kind: ast.SuffixIndex, X: expr, Index: idx}
		case token.QLBracket:
			pos := p.cur.Pos
			p.nextToken()
			idx := p.parseExpr()
			p.expect(token.RBracket)
			expr = &ast.Suffix{Base: ast.Base{At: pos}, Kind: ast.SuffixIndexOpt, X: expr, Index: idx}
		case token.Dot:
			pos := p.cur.Pos
			p.nextToken()
			name := p.expect(token.Ident).Lit
			var args []ast.Expr
			if p.cur.Kind == token.LParen {
				p.nextToken()
				for p.cur.Kind != token.RParen {
					args = append(args, p.parseExpr())
					if p.cur.Kind == token.Comma {
						p.nextToken()
						continue
					}
					break
				}
				p.expect(token.RParen)
			}
			expr = &ast.Suffix{Base: ast.Base{At: pos}, Kind: ast.SuffixMethodCall, X: expr, Name: name, Args: args}
		default:
			return expr
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	pos := p.cur.Pos
	switch p.cur.Kind {
	case token.Int:
		lit := p.cur.Lit
		p.nextToken()
		v, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			p.errorf(pos, "invalid integer literal %q: %v", lit, err)
		}
		return &ast.Literal{Base: ast.Base{At: pos}, Kind: ast.LitInt, Int: v}
	case token.Float:
		lit := p.cur.Lit
		p.nextToken()
		v, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			p.errorf(pos, "invalid float literal %q: %v", lit, err)
		}
		return &ast.Literal{Base: ast.Base{At: pos}, Kind: ast.LitFloat, Num: v}
	case token.String, token.StringPart, token.InterpStart:
		return p.parseStringLiteral()
	case token.Bytes:
		lit := p.cur.Lit
		p.nextToken()
		return &ast.Literal{Base: ast.Base{At: pos}, Kind: ast.LitBytes, Byt: []byte(lit)}
	case token.True:
		p.nextToken()
		return &ast.Literal{Base: ast.Base{At: pos}, Kind: ast.LitBool, Bool: true}
	case token.False:
		p.nextToken()
		return &ast.Literal{Base: ast.Base{At: pos}, Kind: ast.LitBool, Bool: false}
	case token.Null:
		p.nextToken()
		return &ast.Literal{Base: ast.Base{At: pos}, Kind: ast.LitNull}
	case token.Underscore:
		p.nextToken()
		return &ast.Discard{Base: ast.Base{At: pos}}
	case token.Ident:
		name := p.cur.Lit
		if name == "native" && p.peek.Kind == token.LParen {
			return p.parseNative()
		}
		p.nextToken()
		return ast.NewIdent(pos, name)
	case token.This:
		p.nextToken()
		return ast.NewIdent(pos, "this")
	case token.Fn:
		return p.parseFn()
	case token.If:
		return p.parseIf()
	case token.While:
		return p.parseWhile()
	case token.For:
		return p.parseFor()
	case token.Match:
		return p.parseMatch()
	case token.Try:
		return p.parseCatch()
	case token.Error:
		return p.parseErrorLit()
	case token.Tag:
		return p.parseTagged()
	case token.LBrace:
		return p.parseBlock()
	case token.PctLBrace:
		return p.parseMap()
	case token.LBracket:
		return p.parseList()
	case token.LParen:
		return p.parseGroupedOrTuple()
	default:
		p.errorf(pos, "unexpected token %s in expression", p.cur.Kind)
		p.nextToken()
		return &ast.Literal{Base: ast.Base{At: pos}, Kind: ast.LitNull}
	}
}

// parseStringLiteral assembles a possibly-interpolated string into a
// single *ast.Literal whose Parts alternates text segments and embedded
// expressions, following the String/StringPart/InterpStart/InterpEnd/
// StringEnd token sequence the lexer produces.
func (p *Parser) parseStringLiteral() ast.Expr {
	pos := p.cur.Pos
	if p.cur.Kind == token.String {
		lit := p.cur.Lit
		p.nextToken()
		return &ast.Literal{Base: ast.Base{At: pos}, Kind: ast.LitString, Str: lit}
	}

	var parts []ast.Expr
	for {
		switch p.cur.Kind {
		case token.StringPart:
			parts = append(parts, &ast.Literal{Base: ast.Base{At: p.cur.Pos}, Kind: ast.LitString, Str: p.cur.Lit})
			p.nextToken()
		case token.InterpStart:
			p.nextToken()
			parts = append(parts, p.parseExpr())
			p.expect(token.InterpEnd)
		case token.StringEnd:
			p.nextToken()
			return &ast.Literal{Base: ast.Base{At: pos}, Kind: ast.LitString, Parts: parts}
		default:
			p.errorf(p.cur.Pos, "malformed interpolated string")
			return &ast.Literal{Base: ast.Base{At: pos}, Kind: ast.LitString, Parts: parts}
		}
	}
}

// parseNative parses `native("name", args...)`, the host FFI call syntax
// (spec §6). The callee identifier is reserved by position, not by the
// lexer, so it never shadows a user binding named "native" used as a
// plain value.
func (p *Parser) parseNative() ast.Expr {
	pos := p.cur.Pos
	p.nextToken() // "native"
	p.expect(token.LParen)
	nameTok := p.expect(token.String)
	var args []ast.Expr
	for p.cur.Kind == token.Comma {
		p.nextToken()
		if p.cur.Kind == token.RParen {
			break
		}
		args = append(args, p.parseExpr())
	}
	p.expect(token.RParen)
	return &ast.Native{Base: ast.Base{At: pos}, Name: nameTok.Lit, Args: args}
}

func (p *Parser) parseGroupedOrTuple() ast.Expr {
	pos := p.expect(token.LParen).Pos
	if p.cur.Kind == token.RParen {
		p.nextToken()
		return &ast.Tuple{Base: ast.Base{At: pos}}
	}
	first := p.parseExpr()
	if p.cur.Kind != token.Comma {
		p.expect(token.RParen)
		return &ast.Grouped{Base: ast.Base{At: pos}, X: first}
	}
	elems := []ast.Expr{first}
	for p.cur.Kind == token.Comma {
		p.nextToken()
		if p.cur.Kind == token.RParen {
			break
		}
		elems = append(elems, p.parseExpr())
	}
	p.expect(token.RParen)
	return &ast.Tuple{Base: ast.Base{At: pos}, Elems: elems}
}

func (p *Parser) parseList() ast.Expr {
	pos := p.expect(token.LBracket).Pos
	var elems []ast.Expr
	for p.cur.Kind != token.RBracket {
		elems = append(elems, p.parseExpr())
		if p.cur.Kind == token.Comma {
			p.nextToken()
			continue
		}
		break
	}
	p.expect(token.RBracket)
	return &ast.List{Base: ast.Base{At: pos}, Elems: elems}
}

func (p *Parser) parseMap() ast.Expr {
	pos := p.expect(token.PctLBrace).Pos
	var entries []ast.MapEntry
	for p.cur.Kind != token.RBrace {
		// The key is parsed at additive precedence so the ':' separator
		// isn't taken as a range; a key using a lower-precedence operator
		// needs parentheses.
		key := p.parseAdditive()
		p.expect(token.Colon)
		val := p.parseExpr()
		entries = append(entries, ast.MapEntry{Key: key, Value: val})
		if p.cur.Kind == token.Comma {
			p.nextToken()
			continue
		}
		break
	}
	p.expect(token.RBrace)
	return &ast.Map{Base: ast.Base{At: pos}, Entries: entries}
}

func (p *Parser) parseFn() ast.Expr {
	pos := p.expect(token.Fn).Pos
	p.expect(token.LParen)
	var params []ast.FnParam
	for p.cur.Kind != token.RParen {
		nameTok := p.expect(token.Ident)
		params = append(params, ast.FnParam{Name: nameTok.Lit, Pos: nameTok.Pos})
		if p.cur.Kind == token.Comma {
			p.nextToken()
			continue
		}
		break
	}
	p.expect(token.RParen)
	var body *ast.Block
	if p.cur.Kind == token.Arrow {
		p.nextToken()
		exprPos := p.cur.Pos
		retVal := p.parseExpr()
		body = &ast.Block{
			Base:  ast.Base{At: exprPos},
			Stmts: []ast.Stmt{&ast.Jump{Base: ast.Base{At: exprPos}, Kind: ast.JumpReturn, Value: retVal}},
		}
	} else {
		body = p.parseBlock()
	}
	return &ast.Fn{Base: ast.Base{At: pos}, Params: params, Body: body}
}

func (p *Parser) parseIf() ast.Expr {
	pos := p.expect(token.If).Pos
	cond := p.parseExpr()
	then := p.parseBlock()
	var els ast.Expr
	if p.cur.Kind == token.Else {
		p.nextToken()
		if p.cur.Kind == token.If {
			els = p.parseIf()
		} else {
			els = p.parseBlock()
		}
	}
	return &ast.If{Base: ast.Base{At: pos}, Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseWhile() ast.Expr {
	pos := p.expect(token.While).Pos
	cond := p.parseExpr()
	body := p.parseBlock()
	return &ast.While{Base: ast.Base{At: pos}, Cond: cond, Body: body}
}

func (p *Parser) parseFor() ast.Expr {
	pos := p.expect(token.For).Pos
	name := p.expect(token.Ident).Lit
	p.expect(token.In)
	iter := p.parseExpr()
	body := p.parseBlock()
	return &ast.For{Base: ast.Base{At: pos}, VarName: name, Iter: iter, Body: body}
}

func (p *Parser) parseMatch() ast.Expr {
	pos := p.expect(token.Match).Pos
	subject := p.parseExpr()
	p.expect(token.LBrace)
	var cases []ast.MatchCase
	for p.cur.Kind != token.RBrace {
		casePos := p.cur.Pos
		var pat *ast.Pattern
		if p.cur.Kind == token.Else {
			p.nextToken()
		} else {
			pat = p.parsePattern()
		}
		var guard ast.Expr
		if p.cur.Kind == token.If {
			p.nextToken()
			guard = p.parseExpr()
		}
		p.expect(token.Arrow)
		body := p.parseExpr()
		cases = append(cases, ast.MatchCase{Pos: casePos, Pattern: pat, Guard: guard, Body: body})
		if p.cur.Kind == token.Comma {
			p.nextToken()
		}
	}
	p.expect(token.RBrace)
	return &ast.Match{Base: ast.Base{At: pos}, Subject: subject, Cases: cases}
}

func (p *Parser) parseCatch() ast.Expr {
	pos := p.expect(token.Try).Pos
	body := p.parseExpr()
	p.expect(token.Catch)
	p.expect(token.Pipe)
	name := p.expect(token.Ident).Lit
	p.expect(token.Pipe)
	handler := p.parseExpr()
	return &ast.Catch{Base: ast.Base{At: pos}, Body: body, CatchName: name, Handler: handler}
}

func (p *Parser) parseErrorLit() ast.Expr {
	pos := p.expect(token.Error).Pos
	if p.cur.Kind == token.LParen {
		p.nextToken()
		inner := p.parseExpr()
		p.expect(token.RParen)
		return &ast.ErrorLit{Base: ast.Base{At: pos}, Inner: inner}
	}
	return &ast.ErrorLit{Base: ast.Base{At: pos}}
}

func (p *Parser) parseTagged() ast.Expr {
	pos := p.expect(token.Tag).Pos
	name := p.expect(token.Ident).Lit
	if p.cur.Kind == token.LParen {
		p.nextToken()
		inner := p.parseExpr()
		p.expect(token.RParen)
		return &ast.Tagged{Base: ast.Base{At: pos}, Name: name, Inner: inner}
	}
	return &ast.Tagged{Base: ast.Base{At: pos}, Name: name}
}
