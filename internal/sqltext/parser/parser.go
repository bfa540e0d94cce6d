package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/queryshift/queryshift/internal/sqlir"
	"github.com/queryshift/queryshift/internal/sqltext/lexer"
	"github.com/queryshift/queryshift/internal/sqltext/token"
)

// maxDepth limits recursion depth to prevent stack overflow on
// adversarial input.
const maxDepth = 100

// Parse converts SQL text into a Query IR tree. Only the SELECT
// subset the rewriting engine understands is accepted; the result is
// not yet validated against the IR invariants (see sqlir.Validate).
func Parse(input string) (*sqlir.Query, error) {
	p := newParser(input)
	q := p.parseStatement()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return q, nil
}

// Parser consumes SQL tokens and produces Query IR nodes.
type Parser struct {
	l      *lexer.Lexer
	errors []error

	curToken  token.Token
	peekToken token.Token

	depth int
}

func newParser(input string) *Parser {
	p := &Parser{l: lexer.New(input)}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) addError(pos token.Position, format string, args ...any) {
	p.errors = append(p.errors, &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t token.Type) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t token.Type) bool { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError(p.peekToken.Pos, "expected %s, got %s", t, p.peekToken.Type)
	return false
}

func (p *Parser) parseStatement() *sqlir.Query {
	var q *sqlir.Query
	switch p.curToken.Type {
	case token.WITH:
		ctes := p.parseCTEs()
		if !p.curTokenIs(token.SELECT) {
			p.addError(p.curToken.Pos, "WITH must be followed by SELECT, got %s", p.curToken.Type)
			return nil
		}
		q = p.parseSelect()
		if q != nil {
			q.CTEs = ctes
		}
	case token.SELECT:
		q = p.parseSelect()
	default:
		p.addError(p.curToken.Pos, "unsupported statement starting with %s", p.curToken.Type)
		return nil
	}

	for p.curTokenIs(token.SEMICOLON) || p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	if !p.peekTokenIs(token.EOF) && !p.curTokenIs(token.EOF) {
		p.addError(p.peekToken.Pos, "unexpected token %s after statement", p.peekToken.Type)
	}
	return q
}

// parseCTEs parses a WITH clause and leaves the parser on the
// following SELECT token.
func (p *Parser) parseCTEs() []sqlir.CTE {
	var ctes []sqlir.CTE
	for {
		if !p.expectPeek(token.IDENT) {
			return ctes
		}
		cte := sqlir.CTE{Name: p.curToken.Literal}

		if p.peekTokenIs(token.LPAREN) {
			p.nextToken()
			for {
				if !p.expectPeek(token.IDENT) {
					return ctes
				}
				cte.Columns = append(cte.Columns, p.curToken.Literal)
				if p.peekTokenIs(token.COMMA) {
					p.nextToken()
					continue
				}
				break
			}
			if !p.expectPeek(token.RPAREN) {
				return ctes
			}
		}

		if !p.expectPeek(token.AS) {
			return ctes
		}
		if !p.expectPeek(token.LPAREN) {
			return ctes
		}
		p.nextToken()
		if !p.curTokenIs(token.SELECT) {
			p.addError(p.curToken.Pos, "CTE body must be SELECT, got %s", p.curToken.Type)
			return ctes
		}
		cte.Query = p.parseSelect()
		if !p.expectPeek(token.RPAREN) {
			return ctes
		}
		ctes = append(ctes, cte)

		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
			continue
		}
		break
	}
	p.expectPeek(token.SELECT)
	return ctes
}

// parseSelect parses a SELECT statement with the parser positioned on
// the SELECT token.
func (p *Parser) parseSelect() *sqlir.Query {
	p.depth++
	if p.depth > maxDepth {
		p.addError(p.curToken.Pos, "maximum nesting depth exceeded")
		p.depth--
		return nil
	}
	defer func() { p.depth-- }()

	q := &sqlir.Query{}

	if p.peekTokenIs(token.DISTINCT) {
		p.nextToken()
		q.Distinct = true
	}

	p.nextToken()
	q.Projection = p.parseSelectList()

	if p.peekTokenIs(token.FROM) {
		p.nextToken()
		p.nextToken()
		q.From = p.parseFromList()
	}

	if p.peekTokenIs(token.WHERE) {
		p.nextToken()
		p.nextToken()
		q.Where = p.parsePredicate()
	}

	if p.peekTokenIs(token.GROUP) {
		p.nextToken()
		if p.expectPeek(token.BY) {
			p.nextToken()
			q.GroupBy = p.parseExpressionList()
		}
	}

	if p.peekTokenIs(token.HAVING) {
		p.nextToken()
		p.nextToken()
		q.Having = p.parsePredicate()
	}

	if p.peekTokenIs(token.ORDER) {
		p.nextToken()
		if p.expectPeek(token.BY) {
			p.nextToken()
			q.OrderBy = p.parseOrderList()
		}
	}

	if p.peekTokenIs(token.LIMIT) {
		p.nextToken()
		p.nextToken()
		limit := &sqlir.LimitClause{Count: p.parseExpr(lowest)}
		if p.peekTokenIs(token.OFFSET) {
			p.nextToken()
			p.nextToken()
			limit.Offset = p.parseExpr(lowest)
		}
		q.Limit = limit
	} else if p.peekTokenIs(token.OFFSET) {
		p.nextToken()
		p.nextToken()
		q.Limit = &sqlir.LimitClause{Offset: p.parseExpr(lowest)}
	}

	return q
}

func (p *Parser) parseSelectList() []sqlir.SelectItem {
	var items []sqlir.SelectItem
	for {
		expr := p.parseExpr(lowest)
		alias := p.parseAliasIfPresent()
		items = append(items, sqlir.SelectItem{Expr: expr, Alias: alias})

		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			continue
		}
		break
	}
	return items
}

func (p *Parser) parseOrderList() []sqlir.OrderItem {
	var items []sqlir.OrderItem
	for {
		expr := p.parseExpr(lowest)
		direction := sqlir.Ascending
		if p.peekTokenIs(token.DESC) || p.peekTokenIs(token.ASC) {
			p.nextToken()
			if p.curTokenIs(token.DESC) {
				direction = sqlir.Descending
			}
		}
		items = append(items, sqlir.OrderItem{Expr: expr, Direction: direction})
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			continue
		}
		break
	}
	return items
}

func (p *Parser) parseExpressionList() []sqlir.Expr {
	exprs := []sqlir.Expr{p.parseExpr(lowest)}
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		exprs = append(exprs, p.parseExpr(lowest))
	}
	return exprs
}

func (p *Parser) parseAliasIfPresent() string {
	if p.peekTokenIs(token.AS) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return ""
		}
		return p.curToken.Literal
	}
	if p.peekTokenIs(token.IDENT) {
		p.nextToken()
		return p.curToken.Literal
	}
	return ""
}

// parseFromList parses the FROM clause into the flat relation list,
// attaching a JoinEdge to each ANSI-joined relation.
func (p *Parser) parseFromList() []sqlir.Relation {
	rels := []sqlir.Relation{p.parseRelation()}
	for {
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			rels = append(rels, p.parseRelation())
			continue
		}
		joinType, ok := p.peekJoinType()
		if !ok {
			return rels
		}
		p.nextToken()
		switch p.curToken.Type {
		case token.JOIN:
			// implicit INNER
		case token.INNER:
			p.expectPeek(token.JOIN)
		case token.LEFT, token.RIGHT, token.FULL:
			if p.peekTokenIs(token.OUTER) {
				p.nextToken()
			}
			p.expectPeek(token.JOIN)
		case token.CROSS:
			p.expectPeek(token.JOIN)
		}
		p.nextToken()
		rel := p.parseRelation()
		edge := &sqlir.JoinEdge{Type: joinType}
		if p.peekTokenIs(token.ON) {
			p.nextToken()
			p.nextToken()
			edge.On = p.parsePredicate()
		}
		rel.Join = edge
		rels = append(rels, rel)
	}
}

func (p *Parser) peekJoinType() (sqlir.JoinType, bool) {
	switch p.peekToken.Type {
	case token.JOIN, token.INNER:
		return sqlir.JoinInner, true
	case token.LEFT:
		return sqlir.JoinLeft, true
	case token.RIGHT:
		return sqlir.JoinRight, true
	case token.FULL:
		return sqlir.JoinFull, true
	case token.CROSS:
		return sqlir.JoinCross, true
	default:
		return "", false
	}
}

func (p *Parser) parseRelation() sqlir.Relation {
	switch p.curToken.Type {
	case token.IDENT:
		rel := sqlir.Relation{Table: p.curToken.Literal}
		rel.Alias = p.parseAliasIfPresent()
		return rel
	case token.LPAREN:
		p.nextToken()
		var sub *sqlir.Query
		switch p.curToken.Type {
		case token.WITH:
			ctes := p.parseCTEs()
			if p.curTokenIs(token.SELECT) {
				sub = p.parseSelect()
				if sub != nil {
					sub.CTEs = ctes
				}
			}
		case token.SELECT:
			sub = p.parseSelect()
		default:
			p.addError(p.curToken.Pos, "subquery in FROM must be SELECT, got %s", p.curToken.Type)
		}
		if !p.expectPeek(token.RPAREN) {
			return sqlir.Relation{Subquery: sub}
		}
		rel := sqlir.Relation{Subquery: sub}
		rel.Alias = p.parseAliasIfPresent()
		return rel
	default:
		p.addError(p.curToken.Pos, "unexpected token %s in FROM clause", p.curToken.Type)
		return sqlir.Relation{}
	}
}

// Operator precedence. Predicates and expressions share one Pratt
// climb: AND/OR and the comparison forms yield Predicate values,
// everything below yields Expr values.
const (
	_ int = iota
	lowest
	precedenceOr
	precedenceAnd
	precedenceNot
	precedenceComparison
	precedenceSum
	precedenceProduct
	precedencePrefix
	precedenceCall
)

var precedences = map[token.Type]int{
	token.OR:      precedenceOr,
	token.AND:     precedenceAnd,
	token.EQ:      precedenceComparison,
	token.NEQ:     precedenceComparison,
	token.LT:      precedenceComparison,
	token.LTE:     precedenceComparison,
	token.GT:      precedenceComparison,
	token.GTE:     precedenceComparison,
	token.IN:      precedenceComparison,
	token.BETWEEN: precedenceComparison,
	token.LIKE:    precedenceComparison,
	token.IS:      precedenceComparison,
	token.NOT:     precedenceComparison,
	token.PLUS:    precedenceSum,
	token.MINUS:   precedenceSum,
	token.STAR:    precedenceProduct,
	token.SLASH:   precedenceProduct,
	token.PERCENT: precedenceProduct,
	token.DOT:     precedenceCall,
	token.LPAREN:  precedenceCall,
	token.OVER:    precedenceCall,
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return lowest
}

// parsePredicate parses a boolean term with the parser on its first
// token.
func (p *Parser) parsePredicate() sqlir.Predicate {
	return p.toPredicate(p.parseValue(lowest))
}

// parseExpr parses a scalar term with the parser on its first token.
func (p *Parser) parseExpr(precedence int) sqlir.Expr {
	return p.toExpr(p.parseValue(precedence))
}

func (p *Parser) toPredicate(v any) sqlir.Predicate {
	switch t := v.(type) {
	case sqlir.Predicate:
		return t
	case nil:
		return nil
	default:
		p.addError(p.curToken.Pos, "expected a condition, got a scalar expression")
		return nil
	}
}

func (p *Parser) toExpr(v any) sqlir.Expr {
	switch t := v.(type) {
	case sqlir.Expr:
		return t
	case nil:
		return nil
	default:
		p.addError(p.curToken.Pos, "expected a scalar expression, got a condition")
		return nil
	}
}

// parseValue is the shared Pratt climb. It returns either a
// sqlir.Expr or a sqlir.Predicate depending on the operators
// encountered.
func (p *Parser) parseValue(precedence int) any {
	p.depth++
	if p.depth > maxDepth {
		p.addError(p.curToken.Pos, "expression nesting too deep")
		p.depth--
		return nil
	}
	defer func() { p.depth-- }()

	var left any

	switch p.curToken.Type {
	case token.IDENT:
		left = p.parseColumnRef()
	case token.NUMBER:
		left = &sqlir.Literal{Kind: sqlir.LitNumber, Text: p.curToken.Literal}
	case token.STRING:
		left = &sqlir.Literal{Kind: sqlir.LitString, Text: p.curToken.Literal}
	case token.TRUE:
		left = &sqlir.Literal{Kind: sqlir.LitBool, Text: "TRUE"}
	case token.FALSE:
		left = &sqlir.Literal{Kind: sqlir.LitBool, Text: "FALSE"}
	case token.NULL:
		left = &sqlir.Literal{Kind: sqlir.LitNull, Text: "NULL"}
	case token.STAR:
		left = &sqlir.Star{}
	case token.MINUS:
		p.nextToken()
		operand := p.toExpr(p.parseValue(precedencePrefix))
		if lit, ok := operand.(*sqlir.Literal); ok && lit.Kind == sqlir.LitNumber {
			left = &sqlir.Literal{Kind: sqlir.LitNumber, Text: "-" + lit.Text}
		} else {
			left = &sqlir.Arithmetic{Left: &sqlir.Literal{Kind: sqlir.LitNumber, Text: "0"}, Op: "-", Right: operand}
		}
	case token.NOT:
		p.nextToken()
		left = &sqlir.Not{Pred: p.toPredicate(p.parseValue(precedenceNot))}
	case token.CAST:
		left = p.parseCast()
	case token.CASE:
		left = p.parseOpaqueCase()
	case token.EXISTS:
		left = p.parseExists(false)
	case token.LPAREN:
		p.nextToken()
		if p.curTokenIs(token.SELECT) || p.curTokenIs(token.WITH) {
			sub := p.parseSubquery()
			if !p.expectPeek(token.RPAREN) {
				return nil
			}
			left = &sqlir.ScalarSubquery{Query: sub}
		} else {
			inner := p.parseValue(lowest)
			if !p.expectPeek(token.RPAREN) {
				return inner
			}
			left = inner
		}
	default:
		p.addError(p.curToken.Pos, "unexpected token %s", p.curToken.Type)
		return nil
	}

	for !terminatesExpression(p.peekToken.Type) {
		prec := p.peekPrecedence()
		if precedence >= prec {
			break
		}
		p.nextToken()
		left = p.parseInfix(left)
	}

	return left
}

func terminatesExpression(t token.Type) bool {
	switch t {
	case token.SEMICOLON, token.COMMA, token.RPAREN, token.EOF,
		token.FROM, token.GROUP, token.ORDER, token.LIMIT, token.OFFSET, token.HAVING:
		return true
	default:
		return false
	}
}

func (p *Parser) parseInfix(left any) any {
	switch p.curToken.Type {
	case token.PLUS, token.MINUS, token.STAR, token.SLASH, token.PERCENT:
		op := p.curToken.Literal
		prec := precedences[p.curToken.Type]
		p.nextToken()
		right := p.toExpr(p.parseValue(prec))
		return &sqlir.Arithmetic{Left: p.toExpr(left), Op: op, Right: right}

	case token.EQ, token.NEQ, token.LT, token.LTE, token.GT, token.GTE:
		op := comparisonOp(p.curToken)
		if quant, ok := p.peekQuantifier(); ok {
			p.nextToken()
			return p.parseQuantified(p.toExpr(left), op, quant)
		}
		p.nextToken()
		right := p.toExpr(p.parseValue(precedenceComparison))
		return &sqlir.Comparison{Left: p.toExpr(left), Op: op, Right: right}

	case token.AND:
		p.nextToken()
		right := p.toPredicate(p.parseValue(precedenceAnd))
		return conjoin(p.toPredicate(left), right)

	case token.OR:
		p.nextToken()
		right := p.toPredicate(p.parseValue(precedenceOr))
		return disjoin(p.toPredicate(left), right)

	case token.IN:
		return p.parseIn(p.toExpr(left), false)

	case token.LIKE:
		p.nextToken()
		pattern := p.toExpr(p.parseValue(precedenceComparison))
		return &sqlir.Like{Expr: p.toExpr(left), Pattern: pattern}

	case token.BETWEEN:
		return p.parseBetween(p.toExpr(left), false)

	case token.IS:
		not := false
		if p.peekTokenIs(token.NOT) {
			p.nextToken()
			not = true
		}
		if !p.expectPeek(token.NULL) {
			return left
		}
		return &sqlir.IsNull{Expr: p.toExpr(left), Not: not}

	case token.NOT:
		switch {
		case p.peekTokenIs(token.IN):
			p.nextToken()
			return p.parseIn(p.toExpr(left), true)
		case p.peekTokenIs(token.LIKE):
			p.nextToken()
			p.nextToken()
			pattern := p.toExpr(p.parseValue(precedenceComparison))
			return &sqlir.Like{Expr: p.toExpr(left), Not: true, Pattern: pattern}
		case p.peekTokenIs(token.BETWEEN):
			p.nextToken()
			return p.parseBetween(p.toExpr(left), true)
		default:
			p.addError(p.curToken.Pos, "unexpected NOT")
			return left
		}

	case token.LPAREN:
		col, ok := left.(*sqlir.Column)
		if !ok || col.Table != "" {
			p.addError(p.curToken.Pos, "unexpected ( after expression")
			return left
		}
		return p.parseFuncCall(col.Name)

	case token.OVER:
		call, ok := left.(*sqlir.FuncCall)
		if !ok {
			p.addError(p.curToken.Pos, "OVER requires a preceding function call")
			return left
		}
		withWindow := *call
		withWindow.Over = p.parseWindowSpec()
		return &withWindow

	case token.DOT:
		col, ok := left.(*sqlir.Column)
		if !ok || col.Table != "" {
			p.addError(p.curToken.Pos, "unexpected qualifier")
			return left
		}
		p.nextToken()
		if p.curTokenIs(token.STAR) {
			return &sqlir.Star{Table: col.Name}
		}
		if !p.curTokenIs(token.IDENT) {
			p.addError(p.curToken.Pos, "expected identifier after '.', got %s", p.curToken.Type)
			return left
		}
		return &sqlir.Column{Table: col.Name, Name: p.curToken.Literal}

	default:
		return left
	}
}

func comparisonOp(tok token.Token) sqlir.CompareOp {
	switch tok.Type {
	case token.EQ:
		return sqlir.OpEq
	case token.NEQ:
		return sqlir.OpNeq
	case token.LT:
		return sqlir.OpLt
	case token.LTE:
		return sqlir.OpLte
	case token.GT:
		return sqlir.OpGt
	case token.GTE:
		return sqlir.OpGte
	}
	return sqlir.CompareOp(tok.Literal)
}

func conjoin(left, right sqlir.Predicate) sqlir.Predicate {
	if and, ok := left.(*sqlir.And); ok {
		return &sqlir.And{Preds: append(append([]sqlir.Predicate(nil), and.Preds...), right)}
	}
	return &sqlir.And{Preds: []sqlir.Predicate{left, right}}
}

func disjoin(left, right sqlir.Predicate) sqlir.Predicate {
	if or, ok := left.(*sqlir.Or); ok {
		return &sqlir.Or{Preds: append(append([]sqlir.Predicate(nil), or.Preds...), right)}
	}
	return &sqlir.Or{Preds: []sqlir.Predicate{left, right}}
}

func (p *Parser) parseColumnRef() *sqlir.Column {
	return &sqlir.Column{Name: p.curToken.Literal}
}

func (p *Parser) peekQuantifier() (sqlir.Quantifier, bool) {
	switch p.peekToken.Type {
	case token.ALL:
		return sqlir.QuantAll, true
	case token.ANY:
		return sqlir.QuantAny, true
	case token.SOME:
		return sqlir.QuantSome, true
	default:
		return "", false
	}
}

func (p *Parser) parseQuantified(left sqlir.Expr, op sqlir.CompareOp, quant sqlir.Quantifier) sqlir.Predicate {
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	if !p.curTokenIs(token.SELECT) && !p.curTokenIs(token.WITH) {
		p.addError(p.curToken.Pos, "%s requires a subquery", quant)
		return nil
	}
	sub := p.parseSubquery()
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return &sqlir.Quantified{Left: left, Op: op, Quantifier: quant, Subquery: sub}
}

func (p *Parser) parseIn(left sqlir.Expr, not bool) sqlir.Predicate {
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	if p.curTokenIs(token.SELECT) || p.curTokenIs(token.WITH) {
		sub := p.parseSubquery()
		if !p.expectPeek(token.RPAREN) {
			return nil
		}
		return &sqlir.InSubquery{Expr: left, Not: not, Subquery: sub}
	}

	in := &sqlir.InList{Expr: left, Not: not}
	for {
		val := p.parseExpr(lowest)
		lit, ok := val.(*sqlir.Literal)
		if !ok {
			p.addError(p.curToken.Pos, "IN list values must be literals")
			return in
		}
		in.Values = append(in.Values, *lit)
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			continue
		}
		break
	}
	p.expectPeek(token.RPAREN)
	return in
}

func (p *Parser) parseBetween(left sqlir.Expr, not bool) sqlir.Predicate {
	between := &sqlir.Between{Expr: left, Not: not}
	p.nextToken()
	between.Lower = p.toExpr(p.parseValue(precedenceComparison))
	if !p.expectPeek(token.AND) {
		return between
	}
	p.nextToken()
	between.Upper = p.toExpr(p.parseValue(precedenceComparison))
	return between
}

func (p *Parser) parseExists(not bool) sqlir.Predicate {
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	sub := p.parseSubquery()
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return &sqlir.Exists{Not: not, Subquery: sub}
}

// parseSubquery parses a SELECT (optionally WITH-prefixed) with the
// parser on its first token.
func (p *Parser) parseSubquery() *sqlir.Query {
	if p.curTokenIs(token.WITH) {
		ctes := p.parseCTEs()
		if !p.curTokenIs(token.SELECT) {
			p.addError(p.curToken.Pos, "WITH must be followed by SELECT, got %s", p.curToken.Type)
			return nil
		}
		sub := p.parseSelect()
		if sub != nil {
			sub.CTEs = ctes
		}
		return sub
	}
	return p.parseSelect()
}

func (p *Parser) parseFuncCall(name string) any {
	call := &sqlir.FuncCall{Name: name}
	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return call
	}
	p.nextToken()
	if p.curTokenIs(token.DISTINCT) {
		call.Distinct = true
		p.nextToken()
	}
	call.Args = append(call.Args, p.parseExpr(lowest))
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		call.Args = append(call.Args, p.parseExpr(lowest))
	}
	p.expectPeek(token.RPAREN)
	return call
}

func (p *Parser) parseWindowSpec() *sqlir.WindowSpec {
	spec := &sqlir.WindowSpec{}
	if !p.expectPeek(token.LPAREN) {
		return spec
	}
	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return spec
	}
	if p.peekTokenIs(token.PARTITION) {
		p.nextToken()
		if !p.expectPeek(token.BY) {
			return spec
		}
		p.nextToken()
		spec.PartitionBy = append(spec.PartitionBy, p.parseExpr(lowest))
		for p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			spec.PartitionBy = append(spec.PartitionBy, p.parseExpr(lowest))
		}
	}
	if p.peekTokenIs(token.ORDER) {
		p.nextToken()
		if !p.expectPeek(token.BY) {
			return spec
		}
		p.nextToken()
		spec.OrderBy = p.parseOrderList()
	}
	p.expectPeek(token.RPAREN)
	return spec
}

// parseCast parses CAST(expr AS type). A type name the engine has no
// logical mapping for turns the whole construct into an opaque
// expression so rules skip over it.
func (p *Parser) parseCast() sqlir.Expr {
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	inner := p.parseExpr(lowest)
	if !p.expectPeek(token.AS) {
		return nil
	}
	typ, raw, ok := p.parseTypeName()
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !ok {
		return &sqlir.Opaque{Text: fmt.Sprintf("CAST(%s AS %s)", sqlir.Fragment(inner), raw)}
	}
	return &sqlir.Cast{Expr: inner, Type: typ}
}

// parseTypeName reads a type name (one or two identifier words plus
// optional width/scale) and maps it to a logical type.
func (p *Parser) parseTypeName() (sqlir.LogicalType, string, bool) {
	if !p.expectPeek(token.IDENT) {
		return sqlir.LogicalType{}, "", false
	}
	name := strings.ToUpper(p.curToken.Literal)
	if p.peekTokenIs(token.IDENT) {
		// two-word names: DOUBLE PRECISION, CHARACTER VARYING
		p.nextToken()
		name += " " + strings.ToUpper(p.curToken.Literal)
	}

	width, scale := 0, 0
	raw := name
	if p.peekTokenIs(token.LPAREN) {
		p.nextToken()
		if !p.expectPeek(token.NUMBER) {
			return sqlir.LogicalType{}, raw, false
		}
		width, _ = strconv.Atoi(p.curToken.Literal)
		raw += "(" + p.curToken.Literal
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
			if !p.expectPeek(token.NUMBER) {
				return sqlir.LogicalType{}, raw, false
			}
			scale, _ = strconv.Atoi(p.curToken.Literal)
			raw += "," + p.curToken.Literal
		}
		raw += ")"
		if !p.expectPeek(token.RPAREN) {
			return sqlir.LogicalType{}, raw, false
		}
	}

	base, ok := baseTypes[name]
	if !ok {
		return sqlir.LogicalType{}, raw, false
	}
	return sqlir.LogicalType{Base: base, Width: width, Scale: scale}, raw, true
}

var baseTypes = map[string]sqlir.BaseType{
	"SMALLINT":          sqlir.TypeSmallInt,
	"INT":               sqlir.TypeInteger,
	"INTEGER":           sqlir.TypeInteger,
	"BIGINT":            sqlir.TypeBigInt,
	"FLOAT":             sqlir.TypeFloat,
	"REAL":              sqlir.TypeFloat,
	"DOUBLE":            sqlir.TypeFloat,
	"DOUBLE PRECISION":  sqlir.TypeFloat,
	"DECIMAL":           sqlir.TypeDecimal,
	"NUMERIC":           sqlir.TypeDecimal,
	"CHAR":              sqlir.TypeChar,
	"CHARACTER":         sqlir.TypeChar,
	"VARCHAR":           sqlir.TypeVarChar,
	"CHARACTER VARYING": sqlir.TypeVarChar,
	"TEXT":              sqlir.TypeText,
	"DATE":              sqlir.TypeDate,
	"BOOLEAN":           sqlir.TypeBool,
}

// parseOpaqueCase consumes a CASE ... END construct and carries it as
// opaque text. The engine has no structured representation for CASE;
// rules skip over it and the emitter reproduces the text.
func (p *Parser) parseOpaqueCase() sqlir.Expr {
	var parts []string
	depth := 1
	parts = append(parts, "CASE")
	for depth > 0 {
		p.nextToken()
		if p.curTokenIs(token.EOF) {
			p.addError(p.curToken.Pos, "unterminated CASE expression")
			break
		}
		switch p.curToken.Type {
		case token.CASE:
			depth++
		case token.END:
			depth--
		}
		parts = append(parts, opaqueTokenText(p.curToken))
	}
	return &sqlir.Opaque{Text: strings.Join(parts, " ")}
}

func opaqueTokenText(tok token.Token) string {
	if tok.Type == token.STRING {
		return "'" + strings.ReplaceAll(tok.Literal, "'", "''") + "'"
	}
	return tok.Literal
}
