package datalog

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/reconkg/engine/internal/kgerrors"
)

// Parser parses a Datalog program into a Program AST, grounded on the
// teacher query package's hand-rolled recursive-descent parser shape.
type Parser struct {
	lexer     *Lexer
	current   Token
	peeked    *Token
	anonCount int
}

// NewParser creates a Parser over input.
func NewParser(input string) *Parser {
	return &Parser{lexer: NewLexer(input)}
}

// Parse is a convenience wrapper around NewParser(input).ParseProgram().
func Parse(input string) (*Program, error) {
	return NewParser(input).ParseProgram()
}

// ParseProgram parses the whole source as a sequence of rules and queries.
func (p *Parser) ParseProgram() (*Program, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}

	prog := &Program{}
	for p.current.Type != TokenEOF {
		if p.current.Type == TokenQuestionDash {
			q, err := p.parseQuery()
			if err != nil {
				return nil, err
			}
			prog.Queries = append(prog.Queries, *q)
			continue
		}
		r, err := p.parseRule()
		if err != nil {
			return nil, err
		}
		if len(r.Body) == 0 && headHasVariable(r.Head) {
			prog.Warnings = append(prog.Warnings, fmt.Sprintf(
				"rule %q is a fact with a variable in its head; unbound head variables are stored as their literal name (spec §9 open question)", r.Head.Predicate))
		}
		prog.Rules = append(prog.Rules, *r)
	}
	return prog, nil
}

func headHasVariable(head Atom) bool {
	for _, arg := range head.Args {
		if arg.Kind == TermVariable {
			return true
		}
	}
	return false
}

func (p *Parser) advance() error {
	if p.peeked != nil {
		p.current = *p.peeked
		p.peeked = nil
		return nil
	}
	tok, err := p.lexer.NextToken()
	if err != nil {
		return err
	}
	p.current = tok
	return nil
}

func (p *Parser) peek() (Token, error) {
	if p.peeked != nil {
		return *p.peeked, nil
	}
	tok, err := p.lexer.NextToken()
	if err != nil {
		return Token{}, err
	}
	p.peeked = &tok
	return tok, nil
}

func (p *Parser) expect(tt TokenType) error {
	if p.current.Type != tt {
		return kgerrors.NewParse(p.current.Pos, fmt.Sprintf("expected %s, got %s %q", tt, p.current.Type, p.current.Value))
	}
	return p.advance()
}

// parseRule parses `atom ( ":-" body )? "."`.
func (p *Parser) parseRule() (*Rule, error) {
	head, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	var body []Literal
	if p.current.Type == TokenColonDash {
		if err := p.advance(); err != nil {
			return nil, err
		}
		body, err = p.parseBody()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expect(TokenDot); err != nil {
		return nil, err
	}
	return &Rule{Head: head, Body: body}, nil
}

// parseQuery parses `"?-" atom "."`.
func (p *Parser) parseQuery() (*Query, error) {
	if err := p.expect(TokenQuestionDash); err != nil {
		return nil, err
	}
	atom, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenDot); err != nil {
		return nil, err
	}
	return &Query{Atom: atom}, nil
}

// parseBody parses `literal ("," literal)*`.
func (p *Parser) parseBody() ([]Literal, error) {
	var body []Literal
	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	body = append(body, *lit)
	for p.current.Type == TokenComma {
		if err := p.advance(); err != nil {
			return nil, err
		}
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		body = append(body, *lit)
	}
	return body, nil
}

// parseLiteral parses `("not")? atom | comparison`.
func (p *Parser) parseLiteral() (*Literal, error) {
	negated := false
	if p.current.Type == TokenNot {
		negated = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	if p.current.Type == TokenIdent {
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		if next.Type == TokenLParen {
			atom, err := p.parseAtom()
			if err != nil {
				return nil, err
			}
			return &Literal{Negated: negated, Atom: &atom}, nil
		}
	}

	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	op, err := p.parseCompOp()
	if err != nil {
		return nil, err
	}
	right, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	return &Literal{Negated: negated, Comparison: &Comparison{Left: left, Op: op, Right: right}}, nil
}

// parseAtom parses `ident "(" (term ("," term)*)? ")"`.
func (p *Parser) parseAtom() (Atom, error) {
	if p.current.Type != TokenIdent {
		return Atom{}, kgerrors.NewParse(p.current.Pos, fmt.Sprintf("expected predicate name, got %s %q", p.current.Type, p.current.Value))
	}
	predicate := p.current.Value
	if err := p.advance(); err != nil {
		return Atom{}, err
	}
	if err := p.expect(TokenLParen); err != nil {
		return Atom{}, err
	}

	var args []Term
	if p.current.Type != TokenRParen {
		term, err := p.parseTerm()
		if err != nil {
			return Atom{}, err
		}
		args = append(args, term)
		for p.current.Type == TokenComma {
			if err := p.advance(); err != nil {
				return Atom{}, err
			}
			term, err := p.parseTerm()
			if err != nil {
				return Atom{}, err
			}
			args = append(args, term)
		}
	}
	if err := p.expect(TokenRParen); err != nil {
		return Atom{}, err
	}
	return Atom{Predicate: predicate, Args: args}, nil
}

// parseTerm parses `ident | string | integer`, tagging identifiers as
// variables when they start with an uppercase letter (spec §4.5). An
// identifier that is "_" or starts with "_" is the anonymous variable: a
// fresh wildcard per occurrence that unifies with anything and binds
// nothing, by convention with the underscore-prefixed "don't care" name
// seen elsewhere in the pack's parsers.
func (p *Parser) parseTerm() (Term, error) {
	switch p.current.Type {
	case TokenIdent:
		name := p.current.Value
		if err := p.advance(); err != nil {
			return Term{}, err
		}
		if strings.HasPrefix(name, "_") {
			p.anonCount++
			return Term{Kind: TermVariable, Anonymous: true, Name: fmt.Sprintf("_anon%d", p.anonCount)}, nil
		}
		if len(name) > 0 && unicode.IsUpper(rune(name[0])) {
			return Term{Kind: TermVariable, Name: name}, nil
		}
		return Term{Kind: TermConstant, Value: name}, nil
	case TokenString:
		value := p.current.Value
		if err := p.advance(); err != nil {
			return Term{}, err
		}
		return Term{Kind: TermConstant, Value: value}, nil
	case TokenInteger:
		n, err := strconv.ParseInt(p.current.Value, 10, 64)
		if err != nil {
			return Term{}, kgerrors.NewParse(p.current.Pos, fmt.Sprintf("invalid integer %q", p.current.Value))
		}
		if err := p.advance(); err != nil {
			return Term{}, err
		}
		return Term{Kind: TermConstant, Value: n}, nil
	default:
		return Term{}, kgerrors.NewParse(p.current.Pos, fmt.Sprintf("expected a term, got %s %q", p.current.Type, p.current.Value))
	}
}

func (p *Parser) parseCompOp() (CompOp, error) {
	var op CompOp
	switch p.current.Type {
	case TokenEq:
		op = OpEq
	case TokenNotEq:
		op = OpNotEq
	case TokenLt:
		op = OpLt
	case TokenGt:
		op = OpGt
	case TokenLtEq:
		op = OpLtEq
	case TokenGtEq:
		op = OpGtEq
	default:
		return "", kgerrors.NewParse(p.current.Pos, fmt.Sprintf("expected a comparison operator, got %s %q", p.current.Type, p.current.Value))
	}
	if err := p.advance(); err != nil {
		return "", err
	}
	return op, nil
}
