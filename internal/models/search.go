package models

import (
	"fmt"
	"strings"
)

// Filters are the exact-match constraints applied before free-text search.
// Zero values mean "no constraint".
type Filters struct {
	AIModel     string             `json:"aiModel,omitempty"`
	Application string             `json:"application,omitempty"`
	IsCustom    *bool              `json:"isCustom,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	TagExpr     *BooleanExpression `json:"tagExpr,omitempty"`
}

// Match reports whether p satisfies every structural filter. Tags match when
// at least one filter tag is present on the prompt.
func (f Filters) Match(p *Prompt) bool {
	if f.AIModel != "" && p.Category.AIModel != f.AIModel {
		return false
	}
	if f.Application != "" && p.Category.Application != f.Application {
		return false
	}
	if f.IsCustom != nil && p.IsCustom != *f.IsCustom {
		return false
	}
	if len(f.Tags) > 0 {
		found := false
		for _, tag := range f.Tags {
			if p.HasTag(tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.TagExpr != nil && !f.TagExpr.Evaluate(p.Tags) {
		return false
	}
	return true
}

// ExpressionType defines the node kind of a tag expression
type ExpressionType string

const (
	ExpressionTag ExpressionType = "tag"
	ExpressionAnd ExpressionType = "and"
	ExpressionOr  ExpressionType = "or"
	ExpressionXor ExpressionType = "xor"
	ExpressionNot ExpressionType = "not"
)

// BooleanExpression is a boolean formula over tag membership, e.g.
// "debugging AND NOT archive".
type BooleanExpression struct {
	Type     ExpressionType       `json:"type"`
	Tag      string               `json:"tag,omitempty"`
	Operands []*BooleanExpression `json:"operands,omitempty"`
}

// Evaluate evaluates the expression against a tag list. Tag comparison is
// case-insensitive.
func (be *BooleanExpression) Evaluate(tags []string) bool {
	if be == nil {
		return true
	}

	switch be.Type {
	case ExpressionTag:
		return containsTagFold(tags, be.Tag)
	case ExpressionAnd:
		for _, op := range be.Operands {
			if !op.Evaluate(tags) {
				return false
			}
		}
		return true
	case ExpressionOr:
		for _, op := range be.Operands {
			if op.Evaluate(tags) {
				return true
			}
		}
		return false
	case ExpressionXor:
		if len(be.Operands) != 2 {
			return false
		}
		return be.Operands[0].Evaluate(tags) != be.Operands[1].Evaluate(tags)
	case ExpressionNot:
		if len(be.Operands) != 1 {
			return false
		}
		return !be.Operands[0].Evaluate(tags)
	default:
		return false
	}
}

// String renders the expression back into the syntax ParseTagExpression
// accepts.
func (be *BooleanExpression) String() string {
	if be == nil {
		return ""
	}

	switch be.Type {
	case ExpressionTag:
		return be.Tag
	case ExpressionAnd, ExpressionOr:
		parts := make([]string, len(be.Operands))
		for i, op := range be.Operands {
			parts[i] = op.group()
		}
		return strings.Join(parts, " "+strings.ToUpper(string(be.Type))+" ")
	case ExpressionXor:
		if len(be.Operands) == 2 {
			return fmt.Sprintf("%s XOR %s", be.Operands[0].group(), be.Operands[1].group())
		}
	case ExpressionNot:
		if len(be.Operands) == 1 {
			return "NOT " + be.Operands[0].group()
		}
	}
	return "?"
}

func (be *BooleanExpression) group() string {
	if be.Type == ExpressionTag || be.Type == ExpressionNot {
		return be.String()
	}
	return "(" + be.String() + ")"
}

// TagExpr builds a single-tag expression.
func TagExpr(tag string) *BooleanExpression {
	return &BooleanExpression{Type: ExpressionTag, Tag: tag}
}

// AndExpr builds a conjunction.
func AndExpr(ops ...*BooleanExpression) *BooleanExpression {
	return &BooleanExpression{Type: ExpressionAnd, Operands: ops}
}

// OrExpr builds a disjunction.
func OrExpr(ops ...*BooleanExpression) *BooleanExpression {
	return &BooleanExpression{Type: ExpressionOr, Operands: ops}
}

// XorExpr builds an exclusive or.
func XorExpr(left, right *BooleanExpression) *BooleanExpression {
	return &BooleanExpression{Type: ExpressionXor, Operands: []*BooleanExpression{left, right}}
}

// NotExpr negates an expression.
func NotExpr(op *BooleanExpression) *BooleanExpression {
	return &BooleanExpression{Type: ExpressionNot, Operands: []*BooleanExpression{op}}
}

// ParseTagExpression parses expressions such as "(ai OR ml) AND NOT archive".
// Precedence from loosest to tightest: OR, XOR, AND, NOT. Operators must be
// upper case; anything else is a tag name.
func ParseTagExpression(input string) (*BooleanExpression, error) {
	p := &exprParser{tokens: tokenizeExpr(input)}
	if len(p.tokens) == 0 {
		return nil, fmt.Errorf("empty tag expression")
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, fmt.Errorf("unexpected %q in tag expression", p.tokens[p.pos])
	}
	return expr, nil
}

type exprParser struct {
	tokens []string
	pos    int
}

func (p *exprParser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *exprParser) parseOr() (*BooleanExpression, error) {
	left, err := p.parseXor()
	if err != nil {
		return nil, err
	}
	ops := []*BooleanExpression{left}
	for p.peek() == "OR" {
		p.pos++
		right, err := p.parseXor()
		if err != nil {
			return nil, err
		}
		ops = append(ops, right)
	}
	if len(ops) == 1 {
		return left, nil
	}
	return OrExpr(ops...), nil
}

func (p *exprParser) parseXor() (*BooleanExpression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek() == "XOR" {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = XorExpr(left, right)
	}
	return left, nil
}

func (p *exprParser) parseAnd() (*BooleanExpression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	ops := []*BooleanExpression{left}
	for p.peek() == "AND" {
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		ops = append(ops, right)
	}
	if len(ops) == 1 {
		return left, nil
	}
	return AndExpr(ops...), nil
}

func (p *exprParser) parseUnary() (*BooleanExpression, error) {
	switch tok := p.peek(); tok {
	case "":
		return nil, fmt.Errorf("unexpected end of tag expression")
	case "NOT":
		p.pos++
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return NotExpr(inner), nil
	case "(":
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ")" {
			return nil, fmt.Errorf("missing closing parenthesis in tag expression")
		}
		p.pos++
		return inner, nil
	case ")", "AND", "OR", "XOR":
		return nil, fmt.Errorf("unexpected %q in tag expression", tok)
	default:
		p.pos++
		return TagExpr(tok), nil
	}
}

func tokenizeExpr(input string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range input {
		switch {
		case r == '(' || r == ')':
			flush()
			tokens = append(tokens, string(r))
		case r == ' ' || r == '\t' || r == '\n':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// containsTagFold checks if a tag is present in the tags slice (case-insensitive)
func containsTagFold(tags []string, target string) bool {
	for _, tag := range tags {
		if strings.EqualFold(tag, target) {
			return true
		}
	}
	return false
}
