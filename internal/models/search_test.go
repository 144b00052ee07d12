package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestFiltersMatch(t *testing.T) {
	p := &Prompt{
		Category: Category{AIModel: "Claude", Application: "Coding"},
		Tags:     []string{"debugging", "go"},
		IsCustom: true,
	}

	tests := []struct {
		name    string
		filters Filters
		want    bool
	}{
		{"empty", Filters{}, true},
		{"model match", Filters{AIModel: "Claude"}, true},
		{"model mismatch", Filters{AIModel: "ChatGPT"}, false},
		{"application mismatch", Filters{Application: "Writing"}, false},
		{"custom match", Filters{IsCustom: boolPtr(true)}, true},
		{"custom mismatch", Filters{IsCustom: boolPtr(false)}, false},
		{"any tag matches", Filters{Tags: []string{"python", "go"}}, true},
		{"no tag matches", Filters{Tags: []string{"python"}}, false},
		{"tag match is exact", Filters{Tags: []string{"Go"}}, false},
		{"conjunction", Filters{AIModel: "Claude", Application: "Coding", Tags: []string{"go"}}, true},
		{"expression", Filters{TagExpr: AndExpr(TagExpr("go"), NotExpr(TagExpr("archive")))}, true},
		{"expression rejects", Filters{TagExpr: TagExpr("archive")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filters.Match(p))
		})
	}
}

func TestBooleanExpressionEvaluate(t *testing.T) {
	tags := []string{"AI", "tutorial"}

	assert.True(t, TagExpr("ai").Evaluate(tags))
	assert.True(t, OrExpr(TagExpr("ml"), TagExpr("tutorial")).Evaluate(tags))
	assert.False(t, AndExpr(TagExpr("ai"), TagExpr("ml")).Evaluate(tags))
	assert.False(t, XorExpr(TagExpr("ai"), TagExpr("tutorial")).Evaluate(tags))
	assert.True(t, XorExpr(TagExpr("ai"), TagExpr("ml")).Evaluate(tags))
	assert.True(t, NotExpr(TagExpr("ml")).Evaluate(tags))
	assert.True(t, (*BooleanExpression)(nil).Evaluate(tags))
	assert.False(t, (&BooleanExpression{Type: "bogus"}).Evaluate(tags))
}

func TestParseTagExpression(t *testing.T) {
	expr, err := ParseTagExpression("(ai OR ml) AND NOT archive")
	require.NoError(t, err)

	assert.True(t, expr.Evaluate([]string{"ml"}))
	assert.False(t, expr.Evaluate([]string{"ml", "archive"}))
	assert.False(t, expr.Evaluate([]string{"python"}))
	assert.Equal(t, "(ai OR ml) AND NOT archive", expr.String())

	single, err := ParseTagExpression("  coding ")
	require.NoError(t, err)
	assert.Equal(t, TagExpr("coding"), single)

	xor, err := ParseTagExpression("a XOR b")
	require.NoError(t, err)
	assert.Equal(t, ExpressionXor, xor.Type)
}

func TestParseTagExpressionErrors(t *testing.T) {
	for _, input := range []string{"", "a AND", "(a OR b", "a )", "OR a"} {
		_, err := ParseTagExpression(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestBooleanExpressionJSON(t *testing.T) {
	expr := OrExpr(TagExpr("a"), NotExpr(TagExpr("b")))
	data, err := json.Marshal(expr)
	require.NoError(t, err)

	var back BooleanExpression
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, expr, &back)
}
