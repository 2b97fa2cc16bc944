package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenString(t *testing.T) {
	for tok := Token(0); tok < maxToken; tok++ {
		require.NotEmpty(t, tok.String(), "token %d missing string representation", tok)
	}
}

func TestLookupIdent(t *testing.T) {
	require.Equal(t, THEN, LookupIdent("then"))
	require.Equal(t, BOOL, LookupIdent("yes"))
	require.Equal(t, BOOL, LookupIdent("no"))
	require.Equal(t, NUL, LookupIdent("nul"))
	require.Equal(t, IDENT, LookupIdent("whatever"))
	require.Equal(t, IDENT, LookupIdent("thenX"))
}

func TestPrecedenceOrder(t *testing.T) {
	lp, ok := Precedence(DOT)
	require.True(t, ok)
	sp, _ := Precedence(SEMI)
	require.Less(t, lp, sp, "indexing must bind tighter than discard")

	qp, _ := Precedence(QUESTION)
	np, _ := Precedence(NOT)
	require.Less(t, qp, np, "extract must bind tighter than unary not")

	ap, _ := Precedence(ASSIGN)
	tp, _ := Precedence(THEN)
	require.Less(t, ap, tp, "assign must bind tighter than then")
}

func TestMatchingRight(t *testing.T) {
	require.Equal(t, RPAREN, MatchingRight(LPAREN))
	require.Equal(t, RBRACE, MatchingRight(LBRACE))
	require.Equal(t, RBRACK, MatchingRight(LBRACK))
}
