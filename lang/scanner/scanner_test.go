package scanner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avevad/funscript-go/lang/token"
)

func scanToks(t *testing.T, src string) []TokenAndValue {
	t.Helper()
	toks, err := ScanAll("test.fs", []byte(src))
	require.NoError(t, err)
	return Filter(toks)
}

func kinds(toks []TokenAndValue) []token.Token {
	out := make([]token.Token, len(toks))
	for i, tv := range toks {
		out[i] = tv.Tok
	}
	return out
}

func TestScanIdentifiersAndKeywords(t *testing.T) {
	toks := scanToks(t, "x then y else yes")
	require.Equal(t, []token.Token{
		token.IDENT, token.THEN, token.IDENT, token.ELSE, token.BOOL, token.EOF,
	}, kinds(toks))
}

func TestScanIntAndFloat(t *testing.T) {
	toks := scanToks(t, "42 3.14 0.5")
	require.Equal(t, []token.Token{token.INT, token.FLOAT, token.FLOAT, token.EOF}, kinds(toks))
	require.Equal(t, int64(42), toks[0].Val.Int)
	require.InDelta(t, 3.14, toks[1].Val.Float, 1e-9)
	require.InDelta(t, 0.5, toks[2].Val.Float, 1e-9)
}

func TestScanStringEscapes(t *testing.T) {
	toks := scanToks(t, `'hi\n\'there\''`)
	require.Equal(t, token.STRING, toks[0].Tok)
	require.Equal(t, "hi\n'there'", toks[0].Val.Str)
}

func TestScanStringUnterminated(t *testing.T) {
	_, err := ScanAll("test.fs", []byte(`'unterminated`))
	require.Error(t, err)
}

func TestScanLineComment(t *testing.T) {
	toks, err := ScanAll("test.fs", []byte("x # trailing comment\ny"))
	require.NoError(t, err)
	require.Equal(t, []token.Token{token.IDENT, token.COMMENT, token.IDENT, token.EOF}, kinds(toks))
}

func TestScanBlockComment(t *testing.T) {
	toks := scanToks(t, "x #[ a block\ncomment ]# y")
	require.Equal(t, []token.Token{token.IDENT, token.IDENT, token.EOF}, kinds(toks))
}

func TestScanBlockCommentUnterminated(t *testing.T) {
	_, err := ScanAll("test.fs", []byte("#[ never closes"))
	require.Error(t, err)
}

func TestScanOperatorsLongestMatch(t *testing.T) {
	toks := scanToks(t, "== != <= >= << >> = < >")
	require.Equal(t, []token.Token{
		token.EQL, token.NEQ, token.LE, token.GE, token.SHL, token.SHR,
		token.ASSIGN, token.LT, token.GT, token.EOF,
	}, kinds(toks))
}

func TestScanBrackets(t *testing.T) {
	toks := scanToks(t, "( ) { } [ ]")
	require.Equal(t, []token.Token{
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE, token.LBRACK, token.RBRACK, token.EOF,
	}, kinds(toks))
}

func TestScanIllegalCharacter(t *testing.T) {
	_, err := ScanAll("test.fs", []byte("x @ y"))
	require.Error(t, err)
}

func TestScanLocations(t *testing.T) {
	toks := scanToks(t, "abc\ndef")
	require.Equal(t, token.Pos{Row: 1, Col: 1}, toks[0].Val.Loc.Begin)
	require.Equal(t, token.Pos{Row: 2, Col: 1}, toks[1].Val.Loc.Begin)
}
