package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/smog/pkg/lexer"
)

func scanAll(src string) []lexer.Token {
	l := lexer.New(src)
	var toks []lexer.Token
	for {
		tok := l.ScanToken()
		toks = append(toks, tok)
		if tok.Type == lexer.TokenEOF || tok.Type == lexer.TokenIllegal {
			break
		}
	}
	return toks
}

func TestScansPunctuationAndOperators(t *testing.T) {
	toks := scanAll("(){},.-+;/*%:")
	wantTypes := []lexer.TokenType{
		lexer.TokenLeftParen, lexer.TokenRightParen, lexer.TokenLeftBrace,
		lexer.TokenRightBrace, lexer.TokenComma, lexer.TokenDot, lexer.TokenMinus,
		lexer.TokenPlus, lexer.TokenSemicolon, lexer.TokenSlash, lexer.TokenStar,
		lexer.TokenPercent, lexer.TokenColon, lexer.TokenEOF,
	}
	require.Len(t, toks, len(wantTypes))
	for i, want := range wantTypes {
		assert.Equal(t, want, toks[i].Type, "token %d", i)
	}
}

func TestScansTwoCharOperators(t *testing.T) {
	toks := scanAll("!= == <= >= ! = < >")
	wantTypes := []lexer.TokenType{
		lexer.TokenBangEqual, lexer.TokenEqualEqual, lexer.TokenLessEqual,
		lexer.TokenGreaterEqual, lexer.TokenBang, lexer.TokenEqual,
		lexer.TokenLess, lexer.TokenGreater, lexer.TokenEOF,
	}
	require.Len(t, toks, len(wantTypes))
	for i, want := range wantTypes {
		assert.Equal(t, want, toks[i].Type, "token %d", i)
	}
}

func TestScansKeywords(t *testing.T) {
	toks := scanAll("const switch case default break continue")
	wantTypes := []lexer.TokenType{
		lexer.TokenConst, lexer.TokenSwitch, lexer.TokenCase,
		lexer.TokenDefault, lexer.TokenBreak, lexer.TokenContinue, lexer.TokenEOF,
	}
	require.Len(t, toks, len(wantTypes))
	for i, want := range wantTypes {
		assert.Equal(t, want, toks[i].Type, "token %d", i)
	}
}

func TestScansNumber(t *testing.T) {
	toks := scanAll("123 1.5")
	require.Len(t, toks, 3)
	assert.Equal(t, lexer.TokenNumber, toks[0].Type)
	assert.Equal(t, "123", toks[0].Lexeme)
	assert.Equal(t, lexer.TokenNumber, toks[1].Type)
	assert.Equal(t, "1.5", toks[1].Lexeme)
}

func TestScansStringWithoutEscapeProcessing(t *testing.T) {
	toks := scanAll(`"hello\nworld"`)
	require.Len(t, toks, 2)
	assert.Equal(t, lexer.TokenString, toks[0].Type)
	assert.Equal(t, `hello\nworld`, toks[0].Lexeme)
}

func TestUnterminatedStringIsIllegal(t *testing.T) {
	toks := scanAll(`"unterminated`)
	require.Len(t, toks, 1)
	assert.Equal(t, lexer.TokenIllegal, toks[0].Type)
}

func TestSkipsLineComments(t *testing.T) {
	toks := scanAll("1 // a comment\n2")
	require.Len(t, toks, 3)
	assert.Equal(t, lexer.TokenNumber, toks[0].Type)
	assert.Equal(t, lexer.TokenNumber, toks[1].Type)
	assert.Equal(t, 2, toks[1].Line)
}

func TestIdentifierVsKeyword(t *testing.T) {
	toks := scanAll("class classy")
	require.Len(t, toks, 3)
	assert.Equal(t, lexer.TokenClass, toks[0].Type)
	assert.Equal(t, lexer.TokenIdentifier, toks[1].Type)
	assert.Equal(t, "classy", toks[1].Lexeme)
}
