package token

import (
	"fmt"
	"strconv"
)

type TokenType int

const (
	EOF TokenType = iota
	IDENTIFIER
	NUMBER
	CHAR

	KEYWORD_BEGIN
	DEF
	EXTERN
	IF
	THEN
	ELSE
	KEYWORD_END
)

var Keywords = [...]string{
	"def",
	"extern",
	"if",
	"then",
	"else",
}

// Lookup returns the keyword type for text, or IDENTIFIER.
func Lookup(text string) TokenType {
	for i, kw := range Keywords {
		if kw == text {
			return TokenType(int(KEYWORD_BEGIN) + i + 1)
		}
	}

	return IDENTIFIER
}

func (t TokenType) IsKeyword() bool {
	return t > KEYWORD_BEGIN && t < KEYWORD_END
}

func (t TokenType) String() string {
	switch t {
	case EOF:
		return "eof"
	case IDENTIFIER:
		return "identifier"
	case NUMBER:
		return "number"
	case CHAR:
		return "char"
	}

	if t.IsKeyword() {
		return Keywords[int(t)-int(KEYWORD_BEGIN)-1]
	}

	return fmt.Sprintf("token(%d)", int(t))
}

type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a lexed token. Exactly one payload is meaningful, selected by Type:
// Lexeme for IDENTIFIER and keywords, Number for NUMBER, Char for CHAR.
type Token struct {
	Type   TokenType
	Lexeme string
	Number float64
	Char   byte
	Pos    Pos
}

// Is reports whether t is the punctuation character c.
func (t Token) Is(c byte) bool {
	return t.Type == CHAR && t.Char == c
}

func (t Token) String() string {
	switch t.Type {
	case IDENTIFIER:
		return t.Lexeme
	case NUMBER:
		return strconv.FormatFloat(t.Number, 'g', -1, 64)
	case CHAR:
		return strconv.QuoteRune(rune(t.Char))
	}

	return t.Type.String()
}
