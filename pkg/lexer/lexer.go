package lexer

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/kartiknair/kaleido/pkg/token"
)

const eof = -1

// Lexer turns a byte stream into tokens on demand. It reads at most one
// byte past the token it returns, so it can sit directly on an interactive
// input without blocking for more than the current line.
type Lexer struct {
	r        io.ByteReader
	lastChar int
	err      error

	line   int
	column int
}

func New(r io.Reader) *Lexer {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}

	return &Lexer{
		r:        br,
		lastChar: ' ',
		line:     1,
	}
}

// Err returns the first non-EOF read error, if any. A read error ends the
// token stream just like end of input does.
func (l *Lexer) Err() error {
	return l.err
}

func (l *Lexer) advance() int {
	if l.lastChar == eof {
		return eof
	}

	if l.lastChar == '\n' {
		l.line++
		l.column = 0
	}

	c, err := l.r.ReadByte()
	if err != nil {
		if err != io.EOF && l.err == nil {
			l.err = err
		}
		l.lastChar = eof
		return eof
	}

	l.column++
	l.lastChar = int(c)
	return l.lastChar
}

func isSpace(c int) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isAlpha(c int) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c int) bool {
	return c >= '0' && c <= '9'
}

func isAlphaNumeric(c int) bool {
	return isAlpha(c) || isDigit(c)
}

// Next returns the next token. Once the input is exhausted it keeps
// returning EOF.
func (l *Lexer) Next() token.Token {
	for {
		for isSpace(l.lastChar) {
			l.advance()
		}

		pos := token.Pos{Line: l.line, Column: l.column}

		if isAlpha(l.lastChar) {
			var sb strings.Builder
			sb.WriteByte(byte(l.lastChar))
			for isAlphaNumeric(l.advance()) {
				sb.WriteByte(byte(l.lastChar))
			}

			text := sb.String()
			return token.Token{Type: token.Lookup(text), Lexeme: text, Pos: pos}
		}

		if isDigit(l.lastChar) || l.lastChar == '.' {
			var sb strings.Builder
			for {
				sb.WriteByte(byte(l.lastChar))
				l.advance()
				if !isDigit(l.lastChar) && l.lastChar != '.' {
					break
				}
			}

			text := sb.String()
			return token.Token{Type: token.NUMBER, Lexeme: text, Number: ParseNumber(text), Pos: pos}
		}

		if l.lastChar == '#' {
			// a comment goes until the end of the line.
			for l.lastChar != '\n' && l.lastChar != eof {
				l.advance()
			}
			if l.lastChar == eof {
				return token.Token{Type: token.EOF, Pos: pos}
			}
			continue
		}

		if l.lastChar == eof {
			return token.Token{Type: token.EOF, Pos: pos}
		}

		c := byte(l.lastChar)
		l.advance()
		return token.Token{Type: token.CHAR, Char: c, Lexeme: string(c), Pos: pos}
	}
}

// ParseNumber converts a run of digits and dots the way strtod does: the
// longest prefix that forms a decimal number wins, and a run without one
// (such as ".") is zero. "1.2.3" is therefore 1.2.
func ParseNumber(text string) float64 {
	if i := strings.IndexByte(text, '.'); i >= 0 {
		if j := strings.IndexByte(text[i+1:], '.'); j >= 0 {
			text = text[:i+1+j]
		}
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		// A lone "." or an out of range literal. strtod saturates to
		// infinity, which ParseFloat also returns alongside ErrRange.
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return v
		}
		return 0
	}

	return v
}

// Lex scans all of src. It is mostly useful for tests and tools; the
// interactive driver pulls tokens one at a time with Next.
func Lex(src string) []token.Token {
	l := New(strings.NewReader(src))

	var tokens []token.Token
	for {
		t := l.Next()
		tokens = append(tokens, t)
		if t.Type == token.EOF {
			return tokens
		}
	}
}
