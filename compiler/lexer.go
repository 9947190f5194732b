package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: extracts @em{ ... } script blocks from surrounding text and
// tokenizes them one at a time
// ---------------------------------------------------------------------------

// BlockSentinel marks the start of a script block. The block body runs until
// the brace that balances the sentinel's opening brace.
const BlockSentinel = "@em{"

// Lexer scans raw host output for script blocks. Each call to NextBlock
// advances past one block; text between blocks is ignored.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)

	depth    int       // brace depth within the current block
	prevType TokenType // last emitted token type in the current block
}

// NewLexer creates a new lexer over the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// lexerState captures enough of the lexer to rewind a speculative read.
type lexerState struct {
	pos     int
	readPos int
	ch      rune
	line    int
	col     int
}

func (l *Lexer) save() lexerState {
	return lexerState{pos: l.pos, readPos: l.readPos, ch: l.ch, line: l.line, col: l.col}
}

func (l *Lexer) restore(s lexerState) {
	l.pos = s.pos
	l.readPos = s.readPos
	l.ch = s.ch
	l.line = s.line
	l.col = s.col
}

// readChar reads the next character. Line and column track the position
// of the character in l.ch.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		return
	}
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

// NextBlock scans forward for the next block sentinel and tokenizes the block
// body through its balancing close brace. It returns (nil, false) when no
// block remains. The balancing close brace is consumed but not emitted; the
// stream always ends with an EOF token (or an Error token that aborted it).
func (l *Lexer) NextBlock() ([]Token, bool) {
	if !l.scanToSentinel() {
		return nil, false
	}

	startPos := l.position()
	for i := 0; i < len(BlockSentinel); i++ {
		l.readChar()
	}

	tokens := []Token{{Type: TokenBlockStart, Literal: BlockSentinel, Pos: startPos}}
	l.depth = 1
	l.prevType = TokenBlockStart

	for {
		tok := l.nextToken()
		switch tok.Type {
		case TokenBlockEnd:
			tokens = append(tokens, Token{Type: TokenEOF, Pos: tok.Pos})
			return tokens, true
		case TokenError:
			// A lexical error halts tokenization of this block only.
			tokens = append(tokens, tok)
			l.skipToBlockEnd()
			return tokens, true
		case TokenEOF:
			tokens = append(tokens,
				Token{Type: TokenError, Literal: "unterminated script block", Pos: tok.Pos},
			)
			return tokens, true
		default:
			tokens = append(tokens, tok)
			l.prevType = tok.Type
		}
	}
}

// scanToSentinel advances to the start of the next sentinel. It honors
// nothing in the surrounding text: the host stream is opaque until @em{.
func (l *Lexer) scanToSentinel() bool {
	idx := strings.Index(l.input[l.pos:], BlockSentinel)
	if idx < 0 {
		// Consume remaining input so a later call stays negative.
		for l.ch != 0 {
			l.readChar()
		}
		return false
	}
	target := l.pos + idx
	for l.pos < target {
		l.readChar()
	}
	return true
}

// skipToBlockEnd consumes input until the current block's balancing close
// brace, keeping string literals opaque so braces inside them don't count.
func (l *Lexer) skipToBlockEnd() {
	for l.ch != 0 && l.depth > 0 {
		switch l.ch {
		case '\'', '"':
			l.skipString(l.ch)
		case '{':
			l.depth++
			l.readChar()
		case '}':
			l.depth--
			l.readChar()
		default:
			l.readChar()
		}
	}
}

// skipString consumes a string literal without decoding it.
func (l *Lexer) skipString(quote rune) {
	l.readChar() // opening quote
	for l.ch != 0 {
		if l.ch == '\\' {
			l.readChar()
			l.readChar()
			continue
		}
		if l.ch == quote {
			if l.peekChar() == quote {
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar()
			return
		}
		l.readChar()
	}
}

// nextToken returns the next token inside a block.
func (l *Lexer) nextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Pos: pos}

	case l.ch == '{':
		l.depth++
		l.readChar()
		return Token{Type: TokenLBrace, Literal: "{", Pos: pos}

	case l.ch == '}':
		l.depth--
		l.readChar()
		if l.depth == 0 {
			// The brace that balances the sentinel marks completion,
			// not content.
			return Token{Type: TokenBlockEnd, Literal: "}", Pos: pos}
		}
		return Token{Type: TokenRBrace, Literal: "}", Pos: pos}

	case l.ch == '(':
		l.readChar()
		return Token{Type: TokenLParen, Literal: "(", Pos: pos}

	case l.ch == ')':
		l.readChar()
		return Token{Type: TokenRParen, Literal: ")", Pos: pos}

	case l.ch == '.':
		if isDigit(l.peekChar()) && !isOperandToken(l.prevType) {
			return l.readNumber(pos)
		}
		l.readChar()
		return Token{Type: TokenDot, Literal: ".", Pos: pos}

	case l.ch == ',':
		l.readChar()
		return Token{Type: TokenComma, Literal: ",", Pos: pos}

	case l.ch == ';':
		l.readChar()
		return Token{Type: TokenSemicolon, Literal: ";", Pos: pos}

	case l.ch == '+':
		if (isDigit(l.peekChar()) || l.peekChar() == '.') && !isOperandToken(l.prevType) {
			return l.readNumber(pos)
		}
		l.readChar()
		return Token{Type: TokenPlus, Literal: "+", Pos: pos}

	case l.ch == '-':
		if (isDigit(l.peekChar()) || l.peekChar() == '.') && !isOperandToken(l.prevType) {
			return l.readNumber(pos)
		}
		l.readChar()
		return Token{Type: TokenMinus, Literal: "-", Pos: pos}

	case l.ch == '*':
		l.readChar()
		return Token{Type: TokenStar, Literal: "*", Pos: pos}

	case l.ch == '/':
		l.readChar()
		return Token{Type: TokenSlash, Literal: "/", Pos: pos}

	case l.ch == '%':
		l.readChar()
		return Token{Type: TokenPercent, Literal: "%", Pos: pos}

	case l.ch == '=':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenEq, Literal: "==", Pos: pos}
		}
		return Token{Type: TokenAssign, Literal: "=", Pos: pos}

	case l.ch == '!':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenNotEq, Literal: "!=", Pos: pos}
		}
		return Token{Type: TokenError, Literal: "unexpected character: !", Pos: pos}

	case l.ch == '<':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenLtEq, Literal: "<=", Pos: pos}
		}
		return Token{Type: TokenLt, Literal: "<", Pos: pos}

	case l.ch == '>':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenGtEq, Literal: ">=", Pos: pos}
		}
		return Token{Type: TokenGt, Literal: ">", Pos: pos}

	case l.ch == '\'' || l.ch == '"':
		return l.readString(pos, l.ch)

	case isDigit(l.ch):
		return l.readNumber(pos)

	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifierOrKeyword(pos)

	default:
		ch := l.ch
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %c", ch), Pos: pos}
	}
}

// skipWhitespaceAndComments skips whitespace, // line comments and /* */
// block comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			l.readChar() // /
			l.readChar() // *
			for l.ch != 0 {
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					break
				}
				l.readChar()
			}
			continue
		}

		break
	}
}

// readString reads a string literal delimited by the given quote character.
// Backslash escapes and doubled-quote escaping are both honored.
func (l *Lexer) readString(pos Position, quote rune) Token {
	l.readChar() // consume opening quote

	var sb strings.Builder
	for l.ch != 0 {
		if l.ch == '\\' {
			esc := l.peekChar()
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 'r':
				sb.WriteRune('\r')
			case 't':
				sb.WriteRune('\t')
			case '\\':
				sb.WriteRune('\\')
			case '"':
				sb.WriteRune('"')
			case '\'':
				sb.WriteRune('\'')
			default:
				sb.WriteRune('\\')
				sb.WriteRune(esc)
			}
			l.readChar() // backslash
			l.readChar() // escaped char
			continue
		}
		if l.ch == quote {
			if l.peekChar() == quote {
				// Doubled quote escape
				sb.WriteRune(quote)
				l.readChar()
				l.readChar()
				continue
			}
			break
		}
		if l.ch == '\n' {
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}

	if l.ch != quote {
		return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
	}
	l.readChar() // consume closing quote

	return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
}

// readNumber reads a numeric literal with an optional leading sign and an
// optional decimal point.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos

	if l.ch == '-' || l.ch == '+' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // consume .
		for isDigit(l.ch) {
			l.readChar()
		}
	} else if l.ch == '.' && l.pos == start {
		// bare ".5" style
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: pos}
}

// readIdentifierOrKeyword reads an identifier, resolving reserved words and
// two-word compound keywords. The lookahead for a compound's second word is
// speculative: if the pair is unknown the lexer rewinds exactly to the
// position before the lookahead.
func (l *Lexer) readIdentifierOrKeyword(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	literal := l.input[start:l.pos]
	lower := strings.ToLower(literal)

	if pairs, ok := compoundWords[lower]; ok {
		saved := l.save()
		l.skipWhitespaceAndComments()
		if isLetter(l.ch) || l.ch == '_' {
			wordStart := l.pos
			for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
				l.readChar()
			}
			second := strings.ToLower(l.input[wordStart:l.pos])
			if tokType, known := pairs[second]; known {
				return Token{Type: tokType, Literal: literal + " " + l.input[wordStart:l.pos], Pos: pos}
			}
		}
		l.restore(saved)
	}

	if tokType, ok := reservedWords[lower]; ok {
		return Token{Type: tokType, Literal: literal, Pos: pos}
	}

	return Token{Type: TokenIdentifier, Literal: literal, Pos: pos}
}

// Helper functions

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// ---------------------------------------------------------------------------
// Block stripping
// ---------------------------------------------------------------------------

// StripBlocks removes every script block from the input, leaving the
// surrounding text intact and trimmed. Brace counting is suspended inside
// string literals, matching block extraction.
func StripBlocks(input string) string {
	var out strings.Builder
	rest := input
	for {
		idx := strings.Index(rest, BlockSentinel)
		if idx < 0 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:idx])

		l := NewLexer(rest[idx:])
		for i := 0; i < len(BlockSentinel); i++ {
			l.readChar()
		}
		l.depth = 1
		l.skipToBlockEnd()
		rest = rest[idx+l.pos:]
	}
	return strings.TrimSpace(out.String())
}

// ExtractBlocks tokenizes every block in the input, in source order.
func ExtractBlocks(input string) [][]Token {
	l := NewLexer(input)
	var blocks [][]Token
	for {
		tokens, ok := l.NextBlock()
		if !ok {
			return blocks
		}
		blocks = append(blocks, tokens)
	}
}
