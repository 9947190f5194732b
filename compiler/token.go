package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the ember block lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Block delimiters
	TokenBlockStart // the @em{ sentinel
	TokenBlockEnd   // reserved; the balancing close brace is consumed, not emitted

	// Literals
	TokenNumber // 42, -3.5, .25
	TokenString // "hello", 'hello'
	TokenTrue
	TokenFalse
	TokenNull
	TokenIdentifier // foo, Canvas

	// Keywords
	TokenVar
	TokenIf
	TokenThen
	TokenElse
	TokenElseIf // "else if"
	TokenEndIf  // "end if"
	TokenWhile
	TokenDo
	TokenEndWhile // "end while"
	TokenReturn
	TokenAnd
	TokenOr
	TokenNot

	// Operators
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %
	TokenEq      // ==
	TokenNotEq   // !=
	TokenLt      // <
	TokenLtEq    // <=
	TokenGt      // >
	TokenGtEq    // >=
	TokenAssign  // =

	// Delimiters
	TokenDot       // .
	TokenComma     // ,
	TokenSemicolon // ;
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenBlockStart: "BLOCK_START",
	TokenBlockEnd:   "BLOCK_END",
	TokenNumber:     "NUMBER",
	TokenString:     "STRING",
	TokenTrue:       "true",
	TokenFalse:      "false",
	TokenNull:       "null",
	TokenIdentifier: "IDENTIFIER",
	TokenVar:        "var",
	TokenIf:         "if",
	TokenThen:       "then",
	TokenElse:       "else",
	TokenElseIf:     "else if",
	TokenEndIf:      "end if",
	TokenWhile:      "while",
	TokenDo:         "do",
	TokenEndWhile:   "end while",
	TokenReturn:     "return",
	TokenAnd:        "and",
	TokenOr:         "or",
	TokenNot:        "not",
	TokenPlus:       "+",
	TokenMinus:      "-",
	TokenStar:       "*",
	TokenSlash:      "/",
	TokenPercent:    "%",
	TokenEq:         "==",
	TokenNotEq:      "!=",
	TokenLt:         "<",
	TokenLtEq:       "<=",
	TokenGt:         ">",
	TokenGtEq:       ">=",
	TokenAssign:     "=",
	TokenDot:        ".",
	TokenComma:      ",",
	TokenSemicolon:  ";",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Token represents a lexical token. Immutable once produced.
type Token struct {
	Type    TokenType
	Literal string   // the raw text (decoded text for strings)
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types. Keyword lookup is
// case-insensitive; identifiers themselves stay case-sensitive.
var reservedWords = map[string]TokenType{
	"var":    TokenVar,
	"if":     TokenIf,
	"then":   TokenThen,
	"else":   TokenElse,
	"while":  TokenWhile,
	"do":     TokenDo,
	"return": TokenReturn,
	"and":    TokenAnd,
	"or":     TokenOr,
	"not":    TokenNot,
	"true":   TokenTrue,
	"false":  TokenFalse,
	"null":   TokenNull,
}

// Compound keywords are two words recognized by speculative lookahead: read
// the first word, peek the second, and only consume the pair if it is known.
// A first word not followed by its pair is left alone ("end" on its own stays
// a plain identifier).
var compoundWords = map[string]map[string]TokenType{
	"end":  {"if": TokenEndIf, "while": TokenEndWhile},
	"else": {"if": TokenElseIf},
}

// isOperandToken reports whether a token type can end an operand. A minus
// sign following an operand is subtraction, never a numeric sign.
func isOperandToken(t TokenType) bool {
	switch t {
	case TokenNumber, TokenString, TokenTrue, TokenFalse, TokenNull,
		TokenIdentifier, TokenRParen:
		return true
	}
	return false
}
