// Package notation parses attack modifiers and damage expressions typed by
// players into roll specifications.
package notation

import (
	"fmt"

	"github.com/alecthomas/participle/v2/lexer"
)

// Kind identifies a lexical token.
type Kind int

const (
	KindDice  Kind = iota // 2d6
	KindInt               // 42
	KindPlus              // +
	KindMinus             // -
	KindSpace             // runs of whitespace
	KindWord              // anything else, so lexing never fails on user text
)

func (k Kind) String() string {
	switch k {
	case KindDice:
		return "Dice"
	case KindInt:
		return "Int"
	case KindPlus:
		return "Plus"
	case KindMinus:
		return "Minus"
	case KindSpace:
		return "Space"
	case KindWord:
		return "Word"
	default:
		return "Unknown"
	}
}

// Token is a single lexeme with its byte offset in the input.
type Token struct {
	Kind   Kind
	Value  string
	Offset int
}

// Rules are tried in order, so Dice wins over Int for "2d6". Space matches
// the same characters as unicode.IsSpace, not just ASCII whitespace.
var definition = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Dice", Pattern: `[0-9]+d[0-9]+`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Plus", Pattern: `\+`},
	{Name: "Minus", Pattern: `-`},
	{Name: "Space", Pattern: `[\s\v\x{85}\p{Z}]+`},
	{Name: "Word", Pattern: `[^0-9+\-\s\v\x{85}\p{Z}]+`},
})

var kinds = func() map[lexer.TokenType]Kind {
	names := map[string]Kind{
		"Dice":  KindDice,
		"Int":   KindInt,
		"Plus":  KindPlus,
		"Minus": KindMinus,
		"Space": KindSpace,
		"Word":  KindWord,
	}
	byType := make(map[lexer.TokenType]Kind, len(names))
	for name, tokenType := range definition.Symbols() {
		if kind, ok := names[name]; ok {
			byType[tokenType] = kind
		}
	}
	return byType
}()

// Tokenize splits input into tokens. Whitespace is kept as KindSpace tokens
// so callers can reproduce the exact text of a term.
func Tokenize(input string) ([]Token, error) {
	lex, err := definition.LexString("", input)
	if err != nil {
		return nil, fmt.Errorf("tokenize %q: %w", input, err)
	}

	var tokens []Token
	for {
		tok, err := lex.Next()
		if err != nil {
			return nil, fmt.Errorf("tokenize %q: %w", input, err)
		}
		if tok.EOF() {
			return tokens, nil
		}
		kind, ok := kinds[tok.Type]
		if !ok {
			kind = KindWord
		}
		tokens = append(tokens, Token{
			Kind:   kind,
			Value:  tok.Value,
			Offset: tok.Pos.Offset,
		})
	}
}

// trimSpace drops leading and trailing KindSpace tokens.
func trimSpace(tokens []Token) []Token {
	for len(tokens) > 0 && tokens[0].Kind == KindSpace {
		tokens = tokens[1:]
	}
	for len(tokens) > 0 && tokens[len(tokens)-1].Kind == KindSpace {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

// joinTokens reassembles the source text covered by tokens.
func joinTokens(tokens []Token) string {
	text := ""
	for _, tok := range tokens {
		text += tok.Value
	}
	return text
}
