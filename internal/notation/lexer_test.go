package notation

import (
	"testing"
	"unicode"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []Token
	}{
		{"", nil},
		{"2d6", []Token{{KindDice, "2d6", 0}}},
		{"+5", []Token{{KindPlus, "+", 0}, {KindInt, "5", 1}}},
		{"-3", []Token{{KindMinus, "-", 0}, {KindInt, "3", 1}}},
		{"1d8 + 2", []Token{
			{KindDice, "1d8", 0},
			{KindSpace, " ", 3},
			{KindPlus, "+", 4},
			{KindSpace, " ", 5},
			{KindInt, "2", 6},
		}},
		{"2x6", []Token{{KindInt, "2", 0}, {KindWord, "x", 1}, {KindInt, "6", 2}}},
		{"abc", []Token{{KindWord, "abc", 0}}},
		{"2d", []Token{{KindInt, "2", 0}, {KindWord, "d", 1}}},
		{"d20", []Token{{KindWord, "d", 0}, {KindInt, "20", 1}}},
		{"\u00a0+5", []Token{{KindSpace, "\u00a0", 0}, {KindPlus, "+", 2}, {KindInt, "5", 3}}},
		{"1\u2003+\v2", []Token{
			{KindInt, "1", 0},
			{KindSpace, "\u2003", 1},
			{KindPlus, "+", 4},
			{KindSpace, "\v", 5},
			{KindInt, "2", 6},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Tokenize(tt.input)
			if err != nil {
				t.Fatalf("Tokenize(%q) error: %v", tt.input, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTokenize_RoundTrip(t *testing.T) {
	inputs := []string{"  2d6 +3", "1d8+1d4+2", "++5", "fire!", "2 d 6", "héllo+1"}
	for _, input := range inputs {
		tokens, err := Tokenize(input)
		if err != nil {
			t.Fatalf("Tokenize(%q) error: %v", input, err)
		}
		if got := joinTokens(tokens); got != input {
			t.Errorf("joinTokens(Tokenize(%q)) = %q", input, got)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindDice.String() != "Dice" || KindWord.String() != "Word" {
		t.Errorf("unexpected Kind names: %s, %s", KindDice, KindWord)
	}
	if Kind(99).String() != "Unknown" {
		t.Errorf("Kind(99).String() = %q", Kind(99).String())
	}
}

func TestTokenize_SpaceMatchesUnicode(t *testing.T) {
	for r := rune(0); r <= 0x3000; r++ {
		if !unicode.IsSpace(r) {
			continue
		}
		input := "1" + string(r) + "2"
		tokens, err := Tokenize(input)
		if err != nil {
			t.Fatalf("Tokenize(%q) error: %v", input, err)
		}
		if len(tokens) != 3 || tokens[1].Kind != KindSpace {
			t.Errorf("Tokenize(%q) = %v, want the space between two ints", input, tokens)
		}
	}
}
