package notation

import (
	"errors"
	"strconv"
	"strings"

	"github.com/lawnchairsociety/combatroller/internal/dice"
	"github.com/lawnchairsociety/combatroller/internal/roll"
)

const (
	// MaxDiceCount caps the count of a single dice term such as "100d6".
	MaxDiceCount = 100

	// MaxTotalDice caps the dice across a whole damage expression.
	MaxTotalDice = 1000

	// MaxTerms caps the number of "+"-separated damage terms.
	MaxTerms = 100

	// MaxValue caps attack modifiers, die faces and flat bonuses, so totals
	// always fit in an int.
	MaxValue = 1_000_000
)

// parser walks a token slice for one expression.
type parser struct {
	input  string
	tokens []Token
	pos    int
}

func newParser(input string) (*parser, error) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, &ParseError{Input: input, Reason: err.Error()}
	}
	return &parser{input: input, tokens: trimSpace(tokens)}, nil
}

func (p *parser) done() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) peek() (Token, bool) {
	if p.done() {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() Token {
	tok := p.tokens[p.pos]
	p.pos++
	return tok
}

func (p *parser) errorAt(tok Token, reason string) *ParseError {
	return &ParseError{Input: p.input, Token: tok.Value, Offset: tok.Offset, Reason: reason}
}

// ParseAttack parses an attack modifier: an optional sign followed by
// digits, e.g. "+5", "-3" or "5". Blank input is a modifier of 0.
func ParseAttack(input string) (roll.AttackSpec, error) {
	p, err := newParser(input)
	if err != nil {
		return roll.AttackSpec{}, err
	}
	if p.done() {
		return roll.NewAttackSpec(), nil
	}

	sign := 1
	if tok, _ := p.peek(); tok.Kind == KindPlus || tok.Kind == KindMinus {
		if tok.Kind == KindMinus {
			sign = -1
		}
		p.next()
	}

	digits, ok := p.peek()
	if !ok {
		return roll.AttackSpec{}, &ParseError{Input: input, Reason: "expected digits after sign"}
	}
	switch digits.Kind {
	case KindInt:
		p.next()
	case KindSpace:
		return roll.AttackSpec{}, &ParseError{Input: input, Offset: digits.Offset, Reason: "unexpected space after sign"}
	default:
		return roll.AttackSpec{}, p.errorAt(digits, "attack modifier must be a signed whole number")
	}

	if !p.done() {
		return roll.AttackSpec{}, p.termError(trimSpace(p.tokens[p.pos:]), "unexpected input after attack modifier")
	}

	value, err := strconv.Atoi(digits.Value)
	if err != nil || value > MaxValue {
		return roll.AttackSpec{}, p.errorAt(digits, "attack modifier must be at most "+strconv.Itoa(MaxValue))
	}
	return roll.NewAttackSpec(sign * value), nil
}

// ParseDamage parses a damage expression: terms joined by "+", each either
// dice like "2d6" or a flat bonus like "3". Blank input is an empty spec.
// Parsing stops at the first bad term.
func ParseDamage(input string) (roll.DamageSpec, error) {
	p, err := newParser(input)
	if err != nil {
		return roll.DamageSpec{}, err
	}
	if p.done() {
		return roll.NewDamageSpec(nil, nil), nil
	}

	var ds []dice.Die
	var bonuses []int
	for terms := 1; ; terms++ {
		if terms > MaxTerms {
			tok, _ := p.peek()
			return roll.DamageSpec{}, &ParseError{
				Input:  input,
				Offset: tok.Offset,
				Reason: "damage expression has more than " + strconv.Itoa(MaxTerms) + " terms",
			}
		}
		if err := p.parseDamageTerm(&ds, &bonuses); err != nil {
			return roll.DamageSpec{}, err
		}
		if p.done() {
			break
		}
		// parseDamageTerm stops only at "+" or the end
		p.next()
	}
	return roll.NewDamageSpec(ds, bonuses), nil
}

// parseDamageTerm consumes the tokens up to the next "+" and appends the
// term's dice or bonus.
func (p *parser) parseDamageTerm(ds *[]dice.Die, bonuses *[]int) error {
	start := p.pos
	for !p.done() && p.tokens[p.pos].Kind != KindPlus {
		p.pos++
	}
	term := trimSpace(p.tokens[start:p.pos])

	if len(term) == 0 {
		offset := len(p.input)
		if tok, ok := p.peek(); ok {
			offset = tok.Offset
		}
		return &ParseError{Input: p.input, Offset: offset, Reason: "empty term in damage expression"}
	}
	if len(term) > 1 {
		return p.termError(term, "expected dice like 2d6 or a flat bonus like 3")
	}

	tok := term[0]
	switch tok.Kind {
	case KindDice:
		countText, facesText, _ := strings.Cut(tok.Value, "d")
		count, err := parsePositive(countText)
		if err != nil {
			return p.termError(term, "dice count "+err.Error())
		}
		if count > MaxDiceCount {
			return p.termError(term, "dice count must be at most "+strconv.Itoa(MaxDiceCount))
		}
		faces, err := parsePositive(facesText)
		if err != nil {
			return p.termError(term, "dice faces "+err.Error())
		}
		if len(*ds)+count > MaxTotalDice {
			return p.termError(term, "damage expression rolls more than "+strconv.Itoa(MaxTotalDice)+" dice")
		}
		die := dice.MustNew(faces)
		for i := 0; i < count; i++ {
			*ds = append(*ds, die)
		}
	case KindInt:
		bonus, err := parsePositive(tok.Value)
		if err != nil {
			return p.termError(term, "flat bonus "+err.Error())
		}
		*bonuses = append(*bonuses, bonus)
	default:
		return p.termError(term, "expected dice like 2d6 or a flat bonus like 3")
	}
	return nil
}

func (p *parser) termError(term []Token, reason string) *ParseError {
	return &ParseError{
		Input:  p.input,
		Token:  joinTokens(term),
		Offset: term[0].Offset,
		Reason: reason,
	}
}

var (
	errNotPositive = errors.New("must be a positive number without leading zeros")
	errTooLarge    = errors.New("must be at most " + strconv.Itoa(MaxValue))
)

// parsePositive parses digits that must not start with 0 and must not
// exceed MaxValue.
func parsePositive(digits string) (int, error) {
	if digits == "" || digits[0] == '0' {
		return 0, errNotPositive
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n > MaxValue {
		return 0, errTooLarge
	}
	return n, nil
}
