// Package display renders roll results and specs for players.
package display

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lawnchairsociety/combatroller/internal/roll"
)

// Flag marks a die result worth highlighting.
type Flag int

const (
	Neutral Flag = iota
	Favorable
	Unfavorable
)

func (f Flag) String() string {
	switch f {
	case Favorable:
		return "favorable"
	case Unfavorable:
		return "unfavorable"
	default:
		return "neutral"
	}
}

// MarshalText encodes the flag by name.
func (f Flag) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Classify flags a natural d20 result: 20 is favorable, 1 is unfavorable.
// Modifiers never affect the flag.
func Classify(value int) Flag {
	switch value {
	case 20:
		return Favorable
	case 1:
		return Unfavorable
	default:
		return Neutral
	}
}

// Icon is a single die result as shown to the player.
type Icon struct {
	Value int  `json:"value"`
	Flag  Flag `json:"flag"`
}

// AttackIcons returns one flagged icon per d20 rolled.
func AttackIcons(result roll.AttackResult) []Icon {
	icons := make([]Icon, len(result.Rolls))
	for i, value := range result.Rolls {
		icons[i] = Icon{Value: value, Flag: Classify(value)}
	}
	return icons
}

// DamageIcons returns one neutral icon per entry; damage dice are never flagged.
func DamageIcons(result roll.DamageResult) []Icon {
	icons := make([]Icon, len(result.Rolls))
	for i, value := range result.Rolls {
		icons[i] = Icon{Value: value}
	}
	return icons
}

// FormatAttack renders a to-hit result as "17 (12, 5)".
func FormatAttack(result roll.AttackResult) string {
	return fmt.Sprintf("%d (%s)", result.Result, joinInts(result.Rolls, ", "))
}

// FormatDamage renders a damage result as "11 (4 + 5 + 2)".
func FormatDamage(result roll.DamageResult) string {
	return fmt.Sprintf("%d (%s)", result.Damage, joinInts(result.Rolls, " + "))
}

// FormatAttackSpec renders an attack spec as a signed modifier, e.g. "+5".
func FormatAttackSpec(spec roll.AttackSpec) string {
	return fmt.Sprintf("%+d", spec.TotalModifier())
}

// FormatDamageSpec renders a damage spec in dice notation, grouping
// consecutive identical dice: "2d6+1d4+3". An empty spec renders as "0".
func FormatDamageSpec(spec roll.DamageSpec) string {
	var terms []string

	ds := spec.Dice()
	for i := 0; i < len(ds); {
		j := i
		for j < len(ds) && ds[j] == ds[i] {
			j++
		}
		terms = append(terms, strconv.Itoa(j-i)+ds[i].String())
		i = j
	}
	for _, bonus := range spec.FlatBonuses() {
		terms = append(terms, strconv.Itoa(bonus))
	}

	if len(terms) == 0 {
		return "0"
	}
	return strings.Join(terms, "+")
}

func joinInts(values []int, sep string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, sep)
}
