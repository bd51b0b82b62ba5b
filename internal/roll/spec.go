// Package roll computes attack and damage rolls from parsed specifications.
package roll

import (
	"math"
	"slices"

	"github.com/lawnchairsociety/combatroller/internal/dice"
)

// AttackSpec is a parsed attack expression.
type AttackSpec struct {
	totalModifier int
}

// NewAttackSpec sums modifiers into an AttackSpec. The sum saturates at the
// int range instead of wrapping.
func NewAttackSpec(modifiers ...int) AttackSpec {
	total := 0
	for _, m := range modifiers {
		total = addClamped(total, m)
	}
	return AttackSpec{totalModifier: total}
}

// addClamped returns a+b, saturated to [math.MinInt, math.MaxInt].
func addClamped(a, b int) int {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return math.MaxInt
	case b < 0 && a < math.MinInt-b:
		return math.MinInt
	}
	return a + b
}

// TotalModifier returns the amount added to the base d20 roll.
func (s AttackSpec) TotalModifier() int {
	return s.totalModifier
}

// DamageSpec is a parsed damage expression: dice to roll and flat bonuses to add.
type DamageSpec struct {
	dice        []dice.Die
	flatBonuses []int
}

// NewDamageSpec copies dice and bonuses into a DamageSpec.
func NewDamageSpec(ds []dice.Die, flatBonuses []int) DamageSpec {
	return DamageSpec{
		dice:        slices.Clone(ds),
		flatBonuses: slices.Clone(flatBonuses),
	}
}

// Dice returns a copy of the dice, in order.
func (s DamageSpec) Dice() []dice.Die {
	return slices.Clone(s.dice)
}

// FlatBonuses returns a copy of the flat bonuses, in order.
func (s DamageSpec) FlatBonuses() []int {
	return slices.Clone(s.flatBonuses)
}

// IsEmpty reports whether the spec has neither dice nor bonuses.
func (s DamageSpec) IsEmpty() bool {
	return len(s.dice) == 0 && len(s.flatBonuses) == 0
}

// Equal reports whether both specs hold the same dice and bonuses in the same order.
func (s DamageSpec) Equal(other DamageSpec) bool {
	return slices.Equal(s.dice, other.dice) && slices.Equal(s.flatBonuses, other.flatBonuses)
}
