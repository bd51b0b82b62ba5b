package roll

import (
	"slices"

	"github.com/lawnchairsociety/combatroller/internal/dice"
)

// AttackOptions selects advantage or disadvantage for a to-hit roll.
type AttackOptions struct {
	Advantage        bool
	AdvantageDice    int
	Disadvantage     bool
	DisadvantageDice int
}

// DefaultAttackOptions returns options with neither flag set and two dice
// for advantage and disadvantage.
func DefaultAttackOptions() AttackOptions {
	return AttackOptions{
		AdvantageDice:    2,
		DisadvantageDice: 2,
	}
}

// AttackResult is the outcome of a to-hit roll.
type AttackResult struct {
	Result int
	Rolls  []int
}

// DamageResult is the outcome of a damage roll. Rolls lists every die result
// followed by the flat bonuses; Damage is their sum.
type DamageResult struct {
	Damage int
	Rolls  []int
}

// RollToHit rolls a d20 attack.
//
// With advantage the highest of AdvantageDice rolls is kept, with
// disadvantage the lowest of DisadvantageDice rolls. When both or neither
// are set they cancel and a single d20 is rolled. Rolls are recorded in the
// order rolled and the result never drops below 1.
func RollToHit(src dice.Source, spec AttackSpec, opts AttackOptions) AttackResult {
	var rolls []int
	var base int

	switch {
	case opts.Advantage && !opts.Disadvantage:
		rolls = rollD20s(src, opts.AdvantageDice)
		base = slices.Max(rolls)
	case opts.Disadvantage && !opts.Advantage:
		rolls = rollD20s(src, opts.DisadvantageDice)
		base = slices.Min(rolls)
	default:
		rolls = rollD20s(src, 1)
		base = rolls[0]
	}

	return AttackResult{
		Result: max(addClamped(base, spec.totalModifier), 1),
		Rolls:  rolls,
	}
}

// RollDamage rolls every die in spec once, or twice over on a critical hit,
// then appends the flat bonuses. Criticals never double flat bonuses. The
// total saturates at math.MaxInt.
func RollDamage(src dice.Source, spec DamageSpec, critical bool) (DamageResult, error) {
	passes := 1
	if critical {
		passes = 2
	}

	rolls := make([]int, 0, passes*len(spec.dice)+len(spec.flatBonuses))
	for pass := 0; pass < passes; pass++ {
		for _, d := range spec.dice {
			value, err := d.Roll(src)
			if err != nil {
				return DamageResult{}, err
			}
			rolls = append(rolls, value)
		}
	}
	rolls = append(rolls, spec.flatBonuses...)

	total := 0
	for _, value := range rolls {
		total = addClamped(total, value)
	}

	return DamageResult{
		Damage: total,
		Rolls:  rolls,
	}, nil
}

// rollD20s rolls count d20s, treating counts below 1 as a single die.
func rollD20s(src dice.Source, count int) []int {
	count = max(count, 1)
	rolls := make([]int, count)
	for i := range rolls {
		// D20 always has faces, so Roll cannot fail here
		rolls[i], _ = dice.D20.Roll(src)
	}
	return rolls
}
