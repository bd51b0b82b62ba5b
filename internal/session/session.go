// Package session holds one player's calculator state: the last attack and
// damage expressions that parsed successfully.
package session

import (
	"sync"

	"github.com/lawnchairsociety/combatroller/internal/dice"
	"github.com/lawnchairsociety/combatroller/internal/notation"
	"github.com/lawnchairsociety/combatroller/internal/roll"
)

// Session is safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	src      dice.Source
	defaults roll.AttackOptions
	attack   roll.AttackSpec
	damage   roll.DamageSpec
}

// New creates a session with a +0 attack and no damage. src is only used
// while the session's lock is held, so it need not be safe for concurrent use.
func New(src dice.Source, defaults roll.AttackOptions) *Session {
	return &Session{
		src:      src,
		defaults: defaults,
		attack:   roll.NewAttackSpec(),
		damage:   roll.NewDamageSpec(nil, nil),
	}
}

// CommitAttack parses input and, on success, replaces the attack spec.
// On failure the previous spec stays in effect.
func (s *Session) CommitAttack(input string) error {
	spec, err := notation.ParseAttack(input)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.attack = spec
	s.mu.Unlock()
	return nil
}

// CommitDamage parses input and, on success, replaces the damage spec.
// On failure the previous spec stays in effect.
func (s *Session) CommitDamage(input string) error {
	spec, err := notation.ParseDamage(input)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.damage = spec
	s.mu.Unlock()
	return nil
}

// Attack returns the current attack spec.
func (s *Session) Attack() roll.AttackSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attack
}

// Damage returns the current damage spec.
func (s *Session) Damage() roll.DamageSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.damage
}

// RollAttack rolls the current attack spec.
func (s *Session) RollAttack(advantage, disadvantage bool) roll.AttackResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := s.defaults
	opts.Advantage = advantage
	opts.Disadvantage = disadvantage
	return roll.RollToHit(s.src, s.attack, opts)
}

// RollDamage rolls the current damage spec.
func (s *Session) RollDamage(critical bool) (roll.DamageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return roll.RollDamage(s.src, s.damage, critical)
}
