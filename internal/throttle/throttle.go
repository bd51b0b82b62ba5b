// Package throttle limits how often a single connection may roll dice.
package throttle

import (
	"sync"
	"time"

	"github.com/lawnchairsociety/combatroller/internal/config"
)

// Config holds roll throttle configuration
type Config struct {
	Enabled  bool          // Whether throttling is enabled
	MaxRolls int           // Max rolls allowed in the time window
	Window   time.Duration // Sliding window for rate limiting
}

// DefaultConfig returns sensible defaults for roll throttling
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		MaxRolls: 10,
		Window:   5 * time.Second,
	}
}

// FromServerConfig creates a Config from YAML-loaded values. Non-positive
// values keep the defaults.
func FromServerConfig(c config.ThrottleConfig) Config {
	cfg := DefaultConfig()
	cfg.Enabled = c.Enabled
	if c.MaxRolls > 0 {
		cfg.MaxRolls = c.MaxRolls
	}
	if c.WindowSeconds > 0 {
		cfg.Window = c.Window()
	}
	return cfg
}

// CheckResult contains the result of a throttle check
type CheckResult struct {
	Allowed     bool
	Reason      string
	WaitSeconds int // How long to wait before trying again (if not allowed)
}

// Tracker tracks roll activity for a single connection
type Tracker struct {
	mu        sync.Mutex
	config    Config
	rollTimes []time.Time
	now       func() time.Time
}

// NewTracker creates a new roll tracker with the given config
func NewTracker(config Config) *Tracker {
	return &Tracker{
		config:    config,
		rollTimes: make([]time.Time, 0, max(config.MaxRolls, 0)),
		now:       time.Now,
	}
}

// Check records a roll if the window has room for it.
func (t *Tracker) Check() CheckResult {
	if !t.config.Enabled {
		return CheckResult{Allowed: true}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.cleanup(now)

	if len(t.rollTimes) >= t.config.MaxRolls {
		remaining := t.rollTimes[0].Add(t.config.Window).Sub(now)
		return CheckResult{
			Allowed:     false,
			Reason:      "You're rolling too quickly. Please slow down.",
			WaitSeconds: int(remaining.Seconds()) + 1,
		}
	}

	t.rollTimes = append(t.rollTimes, now)
	return CheckResult{Allowed: true}
}

// cleanup drops roll times outside the window
func (t *Tracker) cleanup(now time.Time) {
	cutoff := now.Add(-t.config.Window)
	kept := t.rollTimes[:0]
	for _, rollTime := range t.rollTimes {
		if rollTime.After(cutoff) {
			kept = append(kept, rollTime)
		}
	}
	t.rollTimes = kept
}

// Reset clears all tracking data
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollTimes = t.rollTimes[:0]
}

// Active reports whether any roll is still inside the window.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanup(t.now())
	return len(t.rollTimes) > 0
}
