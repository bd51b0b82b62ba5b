package server

import (
	"sync"
	"time"

	"github.com/lawnchairsociety/combatroller/internal/throttle"
)

// IPThrottle applies the roll throttle per client IP for the stateless
// JSON API, where there is no connection to hang a tracker on.
type IPThrottle struct {
	mu              sync.Mutex
	config          throttle.Config
	trackers        map[string]*throttle.Tracker
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewIPThrottle creates the limiter and starts its cleanup goroutine.
func NewIPThrottle(cfg throttle.Config) *IPThrottle {
	it := &IPThrottle{
		config:          cfg,
		trackers:        make(map[string]*throttle.Tracker),
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go it.cleanupLoop()

	return it
}

// Check records a roll for ip.
func (it *IPThrottle) Check(ip string) throttle.CheckResult {
	it.mu.Lock()
	tracker, ok := it.trackers[ip]
	if !ok {
		tracker = throttle.NewTracker(it.config)
		it.trackers[ip] = tracker
	}
	it.mu.Unlock()

	return tracker.Check()
}

// Len returns how many IPs are being tracked.
func (it *IPThrottle) Len() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return len(it.trackers)
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (it *IPThrottle) Stop() {
	it.stopOnce.Do(func() {
		close(it.stopCleanup)
	})
}

func (it *IPThrottle) cleanupLoop() {
	ticker := time.NewTicker(it.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-it.stopCleanup:
			return
		case <-ticker.C:
			it.cleanup()
		}
	}
}

// cleanup forgets IPs with no rolls left inside the window.
func (it *IPThrottle) cleanup() {
	it.mu.Lock()
	defer it.mu.Unlock()

	for ip, tracker := range it.trackers {
		if !tracker.Active() {
			delete(it.trackers, ip)
		}
	}
}
