package cooldown

import (
	"math"
	"sync"
	"time"
)

// Gate tracks temporary per-service cooldowns. A service that hit a rate
// limit enters a cooldown window and is reported unavailable until the
// window elapses. Expiry is lazy: nothing runs in the background, state
// is cleared on the next query.
type Gate struct {
	mu       sync.Mutex
	services map[string]*state

	now func() time.Time
}

type state struct {
	mu     sync.Mutex
	until  time.Time
	reason string
}

// New creates an empty gate.
func New() *Gate {
	return &Gate{
		services: make(map[string]*state),
		now:      time.Now,
	}
}

func (g *Gate) get(service string) *state {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.services[service]
	if !ok {
		s = &state{}
		g.services[service] = s
	}
	return s
}

// IsAvailable reports whether the service is currently outside any
// cooldown window. An expired window is cleared as a side effect.
func (g *Gate) IsAvailable(service string) bool {
	s := g.get(service)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.until.IsZero() {
		return true
	}
	if !g.now().Before(s.until) {
		s.until = time.Time{}
		s.reason = ""
		return true
	}
	return false
}

// EnterCooldown puts the service into cooldown for the given number of
// seconds. If a cooldown is already active it is replaced, even by a
// shorter one.
func (g *Gate) EnterCooldown(service, reason string, seconds int) {
	s := g.get(service)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.until = g.now().Add(time.Duration(seconds) * time.Second)
	s.reason = reason
}

// Remaining returns the whole seconds left in the service's cooldown,
// rounded up, or 0 if none is active.
func (g *Gate) Remaining(service string) int {
	s := g.get(service)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.until.IsZero() {
		return 0
	}
	left := s.until.Sub(g.now())
	if left <= 0 {
		s.until = time.Time{}
		s.reason = ""
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

// Reason returns the message recorded when the service entered its
// current cooldown, or "" if the service is available.
func (g *Gate) Reason(service string) string {
	if g.IsAvailable(service) {
		return ""
	}
	s := g.get(service)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}
