// Package clock provides Clock implementations. Both clocks report time in
// the calendar's location so that $now components match the host calendar.
package clock

import (
	"sync"
	"time"

	"github.com/artpar/eventdsl/ports"
)

// Real returns the actual current time in Location (local time when nil).
type Real struct {
	Location *time.Location
}

// In returns a real clock reporting time in loc.
func In(loc *time.Location) Real {
	return Real{Location: loc}
}

// Now returns the current time.
func (r Real) Now() time.Time {
	if r.Location == nil {
		return time.Now()
	}
	return time.Now().In(r.Location)
}

// Fake provides a controllable clock for testing.
type Fake struct {
	mu      sync.RWMutex
	current time.Time
}

// NewFake creates a fake clock set to t.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Set moves the fake clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}

// Advance moves the fake clock by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

var (
	_ ports.Clock = Real{}
	_ ports.Clock = (*Fake)(nil)
)
