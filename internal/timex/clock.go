package timex

import (
	"sync"
	"time"
)

// Layout is the on-disk timestamp format: UTC with fixed-width microseconds,
// so that string order equals time order.
const Layout = "2006-01-02T15:04:05.000000Z"

// Clock hands out strictly increasing UTC timestamps. Two calls within the
// same microsecond still produce ordered values.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewClock returns a Clock reading time from now, or time.Now when nil.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Now returns the next timestamp, truncated to microseconds.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

// Stamp returns Now formatted with Layout.
func (c *Clock) Stamp() string {
	return Format(c.Now())
}

// Format renders t with Layout in UTC.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}
