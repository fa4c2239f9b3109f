// Package timer is a coarse wall clock for the hot paths: socket deadlines, keep-alive
// expiry and the Date header are computed on every request, while the precision they
// need is way below the cost of time.Now and time.Format.
package timer

import (
	"sync/atomic"
	"time"
)

// Resolution is how often the clock is updated. Deadlines and idle timeouts may thus be
// late by that much, which is fine for the durations of seconds.
const Resolution = 500 * time.Millisecond

// DateFormat is the IMF-fixdate layout the Date header is rendered with.
const DateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

type clock struct {
	millis atomic.Int64
	date   atomic.Pointer[string]
}

func (c *clock) tick(now time.Time) {
	c.millis.Store(now.UnixMilli())
	date := now.UTC().Format(DateFormat)
	c.date.Store(&date)
}

func (c *clock) now() time.Time {
	return time.UnixMilli(c.millis.Load())
}

func (c *clock) run(ticks <-chan time.Time) {
	for now := range ticks {
		c.tick(now)
	}
}

var std = newStd()

func newStd() *clock {
	c := new(clock)
	// ticked synchronously, so nobody ever observes the zero time
	c.tick(time.Now())
	go c.run(time.NewTicker(Resolution).C)

	return c
}

// Now returns the time of the last tick.
func Now() time.Time {
	return std.now()
}

// Since is like time.Since, but against the coarse clock.
func Since(t time.Time) time.Duration {
	return std.now().Sub(t)
}

// Date returns the current time rendered for the Date header.
func Date() string {
	return *std.date.Load()
}
