// Package clock provides an injectable time source.
//
// Code that reads the wall clock or waits on a timer takes a Clock instead of
// calling the time package directly. Production wiring passes Real(); tests
// pass a FakeClock and move time explicitly.
package clock

import "time"

// Clock abstracts the time operations used by token expiry and the wait loop.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// After returns a channel that receives the current time once d has
	// elapsed. If d <= 0 the channel receives immediately.
	After(d time.Duration) <-chan time.Time
	// Sleep blocks for at least d.
	Sleep(d time.Duration)
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
