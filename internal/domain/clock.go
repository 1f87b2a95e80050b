package domain

import "github.com/jonboulle/clockwork"

// clock stamps arrival times on streamed records. Tests freeze it via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the arrival time source. Pass nil to restore the real clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
