package ratelimit

import "time"

// Clock abstracts time so bucket refill can be driven manually in tests.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
