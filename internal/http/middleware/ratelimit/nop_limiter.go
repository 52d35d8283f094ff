package ratelimit

// NopLimiter admits every request. Used when rate limiting is disabled
// through configuration.
type NopLimiter struct{}

func (NopLimiter) Allow(string) bool { return true }

// NewNopLimiter returns a Limiter that never blocks.
func NewNopLimiter() Limiter { return NopLimiter{} }
