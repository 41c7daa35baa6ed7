package http

import (
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter caps inbound realtime messages for one connection.
type rateLimiter struct {
	limiter *rate.Limiter
}

// newRateLimiter allows perMinute messages per minute with a burst of a quarter of that.
// A non-positive limit disables limiting.
func newRateLimiter(perMinute int) *rateLimiter {
	if perMinute <= 0 {
		return &rateLimiter{}
	}
	burst := perMinute / 4
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limiter == nil {
		return true
	}
	return r.limiter.Allow()
}
