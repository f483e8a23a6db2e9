// Package ratelimit provides the per-connection signaling message rate
// limit. One bucket per transport; not safe for concurrent use.
package ratelimit

import "time"

// Bucket is a token bucket that refills at a fixed rate of tokens per
// second up to its capacity. The caller supplies the current time, which
// keeps the refill math deterministic in tests.
type Bucket struct {
	rate     float64
	capacity float64
	tokens   float64
	last     time.Time
}

// NewBucket returns a bucket that allows bursts of up to perSecond
// messages and sustains perSecond messages per second. perSecond <= 0
// disables limiting.
func NewBucket(perSecond int, now time.Time) *Bucket {
	rate := float64(perSecond)
	return &Bucket{
		rate:     rate,
		capacity: rate,
		tokens:   rate,
		last:     now,
	}
}

// Allow consumes one token if available.
func (b *Bucket) Allow(now time.Time) bool {
	if b.rate <= 0 {
		return true
	}

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.rate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
