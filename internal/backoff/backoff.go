// Package backoff retries startup probes against storage backends that may
// still be coming up.
package backoff

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy names accepted by Delay.
const (
	Fixed         = "fixed"
	Linear        = "linear"
	Exponential   = "exponential"
	ExpFullJitter = "exp_full_jitter"
)

// Known reports whether name is one of the policy names above.
func Known(name string) bool {
	switch name {
	case Fixed, Linear, Exponential, ExpFullJitter:
		return true
	}
	return false
}

type Policy struct {
	Name string
	Base time.Duration
	Max  time.Duration
	// Attempts is the total number of calls Retry makes, at least 1.
	Attempts int
}

// DefaultPolicy is used when the server waits for its storage backend.
var DefaultPolicy = Policy{Name: ExpFullJitter, Base: 250 * time.Millisecond, Max: 4 * time.Second, Attempts: 6}

// Delay returns the wait before retry number attempt (0-based). Unknown
// names behave like exp_full_jitter.
func (p Policy) Delay(attempt int, rng *rand.Rand) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	maxDelay := p.Max
	if maxDelay <= 0 {
		maxDelay = base
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	exp := time.Duration(math.Min(float64(base)*math.Pow(2, float64(attempt)), float64(maxDelay)))
	switch p.Name {
	case Fixed:
		return min(base, maxDelay)
	case Linear:
		return min(base*time.Duration(max(1, attempt)), maxDelay)
	case Exponential:
		return exp
	default:
		if exp <= 0 {
			return 0
		}
		return time.Duration(rng.Int63n(int64(exp) + 1))
	}
}

// Retry calls fn until it succeeds, the attempts are used up or ctx ends.
// The last error of fn is returned.
func Retry(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := max(1, p.Attempts)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		timer := time.NewTimer(p.Delay(i, rng))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
