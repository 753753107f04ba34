package backoff

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestDelay(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		attempt int
		wantMin time.Duration
		wantMax time.Duration
	}{
		{"fixed", Policy{Name: Fixed, Base: 5 * time.Second, Max: 10 * time.Second}, 100, 5 * time.Second, 5 * time.Second},
		{"fixed base exceeds max", Policy{Name: Fixed, Base: 20 * time.Second, Max: 10 * time.Second}, 0, 10 * time.Second, 10 * time.Second},
		{"linear", Policy{Name: Linear, Base: time.Second, Max: 10 * time.Second}, 3, 3 * time.Second, 3 * time.Second},
		{"linear zero attempt", Policy{Name: Linear, Base: time.Second, Max: 10 * time.Second}, 0, time.Second, time.Second},
		{"linear capped", Policy{Name: Linear, Base: time.Second, Max: 10 * time.Second}, 50, 10 * time.Second, 10 * time.Second},
		{"exponential", Policy{Name: Exponential, Base: time.Second, Max: time.Minute}, 3, 8 * time.Second, 8 * time.Second},
		{"exponential capped", Policy{Name: Exponential, Base: time.Second, Max: 5 * time.Second}, 10, 5 * time.Second, 5 * time.Second},
		{"full jitter", Policy{Name: ExpFullJitter, Base: time.Second, Max: time.Minute}, 2, 0, 4 * time.Second},
		{"unknown is full jitter", Policy{Name: "other", Base: time.Second, Max: time.Minute}, 2, 0, 4 * time.Second},
		{"zero base defaults to 1s", Policy{Name: Fixed}, 0, time.Second, time.Second},
		{"negative attempt", Policy{Name: Exponential, Base: time.Second, Max: time.Minute}, -3, time.Second, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy.Delay(tt.attempt, rand.New(rand.NewSource(42)))
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("Delay(%d) = %v, want in [%v, %v]", tt.attempt, got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestDelayNilRng(t *testing.T) {
	p := Policy{Name: ExpFullJitter, Base: time.Second, Max: time.Minute}
	if got := p.Delay(1, nil); got < 0 || got > 2*time.Second {
		t.Errorf("Delay with nil rng = %v", got)
	}
}

func TestRetry(t *testing.T) {
	p := Policy{Name: Fixed, Base: time.Millisecond, Max: time.Millisecond, Attempts: 4}
	calls := 0
	err := Retry(context.Background(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("Retry() = %v after %d calls, want nil after 3", err, calls)
	}

	calls = 0
	boom := errors.New("down")
	err = Retry(context.Background(), p, func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 4 {
		t.Fatalf("Retry() = %v after %d calls, want %v after 4", err, calls, boom)
	}
}

func TestRetryStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Name: Fixed, Base: time.Hour, Max: time.Hour, Attempts: 10}
	calls := 0
	err := Retry(ctx, p, func(context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	})
	if err == nil || calls != 1 {
		t.Fatalf("Retry() = %v after %d calls", err, calls)
	}
}

func TestRetryZeroAttempts(t *testing.T) {
	calls := 0
	_ = Retry(context.Background(), Policy{}, func(context.Context) error {
		calls++
		return nil
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestKnown(t *testing.T) {
	for _, name := range []string{Fixed, Linear, Exponential, ExpFullJitter} {
		if !Known(name) {
			t.Errorf("Known(%q) = false", name)
		}
	}
	if Known("random") || Known("") {
		t.Error("Known accepted an unknown policy name")
	}
}
