package provider

import (
	"math/rand"
	"sync"
	"time"

	"github.com/jpillora/backoff"
)

// ReconnectBackoff computes min(initial * 2^attempt, max) plus uniform
// jitter in [0, initial), so a fleet of clients losing the same venue at
// the same moment does not redial in lockstep.
type ReconnectBackoff struct {
	policy  *backoff.Backoff
	initial time.Duration

	mu     sync.Mutex
	jitter *rand.Rand
}

func NewReconnectBackoff(initial, max time.Duration) *ReconnectBackoff {
	return NewReconnectBackoffWithSeed(initial, max, time.Now().UnixNano())
}

// NewReconnectBackoffWithSeed fixes the jitter source, making delays
// reproducible in tests.
func NewReconnectBackoffWithSeed(initial, max time.Duration, seed int64) *ReconnectBackoff {
	if initial <= 0 {
		initial = time.Second
	}
	if max < initial {
		max = initial
	}
	return &ReconnectBackoff{
		policy: &backoff.Backoff{
			Min:    initial,
			Max:    max,
			Factor: 2,
			Jitter: false,
		},
		initial: initial,
		jitter:  rand.New(rand.NewSource(seed)),
	}
}

// Delay returns the delay for the given zero-based attempt.
func (b *ReconnectBackoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := b.policy.ForAttempt(float64(attempt))

	b.mu.Lock()
	j := time.Duration(b.jitter.Int63n(int64(b.initial)))
	b.mu.Unlock()

	return base + j
}

// Initial exposes the pre-jitter floor, used by tests asserting bounds.
func (b *ReconnectBackoff) Initial() time.Duration {
	return b.initial
}
