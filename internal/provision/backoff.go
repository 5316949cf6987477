package provision

import (
	"math/rand"
	"time"
)

// Backoff computes retry delays that double per attempt up to a cap, with
// jitter so simultaneous failures do not retry in lockstep.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns the wait before retry number attempt (1-based). The result
// is in [d, d+d/4] where d = min(Base*2^(attempt-1), Cap).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.Cap {
			d = b.Cap
			break
		}
	}
	if d > b.Cap {
		d = b.Cap
	}

	if d > 0 {
		d += time.Duration(rand.Int63n(int64(d)/4 + 1))
	}

	return d
}
