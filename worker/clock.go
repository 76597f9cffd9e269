package worker

import (
	"math/rand"
	"sync"
	"time"
)

// DelaySource draws one inter-post delay from a pacing band given in
// seconds. Implementations must be safe for concurrent use; tests substitute
// a deterministic source.
type DelaySource interface {
	Between(min, max float64) time.Duration
}

type uniformDelay struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewUniformDelay returns a DelaySource drawing uniformly from [min, max].
func NewUniformDelay() DelaySource {
	return &uniformDelay{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (u *uniformDelay) Between(min, max float64) time.Duration {
	if max < min {
		min, max = max, min
	}
	u.mu.Lock()
	f := u.rng.Float64()
	u.mu.Unlock()

	secs := min + f*(max-min)
	return time.Duration(secs * float64(time.Second))
}
