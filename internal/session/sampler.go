package session

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Sampler draws uniform random samples without replacement. It is safe for
// concurrent use; with a fixed seed and the same call sequence the output
// is reproducible.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler seeds from the clock when seed is 0.
func NewSampler(seed uint64) *Sampler {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Sampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Sample returns up to k distinct ids from pool, skipping exclude. pool is
// not modified.
func (s *Sampler) Sample(pool []string, exclude map[string]struct{}, k int) []string {
	if k <= 0 {
		return []string{}
	}
	avail := make([]string, 0, len(pool))
	seen := make(map[string]struct{}, len(pool))
	for _, id := range pool {
		if _, skip := exclude[id]; skip {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		avail = append(avail, id)
	}
	k = min(k, len(avail))

	s.mu.Lock()
	defer s.mu.Unlock()
	// partial Fisher-Yates
	for i := 0; i < k; i++ {
		j := i + s.rng.IntN(len(avail)-i)
		avail[i], avail[j] = avail[j], avail[i]
	}
	return avail[:k]
}
