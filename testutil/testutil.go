package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Records returns n distinct record numbers in [0, limit), sorted
// ascending. It panics if n > limit.
func (r *RNG) Records(n, limit int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > limit {
		panic("testutil: more records requested than the range holds")
	}
	seen := make(map[int]struct{}, n)
	out := make([]int, 0, n)
	for len(out) < n {
		rec := r.rand.Intn(limit)
		if _, ok := seen[rec]; ok {
			continue
		}
		seen[rec] = struct{}{}
		out = append(out, rec)
	}
	sort.Ints(out)
	return out
}

// Values returns n distinct index values such as "value-0042". The
// values sort in generation order and contain no zero bytes, so they
// are safe as secondary index keys.
func (r *RNG) Values(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("value-%04d", i)
	}
	return out
}

// Shuffled returns a shuffled copy of records.
func (r *RNG) Shuffled(records []int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]int, len(records))
	copy(out, records)
	r.rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// ShuffledKeys returns a shuffled copy of keys.
func (r *RNG) ShuffledKeys(keys [][]byte) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]byte, len(keys))
	copy(out, keys)
	r.rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) is proportional to 1/k^s where s is the skew
// parameter. Real index fields are distributed like this: a few values
// own most of the records.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}

// ZipfValues assigns one of valueCount index values to each of n
// records with Zipfian skew. Returns the value index per record.
func (r *RNG) ZipfValues(n, valueCount int, s float64) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]int, n)
	for i := range out {
		out[i] = r.zipfLocked(valueCount, s)
	}
	return out
}
