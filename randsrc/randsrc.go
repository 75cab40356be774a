// Package randsrc provides seeded uniform sources. A Source must not be
// shared between goroutines; replicas derive their own streams with Derive.
package randsrc

import "math/rand/v2"

// Source is a deterministic uniform source backed by PCG.
type Source struct {
	r *rand.Rand
}

// New creates a Source from a seed. Equal seeds give equal streams.
func New(seed uint64) *Source {
	return &Source{r: rand.New(rand.NewPCG(seed, seed^0xda942042e4dd58b5))}
}

// Float64 returns a draw in [0, 1).
func (s *Source) Float64() float64 {
	return s.r.Float64()
}

// Binaries returns n independent fair binary values.
func (s *Source) Binaries(n int) []int {
	x := make([]int, n)
	for i := range x {
		x[i] = int(s.r.Uint64() & 1)
	}

	return x
}

// Derive mixes a parent seed with a stream number into an independent seed,
// using the SplitMix64 finalizer.
func Derive(seed, stream uint64) uint64 {
	x := seed ^ (stream + 0x9e3779b97f4a7c15)
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb

	return x ^ (x >> 31)
}
