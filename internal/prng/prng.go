// Package prng is a small linear congruential generator used to produce
// reproducible inputs for tests and benchmarks across platforms.
package prng

// Source is an LCG with the Numerical Recipes multiplier and increment.
type Source struct {
	state uint64
}

// New returns a Source seeded with seed.
func New(seed uint64) *Source {
	return &Source{state: seed}
}

// Next advances the generator and returns the new state.
func (p *Source) Next() uint64 {
	p.state = p.state*6364136223846793005 + 1442695040888963407
	return p.state
}

// Uint64N returns a value in [0, n). It returns 0 when n is 0.
func (p *Source) Uint64N(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	// high bits of an LCG are the well-mixed ones
	return (p.Next() >> 11) % n
}

// Bytes returns n bytes drawn uniformly from the first alphabet symbols
// (alphabet 0 or above 256 means all 256 byte values).
func (p *Source) Bytes(n, alphabet int) []byte {
	if alphabet <= 0 || alphabet > 256 {
		alphabet = 256
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(p.Uint64N(uint64(alphabet)))
	}
	return out
}

// Skewed returns n bytes where symbol i is drawn roughly twice as often as
// symbol i+1, giving code lengths that differ across the alphabet.
func (p *Source) Skewed(n, alphabet int) []byte {
	if alphabet <= 0 || alphabet > 256 {
		alphabet = 256
	}
	out := make([]byte, n)
	for i := range out {
		sym := 0
		for sym < alphabet-1 && p.Next()>>63 == 1 {
			sym++
		}
		out[i] = byte(sym)
	}
	return out
}

// Shuffle performs an in-place Fisher-Yates shuffle.
func (p *Source) Shuffle(b []byte) {
	for i := len(b) - 1; i > 0; i-- {
		j := int(p.Uint64N(uint64(i + 1)))
		b[i], b[j] = b[j], b[i]
	}
}
