package sequence

// PRNG is the deterministic generator behind every randomized decision in a
// session: pool shuffles, block fills, question allocation, and practice
// sampling. It is a mulberry32 generator, so two instances created with the
// same seed produce identical draw sequences, which is what makes a
// participant's trial order reproducible from their (list, seed) pair.
type PRNG struct {
	state uint32
}

// NewPRNG returns a generator seeded with the given value.
func NewPRNG(seed uint32) *PRNG {
	return &PRNG{state: seed}
}

// Float64 returns the next draw in [0, 1).
func (r *PRNG) Float64() float64 {
	r.state += 0x6D2B79F5
	t := r.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296.0
}

// Intn returns a draw in [0, n) scaled from the next float draw.
func (r *PRNG) Intn(n int) int {
	return int(r.Float64() * float64(n))
}

// Shuffle permutes s in place with a Fisher-Yates walk over the generator.
func Shuffle[T any](s []T, r *PRNG) {
	for i := len(s) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
