package sequence

import (
	"errors"
	"fmt"

	"github.com/Ryuya-dot-com/SelfPacedReading/internal/models"
)

// ErrRandomizeFailed is returned when no block ordering satisfying the
// adjacency constraint could be found within the retry budget. This is a
// configuration problem (too few fillers for the block composition), not a
// transient one.
var ErrRandomizeFailed = errors.New("block randomization failed under adjacency constraint")

// Allocator lays a resolved item list out into blocks. Each block carries a
// proportional mix of the three item pools and never more than
// MaxConsecutiveTests test items in a row.
type Allocator struct {
	BlockSize           int
	MaxConsecutiveTests int
	Retries             int
}

// Sequencing defaults, matching the published design: 20-trial blocks, at
// most 3 test items back to back, 50 reshuffle attempts per block.
const (
	DefaultBlockSize           = 20
	DefaultMaxConsecutiveTests = 3
	DefaultRetries             = 50
)

// NewAllocator returns an allocator with the default constraints.
func NewAllocator() *Allocator {
	return &Allocator{
		BlockSize:           DefaultBlockSize,
		MaxConsecutiveTests: DefaultMaxConsecutiveTests,
		Retries:             DefaultRetries,
	}
}

// BlockSizes splits a total into consecutive block lengths: full blocks of
// blockSize with the final block holding the remainder.
func BlockSizes(total, blockSize int) []int {
	var sizes []int
	for remaining := total; remaining > 0; remaining -= blockSize {
		size := blockSize
		if remaining < size {
			size = remaining
		}
		sizes = append(sizes, size)
	}
	return sizes
}

type pools struct {
	part []*models.Item
	sub  []*models.Item
	fill []*models.Item
}

func partition(items []*models.Item) *pools {
	p := &pools{}
	for _, it := range items {
		switch it.Type {
		case models.TypePartitive:
			p.part = append(p.part, it)
		case models.TypeSubcat:
			p.sub = append(p.sub, it)
		default:
			p.fill = append(p.fill, it)
		}
	}
	return p
}

func (p *pools) clone() *pools {
	return &pools{
		part: append([]*models.Item(nil), p.part...),
		sub:  append([]*models.Item(nil), p.sub...),
		fill: append([]*models.Item(nil), p.fill...),
	}
}

func (p *pools) shuffle(rng *PRNG) {
	Shuffle(p.part, rng)
	Shuffle(p.sub, rng)
	Shuffle(p.fill, rng)
}

type counts struct {
	part, sub, fill int
}

func (c counts) total() int { return c.part + c.sub + c.fill }

// allocateCounts computes the per-pool target for one block, proportional to
// each pool's remaining size, using largest-remainder rounding: floor each
// target, clamp to what the pool still holds, hand leftover slots to the
// pools with the largest fractional remainders, then to any pool with
// capacity left.
func allocateCounts(remaining counts, blockSize int) counts {
	totalRem := remaining.total()
	if totalRem == 0 {
		return counts{}
	}

	type poolRef struct {
		desired   float64
		remaining int
		base      int
		frac      float64
	}
	refs := []*poolRef{
		{desired: float64(remaining.part) / float64(totalRem) * float64(blockSize), remaining: remaining.part},
		{desired: float64(remaining.sub) / float64(totalRem) * float64(blockSize), remaining: remaining.sub},
		{desired: float64(remaining.fill) / float64(totalRem) * float64(blockSize), remaining: remaining.fill},
	}

	assigned := 0
	for _, ref := range refs {
		ref.base = int(ref.desired)
		if ref.base > ref.remaining {
			ref.base = ref.remaining
		}
		ref.frac = ref.desired - float64(ref.base)
		assigned += ref.base
	}

	left := blockSize - assigned

	// Largest fractional remainder first; ties keep pool order (part, sub,
	// fill), as in the original allocation.
	order := []int{0, 1, 2}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && refs[order[j]].frac > refs[order[j-1]].frac; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	for _, idx := range order {
		if left <= 0 {
			break
		}
		give := refs[idx].remaining - refs[idx].base
		if give > left {
			give = left
		}
		refs[idx].base += give
		left -= give
	}
	for _, ref := range refs {
		if left <= 0 {
			break
		}
		give := ref.remaining - ref.base
		if give > left {
			give = left
		}
		ref.base += give
		left -= give
	}

	return counts{part: refs[0].base, sub: refs[1].base, fill: refs[2].base}
}

func pop(s *[]*models.Item) *models.Item {
	old := *s
	if len(old) == 0 {
		return nil
	}
	it := old[len(old)-1]
	*s = old[:len(old)-1]
	return it
}

// buildBlock fills one block position by position. At each position the
// eligible pools are the fillers (if any remain for this block) and the test
// pools (if any remain and the consecutive-test run is still under the
// limit). Returns nil when no pool is eligible, which sends the caller back
// to reshuffle and retry.
func (al *Allocator) buildBlock(p *pools, c counts, rng *PRNG) []*models.Item {
	consecutive := 0
	block := make([]*models.Item, 0, c.total())
	for i := c.total(); i > 0; i-- {
		var options []string
		if c.fill > 0 {
			options = append(options, "fill")
		}
		if c.part > 0 && consecutive < al.MaxConsecutiveTests {
			options = append(options, "part")
		}
		if c.sub > 0 && consecutive < al.MaxConsecutiveTests {
			options = append(options, "sub")
		}
		if len(options) == 0 {
			return nil
		}
		Shuffle(options, rng)

		var it *models.Item
		switch options[0] {
		case "fill":
			it = pop(&p.fill)
			c.fill--
			consecutive = 0
		case "part":
			it = pop(&p.part)
			c.part--
			consecutive++
		case "sub":
			it = pop(&p.sub)
			c.sub--
			consecutive++
		}
		if it == nil {
			return nil
		}
		block = append(block, it)
	}
	return block
}

// BuildMain shuffles the list's pools and lays every item out into blocks.
// Every input item is placed exactly once. A block whose fill dead-ends is
// retried with reshuffled pools up to the retry budget; exhausting the budget
// aborts the whole sequence.
func (al *Allocator) BuildMain(items []*models.Item, rng *PRNG) ([]*models.Item, error) {
	p := partition(items)
	p.shuffle(rng)

	var out []*models.Item
	for _, size := range BlockSizes(len(items), al.BlockSize) {
		target := allocateCounts(counts{part: len(p.part), sub: len(p.sub), fill: len(p.fill)}, size)

		var block []*models.Item
		for attempt := 0; attempt < al.Retries; attempt++ {
			working := p.clone()
			block = al.buildBlock(working, target, rng)
			if block != nil {
				p = working
				break
			}
			p.shuffle(rng)
		}
		if block == nil {
			return nil, fmt.Errorf("%w after %d attempts (block of %d: %d/%d/%d part/sub/fill)",
				ErrRandomizeFailed, al.Retries, size, target.part, target.sub, target.fill)
		}
		out = append(out, block...)
	}
	return out, nil
}
