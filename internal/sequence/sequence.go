package sequence

import (
	"github.com/Ryuya-dot-com/SelfPacedReading/internal/models"
)

// Params are the sequencing knobs, normally fed from configuration.
type Params struct {
	BlockSize           int
	MaxConsecutiveTests int
	Retries             int
	PracticeTrials      int
	PracticeQuestions   int
}

// DefaultParams returns the published design's values: 20-trial blocks, max 3
// consecutive test items, 50 retries, 10 practice trials of which 6 carry a
// question.
func DefaultParams() Params {
	return Params{
		BlockSize:           DefaultBlockSize,
		MaxConsecutiveTests: DefaultMaxConsecutiveTests,
		Retries:             DefaultRetries,
		PracticeTrials:      10,
		PracticeQuestions:   6,
	}
}

// Sequence is everything the state machine needs to run one participant: the
// assignment, the ordered main and practice trials, and the question flags
// for both phases.
type Sequence struct {
	Assignment   Assignment
	Main         []*models.Item
	Practice     []*models.Item
	HasQuestion  map[string]bool // main trials, keyed by item id
	PracticeHasQ []bool          // practice trials, keyed by position
	BlockSize    int
}

// Build constructs the full trial sequence for an assignment. The PRNG is
// seeded from the assignment and consumed in a fixed order (block layout,
// question allocation, practice sampling), so the whole sequence is a pure
// function of (bank, assignment, params). On any error no partial sequence is
// returned.
func Build(bank *models.Bank, a Assignment, p Params) (*Sequence, error) {
	items, err := bank.Resolve(a.List)
	if err != nil {
		return nil, err
	}

	rng := NewPRNG(a.Seed)
	al := &Allocator{
		BlockSize:           p.BlockSize,
		MaxConsecutiveTests: p.MaxConsecutiveTests,
		Retries:             p.Retries,
	}
	main, err := al.BuildMain(items, rng)
	if err != nil {
		return nil, err
	}

	hasQ := AssignQuestions(main, rng)
	practice := SamplePractice(main, p.PracticeTrials, rng)
	practiceQ := PracticeQuestionPattern(len(practice), p.PracticeQuestions, rng)
	for i, it := range practice {
		// An item with no question text is never question-bearing.
		if it.Question == "" {
			practiceQ[i] = false
		}
	}

	return &Sequence{
		Assignment:   a,
		Main:         main,
		Practice:     practice,
		HasQuestion:  hasQ,
		PracticeHasQ: practiceQ,
		BlockSize:    p.BlockSize,
	}, nil
}

// SamplePractice draws up to n practice trials from the non-filler portion of
// the built main sequence. Sampling does not remove items from the main
// sequence: the same underlying item may be presented in both phases, as two
// distinct trials. That duplication is intentional in the study design.
func SamplePractice(main []*models.Item, n int, rng *PRNG) []*models.Item {
	var pool []*models.Item
	for _, it := range main {
		if it.IsTest() {
			pool = append(pool, it)
		}
	}
	idxs := make([]int, len(pool))
	for i := range idxs {
		idxs[i] = i
	}
	Shuffle(idxs, rng)
	if n > len(idxs) {
		n = len(idxs)
	}
	practice := make([]*models.Item, 0, n)
	for _, i := range idxs[:n] {
		practice = append(practice, pool[i])
	}
	return practice
}
