package sequence

import (
	"math"

	"github.com/Ryuya-dot-com/SelfPacedReading/internal/models"
)

// AssignQuestions decides which main trials carry a comprehension question.
// The sequence is split at its midpoint and each half is treated
// independently; within a half, round(n/2) of the test trials and round(n/2)
// of the filler trials are drawn by shuffle-then-take. An item with no
// question text is never pickable. The result is keyed by item identifier,
// which is unique within the main sequence. Overall incidence lands near 50%,
// balanced across categories and halves, independent of block boundaries.
func AssignQuestions(main []*models.Item, rng *PRNG) map[string]bool {
	out := make(map[string]bool, len(main))
	mid := len(main) / 2
	markHalf(main[:mid], rng, out)
	markHalf(main[mid:], rng, out)
	return out
}

func markHalf(half []*models.Item, rng *PRNG, out map[string]bool) {
	var testIdx, fillIdx []int
	for i, it := range half {
		if it.Question == "" {
			continue
		}
		if it.IsTest() {
			testIdx = append(testIdx, i)
		} else {
			fillIdx = append(fillIdx, i)
		}
	}

	picked := make(map[int]bool)
	for _, group := range [][]int{testIdx, fillIdx} {
		target := int(math.Round(float64(len(group)) / 2))
		shuffled := append([]int(nil), group...)
		Shuffle(shuffled, rng)
		for _, i := range shuffled[:target] {
			picked[i] = true
		}
	}

	for i, it := range half {
		out[it.ItemID] = picked[i]
	}
}

// PracticeQuestionPattern builds the per-position question flags for the
// practice phase: withQuestion true values, the rest false, shuffled. The
// standard run marks 6 of 10 practice trials.
func PracticeQuestionPattern(n, withQuestion int, rng *PRNG) []bool {
	pattern := make([]bool, n)
	for i := 0; i < n && i < withQuestion; i++ {
		pattern[i] = true
	}
	Shuffle(pattern, rng)
	return pattern
}
