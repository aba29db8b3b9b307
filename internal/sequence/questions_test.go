package sequence

import (
	"math"
	"testing"

	"github.com/Ryuya-dot-com/SelfPacedReading/internal/models"

	"github.com/stretchr/testify/require"
)

func countQuestions(half []*models.Item, hasQ map[string]bool) (test, fill int) {
	for _, it := range half {
		if !hasQ[it.ItemID] {
			continue
		}
		if it.IsTest() {
			test++
		} else {
			fill++
		}
	}
	return test, fill
}

func groupSizes(half []*models.Item) (test, fill int) {
	for _, it := range half {
		if it.IsTest() {
			test++
		} else {
			fill++
		}
	}
	return test, fill
}

func TestAssignQuestions_BalancedPerHalfAndGroup(t *testing.T) {
	for seed := uint32(1); seed <= 30; seed++ {
		// Lay out a 40-trial main sequence through the allocator so the type
		// mix per half varies with the seed. Every item carries a question so
		// the whole half is pickable.
		items := makeItems(8, 8, 24)
		for _, it := range items {
			it.Question = "Did it?"
			it.CorrectAnswer = "Yes"
		}
		al := NewAllocator()
		main, err := al.BuildMain(items, NewPRNG(seed))
		require.NoError(t, err)

		rng := NewPRNG(seed + 1000)
		hasQ := AssignQuestions(main, rng)
		require.Len(t, hasQ, len(main))

		mid := len(main) / 2
		for _, half := range [][]*models.Item{main[:mid], main[mid:]} {
			testN, fillN := groupSizes(half)
			testQ, fillQ := countQuestions(half, hasQ)
			require.Equal(t, int(math.Round(float64(testN)/2)), testQ, "seed %d", seed)
			require.Equal(t, int(math.Round(float64(fillN)/2)), fillQ, "seed %d", seed)
		}
	}
}

func TestAssignQuestions_SkipsQuestionlessItems(t *testing.T) {
	// makeItems leaves Question empty, so nothing here may be flagged.
	main := makeItems(0, 0, 10)
	hasQ := AssignQuestions(main, NewPRNG(1))
	require.Len(t, hasQ, len(main))
	for _, it := range main {
		require.False(t, hasQ[it.ItemID], "item %s has no question text but was flagged", it.ItemID)
	}
}

func TestAssignQuestions_MixedEligibility(t *testing.T) {
	// Fillers alternate between carrying a question and not; only the
	// carriers are pickable, and they stay balanced per half.
	main := makeItems(0, 0, 16)
	for i, it := range main {
		if i%2 == 0 {
			it.Question = "Did it?"
			it.CorrectAnswer = "Yes"
		}
	}

	for seed := uint32(1); seed <= 20; seed++ {
		hasQ := AssignQuestions(main, NewPRNG(seed))
		mid := len(main) / 2
		for _, half := range [][]*models.Item{main[:mid], main[mid:]} {
			eligible, flagged := 0, 0
			for _, it := range half {
				if it.Question == "" {
					require.False(t, hasQ[it.ItemID], "seed %d: item %s has no question text but was flagged", seed, it.ItemID)
					continue
				}
				eligible++
				if hasQ[it.ItemID] {
					flagged++
				}
			}
			require.Equal(t, int(math.Round(float64(eligible)/2)), flagged, "seed %d", seed)
		}
	}
}

func TestAssignQuestions_Deterministic(t *testing.T) {
	items := makeItems(4, 4, 12)
	for _, it := range items {
		it.Question = "Did it?"
		it.CorrectAnswer = "Yes"
	}
	al := NewAllocator()
	main, err := al.BuildMain(items, NewPRNG(5))
	require.NoError(t, err)

	q1 := AssignQuestions(main, NewPRNG(77))
	q2 := AssignQuestions(main, NewPRNG(77))
	require.Equal(t, q1, q2)
}

func TestPracticeQuestionPattern(t *testing.T) {
	rng := NewPRNG(11)
	pattern := PracticeQuestionPattern(10, 6, rng)
	require.Len(t, pattern, 10)

	marked := 0
	for _, q := range pattern {
		if q {
			marked++
		}
	}
	require.Equal(t, 6, marked)
}

func TestPracticeQuestionPattern_ShortRun(t *testing.T) {
	rng := NewPRNG(11)
	pattern := PracticeQuestionPattern(4, 6, rng)
	require.Len(t, pattern, 4)
	for _, q := range pattern {
		require.True(t, q)
	}
}
