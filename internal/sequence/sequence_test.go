package sequence

import (
	"testing"

	"github.com/Ryuya-dot-com/SelfPacedReading/internal/models"

	"github.com/stretchr/testify/require"
)

func makeBank(part, sub, fill int) *models.Bank {
	items := makeItems(part, sub, fill)
	bank := &models.Bank{
		Items: make([]models.Item, 0, len(items)),
		Lists: map[string][]string{"List1": {}, "List2": {}},
	}
	for i, it := range items {
		it.Question = "Did something happen?"
		it.CorrectAnswer = "Yes"
		bank.Items = append(bank.Items, *it)
		bank.Lists["List1"] = append(bank.Lists["List1"], it.ItemID)
		if i%2 == 0 {
			bank.Lists["List2"] = append(bank.Lists["List2"], it.ItemID)
		}
	}
	bank.Reindex()
	return bank
}

func TestBuild_MissingListFails(t *testing.T) {
	bank := makeBank(4, 4, 12)
	a := Assignment{Name: "Taro", ID: "P01", List: "List9", Seed: 1}
	_, err := Build(bank, a, DefaultParams())
	require.ErrorIs(t, err, models.ErrListNotFound)
}

func TestBuild_SingleBlockScenario(t *testing.T) {
	// 20 items on the assigned list: exactly one block, zero breaks.
	bank := makeBank(4, 4, 12)
	a := Assignment{Name: "Taro", ID: "P01", List: "List1", Seed: 12345}
	p := DefaultParams()
	seq, err := Build(bank, a, p)
	require.NoError(t, err)

	require.Len(t, seq.Main, 20)
	require.Equal(t, []int{20}, BlockSizes(len(seq.Main), seq.BlockSize))
	require.Len(t, seq.Practice, 8) // only 8 test items available
	require.Len(t, seq.PracticeHasQ, 8)
}

func TestBuild_IsDeterministic(t *testing.T) {
	bank := makeBank(8, 8, 29)
	a := Assignment{Name: "Taro", ID: "P01", List: "List1", Seed: 99}
	p := DefaultParams()

	s1, err := Build(bank, a, p)
	require.NoError(t, err)
	s2, err := Build(bank, a, p)
	require.NoError(t, err)

	ids := func(items []*models.Item) []string {
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = it.ItemID
		}
		return out
	}
	require.Equal(t, ids(s1.Main), ids(s2.Main))
	require.Equal(t, ids(s1.Practice), ids(s2.Practice))
	require.Equal(t, s1.HasQuestion, s2.HasQuestion)
	require.Equal(t, s1.PracticeHasQ, s2.PracticeHasQ)
}

func TestBuild_QuestionlessItemsNeverFlagged(t *testing.T) {
	// Bank whose items carry no question text at all: neither the main
	// allocation nor the practice pattern may mark anything.
	items := makeItems(4, 4, 12)
	bank := &models.Bank{Lists: map[string][]string{"List1": {}}}
	for _, it := range items {
		bank.Items = append(bank.Items, *it)
		bank.Lists["List1"] = append(bank.Lists["List1"], it.ItemID)
	}
	bank.Reindex()

	a := Assignment{Name: "Taro", ID: "P01", List: "List1", Seed: 12345}
	seq, err := Build(bank, a, DefaultParams())
	require.NoError(t, err)

	for id, q := range seq.HasQuestion {
		require.False(t, q, "item %s has no question text but was flagged", id)
	}
	for i, q := range seq.PracticeHasQ {
		require.False(t, q, "practice trial %d has no question text but was flagged", i)
	}
}

func TestBuild_NoPartialSequenceOnFailure(t *testing.T) {
	bank := makeBank(10, 10, 0)
	a := Assignment{Name: "Taro", ID: "P01", List: "List1", Seed: 1}
	p := DefaultParams()
	seq, err := Build(bank, a, p)
	require.ErrorIs(t, err, ErrRandomizeFailed)
	require.Nil(t, seq)
}

func TestSamplePractice_DoesNotRemoveFromMain(t *testing.T) {
	items := makeItems(10, 10, 25)
	al := NewAllocator()
	rng := NewPRNG(7)
	main, err := al.BuildMain(items, rng)
	require.NoError(t, err)
	before := len(main)

	practice := SamplePractice(main, 10, rng)
	require.Len(t, practice, 10)
	require.Len(t, main, before)

	// Every practice trial references an item that is still scheduled in the
	// main sequence; the duplication across phases is intentional.
	inMain := make(map[string]bool, len(main))
	for _, it := range main {
		inMain[it.ItemID] = true
	}
	for _, it := range practice {
		require.True(t, inMain[it.ItemID])
		require.True(t, it.IsTest(), "practice draws from test items only")
	}
}

func TestSamplePractice_DistinctTrials(t *testing.T) {
	items := makeItems(10, 10, 0)
	rng := NewPRNG(13)
	practice := SamplePractice(items, 10, rng)

	seen := map[string]bool{}
	for _, it := range practice {
		require.False(t, seen[it.ItemID], "item %s sampled twice", it.ItemID)
		seen[it.ItemID] = true
	}
}
