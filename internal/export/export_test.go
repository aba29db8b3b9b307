package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ryuya-dot-com/SelfPacedReading/internal/models"

	"github.com/stretchr/testify/require"
)

func sampleRows() []models.EventRow {
	idx := 0
	token := "with, comma"
	rt := int64(345)
	resp := "No"
	correct := false
	return []models.EventRow{
		{
			TsISO:           "2025-09-01T10:00:00.000Z",
			TRelMs:          1000,
			ParticipantID:   "P01",
			ParticipantName: `Taro "T" Yamada`,
			AssignedList:    "List1",
			List:            "List1",
			SeedUsed:        12345,
			Phase:           models.PhaseMain,
			Event:           models.EventToken,
			TrialIndex:      0,
			ItemID:          "item_001",
			SetID:           "s1",
			ItemType:        models.TypeFiller,
			HasQuestion:     true,
			TokenIndex:      &idx,
			Token:           &token,
			RtMs:            &rt,
			Question:        "Did it?",
			CorrectAnswer:   "Yes",
		},
		{
			TsISO:           "2025-09-01T10:00:01.000Z",
			TRelMs:          2000,
			ParticipantID:   "P01",
			ParticipantName: `Taro "T" Yamada`,
			AssignedList:    "List1",
			List:            "List1",
			SeedUsed:        12345,
			Phase:           models.PhaseMain,
			Event:           models.EventQuestion,
			TrialIndex:      0,
			ItemID:          "item_001",
			SetID:           "s1",
			ItemType:        models.TypeFiller,
			HasQuestion:     true,
			RtMs:            &rt,
			Question:        "Did it?",
			CorrectAnswer:   "Yes",
			Response:        &resp,
			Correct:         &correct,
		},
	}
}

func TestRender_HeaderAndShape(t *testing.T) {
	data, err := Render(sampleRows())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, strings.Join(Columns, ","), lines[0])

	// Token row: null question-side fields stay empty; question row: null
	// token-side fields stay empty.
	require.Contains(t, lines[1], "token")
	require.Contains(t, lines[2], ",question,")
	require.Contains(t, lines[2], ",No,false")
}

func TestRender_EscapesQuotesAndCommas(t *testing.T) {
	data, err := Render(sampleRows())
	require.NoError(t, err)
	s := string(data)
	require.Contains(t, s, `"Taro ""T"" Yamada"`)
	require.Contains(t, s, `"with, comma"`)
}

func TestRender_Idempotent(t *testing.T) {
	rows := sampleRows()
	a, err := Render(rows)
	require.NoError(t, err)
	b, err := Render(rows)
	require.NoError(t, err)
	require.Equal(t, a, b, "rendering the same rows twice must be byte-identical")
}

func TestRender_EmptyLogStillHasHeader(t *testing.T) {
	data, err := Render(nil)
	require.NoError(t, err)
	require.Equal(t, strings.Join(Columns, ",")+"\n", string(data))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct{ in, fallback, want string }{
		{"Taro Yamada", "anon", "Taro-Yamada"},
		{"  P/01<>  ", "id", "P-01"},
		{"---", "anon", "anon"},
		{"", "anon", "anon"},
		{"ok_name-1", "anon", "ok_name-1"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, SanitizeFilename(tc.in, tc.fallback), "in=%q", tc.in)
	}
}

func TestFilename_NoCollisionOnRapidExports(t *testing.T) {
	now := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	a := Filename("Taro", "P01", now)
	b := Filename("Taro", "P01", now)
	require.NotEqual(t, a, b, "same-second exports must not collide")
	require.True(t, strings.HasPrefix(a, "SelfPacedReading_Taro_P01_2025-09-01_100000_"))
	require.True(t, strings.HasSuffix(a, ".csv"))
}

func TestWrite_CreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	path, err := Write(dir, "Taro", "P01", sampleRows(), time.Now())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	want, err := Render(sampleRows())
	require.NoError(t, err)
	require.Equal(t, want, data)
}
