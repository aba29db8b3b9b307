// Package export renders the event log as the fixed-column CSV that is the
// canonical artifact of a run.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/Ryuya-dot-com/SelfPacedReading/internal/models"
)

// Columns is the export header, in the exact order downstream analysis
// scripts expect.
var Columns = []string{
	"ts_iso", "t_rel_ms", "participant_id", "participant_name", "assigned_list", "list", "seed_used",
	"phase", "event", "trial_index", "item_id", "set_id", "item_type", "structure", "condition",
	"has_question", "token_index", "token", "rt_ms", "question", "correct_answer", "response", "correct",
}

// Render serializes rows into CSV bytes. Output is deterministic: rendering
// the same rows twice yields identical bytes.
func Render(rows []models.EventRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for i := range rows {
		if err := w.Write(record(&rows[i])); err != nil {
			return nil, fmt.Errorf("failed to write csv row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func record(r *models.EventRow) []string {
	return []string{
		r.TsISO,
		strconv.FormatInt(r.TRelMs, 10),
		r.ParticipantID,
		r.ParticipantName,
		r.AssignedList,
		r.List,
		strconv.FormatUint(uint64(r.SeedUsed), 10),
		r.Phase,
		r.Event,
		strconv.Itoa(r.TrialIndex),
		r.ItemID,
		r.SetID,
		r.ItemType,
		r.Structure,
		r.Condition,
		strconv.FormatBool(r.HasQuestion),
		intOrEmpty(r.TokenIndex),
		strOrEmpty(r.Token),
		int64OrEmpty(r.RtMs),
		r.Question,
		r.CorrectAnswer,
		strOrEmpty(r.Response),
		boolOrEmpty(r.Correct),
	}
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func intOrEmpty(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func int64OrEmpty(p *int64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(*p, 10)
}

func boolOrEmpty(p *bool) string {
	if p == nil {
		return ""
	}
	return strconv.FormatBool(*p)
}
