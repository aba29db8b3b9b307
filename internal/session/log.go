package session

import (
	"math"

	"github.com/Ryuya-dot-com/SelfPacedReading/internal/models"
)

// Log is the append-only experimental record for one run. Rows are never
// mutated or reordered after being appended.
type Log struct {
	rows []models.EventRow
}

// Append adds one row to the log.
func (l *Log) Append(row models.EventRow) {
	l.rows = append(l.rows, row)
}

// Rows returns the logged rows in append order. Callers must treat the slice
// as read-only.
func (l *Log) Rows() []models.EventRow {
	return l.rows
}

// Len returns the number of logged rows.
func (l *Log) Len() int {
	return len(l.rows)
}

// Summary is the end-of-run accuracy over answered main-phase questions.
type Summary struct {
	Asked    int     `json:"asked"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"` // percent, one decimal
}

// MainQuestionSummary computes accuracy over main-phase question rows that
// carry a response; unanswered rows are excluded.
func (l *Log) MainQuestionSummary() Summary {
	var s Summary
	for _, r := range l.rows {
		if r.Phase != models.PhaseMain || r.Event != models.EventQuestion || r.Response == nil {
			continue
		}
		s.Asked++
		if r.Correct != nil && *r.Correct {
			s.Correct++
		}
	}
	if s.Asked > 0 {
		s.Accuracy = math.Round(float64(s.Correct)/float64(s.Asked)*1000) / 10
	}
	return s
}
