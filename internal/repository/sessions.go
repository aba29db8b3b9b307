package repository

import (
	"fmt"

	"github.com/Ryuya-dot-com/SelfPacedReading/internal/models"
	"github.com/Ryuya-dot-com/SelfPacedReading/internal/session"

	"gorm.io/gorm"
)

// Store persists finalized runs.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SaveFinalized stores the session summary and all of its event rows in a
// single transaction, so a run is either fully recorded or not at all.
func (s *Store) SaveFinalized(res *session.Result) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		rec := models.SessionRecord{
			RunID:           res.RunID,
			ParticipantName: res.Assignment.Name,
			ParticipantID:   res.Assignment.ID,
			AssignedList:    res.Assignment.List,
			ListSource:      res.Assignment.ListSource,
			Seed:            res.Assignment.Seed,
			SeedSource:      res.Assignment.SeedSource,
			StartedAt:       res.StartedAt,
			FinishedAt:      res.FinishedAt,
			Aborted:         res.Aborted,
			QuestionsAsked:  res.Summary.Asked,
			QuestionsRight:  res.Summary.Correct,
			Accuracy:        res.Summary.Accuracy,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to save session record: %w", err)
		}

		if len(res.Rows) == 0 {
			return nil
		}
		events := make([]models.EventRecord, 0, len(res.Rows))
		for _, r := range res.Rows {
			events = append(events, models.EventRecord{
				SessionRecordID: rec.ID,
				TsISO:           r.TsISO,
				TRelMs:          r.TRelMs,
				Phase:           r.Phase,
				Event:           r.Event,
				TrialIndex:      r.TrialIndex,
				ItemID:          r.ItemID,
				SetID:           r.SetID,
				ItemType:        r.ItemType,
				Structure:       r.Structure,
				Condition:       r.Condition,
				HasQuestion:     r.HasQuestion,
				TokenIndex:      r.TokenIndex,
				Token:           r.Token,
				RtMs:            r.RtMs,
				Question:        r.Question,
				CorrectAnswer:   r.CorrectAnswer,
				Response:        r.Response,
				Correct:         r.Correct,
			})
		}
		if err := tx.CreateInBatches(events, 200).Error; err != nil {
			return fmt.Errorf("failed to save event rows: %w", err)
		}
		return nil
	})
}

// CountSessions returns the number of persisted runs, mostly for operator
// status output.
func (s *Store) CountSessions() (int64, error) {
	var n int64
	err := s.db.Model(&models.SessionRecord{}).Count(&n).Error
	return n, err
}
