package models

import "time"

// SessionRecord is the persisted summary of one finalized run.
type SessionRecord struct {
	ID              uint   `gorm:"primaryKey"`
	RunID           string `gorm:"uniqueIndex"`
	ParticipantName string
	ParticipantID   string
	AssignedList    string
	ListSource      string
	Seed            uint32
	SeedSource      string
	StartedAt       time.Time
	FinishedAt      time.Time
	Aborted         bool
	QuestionsAsked  int
	QuestionsRight  int
	Accuracy        float64
	CreatedAt       time.Time
}

// EventRecord is one persisted event-log row, flattened for storage. The CSV
// export stays the canonical record; these rows exist for lab bookkeeping and
// ad-hoc queries.
type EventRecord struct {
	ID              uint `gorm:"primaryKey"`
	SessionRecordID uint `gorm:"index"`
	TsISO           string
	TRelMs          int64
	Phase           string
	Event           string
	TrialIndex      int
	ItemID          string
	SetID           string
	ItemType        string
	Structure       string
	Condition       string
	HasQuestion     bool
	TokenIndex      *int
	Token           *string
	RtMs            *int64
	Question        string
	CorrectAnswer   string
	Response        *string
	Correct         *bool
	CreatedAt       time.Time
}
