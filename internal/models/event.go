package models

// Event kinds. One row is appended per observable action: a token reveal or a
// question answer.
const (
	EventToken    = "token"
	EventQuestion = "question"
)

// Session phases as they appear in exported rows.
const (
	PhaseIdle     = "idle"
	PhasePractice = "practice"
	PhaseMain     = "main"
)

// EventRow is one record in the experimental log. Rows are append-only and
// never mutated or reordered after being logged. Pointer fields are null in
// the export when the field does not apply to the event kind (token fields on
// question rows and vice versa).
type EventRow struct {
	TsISO           string
	TRelMs          int64
	ParticipantID   string
	ParticipantName string
	AssignedList    string
	List            string
	SeedUsed        uint32
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
}
