package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Ryuya-dot-com/SelfPacedReading/internal/models"
	"github.com/Ryuya-dot-com/SelfPacedReading/internal/sequence"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the explicit screen/state enumeration. Every transition is keyed
// on (current state, signal); a signal that is not meaningful in the current
// state is ignored.
type State string

const (
	StateSetup            State = "setup"
	StateInstructions     State = "instructions"
	StatePracticeIntro    State = "practiceIntro"
	StatePracticeFeedback State = "practiceFeedback"
	StateMainIntro        State = "mainIntro"
	StateBreakFix         State = "breakFix"
	StateBreak            State = "break"
	StateReading          State = "reading"
	StateQuestion         State = "question"
	StateDone             State = "done"
)

// Valid binary-choice responses. Anything else received in the question state
// is absorbed without a state change or a logged row.
const (
	AnswerYes = "Yes"
	AnswerNo  = "No"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Config carries the machine's run-time knobs.
type Config struct {
	// BreakFixation is how long the non-interactive fixation cross is shown
	// when a break starts. The run resumes interactivity afterwards.
	BreakFixation time.Duration
	// Clock is the time source; nil means time.Now. Tests inject their own.
	Clock func() time.Time
}

// Feedback is what the practice feedback screen shows after an answer.
type Feedback struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correctAnswer"`
}

// Progress reports main-phase completion, shown on the break screen.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Result is the one-shot hand-off of a finalized run to the export
// collaborator.
type Result struct {
	RunID      string
	Assignment sequence.Assignment
	StartedAt  time.Time
	FinishedAt time.Time
	Aborted    bool
	Rows       []models.EventRow
	Summary    Summary
}

// Machine drives one participant through the practice → main → break → done
// protocol, emitting exactly one event row per token reveal and per question
// answer. All transitions happen synchronously under the machine's lock; the
// only asynchronous suspension point is the break-fixation timer, which is
// cancelled and replaced whenever a new break begins.
type Machine struct {
	mu  sync.Mutex
	log *zap.Logger

	breakFixation time.Duration
	clock         func() time.Time

	seq *sequence.Sequence

	state State
	phase string

	runID         string
	mainIndex     int
	practiceIndex int
	tokenIndex    int
	current       *models.Item
	currentHasQ   bool

	runStarted    bool
	runStart      time.Time
	tokenStart    time.Time
	questionStart time.Time

	events    *Log
	feedback  *Feedback
	summary   *Summary
	finalized bool
	unsynced  bool
	pending   *Result

	breakTimer *time.Timer
	breakEpoch int
}

// NewMachine returns a machine in the setup state with no sequence installed.
func NewMachine(cfg Config, log *zap.Logger) *Machine {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	fixation := cfg.BreakFixation
	if fixation <= 0 {
		fixation = 3 * time.Second
	}
	return &Machine{
		log:           log,
		breakFixation: fixation,
		clock:         clock,
		state:         StateSetup,
		phase:         models.PhaseIdle,
		events:        &Log{},
		mainIndex:     -1,
		practiceIndex: -1,
		tokenIndex:    -1,
	}
}

// Install atomically replaces the machine's sequence and resets every
// pointer, the event log, and any pending break timer. It is called when
// identity input produces a (re)built sequence; a partial rebuild is never
// possible because the whole run state is discarded together.
func (m *Machine) Install(seq *sequence.Sequence) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopBreakTimer()
	m.seq = seq
	m.state = StateSetup
	m.phase = models.PhaseIdle
	m.runID = uuid.NewString()
	m.mainIndex = -1
	m.practiceIndex = -1
	m.tokenIndex = -1
	m.current = nil
	m.currentHasQ = false
	m.runStarted = false
	m.events = &Log{}
	m.feedback = nil
	m.summary = nil
	m.finalized = false
	m.unsynced = false
	m.pending = nil

	m.log.Info("sequence installed",
		zap.String("run_id", m.runID),
		zap.String("list", seq.Assignment.List),
		zap.Uint32("seed", seq.Assignment.Seed),
		zap.Int("main_trials", len(seq.Main)),
		zap.Int("practice_trials", len(seq.Practice)),
	)
}

// Proceed moves from the setup screen to the instructions. Ignored unless a
// sequence is installed and the machine is in setup.
func (m *Machine) Proceed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq == nil || m.state != StateSetup {
		return
	}
	m.state = StateInstructions
}

// BeginPractice starts the practice phase from the instructions screen. The
// session clock starts here.
func (m *Machine) BeginPractice() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq == nil || m.state != StateInstructions {
		return
	}
	m.phase = models.PhasePractice
	m.practiceIndex = -1
	m.ensureRunStarted()
	m.state = StatePracticeIntro
}

// Advance is the single external advance signal (spacebar). Its meaning
// depends on the current state: it begins a sentence from a fixation screen,
// reveals the next token while reading, dismisses practice feedback, and
// resumes from a break. During the break fixation and in states that do not
// react to it, it is absorbed.
func (m *Machine) Advance() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq == nil {
		return
	}

	switch m.state {
	case StatePracticeFeedback:
		m.feedback = nil
		m.nextPracticeTrial()

	case StatePracticeIntro:
		if m.practiceIndex < 0 {
			m.nextPracticeTrial()
			if m.state != StatePracticeIntro {
				return
			}
		}
		m.beginSentence(m.seq.Practice[m.practiceIndex], m.seq.PracticeHasQ[m.practiceIndex])

	case StateBreak:
		m.state = StateMainIntro

	case StateMainIntro:
		if m.mainIndex < 0 {
			m.nextMainTrial()
			if m.state != StateMainIntro {
				return
			}
		}
		it := m.seq.Main[m.mainIndex]
		m.beginSentence(it, m.seq.HasQuestion[it.ItemID])

	case StateReading:
		m.advanceToken()
	}
}

// Answer resolves the question screen with a binary choice. A malformed or
// out-of-range response is ignored: no state change, no logged row.
func (m *Machine) Answer(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq == nil || m.state != StateQuestion {
		return
	}
	response = strings.TrimSpace(response)
	if response != AnswerYes && response != AnswerNo {
		return
	}

	correct := m.logQuestion(response)
	if m.phase == models.PhasePractice {
		m.feedback = &Feedback{Correct: correct, CorrectAnswer: m.current.CorrectAnswer}
		m.state = StatePracticeFeedback
		return
	}
	m.nextMainTrial()
}

// Abort finalizes the run immediately, preserving every row logged so far.
// Confirmation is the UI's concern; the signal itself is unconditional.
func (m *Machine) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq == nil || m.finalized {
		return
	}
	m.finalize(true)
}

// ConsumeResult returns the finalized run exactly once, for export and
// persistence. Subsequent calls return nil until another run finalizes.
func (m *Machine) ConsumeResult() *Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := m.pending
	m.pending = nil
	return res
}

// MarkExported clears the unsynced flag once the event log has been written
// out.
func (m *Machine) MarkExported() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsynced = false
}

// Unsynced reports whether the log holds rows that have not been exported
// yet. The surrounding UI uses it to warn before destructive navigation.
func (m *Machine) Unsynced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unsynced
}

// State returns the current machine state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Rows returns the event log rows collected so far.
func (m *Machine) Rows() []models.EventRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events.Rows()
}

// Assignment returns the installed assignment; the bool is false before a
// sequence is installed.
func (m *Machine) Assignment() (sequence.Assignment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq == nil {
		return sequence.Assignment{}, false
	}
	return m.seq.Assignment, true
}

// Snapshot is the externally visible machine state, shaped for the UI.
type Snapshot struct {
	State        State     `json:"state"`
	Phase        string    `json:"phase"`
	RunID        string    `json:"runId,omitempty"`
	Token        string    `json:"token,omitempty"`
	Question     string    `json:"question,omitempty"`
	Feedback     *Feedback `json:"feedback,omitempty"`
	Progress     *Progress `json:"progress,omitempty"`
	TrialsTotal  int       `json:"trialsTotal"`
	Breaks       int       `json:"breaks"`
	EventCount   int       `json:"eventCount"`
	Unsynced     bool      `json:"unsynced"`
	Summary      *Summary  `json:"summary,omitempty"`
	AssignedList string    `json:"assignedList,omitempty"`
	Seed         uint32    `json:"seed"`
}

// Snapshot returns the current externally visible state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		State:      m.state,
		Phase:      m.phase,
		RunID:      m.runID,
		EventCount: m.events.Len(),
		Unsynced:   m.unsynced,
	}
	if m.seq != nil {
		s.TrialsTotal = len(m.seq.Main)
		s.Breaks = len(sequence.BlockSizes(len(m.seq.Main), m.seq.BlockSize)) - 1
		s.AssignedList = m.seq.Assignment.List
		s.Seed = m.seq.Assignment.Seed
	}
	if m.state == StateReading && m.current != nil {
		s.Token = m.current.Tokens[m.tokenIndex]
	}
	if m.state == StateQuestion && m.current != nil {
		s.Question = m.current.Question
	}
	if m.state == StatePracticeFeedback {
		s.Feedback = m.feedback
	}
	if m.state == StateBreak {
		s.Progress = &Progress{Completed: m.mainIndex, Total: len(m.seq.Main)}
	}
	if m.state == StateDone {
		s.Summary = m.summary
	}
	return s
}

// --- internal transitions; callers hold the lock ---

func (m *Machine) ensureRunStarted() {
	if !m.runStarted {
		m.runStarted = true
		m.runStart = m.clock()
	}
}

func (m *Machine) beginSentence(it *models.Item, hasQ bool) {
	m.current = it
	// A trial without question text is never question-bearing, whatever the
	// sequence flags say.
	m.currentHasQ = hasQ && it.Question != ""
	m.tokenIndex = 0
	m.tokenStart = m.clock()
	m.state = StateReading
}

func (m *Machine) trialIndex() int {
	if m.phase == models.PhasePractice {
		return m.practiceIndex
	}
	return m.mainIndex
}

func (m *Machine) advanceToken() {
	m.logToken()

	m.tokenIndex++
	if m.tokenIndex >= len(m.current.Tokens) {
		if m.currentHasQ {
			m.questionStart = m.clock()
			m.state = StateQuestion
			return
		}
		if m.phase == models.PhasePractice {
			m.nextPracticeTrial()
		} else {
			m.nextMainTrial()
		}
		return
	}
	m.tokenStart = m.clock()
}

func (m *Machine) nextPracticeTrial() {
	m.practiceIndex++
	m.tokenIndex = -1
	if m.practiceIndex >= len(m.seq.Practice) {
		m.phase = models.PhaseMain
		m.mainIndex = -1
		m.state = StateMainIntro
		return
	}
	m.state = StatePracticeIntro
}

func (m *Machine) nextMainTrial() {
	m.mainIndex++
	m.tokenIndex = -1
	if m.mainIndex >= len(m.seq.Main) {
		m.finalize(false)
		return
	}
	if m.mainIndex > 0 && m.mainIndex%m.seq.BlockSize == 0 {
		m.startBreak()
		return
	}
	m.state = StateMainIntro
}

func (m *Machine) startBreak() {
	m.stopBreakTimer()
	m.state = StateBreakFix
	m.breakEpoch++
	epoch := m.breakEpoch
	m.breakTimer = time.AfterFunc(m.breakFixation, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// A newer break or a finalize may have superseded this timer.
		if m.breakEpoch == epoch && m.state == StateBreakFix {
			m.state = StateBreak
		}
	})
}

func (m *Machine) stopBreakTimer() {
	if m.breakTimer != nil {
		m.breakTimer.Stop()
		m.breakTimer = nil
	}
	m.breakEpoch++
}

func (m *Machine) finalize(aborted bool) {
	if m.finalized {
		return
	}
	m.stopBreakTimer()
	// Aborting before the first event must still record a real start time.
	m.ensureRunStarted()
	summary := m.events.MainQuestionSummary()
	m.summary = &summary
	m.finalized = true
	m.state = StateDone
	m.pending = &Result{
		RunID:      m.runID,
		Assignment: m.seq.Assignment,
		StartedAt:  m.runStart,
		FinishedAt: m.clock(),
		Aborted:    aborted,
		Rows:       m.events.Rows(),
		Summary:    summary,
	}

	m.log.Info("session finalized",
		zap.String("run_id", m.runID),
		zap.Bool("aborted", aborted),
		zap.Int("events", m.events.Len()),
		zap.String("accuracy", fmt.Sprintf("%d/%d", summary.Correct, summary.Asked)),
	)
}

func (m *Machine) baseRow(now time.Time) models.EventRow {
	m.ensureRunStarted()
	a := m.seq.Assignment
	return models.EventRow{
		TsISO:           now.UTC().Format(isoMillis),
		TRelMs:          now.Sub(m.runStart).Milliseconds(),
		ParticipantID:   a.ID,
		ParticipantName: a.Name,
		AssignedList:    a.List,
		List:            a.List,
		SeedUsed:        a.Seed,
		Phase:           m.phase,
		TrialIndex:      m.trialIndex(),
		ItemID:          m.current.ItemID,
		SetID:           m.current.SetID,
		ItemType:        m.current.Type,
		Structure:       m.current.Structure,
		Condition:       m.current.Condition,
		HasQuestion:     m.currentHasQ,
		Question:        m.current.Question,
		CorrectAnswer:   m.current.CorrectAnswer,
	}
}

func (m *Machine) logToken() {
	now := m.clock()
	row := m.baseRow(now)
	row.Event = models.EventToken
	idx := m.tokenIndex
	token := m.current.Tokens[idx]
	rt := now.Sub(m.tokenStart).Milliseconds()
	row.TokenIndex = &idx
	row.Token = &token
	row.RtMs = &rt
	m.events.Append(row)
	m.unsynced = true
}

func (m *Machine) logQuestion(response string) bool {
	now := m.clock()
	row := m.baseRow(now)
	row.Event = models.EventQuestion
	rt := now.Sub(m.questionStart).Milliseconds()
	correct := response == m.current.CorrectAnswer
	row.RtMs = &rt
	row.Response = &response
	row.Correct = &correct
	m.events.Append(row)
	m.unsynced = true
	return correct
}
