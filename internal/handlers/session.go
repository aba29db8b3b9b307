package handlers

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Ryuya-dot-com/SelfPacedReading/internal/config"
	"github.com/Ryuya-dot-com/SelfPacedReading/internal/export"
	"github.com/Ryuya-dot-com/SelfPacedReading/internal/models"
	"github.com/Ryuya-dot-com/SelfPacedReading/internal/repository"
	"github.com/Ryuya-dot-com/SelfPacedReading/internal/sequence"
	"github.com/Ryuya-dot-com/SelfPacedReading/internal/session"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const runCookieKey = "runID"

// SessionHandler owns the single active run: the loaded item bank, the state
// machine, and the export path. One participant at a time; installing a new
// identity replaces the previous run wholesale.
type SessionHandler struct {
	log       *zap.Logger
	store     *repository.Store // nil disables persistence
	exportDir string
	params    sequence.Params
	machine   *session.Machine

	mu       sync.Mutex
	bank     *models.Bank
	bankPath string
	bankErr  error
}

func NewSessionHandler(log *zap.Logger, store *repository.Store, cfg config.ExperimentConfig) *SessionHandler {
	params := sequence.Params{
		BlockSize:           cfg.BlockSize,
		MaxConsecutiveTests: cfg.MaxConsecutiveTests,
		Retries:             cfg.AllocationRetries,
		PracticeTrials:      cfg.PracticeTrials,
		PracticeQuestions:   cfg.PracticeQuestions,
	}
	machine := session.NewMachine(session.Config{
		BreakFixation: time.Duration(cfg.BreakFixationMs) * time.Millisecond,
	}, log)
	return &SessionHandler{
		log:       log,
		store:     store,
		exportDir: cfg.ExportDir,
		params:    params,
		machine:   machine,
		bankPath:  cfg.MaterialsPath,
	}
}

// Machine exposes the state machine, mainly for router wiring and tests.
func (h *SessionHandler) Machine() *session.Machine {
	return h.machine
}

// LoadBank loads (or reloads) the materials file. A failure is recorded and
// surfaced as a status message; sequencing refuses to run until a reload
// succeeds.
func (h *SessionHandler) LoadBank(path string) error {
	bank, err := models.LoadBank(path)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.bankPath = path
	if err != nil {
		h.bank = nil
		h.bankErr = err
		h.log.Error("Failed to load materials", zap.String("path", path), zap.Error(err))
		return err
	}
	h.bank = bank
	h.bankErr = nil
	h.log.Info("Materials loaded",
		zap.String("path", path),
		zap.Int("items", len(bank.Items)),
		zap.Strings("lists", bank.ListNames()),
	)
	return nil
}

type createRequest struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	List string `json:"list"`
	Seed string `json:"seed"`
}

// Create receives the identity input (plus optional overrides) and builds the
// full trial sequence. The previous run, if any, is discarded atomically.
func (h *SessionHandler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	h.mu.Lock()
	bank := h.bank
	bankErr := h.bankErr
	h.mu.Unlock()
	if bank == nil {
		h.log.Warn("Session requested before materials loaded", zap.Error(bankErr))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Materials not loaded; reload the item bank and try again"})
		return
	}

	assignment, err := sequence.Assign(req.Name, req.ID, sequence.Overrides{List: req.List, Seed: req.Seed})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	seq, err := sequence.Build(bank, assignment, h.params)
	if err != nil {
		h.log.Error("Sequence construction failed",
			zap.String("list", assignment.List),
			zap.Uint32("seed", assignment.Seed),
			zap.Error(err),
		)
		status := http.StatusUnprocessableEntity
		if errors.Is(err, models.ErrListNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	h.machine.Install(seq)
	snap := h.machine.Snapshot()

	if sess := sessionStore(c); sess != nil {
		sess.Set(runCookieKey, snap.RunID)
		if err := sess.Save(); err != nil {
			h.log.Warn("Could not save run cookie", zap.Error(err))
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"state":      snap,
		"assignment": assignmentJSON(assignment),
	})
}

// State returns the machine snapshot plus bank status.
func (h *SessionHandler) State(c *gin.Context) {
	h.mu.Lock()
	bankLoaded := h.bank != nil
	bankItems := 0
	if bankLoaded {
		bankItems = len(h.bank.Items)
	}
	bankErr := ""
	if h.bankErr != nil {
		bankErr = h.bankErr.Error()
	}
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"state": h.machine.Snapshot(),
		"bank": gin.H{
			"loaded": bankLoaded,
			"items":  bankItems,
			"error":  bankErr,
		},
	})
}

// Proceed handles the setup → instructions signal.
func (h *SessionHandler) Proceed(c *gin.Context) {
	h.signal(c, h.machine.Proceed)
}

// BeginPractice handles the instructions → practice signal.
func (h *SessionHandler) BeginPractice(c *gin.Context) {
	h.signal(c, h.machine.BeginPractice)
}

// Advance handles the single advance signal (spacebar).
func (h *SessionHandler) Advance(c *gin.Context) {
	h.signal(c, h.machine.Advance)
}

// Abort finalizes the run immediately, preserving collected rows.
func (h *SessionHandler) Abort(c *gin.Context) {
	h.signal(c, h.machine.Abort)
}

type answerRequest struct {
	Response string `json:"response"`
}

// Answer handles the binary-choice signal on the question screen. A malformed
// response is absorbed by the machine without a state change.
func (h *SessionHandler) Answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	h.signal(c, func() { h.machine.Answer(req.Response) })
}

// ExportCSV streams the current event log as CSV and clears the unsynced
// flag. Available at any point in the session, not just at the end.
func (h *SessionHandler) ExportCSV(c *gin.Context) {
	assignment, ok := h.machine.Assignment()
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "No active session"})
		return
	}
	data, err := export.Render(h.machine.Rows())
	if err != nil {
		h.log.Error("CSV render failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not render export"})
		return
	}
	name := export.Filename(assignment.Name, assignment.ID, time.Now())
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
	h.machine.MarkExported()
}

// ReloadBank lets the operator retry a failed materials load.
func (h *SessionHandler) ReloadBank(c *gin.Context) {
	h.mu.Lock()
	path := h.bankPath
	h.mu.Unlock()
	if err := h.LoadBank(path); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// signal runs a machine signal after checking run ownership, then handles a
// finalized result if the signal ended the session.
func (h *SessionHandler) signal(c *gin.Context, apply func()) {
	if !h.ownsRun(c) {
		c.JSON(http.StatusConflict, gin.H{"error": "Another browser owns the active run"})
		return
	}
	apply()
	h.handleFinalized()
	c.JSON(http.StatusOK, gin.H{"state": h.machine.Snapshot()})
}

// ownsRun compares the run cookie against the active run. Requests without a
// cookie store (or without a recorded run) pass; only a stale cookie from a
// superseded run is rejected.
func (h *SessionHandler) ownsRun(c *gin.Context) bool {
	sess := sessionStore(c)
	if sess == nil {
		return true
	}
	stored, ok := sess.Get(runCookieKey).(string)
	if !ok || stored == "" {
		return true
	}
	snap := h.machine.Snapshot()
	return snap.RunID == "" || snap.RunID == stored
}

// handleFinalized performs the one-time hand-off of a finished run: write the
// CSV, persist the session, and only then clear the unsynced flag. Failures
// leave the flag set; the rows stay in memory and remain exportable.
func (h *SessionHandler) handleFinalized() {
	res := h.machine.ConsumeResult()
	if res == nil {
		return
	}

	path, err := export.Write(h.exportDir, res.Assignment.Name, res.Assignment.ID, res.Rows, time.Now())
	if err != nil {
		h.log.Error("Failed to write session export", zap.Error(err))
		return
	}
	h.log.Info("Session export written",
		zap.String("path", path),
		zap.Int("rows", len(res.Rows)),
		zap.Bool("aborted", res.Aborted),
	)

	if h.store != nil {
		if err := h.store.SaveFinalized(res); err != nil {
			h.log.Error("Failed to persist session", zap.Error(err))
		}
	}
	h.machine.MarkExported()
}

func assignmentJSON(a sequence.Assignment) gin.H {
	return gin.H{
		"list":       a.List,
		"listSource": a.ListSource,
		"seed":       a.Seed,
		"seedSource": a.SeedSource,
	}
}

// sessionStore returns the cookie session when the middleware is installed,
// nil otherwise (tests and non-browser clients).
func sessionStore(c *gin.Context) sessions.Session {
	if _, exists := c.Get(sessions.DefaultKey); !exists {
		return nil
	}
	return sessions.Default(c)
}
