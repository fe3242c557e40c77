// package logflow drives the three-tap logging sequence: task → count →
// minutes → submit.
//
// Time-only tasks skip the count stage with an implicit zero increment. A
// failed submission keeps the flow in the minutes stage with the same
// selection so the user can retry without re-navigating; there is no
// automatic retry, avoiding double-submission risk.
package logflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"dojotap/internal/display"
	"dojotap/internal/models"
	"dojotap/internal/shared"
)

// Stage is the flow's current tap stage.
type Stage string

const (
	StageTask    Stage = "task"
	StageCount   Stage = "count"
	StageMinutes Stage = "minutes"
)

// Submitter is the progress-submission collaborator, a subset of dojo.Client.
type Submitter interface {
	SubmitProgress(ctx context.Context, req models.SubmitProgressRequest) (*models.SubmitProgressResult, error)
}

// Summary records the last successful submission.
type Summary struct {
	TaskID         string
	TaskName       string
	CountIncrement int
	MinutesSpent   int
	NewCount       int
	At             time.Time
}

// Flow is one logging interaction. Submissions are serialized per flow
// instance.
type Flow struct {
	submitter Submitter
	logger    *log.Logger
	now       func() time.Time

	mu             sync.Mutex
	stage          Stage
	task           *models.TaskItem
	pref           models.TaskUIPreference
	increment      int
	incrementLabel string
	submitting     bool
	lastSummary    *Summary
}

// New creates a flow at the task stage.
func New(submitter Submitter, logger *log.Logger) *Flow {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Flow{
		submitter: submitter,
		logger:    logger,
		now:       time.Now,
		stage:     StageTask,
	}
}

// Stage returns the current stage.
func (f *Flow) Stage() Stage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stage
}

// Task returns the selected task, or nil before selection.
func (f *Flow) Task() *models.TaskItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.task
}

// Selection returns the chosen increment and its display label.
func (f *Flow) Selection() (int, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.increment, f.incrementLabel
}

// LastSummary returns the most recent successful submission, or nil.
func (f *Flow) LastSummary() *Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSummary
}

// SelectTask starts a logging interaction. Count tasks move to the count
// stage; time-only tasks jump straight to minutes with an implicit zero
// increment.
func (f *Flow) SelectTask(task *models.TaskItem, pref models.TaskUIPreference) error {
	if task == nil {
		return fmt.Errorf("%w: no task selected", shared.ErrInvalidArgument)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stage != StageTask {
		return fmt.Errorf("%w: task selection only valid from the task stage", shared.ErrInvalidInput)
	}

	f.task = task
	f.pref = pref
	if task.TimeOnly {
		f.increment = 0
		f.incrementLabel = ""
		f.stage = StageMinutes
	} else {
		f.stage = StageCount
	}
	return nil
}

// SelectCount records the chosen increment and its formatted label, then
// moves to the minutes stage.
func (f *Flow) SelectCount(increment int) error {
	if increment < 1 {
		return fmt.Errorf("%w: count increment must be positive", shared.ErrInvalidArgument)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stage != StageCount || f.task == nil {
		return fmt.Errorf("%w: count selection only valid from the count stage", shared.ErrInvalidInput)
	}

	f.increment = increment
	f.incrementLabel = display.TileLabel(*f.task, f.pref, increment)
	f.stage = StageMinutes
	return nil
}

// Back navigates one stage backwards. From minutes, time-only tasks return
// directly to task; count tasks return to count. From count, always to task.
func (f *Flow) Back() {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.stage {
	case StageMinutes:
		if f.task != nil && !f.task.TimeOnly {
			f.stage = StageCount
			return
		}
		f.resetLocked()
	case StageCount:
		f.resetLocked()
	}
}

// Reset abandons the interaction (explicit back-to-task or tab switch).
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked()
}

func (f *Flow) resetLocked() {
	f.stage = StageTask
	f.task = nil
	f.increment = 0
	f.incrementLabel = ""
}

// Submit sends the selected increment plus minutes to the submission
// collaborator. On failure the flow remains in the minutes stage with the
// same selection, so an immediate retry needs no re-navigation. On success
// the server's authoritative count is applied to the in-memory task and the
// flow returns to the task stage.
func (f *Flow) Submit(ctx context.Context, minutes int) (*Summary, error) {
	if minutes < 1 {
		return nil, fmt.Errorf("%w: minutes must be positive", shared.ErrInvalidArgument)
	}

	f.mu.Lock()
	if f.stage != StageMinutes || f.task == nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: submit only valid from the minutes stage", shared.ErrInvalidInput)
	}
	if f.submitting {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: submission already in flight", shared.ErrInvalidInput)
	}
	f.submitting = true
	task := f.task
	increment := f.increment
	f.mu.Unlock()

	result, err := f.submitter.SubmitProgress(ctx, models.SubmitProgressRequest{
		TaskID:         task.ID,
		CountIncrement: increment,
		MinutesSpent:   minutes,
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false

	if err != nil {
		// Stay in minutes with the selection intact for manual retry.
		f.logger.Warn("submission failed, selection retained", "task", task.ID, "err", err)
		return nil, err
	}

	task.CurrentCount = result.NewCount
	summary := &Summary{
		TaskID:         task.ID,
		TaskName:       task.Name,
		CountIncrement: increment,
		MinutesSpent:   minutes,
		NewCount:       result.NewCount,
		At:             f.now(),
	}
	f.lastSummary = summary
	f.resetLocked()

	f.logger.Info("progress logged", "task", summary.TaskID, "count", summary.NewCount, "minutes", minutes)
	return summary, nil
}
