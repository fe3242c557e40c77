package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"dojotap/internal/loader"
	"dojotap/internal/models"
	"dojotap/internal/shared"
)

// Log records progress against a task in one shot: resolve the task, walk the
// logging flow, and submit.
func (r *Runner) Log(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireClient(); err != nil {
		return err
	}

	query := cmd.StringArg("task")
	count := cmd.Int("count")
	minutes := cmd.Int("minutes")

	result := r.loader.Load(ctx)
	switch result.State {
	case loader.StateAuthRequired:
		return fmt.Errorf("%w: run 'dojotap auth login' first", shared.ErrAuthRequired)
	case loader.StateStaleCache:
		return fmt.Errorf("%w: logging is disabled while showing saved data; try again once the server is reachable", shared.ErrServiceUnavailable)
	}

	task, err := resolveTask(result.Snapshot, query)
	if err != nil {
		return err
	}

	pref := r.prefs.Entry(task.ID)
	if err := r.flow.SelectTask(task, pref); err != nil {
		return err
	}
	if !task.TimeOnly {
		if err := r.flow.SelectCount(count); err != nil {
			return err
		}
	}

	summary, err := r.flow.Submit(ctx, minutes)
	if err != nil {
		return fmt.Errorf("submission failed: %w", err)
	}

	if r.history != nil {
		if recErr := r.history.RecordSubmission(models.SubmitProgressRequest{
			TaskID:         summary.TaskID,
			CountIncrement: summary.CountIncrement,
			MinutesSpent:   summary.MinutesSpent,
		}, summary.NewCount); recErr != nil {
			r.logger.Warn("failed to record submission locally", "err", recErr)
		}
	}

	if task.TimeOnly {
		return r.writePlain("✓ Logged %d minutes on %q\n", summary.MinutesSpent, summary.TaskName)
	}
	return r.writePlain("✓ Logged %d minutes on %q, count is now %d\n", summary.MinutesSpent, summary.TaskName, summary.NewCount)
}
