package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"dojotap/internal/formatter"
	"dojotap/internal/loader"
	"dojotap/internal/shared"
)

// Timeline fetches and prints upstream progress history for a task.
func (r *Runner) Timeline(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireClient(); err != nil {
		return err
	}

	query := cmd.StringArg("task")
	if query == "" {
		return fmt.Errorf("%w: task name or ID is required", shared.ErrInvalidArgument)
	}

	// Resolve friendly names against the current snapshot when one exists;
	// otherwise treat the argument as a raw task ID.
	taskID := query
	if snapshot := r.loader.Snapshot(); snapshot != nil {
		if task, err := resolveTask(snapshot, query); err == nil {
			taskID = task.ID
		}
	} else if result := r.loader.Load(ctx); result.State != loader.StateAuthRequired {
		if task, err := resolveTask(result.Snapshot, query); err == nil {
			taskID = task.ID
		}
	}

	entries, err := r.client.FetchTimeline(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to fetch timeline: %w", err)
	}

	if cmd.Bool("csv") {
		data, err := formatter.TimelineToCSV(entries)
		if err != nil {
			return err
		}
		return r.writePlain("%s", string(data))
	}

	if len(entries) == 0 {
		return r.writePlain("No history for task %s\n", taskID)
	}
	return r.writePlain("%s", formatter.TimelineToTable(entries))
}

// History prints locally recorded submissions.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if r.history == nil {
		return fmt.Errorf("%w: local history requires the SQLite backend; run 'dojotap setup'", shared.ErrServiceUnavailable)
	}

	subs, err := r.history.RecentSubmissions(cmd.String("task"), cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to read local history: %w", err)
	}

	if len(subs) == 0 {
		return r.writePlain("No local submissions recorded\n")
	}
	return r.writePlain("%s", formatter.SubmissionsToTable(subs))
}
