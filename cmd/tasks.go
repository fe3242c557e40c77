package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"dojotap/internal/formatter"
	"dojotap/internal/loader"
	"dojotap/internal/models"
	"dojotap/internal/shared"
)

// Tasks fetches the training plan and prints it as a table or JSON.
func (r *Runner) Tasks(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireClient(); err != nil {
		return err
	}

	result := r.loader.Load(ctx)
	if result.State == loader.StateAuthRequired {
		return fmt.Errorf("%w: run 'dojotap auth login' first", shared.ErrAuthRequired)
	}
	if result.Notice != "" {
		r.writePlain("%s\n", result.Notice)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result.Snapshot, cmd.Bool("pretty"))
	}

	r.writePlain("%s", formatter.TasksToTable(result.Snapshot, result.Snapshot.User.DojoCohort))
	if result.State == loader.StateStaleCache {
		r.writePlainln("Showing saved data; logging is disabled until the next successful refresh.")
	}
	return nil
}

// resolveTask finds a task by exact ID or by a case-insensitive unique name
// prefix within the snapshot.
func resolveTask(snapshot *models.BootstrapSnapshot, query string) (*models.TaskItem, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: task name or ID is required", shared.ErrInvalidArgument)
	}

	if task := snapshot.TaskByID(query); task != nil {
		return task, nil
	}

	needle := strings.ToLower(query)
	var matches []*models.TaskItem
	for i := range snapshot.Tasks {
		if strings.HasPrefix(strings.ToLower(snapshot.Tasks[i].Name), needle) {
			matches = append(matches, &snapshot.Tasks[i])
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: no task matches %q", shared.ErrTaskNotFound, query)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, task := range matches {
			names[i] = task.Name
		}
		return nil, fmt.Errorf("%w: %q matches multiple tasks: %s", shared.ErrInvalidArgument, query, strings.Join(names, ", "))
	}
}
