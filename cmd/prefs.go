package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"dojotap/internal/loader"
	"dojotap/internal/models"
	"dojotap/internal/shared"
)

// PrefsShow prints the current local preference aggregate.
func (r *Runner) PrefsShow(ctx context.Context, cmd *cli.Command) error {
	return r.writeJSON(r.prefs.Preferences(), cmd.Bool("pretty"))
}

// PrefsPin pins a task. The edit is saved locally first and pushed upstream
// when fresh data is available.
func (r *Runner) PrefsPin(ctx context.Context, cmd *cli.Command) error {
	return r.setPin(ctx, cmd.StringArg("task"), true)
}

// PrefsUnpin removes a task from the pin set.
func (r *Runner) PrefsUnpin(ctx context.Context, cmd *cli.Command) error {
	return r.setPin(ctx, cmd.StringArg("task"), false)
}

func (r *Runner) setPin(ctx context.Context, query string, pin bool) error {
	if err := r.requireClient(); err != nil {
		return err
	}

	result := r.loader.Load(ctx)
	if result.State == loader.StateAuthRequired {
		return fmt.Errorf("%w: run 'dojotap auth login' first", shared.ErrAuthRequired)
	}

	task, err := resolveTask(result.Snapshot, query)
	if err != nil {
		return err
	}

	if r.prefs.IsPinned(task.ID) == pin {
		if pin {
			return r.writePlain("%q is already pinned\n", task.Name)
		}
		return r.writePlain("%q is not pinned\n", task.Name)
	}

	r.prefs.TogglePin(task.ID)
	if pin {
		r.writePlain("✓ Pinned %q\n", task.Name)
	} else {
		r.writePlain("✓ Unpinned %q\n", task.Name)
	}

	return r.pushPrefs(ctx, result.State)
}

// PrefsSet updates per-task display preferences.
func (r *Runner) PrefsSet(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireClient(); err != nil {
		return err
	}

	labelMode := cmd.String("label-mode")
	tileSize := cmd.String("tile-size")
	countCap := cmd.Int("count-cap")
	if labelMode == "" && tileSize == "" && countCap == 0 {
		return fmt.Errorf("%w: at least one of --label-mode, --tile-size, or --count-cap is required", shared.ErrInvalidArgument)
	}

	result := r.loader.Load(ctx)
	if result.State == loader.StateAuthRequired {
		return fmt.Errorf("%w: run 'dojotap auth login' first", shared.ErrAuthRequired)
	}

	task, err := resolveTask(result.Snapshot, cmd.StringArg("task"))
	if err != nil {
		return err
	}

	if labelMode != "" {
		if err := r.prefs.SetCountLabelMode(task.ID, models.CountLabelMode(labelMode)); err != nil {
			return err
		}
	}
	if tileSize != "" {
		if err := r.prefs.SetTileSize(task.ID, models.TileSize(tileSize)); err != nil {
			return err
		}
	}
	if countCap != 0 {
		if err := r.prefs.SetCountCap(task.ID, countCap); err != nil {
			return err
		}
	}

	r.writePlain("✓ Updated preferences for %q\n", task.Name)
	return r.pushPrefs(ctx, result.State)
}

// PrefsSync pushes local preference edits upstream immediately.
func (r *Runner) PrefsSync(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireClient(); err != nil {
		return err
	}

	result := r.loader.Load(ctx)
	if result.State == loader.StateAuthRequired {
		return fmt.Errorf("%w: run 'dojotap auth login' first", shared.ErrAuthRequired)
	}
	if result.State != loader.StateFresh {
		return fmt.Errorf("%w: cannot sync while the server is unreachable", shared.ErrServiceUnavailable)
	}

	r.engine.Enable()
	if err := r.engine.Flush(ctx); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	return r.writePlain("✓ Preferences synced (version %d)\n", r.prefs.Preferences().Version)
}

// pushPrefs flushes after a local edit when fresh data exists; otherwise the
// edit stays local until the next successful refresh.
func (r *Runner) pushPrefs(ctx context.Context, state loader.State) error {
	if state != loader.StateFresh {
		return r.writePlain("Saved locally; changes will sync after the next successful refresh.\n")
	}

	r.engine.Enable()
	if err := r.engine.Flush(ctx); err != nil {
		// The edit is already persisted locally; surface but don't fail.
		r.logger.Warn("preference push failed, edit kept locally", "err", err)
		return r.writePlain("Saved locally; upstream push failed and will retry with your next change.\n")
	}
	return nil
}
