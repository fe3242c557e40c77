package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"dojotap/internal/display"
	"dojotap/internal/models"
)

var (
	_ list.Item = taskItem{}
	_ list.Item = tileItem{}
)

// taskItem wraps [models.TaskItem] to implement [list.Item]. The display name
// and progress are resolved against the active cohort at render time.
type taskItem struct {
	task   models.TaskItem
	cohort string
	pinned bool
}

func (i taskItem) FilterValue() string { return i.task.Name }

func (i taskItem) Title() string {
	name := display.FormatDisplayName(i.task, i.cohort)
	if i.pinned {
		return "📌 " + name
	}
	return name
}

func (i taskItem) Description() string {
	desc := display.ProgressSummary(i.task, i.cohort)
	if display.IsCompleted(i.task, i.cohort) {
		desc += " ✓"
	}
	if i.task.Category != "" {
		desc = fmt.Sprintf("%s • %s", i.task.Category, desc)
	}
	return desc
}

// tileItem wraps a [display.CountTile] to implement [list.Item].
type tileItem struct {
	tile display.CountTile
}

func (i tileItem) FilterValue() string { return i.tile.Label }
func (i tileItem) Title() string       { return i.tile.Label }
func (i tileItem) Description() string {
	if i.tile.Increment == 1 {
		return "log 1"
	}
	return fmt.Sprintf("log %d", i.tile.Increment)
}
