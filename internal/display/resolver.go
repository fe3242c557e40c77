// package display resolves task display names and completion state against
// the active cohort.
//
// Target resolution is shared between completion checking and count tile
// generation. Both paths must use the identical precedence: cohort-specific
// target, then the ALL_COHORTS sentinel, then the explicit target field, then
// the maximum across known per-cohort targets.
package display

import (
	"fmt"
	"regexp"
	"strconv"

	"dojotap/internal/models"
)

// countPlaceholder matches the {{count}} token, case-insensitively, tolerant
// of whitespace inside the delimiters.
var countPlaceholder = regexp.MustCompile(`(?i)\{\{\s*count\s*\}\}`)

// ResolveTargetCount resolves a task's target count for a cohort. The second
// return is false when no target exists at any precedence level.
func ResolveTargetCount(task models.TaskItem, cohort string) (int, bool) {
	if n, ok := task.Counts[cohort]; ok {
		return n, true
	}
	if n, ok := task.Counts[models.AllCohorts]; ok {
		return n, true
	}
	if task.TargetCount != nil {
		return *task.TargetCount, true
	}

	max, found := 0, false
	for _, n := range task.Counts {
		if !found || n > max {
			max, found = n, true
		}
	}
	return max, found
}

// FormatDisplayName renders a task name for a cohort. Names without the count
// placeholder pass through unchanged. Every occurrence of the placeholder is
// replaced with the same resolved value, or a literal "?" when no target
// resolves.
func FormatDisplayName(task models.TaskItem, cohort string) string {
	if !countPlaceholder.MatchString(task.Name) {
		return task.Name
	}

	substitution := "?"
	if target, ok := ResolveTargetCount(task, cohort); ok {
		substitution = strconv.Itoa(target)
	}
	return countPlaceholder.ReplaceAllString(task.Name, substitution)
}

// IsCompleted reports whether a count task has met its resolved target.
// Time-only tasks are never completed by count. A task with no resolvable
// target is not completed.
func IsCompleted(task models.TaskItem, cohort string) bool {
	if task.TimeOnly {
		return false
	}
	target, ok := ResolveTargetCount(task, cohort)
	if !ok {
		return false
	}
	return task.CurrentCount >= target
}

// CountTile is one selectable count increment with its display label.
type CountTile struct {
	Increment int
	Label     string
}

// CountTiles generates the selectable increments for a task, capped by the
// task's count cap preference. Labels follow the count label mode: "+N" for
// increment mode, the resulting total for absolute mode.
func CountTiles(task models.TaskItem, pref models.TaskUIPreference, cohort string) []CountTile {
	cap := pref.CountCap
	if cap < models.CountCapMin {
		cap = models.CountCapDefault
	}

	// Never offer more tiles than remain to the resolved target, but always
	// offer at least one.
	if target, ok := ResolveTargetCount(task, cohort); ok {
		if remaining := target - task.CurrentCount; remaining > 0 && remaining < cap {
			cap = remaining
		}
	}
	if cap < 1 {
		cap = 1
	}

	tiles := make([]CountTile, 0, cap)
	for i := 1; i <= cap; i++ {
		tiles = append(tiles, CountTile{Increment: i, Label: TileLabel(task, pref, i)})
	}
	return tiles
}

// TileLabel formats the label for one count increment under the task's
// current label mode preference.
func TileLabel(task models.TaskItem, pref models.TaskUIPreference, increment int) string {
	if pref.CountLabelMode == models.LabelAbsolute {
		return strconv.Itoa(task.CurrentCount + increment)
	}
	return fmt.Sprintf("+%d", increment)
}

// ProgressSummary renders "current/target suffix" for list views, falling
// back to just the current count when no target resolves.
func ProgressSummary(task models.TaskItem, cohort string) string {
	if task.TimeOnly {
		return "time only"
	}
	suffix := ""
	if task.ProgressBarSuffix != "" {
		suffix = " " + task.ProgressBarSuffix
	}
	if target, ok := ResolveTargetCount(task, cohort); ok {
		return fmt.Sprintf("%d/%d%s", task.CurrentCount, target, suffix)
	}
	return fmt.Sprintf("%d%s", task.CurrentCount, suffix)
}
