// package formatter renders task lists, timelines, and local submission
// history as plain-text tables or CSV for CLI output.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"dojotap/internal/display"
	"dojotap/internal/models"
	"dojotap/internal/storage"
)

// TimelineToCSV converts timeline entries to CSV with columns:
// Date, Cohort, Previous, New, Minutes, Notes.
func TimelineToCSV(entries []models.TimelineEntry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Date", "Cohort", "Previous", "New", "Minutes", "Notes"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, entry := range entries {
		record := []string{
			entry.Date.Format(time.RFC3339),
			entry.Cohort,
			strconv.Itoa(entry.PreviousCount),
			strconv.Itoa(entry.NewCount),
			strconv.Itoa(entry.MinutesSpent),
			entry.Notes,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// TimelineToTable renders timeline entries as an aligned text table.
func TimelineToTable(entries []models.TimelineEntry) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "DATE\tCOHORT\tPREV\tNEW\tMIN\tNOTES")
	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			entry.Date.Format("2006-01-02"),
			entry.Cohort,
			entry.PreviousCount,
			entry.NewCount,
			entry.MinutesSpent,
			entry.Notes,
		)
	}
	w.Flush()
	return buf.String()
}

// TasksToTable renders the snapshot's tasks with resolved display names and
// progress for the given cohort. Pinned tasks are marked with an asterisk.
func TasksToTable(snapshot *models.BootstrapSnapshot, cohort string) string {
	pinned := make(map[string]struct{}, len(snapshot.PinnedTaskIDs))
	for _, id := range snapshot.PinnedTaskIDs {
		pinned[id] = struct{}{}
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "PIN\tCATEGORY\tTASK\tPROGRESS\tID")
	for _, task := range snapshot.Tasks {
		pin := ""
		if _, ok := pinned[task.ID]; ok {
			pin = "*"
		}
		done := ""
		if display.IsCompleted(task, cohort) {
			done = " ✓"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s%s\t%s\n",
			pin,
			task.Category,
			display.FormatDisplayName(task, cohort),
			display.ProgressSummary(task, cohort),
			done,
			task.ID,
		)
	}
	w.Flush()
	return buf.String()
}

// SubmissionsToTable renders locally recorded submissions, newest first.
func SubmissionsToTable(subs []storage.LocalSubmission) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "WHEN\tTASK\t+COUNT\tMIN\tNEW TOTAL")
	for _, sub := range subs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n",
			sub.SubmittedAt.Format("2006-01-02 15:04"),
			sub.TaskID,
			sub.CountIncrement,
			sub.MinutesSpent,
			sub.NewCount,
		)
	}
	w.Flush()
	return buf.String()
}
