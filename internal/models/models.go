package models

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// AllCohorts is the sentinel cohort key the upstream uses for targets that
// apply to every cohort.
const AllCohorts = "ALL_COHORTS"

// UserInfo identifies the authenticated user and their active cohort.
type UserInfo struct {
	DisplayName string `json:"display_name"`
	DojoCohort  string `json:"dojo_cohort"`
}

// TaskItem is a loggable training requirement.
//
// Counts maps cohort identifiers to target counts. TargetCount, when present,
// is an explicit single target that bypasses the per-cohort map. TimeOnly
// tasks have no count dimension and are logged by minutes alone.
type TaskItem struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Category          string         `json:"category"`
	Counts            map[string]int `json:"counts"`
	StartCount        int            `json:"start_count"`
	ProgressBarSuffix string         `json:"progress_bar_suffix"`
	ScoreboardDisplay string         `json:"scoreboard_display"`
	NumberOfCohorts   int            `json:"number_of_cohorts"`
	SortPriority      string         `json:"sort_priority"`
	CurrentCount      int            `json:"current_count"`
	TargetCount       *int           `json:"target_count"`
	IsCustom          bool           `json:"is_custom"`
	TimeOnly          bool           `json:"time_only"`
}

// CountLabelMode selects how count tiles are labelled.
type CountLabelMode string

const (
	// LabelIncrement renders tiles as "+N".
	LabelIncrement CountLabelMode = "increment"
	// LabelAbsolute renders tiles as the resulting total, "current+N".
	LabelAbsolute CountLabelMode = "absolute"
)

// TileSize is an ordered density class for task tiles, smallest to largest.
type TileSize string

const (
	TileSmall  TileSize = "small"
	TileMedium TileSize = "medium"
	TileLarge  TileSize = "large"
)

// tileSizeOrder defines the small-to-large ordering of TileSize values.
var tileSizeOrder = map[TileSize]int{TileSmall: 0, TileMedium: 1, TileLarge: 2}

// Valid reports whether the label mode is one of the recognized values.
func (m CountLabelMode) Valid() bool {
	return m == LabelIncrement || m == LabelAbsolute
}

// Valid reports whether the tile size is one of the recognized classes.
func (s TileSize) Valid() bool {
	_, ok := tileSizeOrder[s]
	return ok
}

// Compare returns -1, 0 or 1 ordering s against other, smallest first.
func (s TileSize) Compare(other TileSize) int {
	a, b := tileSizeOrder[s], tileSizeOrder[other]
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Count cap bounds for TaskUIPreference.
const (
	CountCapMin     = 1
	CountCapMax     = 200
	CountCapDefault = 10
)

// TaskUIPreference holds per-task display customization.
type TaskUIPreference struct {
	CountLabelMode CountLabelMode `json:"count_label_mode"`
	TileSize       TileSize       `json:"tile_size"`
	CountCap       int            `json:"count_cap"`
}

// Preferences is the synced aggregate of pins and per-task UI preferences,
// stamped with the server-assigned optimistic concurrency version.
type Preferences struct {
	PinnedTaskIDs     []string                    `json:"pinned_task_ids"`
	TaskUIPreferences map[string]TaskUIPreference `json:"task_ui_preferences"`
	Version           int                         `json:"version"`
}

// Clone returns a deep copy of the aggregate so an in-flight sync payload is
// never mutated by later edits.
func (p Preferences) Clone() Preferences {
	out := Preferences{
		PinnedTaskIDs:     append([]string(nil), p.PinnedTaskIDs...),
		TaskUIPreferences: make(map[string]TaskUIPreference, len(p.TaskUIPreferences)),
		Version:           p.Version,
	}
	for id, pref := range p.TaskUIPreferences {
		out.TaskUIPreferences[id] = pref
	}
	return out
}

// BootstrapSnapshot is the aggregate fetch result needed to render the app.
// Once cached it is replaced wholesale, never patched.
type BootstrapSnapshot struct {
	User              UserInfo                    `json:"user"`
	Tasks             []TaskItem                  `json:"tasks"`
	PinnedTaskIDs     []string                    `json:"pinned_task_ids"`
	TaskUIPreferences map[string]TaskUIPreference `json:"task_ui_preferences"`
	Version           int                         `json:"version"`
	AvailableCohorts  []string                    `json:"available_cohorts"`
	DefaultFilters    map[string]string           `json:"default_filters"`
	FetchedAt         time.Time                   `json:"fetched_at"`
}

// TaskIDs returns the set of task identifiers present in the snapshot.
func (s *BootstrapSnapshot) TaskIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Tasks))
	for _, task := range s.Tasks {
		ids[task.ID] = struct{}{}
	}
	return ids
}

// TaskByID returns the task with the given id, or nil.
func (s *BootstrapSnapshot) TaskByID(id string) *TaskItem {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return &s.Tasks[i]
		}
	}
	return nil
}

// Preferences extracts the synced preference aggregate from the snapshot.
func (s *BootstrapSnapshot) Preferences() Preferences {
	return Preferences{
		PinnedTaskIDs:     append([]string(nil), s.PinnedTaskIDs...),
		TaskUIPreferences: s.TaskUIPreferences,
		Version:           s.Version,
	}.Clone()
}

// SubmitProgressRequest is a progress submission for one task.
type SubmitProgressRequest struct {
	TaskID         string `json:"task_id"`
	CountIncrement int    `json:"count_increment"`
	MinutesSpent   int    `json:"minutes_spent"`
}

// SubmitProgressResult carries the server's authoritative new count.
type SubmitProgressResult struct {
	NewCount int `json:"new_count"`
}

// TimelineEntry is a raw historical progress entry for a task.
type TimelineEntry struct {
	TaskID        string    `json:"requirement_id"`
	Cohort        string    `json:"cohort"`
	PreviousCount int       `json:"previous_count"`
	NewCount      int       `json:"new_count"`
	MinutesSpent  int       `json:"minutes_spent"`
	Date          time.Time `json:"date"`
	Notes         string    `json:"notes"`
}

// SortCohorts orders cohort identifiers by their numeric lower bound.
// Handles "1200-1300" range form and "2400+" open-ended form; anything else
// sorts last, alphabetically.
func SortCohorts(cohorts []string) {
	sort.Slice(cohorts, func(i, j int) bool {
		ki, si := cohortSortKey(cohorts[i])
		kj, sj := cohortSortKey(cohorts[j])
		if ki != kj {
			return ki < kj
		}
		return si < sj
	})
}

func cohortSortKey(cohort string) (int, string) {
	if strings.HasSuffix(cohort, "+") {
		if n, err := strconv.Atoi(strings.TrimSuffix(cohort, "+")); err == nil {
			return n, cohort
		}
		return 9999, cohort
	}
	if left, _, found := strings.Cut(cohort, "-"); found {
		if n, err := strconv.Atoi(left); err == nil {
			return n, cohort
		}
	}
	return 9999, cohort
}
