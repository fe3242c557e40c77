// Bootstrap snapshot assembly from raw upstream payloads.
//
// The upstream is third-party and inconsistent across task sources, so every
// field read here is tolerant: numbers may arrive as strings, booleans as
// ints or yes/no strings, and custom tasks use several alias key spellings.
package dojo

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"dojotap/internal/models"
)

func toInt(value any, fallback int) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

// toBool parses loose boolean encodings. The second return reports whether
// the value was recognizably boolean at all.
func toBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case float64:
		return v != 0, true
	case int:
		return v != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
	}
	return false, false
}

func firstNonEmptyStr(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := payload[key]
		if !ok || value == nil {
			continue
		}
		text := strings.TrimSpace(fmt.Sprintf("%v", value))
		if text != "" {
			return text
		}
	}
	return ""
}

// normalizeCounts coerces a raw counts payload into a cohort → int map.
func normalizeCounts(raw any) map[string]int {
	counts := make(map[string]int)
	m, ok := raw.(map[string]any)
	if !ok {
		return counts
	}
	for key, value := range m {
		counts[key] = toInt(value, 0)
	}
	return counts
}

// resolvePreviousCount applies the progress precedence: cohort-specific entry,
// then the ALL_COHORTS sentinel, then the requirement's start count.
func resolvePreviousCount(progressEntry map[string]any, cohort string, startCount int) int {
	var counts map[string]int
	if progressEntry != nil {
		counts = normalizeCounts(progressEntry["counts"])
	}
	if n, ok := counts[cohort]; ok {
		return n
	}
	if n, ok := counts[models.AllCohorts]; ok {
		return n
	}
	return startCount
}

func resolveRequirementID(payload map[string]any) string {
	return firstNonEmptyStr(payload, "id", "requirementId", "requirement_id")
}

func resolveRequirementName(payload map[string]any) string {
	return firstNonEmptyStr(payload, "name", "requirementName", "title", "label")
}

func isExplicitCustomRequirement(payload map[string]any) bool {
	for _, key := range []string{"isCustomRequirement", "isCustomTask", "customRequirement", "customTask"} {
		if parsed, ok := toBool(payload[key]); ok && parsed {
			return true
		}
	}
	return false
}

func looksLikeRequirement(payload map[string]any) bool {
	return resolveRequirementID(payload) != "" && resolveRequirementName(payload) != ""
}

// resolveTimeOnly decides whether a task is logged by minutes alone.
// Explicit time-only flags win, then inverted has-count flags, then tracking
// mode strings; with no signal, a task with no positive target is time-only.
func resolveTimeOnly(raw map[string]any, counts map[string]int) bool {
	for _, key := range []string{"timeOnly", "timerOnly", "isTimeOnly", "isTimerOnly", "minutesOnly"} {
		if parsed, ok := toBool(raw[key]); ok {
			return parsed
		}
	}

	for _, key := range []string{"hasCount", "countEnabled", "countRequired", "requiresCount", "trackCount", "enableCount"} {
		if parsed, ok := toBool(raw[key]); ok {
			return !parsed
		}
	}

	switch strings.ToLower(firstNonEmptyStr(raw, "trackingMode", "inputMode", "mode")) {
	case "time_only", "timer_only", "minutes_only":
		return true
	case "count_and_time", "count":
		return false
	}

	for _, value := range counts {
		if value > 0 {
			return false
		}
	}
	return true
}

// buildCustomRequirement normalizes a raw custom task node into the common
// requirement shape, or nil if it lacks an id or name.
func buildCustomRequirement(raw map[string]any) map[string]any {
	requirementID := resolveRequirementID(raw)
	requirementName := resolveRequirementName(raw)
	if requirementID == "" || requirementName == "" {
		return nil
	}

	counts := normalizeCounts(raw["counts"])
	if len(counts) == 0 {
		counts = normalizeCounts(raw["targetCounts"])
	}

	countsAny := make(map[string]any, len(counts))
	for key, value := range counts {
		countsAny[key] = value
	}

	startCount := toInt(raw["startCount"], toInt(raw["start_count"], 0))

	category := firstNonEmptyStr(raw, "category", "requirementCategory")
	if category == "" {
		category = "Custom"
	}

	sortPriority := firstNonEmptyStr(raw, "sortPriority", "sort_priority")
	if sortPriority == "" {
		sortPriority = "zzz_custom_" + requirementID
	}

	return map[string]any{
		"id":                  requirementID,
		"name":                requirementName,
		"category":            category,
		"counts":              countsAny,
		"startCount":          startCount,
		"progressBarSuffix":   firstNonEmptyStr(raw, "progressBarSuffix", "progress_bar_suffix"),
		"scoreboardDisplay":   firstNonEmptyStr(raw, "scoreboardDisplay", "scoreboard_display"),
		"numberOfCohorts":     toInt(raw["numberOfCohorts"], 0),
		"sortPriority":        sortPriority,
		"isCustomRequirement": true,
		"timeOnly":            resolveTimeOnly(raw, counts),
	}
}

// extractCustomRequirements walks the custom-access payload for nodes that
// look like requirements and are either explicitly flagged custom or reached
// through a path containing "custom".
func extractCustomRequirements(customAccessPayload any) []map[string]any {
	if customAccessPayload == nil {
		return nil
	}

	byID := make(map[string]map[string]any)
	order := []string{}

	var walk func(node any, path string)
	walk = func(node any, path string) {
		switch n := node.(type) {
		case map[string]any:
			pathIndicatesCustom := strings.Contains(strings.ToLower(path), "custom")
			if looksLikeRequirement(n) && (isExplicitCustomRequirement(n) || pathIndicatesCustom) {
				if built := buildCustomRequirement(n); built != nil {
					id := built["id"].(string)
					if _, seen := byID[id]; !seen {
						order = append(order, id)
					}
					byID[id] = built
				}
			}
			for key, value := range n {
				walk(value, path+"."+key)
			}
		case []any:
			for index, item := range n {
				walk(item, fmt.Sprintf("%s[%d]", path, index))
			}
		}
	}
	walk(customAccessPayload, "root")

	out := make([]map[string]any, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

// mergeRequirements overlays custom requirements onto the base requirement
// list by id. Custom fields win on collision.
func mergeRequirements(requirementsPayload []map[string]any, customAccessPayload any) []map[string]any {
	byID := make(map[string]map[string]any)
	order := []string{}

	for _, requirement := range requirementsPayload {
		id := strings.TrimSpace(fmt.Sprintf("%v", requirement["id"]))
		if id == "" || requirement["id"] == nil {
			continue
		}
		if _, seen := byID[id]; !seen {
			order = append(order, id)
		}
		byID[id] = requirement
	}

	for _, custom := range extractCustomRequirements(customAccessPayload) {
		id := custom["id"].(string)
		if existing, ok := byID[id]; ok {
			merged := make(map[string]any, len(existing)+len(custom))
			for key, value := range existing {
				merged[key] = value
			}
			for key, value := range custom {
				merged[key] = value
			}
			byID[id] = merged
			continue
		}
		order = append(order, id)
		byID[id] = custom
	}

	out := make([]map[string]any, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

// assembleSnapshot builds the aggregate snapshot from raw upstream payloads
// and the preference aggregate.
func assembleSnapshot(userPayload map[string]any, requirementsPayload []map[string]any, customAccessPayload any, prefs models.Preferences, fetchedAt time.Time) *models.BootstrapSnapshot {
	cohort := firstNonEmptyStr(userPayload, "dojoCohort")
	progressMap, _ := userPayload["progress"].(map[string]any)

	merged := mergeRequirements(requirementsPayload, customAccessPayload)

	tasks := make([]models.TaskItem, 0, len(merged))
	cohortSet := make(map[string]struct{})

	for _, req := range merged {
		reqID := resolveRequirementID(req)
		if reqID == "" {
			continue
		}

		counts := normalizeCounts(req["counts"])
		for key := range counts {
			if key != models.AllCohorts {
				cohortSet[key] = struct{}{}
			}
		}

		startCount := toInt(req["startCount"], 0)
		progressEntry, _ := progressMap[reqID].(map[string]any)

		isCustom := isExplicitCustomRequirement(req)
		timeOnly := false
		if isCustom {
			timeOnly = resolveTimeOnly(req, counts)
		}

		var targetCount *int
		if n, ok := counts[cohort]; ok {
			targetCount = &n
		}

		tasks = append(tasks, models.TaskItem{
			ID:                reqID,
			Name:              resolveRequirementName(req),
			Category:          firstNonEmptyStr(req, "category"),
			Counts:            counts,
			StartCount:        startCount,
			ProgressBarSuffix: firstNonEmptyStr(req, "progressBarSuffix"),
			ScoreboardDisplay: firstNonEmptyStr(req, "scoreboardDisplay"),
			NumberOfCohorts:   toInt(req["numberOfCohorts"], 0),
			SortPriority:      firstNonEmptyStr(req, "sortPriority"),
			CurrentCount:      resolvePreviousCount(progressEntry, cohort, startCount),
			TargetCount:       targetCount,
			IsCustom:          isCustom,
			TimeOnly:          timeOnly,
		})
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Category != tasks[j].Category {
			return tasks[i].Category < tasks[j].Category
		}
		if tasks[i].SortPriority != tasks[j].SortPriority {
			return tasks[i].SortPriority < tasks[j].SortPriority
		}
		return tasks[i].Name < tasks[j].Name
	})

	if cohort != "" {
		cohortSet[cohort] = struct{}{}
	}
	cohorts := make([]string, 0, len(cohortSet))
	for c := range cohortSet {
		cohorts = append(cohorts, c)
	}
	models.SortCohorts(cohorts)

	return &models.BootstrapSnapshot{
		User: models.UserInfo{
			DisplayName: firstNonEmptyStr(userPayload, "displayName"),
			DojoCohort:  cohort,
		},
		Tasks:             tasks,
		PinnedTaskIDs:     prefs.PinnedTaskIDs,
		TaskUIPreferences: prefs.TaskUIPreferences,
		Version:           prefs.Version,
		AvailableCohorts:  cohorts,
		DefaultFilters:    map[string]string{"cohort": cohort, "category": "ALL", "search": ""},
		FetchedAt:         fetchedAt,
	}
}

// defaultPins reads the server-provided default pin set from the user payload.
func defaultPins(userPayload map[string]any) []string {
	raw, _ := userPayload["pinnedTasks"].([]any)
	pins := make([]string, 0, len(raw))
	for _, item := range raw {
		pins = append(pins, fmt.Sprintf("%v", item))
	}
	return pins
}

// buildProgressPayload constructs the upstream submission body. The new count
// is previous + increment under the same precedence used for display.
func buildProgressPayload(userPayload map[string]any, reqID string, startCount, countIncrement, minutesSpent int, now time.Time) map[string]any {
	cohort := firstNonEmptyStr(userPayload, "dojoCohort")
	progressMap, _ := userPayload["progress"].(map[string]any)
	progressEntry, _ := progressMap[reqID].(map[string]any)
	previousCount := resolvePreviousCount(progressEntry, cohort, startCount)

	return map[string]any{
		"cohort":                  cohort,
		"requirementId":           reqID,
		"previousCount":           previousCount,
		"newCount":                previousCount + countIncrement,
		"incrementalMinutesSpent": minutesSpent,
		"date":                    now.UTC().Format(time.RFC3339),
		"notes":                   "",
	}
}
