package display

import (
	"testing"

	"dojotap/internal/models"
)

func TestResolveTargetCount(t *testing.T) {
	t.Run("Cohort Specific Target Wins", func(t *testing.T) {
		task := models.TaskItem{
			Counts: map[string]int{"1100-1200": 120, "1200-1300": 90, models.AllCohorts: 50},
		}
		if got, ok := ResolveTargetCount(task, "1200-1300"); !ok || got != 90 {
			t.Errorf("expected 90, got %d (ok=%v)", got, ok)
		}
	})

	t.Run("All Cohorts Sentinel Is Second", func(t *testing.T) {
		task := models.TaskItem{
			Counts: map[string]int{models.AllCohorts: 50, "1100-1200": 120},
		}
		if got, ok := ResolveTargetCount(task, "1500-1600"); !ok || got != 50 {
			t.Errorf("expected 50, got %d (ok=%v)", got, ok)
		}
	})

	t.Run("Explicit Target Is Third", func(t *testing.T) {
		target := 30
		task := models.TaskItem{TargetCount: &target}
		if got, ok := ResolveTargetCount(task, "1200-1300"); !ok || got != 30 {
			t.Errorf("expected 30, got %d (ok=%v)", got, ok)
		}
	})

	t.Run("Max Over Counts Is Fourth", func(t *testing.T) {
		task := models.TaskItem{
			Counts: map[string]int{"1100-1200": 120, "1500-1600": 200},
		}
		if got, ok := ResolveTargetCount(task, "0-300"); !ok || got != 200 {
			t.Errorf("expected 200, got %d (ok=%v)", got, ok)
		}
	})

	t.Run("No Target Anywhere", func(t *testing.T) {
		if _, ok := ResolveTargetCount(models.TaskItem{}, "1200-1300"); ok {
			t.Error("expected no resolvable target")
		}
	})
}

func TestFormatDisplayName(t *testing.T) {
	t.Run("Substitutes Cohort Target", func(t *testing.T) {
		task := models.TaskItem{
			Name:   "Play {{count}} Classical Games per Year",
			Counts: map[string]int{"1100-1200": 120, "1200-1300": 90},
		}
		got := FormatDisplayName(task, "1200-1300")
		want := "Play 90 Classical Games per Year"
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("Name Without Placeholder Passes Through", func(t *testing.T) {
		task := models.TaskItem{Name: "Annotate one game"}
		if got := FormatDisplayName(task, "1200-1300"); got != "Annotate one game" {
			t.Errorf("expected pass-through, got %q", got)
		}
	})

	t.Run("Unresolvable Target Renders Question Mark", func(t *testing.T) {
		task := models.TaskItem{Name: "Solve {{count}} puzzles"}
		if got := FormatDisplayName(task, "1200-1300"); got != "Solve ? puzzles" {
			t.Errorf("expected literal ?, got %q", got)
		}
	})

	t.Run("Every Occurrence Gets The Same Value", func(t *testing.T) {
		task := models.TaskItem{
			Name:   "{{count}} games, {{ COUNT }} annotations",
			Counts: map[string]int{models.AllCohorts: 12},
		}
		if got := FormatDisplayName(task, "1200-1300"); got != "12 games, 12 annotations" {
			t.Errorf("expected identical substitution, got %q", got)
		}
	})
}

func TestIsCompleted(t *testing.T) {
	t.Run("Current At Target Is Complete", func(t *testing.T) {
		task := models.TaskItem{CurrentCount: 90, Counts: map[string]int{"1200-1300": 90}}
		if !IsCompleted(task, "1200-1300") {
			t.Error("expected completed")
		}
	})

	t.Run("Current Below Target Is Incomplete", func(t *testing.T) {
		task := models.TaskItem{CurrentCount: 89, Counts: map[string]int{"1200-1300": 90}}
		if IsCompleted(task, "1200-1300") {
			t.Error("expected incomplete")
		}
	})

	t.Run("Time Only Never Completes By Count", func(t *testing.T) {
		task := models.TaskItem{TimeOnly: true, CurrentCount: 999, Counts: map[string]int{"1200-1300": 1}}
		if IsCompleted(task, "1200-1300") {
			t.Error("time-only tasks have no count completion")
		}
	})

	t.Run("No Target Means Incomplete", func(t *testing.T) {
		if IsCompleted(models.TaskItem{CurrentCount: 50}, "1200-1300") {
			t.Error("unresolvable target should never report completed")
		}
	})
}

func TestCountTiles(t *testing.T) {
	pref := models.TaskUIPreference{
		CountLabelMode: models.LabelIncrement,
		TileSize:       models.TileMedium,
		CountCap:       10,
	}

	t.Run("Capped By Preference", func(t *testing.T) {
		task := models.TaskItem{Counts: map[string]int{"1200-1300": 500}}
		tiles := CountTiles(task, pref, "1200-1300")
		if len(tiles) != 10 {
			t.Fatalf("expected 10 tiles, got %d", len(tiles))
		}
		if tiles[0].Label != "+1" || tiles[9].Label != "+10" {
			t.Errorf("unexpected labels: %s .. %s", tiles[0].Label, tiles[9].Label)
		}
	})

	t.Run("Capped By Remaining To Target", func(t *testing.T) {
		task := models.TaskItem{CurrentCount: 497, Counts: map[string]int{"1200-1300": 500}}
		tiles := CountTiles(task, pref, "1200-1300")
		if len(tiles) != 3 {
			t.Fatalf("expected 3 tiles, got %d", len(tiles))
		}
	})

	t.Run("Always At Least One Tile", func(t *testing.T) {
		task := models.TaskItem{CurrentCount: 500, Counts: map[string]int{"1200-1300": 500}}
		if tiles := CountTiles(task, pref, "1200-1300"); len(tiles) != 1 {
			t.Fatalf("expected 1 tile past target, got %d", len(tiles))
		}
	})

	t.Run("Absolute Mode Labels With Resulting Total", func(t *testing.T) {
		absolute := pref
		absolute.CountLabelMode = models.LabelAbsolute
		task := models.TaskItem{CurrentCount: 436, Counts: map[string]int{"1200-1300": 500}}
		tiles := CountTiles(task, absolute, "1200-1300")
		if tiles[0].Label != "437" {
			t.Errorf("expected label 437, got %s", tiles[0].Label)
		}
	})

	t.Run("Invalid Cap Falls Back To Default", func(t *testing.T) {
		bad := pref
		bad.CountCap = 0
		task := models.TaskItem{Counts: map[string]int{"1200-1300": 500}}
		if tiles := CountTiles(task, bad, "1200-1300"); len(tiles) != models.CountCapDefault {
			t.Errorf("expected %d tiles, got %d", models.CountCapDefault, len(tiles))
		}
	})
}

func TestProgressSummary(t *testing.T) {
	t.Run("With Target And Suffix", func(t *testing.T) {
		task := models.TaskItem{
			CurrentCount:      436,
			Counts:            map[string]int{"1200-1300": 500},
			ProgressBarSuffix: "games",
		}
		if got := ProgressSummary(task, "1200-1300"); got != "436/500 games" {
			t.Errorf("expected '436/500 games', got %q", got)
		}
	})

	t.Run("Without Target", func(t *testing.T) {
		task := models.TaskItem{CurrentCount: 12}
		if got := ProgressSummary(task, "1200-1300"); got != "12" {
			t.Errorf("expected '12', got %q", got)
		}
	})

	t.Run("Time Only", func(t *testing.T) {
		if got := ProgressSummary(models.TaskItem{TimeOnly: true}, "1200-1300"); got != "time only" {
			t.Errorf("expected 'time only', got %q", got)
		}
	})
}
