package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"dojotap/internal/dojo"
	"dojotap/internal/models"
	"dojotap/internal/shared"
	"dojotap/internal/storage"
	tu "dojotap/internal/testing"

	"github.com/urfave/cli/v3"
)

func testSnapshot() *models.BootstrapSnapshot {
	target := 100
	return &models.BootstrapSnapshot{
		User: models.UserInfo{DisplayName: "tester", DojoCohort: "1200-1300"},
		Tasks: []models.TaskItem{
			{ID: "task-games", Name: "Play Classical Games", Counts: map[string]int{"1200-1300": 90}, CurrentCount: 12},
			{ID: "task-puzzles", Name: "Puzzle Sets", TargetCount: &target, CurrentCount: 40},
			{ID: "task-review", Name: "Review Master Games", TimeOnly: true},
		},
		PinnedTaskIDs:     []string{},
		TaskUIPreferences: map[string]models.TaskUIPreference{},
		Version:           3,
	}
}

func newTestRunner(client *tu.FakeClient) (*Runner, *bytes.Buffer) {
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Client: client,
		Store:  storage.NewMemoryStore(),
		Logger: shared.NewLogger(&bytes.Buffer{}),
		Output: output,
	})
	return runner, output
}

func runApp(t *testing.T, runner *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{Name: "dojotap", Commands: runner.register()}
	return app.Run(context.Background(), append([]string{"dojotap"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			client := &tu.FakeClient{}
			store := storage.NewMemoryStore()

			runner := NewRunner(RunnerOpts{
				Config: config,
				Logger: logger,
				Output: output,
				Client: client,
				Store:  store,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.client != client {
				t.Error("expected client to be set")
			}
			if runner.store != store {
				t.Error("expected store to be set")
			}
			if runner.prefs == nil || runner.cache == nil {
				t.Error("expected preference store and cache to be derived")
			}
			if runner.loader == nil || runner.engine == nil || runner.flow == nil {
				t.Error("expected loader, engine, and flow to be derived from the client")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil store uses in-memory store", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Store: nil})

			if runner.store == nil {
				t.Error("expected default store to be set")
			}
		})

		t.Run("without client leaves upstream graph nil", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.loader != nil || runner.engine != nil || runner.flow != nil {
				t.Error("expected loader, engine, and flow to be nil without a client")
			}
			if err := runner.requireClient(); err == nil {
				t.Error("expected requireClient to fail without a client")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			data := map[string]string{"key": "value"}
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("hello %s", "world")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
			}
		}
	})
}

func TestResolveTask(t *testing.T) {
	snapshot := testSnapshot()

	t.Run("matches exact id", func(t *testing.T) {
		task, err := resolveTask(snapshot, "task-puzzles")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if task.Name != "Puzzle Sets" {
			t.Errorf("expected Puzzle Sets, got %s", task.Name)
		}
	})

	t.Run("matches unique case-insensitive name prefix", func(t *testing.T) {
		task, err := resolveTask(snapshot, "play cl")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if task.ID != "task-games" {
			t.Errorf("expected task-games, got %s", task.ID)
		}
	})

	t.Run("rejects empty query", func(t *testing.T) {
		if _, err := resolveTask(snapshot, ""); err == nil {
			t.Fatal("expected error for empty query")
		}
	})

	t.Run("reports no match", func(t *testing.T) {
		_, err := resolveTask(snapshot, "tactics marathon")
		if err == nil {
			t.Fatal("expected error for unmatched query")
		}
		if !strings.Contains(err.Error(), "no task matches") {
			t.Errorf("expected no-match error, got %v", err)
		}
	})

	t.Run("reports ambiguous prefix", func(t *testing.T) {
		ambiguous := &models.BootstrapSnapshot{
			Tasks: []models.TaskItem{
				{ID: "a", Name: "Endgame Studies"},
				{ID: "b", Name: "Endgame Sparring"},
			},
		}
		_, err := resolveTask(ambiguous, "endgame")
		if err == nil {
			t.Fatal("expected error for ambiguous prefix")
		}
		if !strings.Contains(err.Error(), "matches multiple tasks") {
			t.Errorf("expected ambiguity error, got %v", err)
		}
	})
}

func TestCommands(t *testing.T) {
	t.Run("tasks prints the plan as a table", func(t *testing.T) {
		client := &tu.FakeClient{
			FetchBootstrapFn: func(ctx context.Context) (*models.BootstrapSnapshot, error) {
				return testSnapshot(), nil
			},
		}
		runner, output := newTestRunner(client)

		if err := runApp(t, runner, "tasks"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		result := output.String()
		if !strings.Contains(result, "Play Classical Games") {
			t.Errorf("expected task table, got %s", result)
		}
	})

	t.Run("tasks fails when auth is required", func(t *testing.T) {
		client := &tu.FakeClient{
			FetchBootstrapFn: func(ctx context.Context) (*models.BootstrapSnapshot, error) {
				return nil, shared.ErrAuthRequired
			},
		}
		runner, _ := newTestRunner(client)

		err := runApp(t, runner, "tasks")
		if err == nil {
			t.Fatal("expected error when no session and no cache exist")
		}
	})

	t.Run("log submits count and minutes", func(t *testing.T) {
		var submitted models.SubmitProgressRequest
		client := &tu.FakeClient{
			FetchBootstrapFn: func(ctx context.Context) (*models.BootstrapSnapshot, error) {
				return testSnapshot(), nil
			},
			SubmitProgressFn: func(ctx context.Context, req models.SubmitProgressRequest) (*models.SubmitProgressResult, error) {
				submitted = req
				return &models.SubmitProgressResult{NewCount: 15}, nil
			},
		}
		runner, output := newTestRunner(client)

		if err := runApp(t, runner, "log", "--count", "3", "--minutes", "45", "play"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if submitted.TaskID != "task-games" {
			t.Errorf("expected task-games, got %s", submitted.TaskID)
		}
		if submitted.CountIncrement != 3 || submitted.MinutesSpent != 45 {
			t.Errorf("unexpected submission payload: %+v", submitted)
		}
		if !strings.Contains(output.String(), "count is now 15") {
			t.Errorf("expected confirmation with new count, got %s", output.String())
		}
	})

	t.Run("log skips count for time-only tasks", func(t *testing.T) {
		var submitted models.SubmitProgressRequest
		client := &tu.FakeClient{
			FetchBootstrapFn: func(ctx context.Context) (*models.BootstrapSnapshot, error) {
				return testSnapshot(), nil
			},
			SubmitProgressFn: func(ctx context.Context, req models.SubmitProgressRequest) (*models.SubmitProgressResult, error) {
				submitted = req
				return &models.SubmitProgressResult{}, nil
			},
		}
		runner, output := newTestRunner(client)

		if err := runApp(t, runner, "log", "--count", "5", "--minutes", "30", "review"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if submitted.CountIncrement != 0 {
			t.Errorf("expected zero increment for time-only task, got %d", submitted.CountIncrement)
		}
		if !strings.Contains(output.String(), "Logged 30 minutes") {
			t.Errorf("expected time-only confirmation, got %s", output.String())
		}
	})

	t.Run("log refuses to write against stale data", func(t *testing.T) {
		calls := 0
		client := &tu.FakeClient{
			FetchBootstrapFn: func(ctx context.Context) (*models.BootstrapSnapshot, error) {
				calls++
				if calls == 1 {
					return testSnapshot(), nil
				}
				return nil, shared.ErrServiceUnavailable
			},
		}
		runner, _ := newTestRunner(client)

		// Warm the cache with one fresh load, then fail the next fetch.
		if err := runApp(t, runner, "tasks"); err != nil {
			t.Fatalf("expected warm-up to succeed, got %v", err)
		}

		err := runApp(t, runner, "log", "--minutes", "30", "play")
		if err == nil {
			t.Fatal("expected error when data is stale")
		}
		if !strings.Contains(err.Error(), "logging is disabled") {
			t.Errorf("expected stale-data refusal, got %v", err)
		}
	})

	t.Run("prefs pin pushes the edit upstream", func(t *testing.T) {
		var saved models.Preferences
		client := &tu.FakeClient{
			FetchBootstrapFn: func(ctx context.Context) (*models.BootstrapSnapshot, error) {
				return testSnapshot(), nil
			},
			SavePreferencesFn: func(ctx context.Context, prefs models.Preferences) (models.Preferences, error) {
				saved = prefs
				prefs.Version++
				return prefs, nil
			},
		}
		runner, output := newTestRunner(client)

		if err := runApp(t, runner, "prefs", "pin", "puzzle"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(saved.PinnedTaskIDs) != 1 || saved.PinnedTaskIDs[0] != "task-puzzles" {
			t.Errorf("expected task-puzzles pinned in pushed payload, got %v", saved.PinnedTaskIDs)
		}
		if !strings.Contains(output.String(), "Pinned") {
			t.Errorf("expected pin confirmation, got %s", output.String())
		}
		if runner.prefs.Preferences().Version != 4 {
			t.Errorf("expected version bump from echo, got %d", runner.prefs.Preferences().Version)
		}
	})

	t.Run("prefs pin is idempotent", func(t *testing.T) {
		client := &tu.FakeClient{
			FetchBootstrapFn: func(ctx context.Context) (*models.BootstrapSnapshot, error) {
				snapshot := testSnapshot()
				snapshot.PinnedTaskIDs = []string{"task-puzzles"}
				return snapshot, nil
			},
		}
		runner, output := newTestRunner(client)

		if err := runApp(t, runner, "prefs", "pin", "puzzle"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "already pinned") {
			t.Errorf("expected already-pinned message, got %s", output.String())
		}
	})

	t.Run("prefs set validates the count cap", func(t *testing.T) {
		client := &tu.FakeClient{
			FetchBootstrapFn: func(ctx context.Context) (*models.BootstrapSnapshot, error) {
				return testSnapshot(), nil
			},
		}
		runner, _ := newTestRunner(client)

		err := runApp(t, runner, "prefs", "set", "--count-cap", "500", "puzzle")
		if err == nil {
			t.Fatal("expected error for out-of-range count cap")
		}
	})

	t.Run("prefs show prints the aggregate", func(t *testing.T) {
		runner, output := newTestRunner(&tu.FakeClient{})

		if err := runApp(t, runner, "prefs", "show"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "pinned_task_ids") {
			t.Errorf("expected preference JSON, got %s", output.String())
		}
	})

	t.Run("timeline prints CSV", func(t *testing.T) {
		client := &tu.FakeClient{
			FetchBootstrapFn: func(ctx context.Context) (*models.BootstrapSnapshot, error) {
				return testSnapshot(), nil
			},
			FetchTimelineFn: func(ctx context.Context, taskID string) ([]models.TimelineEntry, error) {
				return []models.TimelineEntry{
					{TaskID: taskID, Cohort: "1200-1300", PreviousCount: 10, NewCount: 12, MinutesSpent: 60},
				}, nil
			},
		}
		runner, output := newTestRunner(client)

		if err := runApp(t, runner, "timeline", "--csv", "play"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		result := output.String()
		if !strings.Contains(result, "Date,Cohort,Previous,New,Minutes,Notes") {
			t.Errorf("expected CSV header, got %s", result)
		}
		if !strings.Contains(result, "1200-1300") {
			t.Errorf("expected timeline row, got %s", result)
		}
	})

	t.Run("history requires the sqlite backend", func(t *testing.T) {
		runner, _ := newTestRunner(&tu.FakeClient{})

		err := runApp(t, runner, "history")
		if err == nil {
			t.Fatal("expected error without sqlite history")
		}
	})

	t.Run("auth status reports authentication", func(t *testing.T) {
		client := &tu.FakeClient{
			FetchAuthStatusFn: func(ctx context.Context) (*dojo.AuthStatus, error) {
				return &dojo.AuthStatus{Authenticated: true, Username: "tester", ExpiresInSec: 1200}, nil
			},
		}
		runner, output := newTestRunner(client)

		if err := runApp(t, runner, "auth", "status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		result := output.String()
		if !strings.Contains(result, "✓ Authenticated") {
			t.Errorf("expected authenticated marker, got %s", result)
		}
		if !strings.Contains(result, "tester") {
			t.Errorf("expected username in output, got %s", result)
		}
	})

	t.Run("auth login delegates to the client", func(t *testing.T) {
		var gotEmail, gotPassword string
		client := &tu.FakeClient{
			LoginFn: func(ctx context.Context, email, password string) error {
				gotEmail, gotPassword = email, password
				return nil
			},
		}
		runner, output := newTestRunner(client)

		if err := runApp(t, runner, "auth", "login", "--email", "me@example.com", "--password", "hunter2"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if gotEmail != "me@example.com" || gotPassword != "hunter2" {
			t.Errorf("unexpected credentials: %s / %s", gotEmail, gotPassword)
		}
		if !strings.Contains(output.String(), "Signed in") {
			t.Errorf("expected sign-in confirmation, got %s", output.String())
		}
	})
}
