package loader

import (
	"context"
	"errors"
	"testing"
	"time"

	"dojotap/internal/cache"
	"dojotap/internal/dojo"
	"dojotap/internal/models"
	"dojotap/internal/prefs"
	"dojotap/internal/storage"
	tu "dojotap/internal/testing"
)

func snapshotFixture(version int) *models.BootstrapSnapshot {
	return &models.BootstrapSnapshot{
		User: models.UserInfo{DisplayName: "magnus", DojoCohort: "1200-1300"},
		Tasks: []models.TaskItem{
			{ID: "task-a", Name: "Annotate a game"},
			{ID: "task-b", Name: "Solve puzzles"},
		},
		PinnedTaskIDs: []string{"task-a"},
		TaskUIPreferences: map[string]models.TaskUIPreference{
			"task-a": {CountLabelMode: models.LabelIncrement, TileSize: models.TileMedium, CountCap: 10},
		},
		Version:   version,
		FetchedAt: time.Now(),
	}
}

func newHarness(client dojo.Client) (*Loader, *cache.BootstrapCache, *prefs.Store) {
	mem := storage.NewMemoryStore()
	bc := cache.New(mem)
	ps := prefs.NewStore(mem, nil)
	return New(client, bc, ps, time.Second, nil), bc, ps
}

func TestLoader(t *testing.T) {
	t.Run("Fresh Fetch", func(t *testing.T) {
		t.Run("Returns Fresh And Caches", func(t *testing.T) {
			client := &tu.FakeClient{
				FetchBootstrapFn: func(ctx context.Context) (*models.BootstrapSnapshot, error) {
					return snapshotFixture(3), nil
				},
			}
			l, bc, _ := newHarness(client)

			result := l.Load(context.Background())
			if result.State != StateFresh {
				t.Fatalf("expected fresh state, got %s", result.State)
			}
			if result.Snapshot == nil || len(result.Snapshot.Tasks) != 2 {
				t.Fatalf("expected snapshot with 2 tasks, got %+v", result.Snapshot)
			}
			if !l.CanLog() {
				t.Error("logging should be allowed after a fresh load")
			}
			if bc.Restore() == nil {
				t.Error("fresh snapshot should be cached")
			}
		})

		t.Run("Seeds Local Preferences On First Load", func(t *testing.T) {
			client := &tu.FakeClient{
				FetchBootstrapFn: func(ctx context.Context) (*models.BootstrapSnapshot, error) {
					return snapshotFixture(3), nil
				},
			}
			l, _, ps := newHarness(client)

			l.Load(context.Background())

			local := ps.Preferences()
			if local.Version != 3 {
				t.Errorf("expected seeded version 3, got %d", local.Version)
			}
			if !ps.IsPinned("task-a") {
				t.Error("expected server pin seeded locally")
			}
		})

		t.Run("Reconciles Existing Local Preferences", func(t *testing.T) {
			client := &tu.FakeClient{
				FetchBootstrapFn: func(ctx context.Context) (*models.BootstrapSnapshot, error) {
					return snapshotFixture(5), nil
				},
			}
			l, _, ps := newHarness(client)
			ps.Replace(models.Preferences{
				PinnedTaskIDs: []string{"task-b", "task-removed"},
				Version:       2,
			})

			l.Load(context.Background())

			local := ps.Preferences()
			if local.Version != 5 {
				t.Errorf("expected version adopted from snapshot, got %d", local.Version)
			}
			if ps.IsPinned("task-removed") {
				t.Error("pin for a removed task should be pruned")
			}
			if !ps.IsPinned("task-b") {
				t.Error("local pin for a live task should survive, not be overwritten by the server set")
			}
		})
	})

	t.Run("Timeout", func(t *testing.T) {
		timeoutErr := &dojo.TimeoutError{Op: "bootstrap", Err: context.DeadlineExceeded}

		t.Run("With Cache Falls Back Stale", func(t *testing.T) {
			client := &tu.FakeClient{
				FetchBootstrapFn: func(ctx context.Context) (*models.BootstrapSnapshot, error) {
					return nil, timeoutErr
				},
			}
			l, bc, _ := newHarness(client)
			if err := bc.Save(snapshotFixture(1)); err != nil {
				t.Fatalf("seed cache failed: %v", err)
			}

			result := l.Load(context.Background())
			if result.State != StateStaleCache {
				t.Fatalf("expected stale cache state, got %s", result.State)
			}
			if result.Snapshot == nil {
				t.Fatal("expected the cached snapshot")
			}
			if result.Notice == "" {
				t.Error("expected a user-visible notice about the stale fallback")
			}
			if l.CanLog() {
				t.Error("logging must be disabled on stale data")
			}
		})

		t.Run("Without Cache Requires Auth", func(t *testing.T) {
			client := &tu.FakeClient{
				FetchBootstrapFn: func(ctx context.Context) (*models.BootstrapSnapshot, error) {
					return nil, timeoutErr
				},
			}
			l, _, _ := newHarness(client)

			result := l.Load(context.Background())
			if result.State != StateAuthRequired {
				t.Fatalf("expected auth required, got %s", result.State)
			}
			if !errors.Is(result.Err, timeoutErr) {
				t.Errorf("expected the timeout cause, got %v", result.Err)
			}
		})
	})

	t.Run("Auth Failure", func(t *testing.T) {
		client := &tu.FakeClient{
			FetchBootstrapFn: func(ctx context.Context) (*models.BootstrapSnapshot, error) {
				return nil, &dojo.AuthError{StatusCode: 401, Detail: "token expired"}
			},
		}
		l, bc, _ := newHarness(client)
		if err := bc.Save(snapshotFixture(1)); err != nil {
			t.Fatalf("seed cache failed: %v", err)
		}

		result := l.Load(context.Background())
		if result.State != StateAuthRequired {
			t.Fatalf("expected auth required, got %s", result.State)
		}
		if bc.Restore() != nil {
			t.Error("cache must be cleared when the session is invalid")
		}
		if client.AuthStatusCalls() != 1 {
			t.Errorf("expected one auth status refresh, got %d", client.AuthStatusCalls())
		}
		if l.CanLog() {
			t.Error("logging must be disabled without a session")
		}
	})

	t.Run("Network Failure Falls Back To Cache Without Clearing", func(t *testing.T) {
		client := &tu.FakeClient{
			FetchBootstrapFn: func(ctx context.Context) (*models.BootstrapSnapshot, error) {
				return nil, &dojo.NetworkError{Op: "bootstrap", Err: errors.New("connection refused")}
			},
		}
		l, bc, _ := newHarness(client)
		if err := bc.Save(snapshotFixture(1)); err != nil {
			t.Fatalf("seed cache failed: %v", err)
		}

		result := l.Load(context.Background())
		if result.State != StateStaleCache {
			t.Fatalf("expected stale cache state, got %s", result.State)
		}
		if bc.Restore() == nil {
			t.Error("transient failures must not clear the cache")
		}
	})

	t.Run("Recovery After Stale", func(t *testing.T) {
		calls := 0
		client := &tu.FakeClient{
			FetchBootstrapFn: func(ctx context.Context) (*models.BootstrapSnapshot, error) {
				calls++
				if calls == 1 {
					return nil, &dojo.TimeoutError{Op: "bootstrap", Err: context.DeadlineExceeded}
				}
				return snapshotFixture(4), nil
			},
		}
		l, bc, _ := newHarness(client)
		if err := bc.Save(snapshotFixture(1)); err != nil {
			t.Fatalf("seed cache failed: %v", err)
		}

		if result := l.Load(context.Background()); result.State != StateStaleCache {
			t.Fatalf("expected stale on first attempt, got %s", result.State)
		}
		if result := l.Load(context.Background()); result.State != StateFresh {
			t.Fatalf("expected fresh on retry, got %s", result.State)
		}
		if !l.CanLog() {
			t.Error("logging should re-enable after recovery")
		}
	})
}
