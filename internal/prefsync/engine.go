// package prefsync implements the eventually-consistent, conflict-aware push
// of local preference and pin edits to the server.
//
// Edits are debounced so bursts collapse into one network call. Flushes are
// strictly serialized by an in-flight guard; the payload of an in-flight
// flush is captured up front and never mutated by later edits. A stale
// version answer is recovered by adopting the server's authoritative state;
// local edits made inside the conflicted window are not replayed
// (last-fetch-wins, a deliberate lossy tradeoff).
package prefsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"dojotap/internal/dojo"
	"dojotap/internal/prefs"
	"dojotap/internal/shared"
)

// Engine pushes local preference edits upstream.
type Engine struct {
	client    dojo.Client
	store     *prefs.Store
	scheduler Scheduler
	debounce  time.Duration
	logger    *log.Logger

	// notice surfaces non-blocking user-visible messages.
	notice func(string)
	// onAuthRequired is invoked when a flush hits an auth failure.
	onAuthRequired func()

	mu       sync.Mutex
	enabled  bool
	inFlight bool
	editSeq  uint64
}

// Options configures optional Engine collaborators.
type Options struct {
	Scheduler      Scheduler
	Debounce       time.Duration
	Logger         *log.Logger
	Notice         func(string)
	OnAuthRequired func()
}

// NewEngine creates a sync engine. It starts disabled; callers enable it
// after the first successful bootstrap, when a version exists to push against.
func NewEngine(client dojo.Client, store *prefs.Store, opts Options) *Engine {
	if opts.Scheduler == nil {
		opts.Scheduler = NewTimerScheduler()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 400 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Notice == nil {
		opts.Notice = func(string) {}
	}
	if opts.OnAuthRequired == nil {
		opts.OnAuthRequired = func() {}
	}

	return &Engine{
		client:         client,
		store:          store,
		scheduler:      opts.Scheduler,
		debounce:       opts.Debounce,
		logger:         opts.Logger,
		notice:         opts.Notice,
		onAuthRequired: opts.OnAuthRequired,
	}
}

// Enable arms the engine. Called after the first successful bootstrap.
func (e *Engine) Enable() {
	e.mu.Lock()
	e.enabled = true
	e.mu.Unlock()
}

// Disable disarms the engine and cancels any pending debounce. Called on
// auth-required transitions.
func (e *Engine) Disable() {
	e.mu.Lock()
	e.enabled = false
	e.mu.Unlock()
	e.scheduler.Stop()
}

// Enabled reports whether the engine will sync.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// ScheduleSync resets the debounce timer. Every local mutation entry point
// calls this; a burst of edits collapses into one flush.
func (e *Engine) ScheduleSync() {
	e.mu.Lock()
	if !e.enabled {
		e.mu.Unlock()
		return
	}
	e.editSeq++
	e.mu.Unlock()

	e.scheduleFlush()
}

// scheduleFlush arms the debounce timer. A flush that bounces off the
// in-flight guard re-arms itself so the edit that triggered it is never
// stranded waiting for another mutation.
func (e *Engine) scheduleFlush() {
	e.scheduler.Schedule(e.debounce, func() {
		err := e.Flush(context.Background())
		if errors.Is(err, shared.ErrSyncInFlight) {
			e.scheduleFlush()
			return
		}
		if err != nil {
			e.logger.Warn("scheduled preference flush failed", "err", err)
		}
	})
}

// Flush pushes the full current aggregate under its last-known version.
// At most one flush is in flight at a time; a flush requested while one is
// running returns ErrSyncInFlight and relies on the debounce to try again.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	if !e.enabled {
		e.mu.Unlock()
		return nil
	}
	if e.inFlight {
		e.mu.Unlock()
		return shared.ErrSyncInFlight
	}
	e.inFlight = true
	capturedSeq := e.editSeq
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inFlight = false
		e.mu.Unlock()
	}()

	// Captured here; later edits affect only the next debounced flush.
	payload := e.store.Preferences()

	echo, err := e.client.SavePreferences(ctx, payload)
	if err != nil {
		return e.recover(ctx, err)
	}

	e.mu.Lock()
	dirty := e.editSeq != capturedSeq
	e.mu.Unlock()

	if dirty {
		// Edits arrived mid-flight. Keep them, adopt only the version, and
		// re-arm the debounce: the edits' own scheduled flush may already
		// have fired into the in-flight guard and been consumed.
		e.store.SetVersion(echo.Version)
		e.scheduleFlush()
	} else {
		// The server may normalize; its echo becomes authoritative.
		e.store.Replace(echo)
	}

	e.logger.Debug("preferences synced", "version", echo.Version)
	return nil
}

// recover classifies a flush failure into the conflict / auth / transient
// branches. Nothing propagates to the caller as fatal.
func (e *Engine) recover(ctx context.Context, err error) error {
	var conflictErr *dojo.ConflictError
	var authErr *dojo.AuthError

	switch {
	case errors.As(err, &conflictErr):
		latest := conflictErr.Latest
		if latest.Version == 0 {
			fetched, fetchErr := e.client.FetchPreferences(ctx)
			if fetchErr != nil {
				e.logger.Warn("conflict recovery fetch failed", "err", fetchErr)
				return fetchErr
			}
			latest = fetched
		}
		e.store.Replace(latest)
		e.notice("Settings were changed in another session; reloaded the latest version.")
		e.logger.Info("preference conflict recovered", "version", latest.Version)
		return nil

	case errors.As(err, &authErr):
		e.Disable()
		e.onAuthRequired()
		e.logger.Warn("preference sync requires re-authentication")
		return err

	default:
		e.notice("Couldn't save settings; they will retry with your next change.")
		e.logger.Warn("preference flush failed", "err", err)
		return err
	}
}
