// package loader orchestrates the bootstrap fetch: bounded latency, cache
// fallback, and failure classification.
//
// The loader never leaves the caller without a decision. Every load ends in
// fresh data, stale-but-usable cached data, or an explicit auth-required
// signal.
package loader

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"dojotap/internal/cache"
	"dojotap/internal/dojo"
	"dojotap/internal/models"
	"dojotap/internal/prefs"
	"dojotap/internal/shared"
)

// State is the loader's decision after a fetch attempt.
type State string

const (
	// StateFresh means the snapshot was fetched this attempt.
	StateFresh State = "fresh"
	// StateStaleCache means a cached snapshot is displayed read-only because
	// the fetch failed or timed out. Callers must refuse logging writes.
	StateStaleCache State = "stale_cache"
	// StateAuthRequired means no usable data exists without re-login.
	StateAuthRequired State = "auth_required"
)

// Result is the outcome of one load attempt.
type Result struct {
	State    State
	Snapshot *models.BootstrapSnapshot
	// Notice is a non-blocking user-visible message (retry pending, another
	// session changed settings, etc.). Empty when nothing needs surfacing.
	Notice string
	// Err carries the raw error when State is StateAuthRequired and no cache
	// could stand in.
	Err error
}

// Loader drives bootstrap fetches and owns the fresh/stale/auth decision.
type Loader struct {
	client  dojo.Client
	cache   *cache.BootstrapCache
	prefs   *prefs.Store
	timeout time.Duration
	logger  *log.Logger

	state    State
	snapshot *models.BootstrapSnapshot
}

// New creates a Loader. The timeout bounds each fetch attempt.
func New(client dojo.Client, bc *cache.BootstrapCache, ps *prefs.Store, timeout time.Duration, logger *log.Logger) *Loader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Loader{
		client:  client,
		cache:   bc,
		prefs:   ps,
		timeout: timeout,
		logger:  logger,
		state:   StateAuthRequired,
	}
}

// Load runs one fetch attempt and returns the resulting decision.
func (l *Loader) Load(ctx context.Context) *Result {
	fetchCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	snapshot, err := l.client.FetchBootstrap(fetchCtx)
	if err == nil {
		return l.accept(snapshot)
	}

	var authErr *dojo.AuthError
	switch {
	case errors.Is(err, shared.ErrTimeout):
		l.logger.Warn("bootstrap fetch timed out", "timeout", l.timeout)
		return l.fallback(err, "Upstream is slow; showing the last saved data. Retry pending.")
	case errors.As(err, &authErr):
		l.logger.Warn("bootstrap fetch rejected, session invalid", "status", authErr.StatusCode)
		return l.authRequired(err)
	default:
		l.logger.Warn("bootstrap fetch failed", "err", err)
		return l.fallback(err, "Could not reach the server; showing the last saved data.")
	}
}

// accept installs a fresh snapshot: cache replaced, preference store
// reconciled against the new task-id set, staleness cleared.
func (l *Loader) accept(snapshot *models.BootstrapSnapshot) *Result {
	if err := l.cache.Save(snapshot); err != nil {
		l.logger.Warn("failed to cache snapshot", "err", err)
	}

	local := l.prefs.Preferences()
	if local.Version == 0 {
		// First load: seed the local store from the server aggregate.
		l.prefs.Replace(snapshot.Preferences())
	} else {
		l.prefs.SetVersion(snapshot.Version)
		if l.prefs.Reconcile(snapshot.TaskIDs()) {
			l.logger.Info("pruned preferences for removed tasks")
		}
	}

	l.state = StateFresh
	l.snapshot = snapshot
	l.logger.Info("bootstrap fresh", "tasks", len(snapshot.Tasks), "cohort", snapshot.User.DojoCohort)
	return &Result{State: StateFresh, Snapshot: snapshot}
}

// fallback serves the cached snapshot read-only, or escalates to
// auth-required when no cache exists.
func (l *Loader) fallback(cause error, notice string) *Result {
	if cached := l.cache.Restore(); cached != nil {
		l.state = StateStaleCache
		l.snapshot = cached
		return &Result{State: StateStaleCache, Snapshot: cached, Notice: notice}
	}

	l.state = StateAuthRequired
	l.snapshot = nil
	return &Result{State: StateAuthRequired, Err: cause}
}

// authRequired clears session-dependent state and asks the auth collaborator
// for a status refresh so the caller can render an accurate sign-in prompt.
func (l *Loader) authRequired(cause error) *Result {
	if err := l.cache.Clear(); err != nil {
		l.logger.Warn("failed to clear snapshot cache", "err", err)
	}

	statusCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := l.client.FetchAuthStatus(statusCtx); err != nil {
		l.logger.Debug("auth status refresh failed", "err", err)
	}

	l.state = StateAuthRequired
	l.snapshot = nil
	return &Result{State: StateAuthRequired, Err: cause}
}

// State returns the loader's current decision.
func (l *Loader) State() State { return l.state }

// Snapshot returns the currently usable snapshot, fresh or stale, or nil.
func (l *Loader) Snapshot() *models.BootstrapSnapshot { return l.snapshot }

// CanLog reports whether logging writes are allowed. Writes are disabled
// whenever the displayed data is stale or absent.
func (l *Loader) CanLog() bool { return l.state == StateFresh }
