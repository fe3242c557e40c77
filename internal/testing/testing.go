// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"dojotap/internal/dojo"
	"dojotap/internal/models"
)

// FakeClient is a configurable test double for [dojo.Client]. Unset function
// fields return zero values and no error.
type FakeClient struct {
	FetchBootstrapFn   func(ctx context.Context) (*models.BootstrapSnapshot, error)
	FetchPreferencesFn func(ctx context.Context) (models.Preferences, error)
	SavePreferencesFn  func(ctx context.Context, prefs models.Preferences) (models.Preferences, error)
	SubmitProgressFn   func(ctx context.Context, req models.SubmitProgressRequest) (*models.SubmitProgressResult, error)
	FetchTimelineFn    func(ctx context.Context, taskID string) ([]models.TimelineEntry, error)
	LoginFn            func(ctx context.Context, email, password string) error
	LogoutFn           func(ctx context.Context) error
	FetchAuthStatusFn  func(ctx context.Context) (*dojo.AuthStatus, error)

	mu              sync.Mutex
	authStatusCalls int
}

var _ dojo.Client = (*FakeClient)(nil)

func (f *FakeClient) FetchBootstrap(ctx context.Context) (*models.BootstrapSnapshot, error) {
	if f.FetchBootstrapFn != nil {
		return f.FetchBootstrapFn(ctx)
	}
	return &models.BootstrapSnapshot{}, nil
}

func (f *FakeClient) FetchPreferences(ctx context.Context) (models.Preferences, error) {
	if f.FetchPreferencesFn != nil {
		return f.FetchPreferencesFn(ctx)
	}
	return models.Preferences{}, nil
}

func (f *FakeClient) SavePreferences(ctx context.Context, prefs models.Preferences) (models.Preferences, error) {
	if f.SavePreferencesFn != nil {
		return f.SavePreferencesFn(ctx, prefs)
	}
	return prefs, nil
}

func (f *FakeClient) SubmitProgress(ctx context.Context, req models.SubmitProgressRequest) (*models.SubmitProgressResult, error) {
	if f.SubmitProgressFn != nil {
		return f.SubmitProgressFn(ctx, req)
	}
	return &models.SubmitProgressResult{}, nil
}

func (f *FakeClient) FetchTimeline(ctx context.Context, taskID string) ([]models.TimelineEntry, error) {
	if f.FetchTimelineFn != nil {
		return f.FetchTimelineFn(ctx, taskID)
	}
	return nil, nil
}

func (f *FakeClient) Login(ctx context.Context, email, password string) error {
	if f.LoginFn != nil {
		return f.LoginFn(ctx, email, password)
	}
	return nil
}

func (f *FakeClient) Logout(ctx context.Context) error {
	if f.LogoutFn != nil {
		return f.LogoutFn(ctx)
	}
	return nil
}

func (f *FakeClient) FetchAuthStatus(ctx context.Context) (*dojo.AuthStatus, error) {
	f.mu.Lock()
	f.authStatusCalls++
	f.mu.Unlock()
	if f.FetchAuthStatusFn != nil {
		return f.FetchAuthStatusFn(ctx)
	}
	return &dojo.AuthStatus{}, nil
}

// AuthStatusCalls reports how many auth status refreshes were requested.
func (f *FakeClient) AuthStatusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authStatusCalls
}

// FailingStore is a [storage.Store] whose operations all fail.
type FailingStore struct{}

func (FailingStore) Get(key string) (string, bool, error) {
	return "", false, errors.New("get failed")
}

func (FailingStore) Set(key, value string) error {
	return errors.New("set failed")
}

func (FailingStore) Remove(key string) error {
	return errors.New("remove failed")
}

// ManualScheduler is a [prefsync.Scheduler] that never fires on its own; tests
// call Fire to run the most recently scheduled callback.
type ManualScheduler struct {
	mu        sync.Mutex
	fn        func()
	lastDelay time.Duration
	scheduled int
	stopped   int
}

func (s *ManualScheduler) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	s.fn = fn
	s.lastDelay = d
	s.scheduled++
	s.mu.Unlock()
}

func (s *ManualScheduler) Stop() {
	s.mu.Lock()
	s.fn = nil
	s.stopped++
	s.mu.Unlock()
}

// Fire runs the pending callback, if any, and reports whether one ran.
func (s *ManualScheduler) Fire() bool {
	s.mu.Lock()
	fn := s.fn
	s.fn = nil
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// Scheduled returns how many times Schedule was called.
func (s *ManualScheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduled
}

// LastDelay returns the delay passed to the most recent Schedule call.
func (s *ManualScheduler) LastDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDelay
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = (*FCloser)(nil)

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
