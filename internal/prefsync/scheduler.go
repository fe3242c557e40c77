package prefsync

import (
	"sync"
	"time"
)

// Scheduler defers a callback by a duration. Scheduling again before the
// callback fires resets the timer, giving debounce semantics. Implementations
// must be safe for concurrent use.
type Scheduler interface {
	Schedule(d time.Duration, fn func())
	Stop()
}

// TimerScheduler is the wall-clock Scheduler used outside tests.
type TimerScheduler struct {
	mu    sync.Mutex
	timer *time.Timer
}

// NewTimerScheduler creates an idle TimerScheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

func (s *TimerScheduler) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, fn)
}

func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
