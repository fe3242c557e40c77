// package prefs implements the local preference store: durable, validated
// storage of the pin set and per-task UI preferences, independent of the
// network.
//
// The store fails soft everywhere. Corrupt persisted state loads as empty
// structures, and persistence failures are swallowed so the in-memory state
// stays authoritative for the session.
package prefs

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"dojotap/internal/models"
	"dojotap/internal/shared"
	"dojotap/internal/storage"
)

// Slot is the storage key the preference aggregate persists under.
const Slot = "preferences"

// Store owns the locally persisted preference aggregate. All mutation entry
// points persist immediately and notify subscribed observers.
type Store struct {
	storage storage.Store
	logger  *log.Logger

	mu        sync.Mutex
	prefs     models.Preferences
	observers []func()
}

// NewStore creates a Store and loads any persisted state.
func NewStore(st storage.Store, logger *log.Logger) *Store {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	s := &Store{storage: st, logger: logger}
	s.prefs = s.load()
	return s
}

// persistedShape is the raw slot layout. Preference entries stay loosely
// typed until sanitization so one bad entry cannot poison the rest.
type persistedShape struct {
	PinnedTaskIDs     []string       `json:"pinned_task_ids"`
	TaskUIPreferences map[string]any `json:"task_ui_preferences"`
	Version           int            `json:"version"`
}

// load reads the persisted slot. Parse failures and shape mismatches return
// empty structures, never an error.
func (s *Store) load() models.Preferences {
	empty := models.Preferences{
		PinnedTaskIDs:     []string{},
		TaskUIPreferences: map[string]models.TaskUIPreference{},
	}

	raw, ok, err := s.storage.Get(Slot)
	if err != nil || !ok {
		return empty
	}

	var shape persistedShape
	if err := json.Unmarshal([]byte(raw), &shape); err != nil {
		s.logger.Warn("discarding unreadable preference slot", "err", err)
		return empty
	}

	out := models.Preferences{
		PinnedTaskIDs:     shape.PinnedTaskIDs,
		TaskUIPreferences: map[string]models.TaskUIPreference{},
		Version:           shape.Version,
	}
	if out.PinnedTaskIDs == nil {
		out.PinnedTaskIDs = []string{}
	}

	for taskID, entry := range shape.TaskUIPreferences {
		if pref, ok := SanitizePreferenceEntry(entry); ok {
			out.TaskUIPreferences[taskID] = pref
		} else {
			s.logger.Warn("dropping invalid preference entry", "task", taskID)
		}
	}

	return out
}

// SanitizePreferenceEntry validates a raw preference entry. Entries with an
// unrecognized label mode or tile size are dropped entirely; a missing or
// out-of-range count cap alone falls back to the default.
func SanitizePreferenceEntry(raw any) (models.TaskUIPreference, bool) {
	entry, ok := raw.(map[string]any)
	if !ok {
		return models.TaskUIPreference{}, false
	}

	mode, _ := entry["count_label_mode"].(string)
	if !models.CountLabelMode(mode).Valid() {
		return models.TaskUIPreference{}, false
	}

	size, _ := entry["tile_size"].(string)
	if !models.TileSize(size).Valid() {
		return models.TaskUIPreference{}, false
	}

	cap := models.CountCapDefault
	if rawCap, ok := entry["count_cap"].(float64); ok {
		if n := int(rawCap); n >= models.CountCapMin && n <= models.CountCapMax && float64(n) == rawCap {
			cap = n
		}
	}

	return models.TaskUIPreference{
		CountLabelMode: models.CountLabelMode(mode),
		TileSize:       models.TileSize(size),
		CountCap:       cap,
	}, true
}

// Persist writes the current in-memory structures back to storage. Safe to
// call frequently; failures are swallowed.
func (s *Store) Persist() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked()
}

func (s *Store) persistLocked() {
	data, err := json.Marshal(persistedShape{
		PinnedTaskIDs:     s.prefs.PinnedTaskIDs,
		TaskUIPreferences: toLoose(s.prefs.TaskUIPreferences),
		Version:           s.prefs.Version,
	})
	if err != nil {
		s.logger.Warn("failed to serialize preferences", "err", err)
		return
	}
	if err := s.storage.Set(Slot, string(data)); err != nil {
		s.logger.Warn("failed to persist preferences", "err", err)
	}
}

func toLoose(prefs map[string]models.TaskUIPreference) map[string]any {
	out := make(map[string]any, len(prefs))
	for taskID, pref := range prefs {
		out[taskID] = map[string]any{
			"count_label_mode": string(pref.CountLabelMode),
			"tile_size":        string(pref.TileSize),
			"count_cap":        float64(pref.CountCap),
		}
	}
	return out
}

// Preferences returns a deep copy of the current aggregate.
func (s *Store) Preferences() models.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.Clone()
}

// Replace overwrites local state wholesale (bootstrap reconciliation and
// conflict recovery), persists, and notifies observers.
func (s *Store) Replace(prefs models.Preferences) {
	s.mu.Lock()
	s.prefs = prefs.Clone()
	if s.prefs.PinnedTaskIDs == nil {
		s.prefs.PinnedTaskIDs = []string{}
	}
	if s.prefs.TaskUIPreferences == nil {
		s.prefs.TaskUIPreferences = map[string]models.TaskUIPreference{}
	}
	s.persistLocked()
	s.mu.Unlock()
	s.notify()
}

// TogglePin adds or removes a task from the pin set and reports whether the
// task is pinned afterwards.
func (s *Store) TogglePin(taskID string) bool {
	s.mu.Lock()
	pinned := false
	next := s.prefs.PinnedTaskIDs[:0]
	for _, id := range s.prefs.PinnedTaskIDs {
		if id == taskID {
			continue
		}
		next = append(next, id)
	}
	if len(next) == len(s.prefs.PinnedTaskIDs) {
		next = append(next, taskID)
		pinned = true
	}
	s.prefs.PinnedTaskIDs = next
	s.persistLocked()
	s.mu.Unlock()
	s.notify()
	return pinned
}

// IsPinned reports whether a task is in the pin set.
func (s *Store) IsPinned(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.prefs.PinnedTaskIDs {
		if id == taskID {
			return true
		}
	}
	return false
}

// entryFor returns the stored entry or a default one for lazy creation.
func entryFor(prefs map[string]models.TaskUIPreference, taskID string) models.TaskUIPreference {
	if pref, ok := prefs[taskID]; ok {
		return pref
	}
	return models.TaskUIPreference{
		CountLabelMode: models.LabelIncrement,
		TileSize:       models.TileMedium,
		CountCap:       models.CountCapDefault,
	}
}

// SetCountLabelMode sets the count label display mode for a task.
func (s *Store) SetCountLabelMode(taskID string, mode models.CountLabelMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: label mode %q", shared.ErrInvalidArgument, mode)
	}
	s.mu.Lock()
	entry := entryFor(s.prefs.TaskUIPreferences, taskID)
	entry.CountLabelMode = mode
	s.prefs.TaskUIPreferences[taskID] = entry
	s.persistLocked()
	s.mu.Unlock()
	s.notify()
	return nil
}

// SetTileSize sets the tile density class for a task.
func (s *Store) SetTileSize(taskID string, size models.TileSize) error {
	if !size.Valid() {
		return fmt.Errorf("%w: tile size %q", shared.ErrInvalidArgument, size)
	}
	s.mu.Lock()
	entry := entryFor(s.prefs.TaskUIPreferences, taskID)
	entry.TileSize = size
	s.prefs.TaskUIPreferences[taskID] = entry
	s.persistLocked()
	s.mu.Unlock()
	s.notify()
	return nil
}

// SetCountCap sets the count tile cap for a task.
func (s *Store) SetCountCap(taskID string, cap int) error {
	if cap < models.CountCapMin || cap > models.CountCapMax {
		return fmt.Errorf("%w: count cap %d outside [%d,%d]", shared.ErrInvalidArgument, cap, models.CountCapMin, models.CountCapMax)
	}
	s.mu.Lock()
	entry := entryFor(s.prefs.TaskUIPreferences, taskID)
	entry.CountCap = cap
	s.prefs.TaskUIPreferences[taskID] = entry
	s.persistLocked()
	s.mu.Unlock()
	s.notify()
	return nil
}

// Entry returns the effective preference entry for a task, falling back to
// defaults for tasks never customized.
func (s *Store) Entry(taskID string) models.TaskUIPreference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return entryFor(s.prefs.TaskUIPreferences, taskID)
}

// Reconcile removes preference entries and pin references whose task id is
// not in validTaskIDs. Returns whether anything changed; callers persist only
// when it did.
func (s *Store) Reconcile(validTaskIDs map[string]struct{}) bool {
	s.mu.Lock()
	changed := false

	nextPins := s.prefs.PinnedTaskIDs[:0]
	for _, id := range s.prefs.PinnedTaskIDs {
		if _, ok := validTaskIDs[id]; ok {
			nextPins = append(nextPins, id)
		} else {
			changed = true
		}
	}
	s.prefs.PinnedTaskIDs = nextPins

	for taskID := range s.prefs.TaskUIPreferences {
		if _, ok := validTaskIDs[taskID]; !ok {
			delete(s.prefs.TaskUIPreferences, taskID)
			changed = true
		}
	}

	if changed {
		s.persistLocked()
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return changed
}

// SetVersion updates the optimistic concurrency stamp after a successful sync.
func (s *Store) SetVersion(version int) {
	s.mu.Lock()
	s.prefs.Version = version
	s.persistLocked()
	s.mu.Unlock()
}

// Subscribe registers an observer invoked after every mutation.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.Lock()
	observers := append([]func(){}, s.observers...)
	s.mu.Unlock()
	for _, fn := range observers {
		fn()
	}
}
