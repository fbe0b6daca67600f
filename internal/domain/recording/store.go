package recording

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/clinassist/clinassist/internal/domain/clinical"
	"github.com/clinassist/clinassist/internal/platform/kv"
)

// Store persists recordings and their formatted notes on top of a kv.Store.
// Every write goes through one mutex so list updates never interleave.
type Store struct {
	kv     kv.Store
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewStore returns a Store over backend.
func NewStore(backend kv.Store, logger zerolog.Logger) *Store {
	return &Store{kv: backend, logger: logger}
}

// LoadAll returns the persisted list. A missing entry yields an empty list.
// A value that cannot be decoded is logged and also yields an empty list, so
// a damaged store never blocks the app from starting fresh.
func (s *Store) LoadAll(ctx context.Context) (List, error) {
	raw, ok, err := s.kv.Get(ctx, ListKey)
	if err != nil {
		return nil, &StorageError{Kind: StorageReadFailed, Key: ListKey, Err: err}
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return List{}, nil
	}
	var list List
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		corrupt := &StorageError{Kind: StorageCorrupt, Key: ListKey, Err: err}
		s.logger.Warn().Err(corrupt).Msg("discarding unreadable recordings list")
		return List{}, nil
	}
	if list == nil {
		list = List{}
	}
	return list, nil
}

// SaveAll replaces the persisted list.
func (s *Store) SaveAll(ctx context.Context, list List) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, list)
}

// LoadFormattedNotes returns the cached notes for title, if any.
func (s *Store) LoadFormattedNotes(ctx context.Context, title string) (string, bool, error) {
	key := NotesKey(title)
	notes, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return "", false, &StorageError{Kind: StorageReadFailed, Key: key, Err: err}
	}
	if !ok || notes == "" {
		return "", false, nil
	}
	return notes, true, nil
}

// SaveFormattedNotes stores notes for title. Saving the same value twice
// leaves the store unchanged.
func (s *Store) SaveFormattedNotes(ctx context.Context, title, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := NotesKey(title)
	if err := s.kv.Set(ctx, key, notes); err != nil {
		return &StorageError{Kind: StorageWriteFailed, Key: key, Err: err}
	}
	return nil
}

// Append adds the recording produced by build to the end of the list and
// persists it. build receives the number for the new title, one past the
// highest "Note N" seen in the list or in stored notes, so a new recording
// never inherits the notes of a deleted one.
func (s *Store) Append(ctx context.Context, build func(n int) Recording) (Recording, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.LoadAll(ctx)
	if err != nil {
		return Recording{}, 0, err
	}
	n, err := s.nextNumber(ctx, list)
	if err != nil {
		return Recording{}, 0, err
	}
	rec := build(n)
	next := make(List, len(list), len(list)+1)
	copy(next, list)
	next = append(next, rec)
	if err := s.saveLocked(ctx, next); err != nil {
		return Recording{}, 0, err
	}
	return rec, len(next) - 1, nil
}

// DeleteAt removes the recording at index and persists the shorter list.
// Its formatted notes entry is left in place; see OrphanedNotes.
func (s *Store) DeleteAt(ctx context.Context, index int) (Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.LoadAll(ctx)
	if err != nil {
		return Recording{}, err
	}
	if index < 0 || index >= len(list) {
		return Recording{}, clinical.Invalid("index", fmt.Sprintf("%d is out of range", index))
	}
	removed := list[index]
	next := make(List, 0, len(list)-1)
	next = append(next, list[:index]...)
	next = append(next, list[index+1:]...)
	if err := s.saveLocked(ctx, next); err != nil {
		return Recording{}, err
	}
	return removed, nil
}

// OrphanedNotes lists titles that have stored notes but no recording.
func (s *Store) OrphanedNotes(ctx context.Context) ([]string, error) {
	list, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	live := make(map[string]bool, len(list))
	for _, r := range list {
		live[r.Title] = true
	}
	titles, err := s.notesTitles(ctx)
	if err != nil {
		return nil, err
	}
	orphans := []string{}
	for _, t := range titles {
		if !live[t] {
			orphans = append(orphans, t)
		}
	}
	sort.Strings(orphans)
	return orphans, nil
}

// PruneOrphanedNotes deletes the notes entries reported by OrphanedNotes and
// returns their titles. Deleting a recording never does this on its own.
func (s *Store) PruneOrphanedNotes(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orphans, err := s.OrphanedNotes(ctx)
	if err != nil {
		return nil, err
	}
	pruned := make([]string, 0, len(orphans))
	for _, t := range orphans {
		key := NotesKey(t)
		if err := s.kv.Delete(ctx, key); err != nil {
			return pruned, &StorageError{Kind: StorageWriteFailed, Key: key, Err: err}
		}
		pruned = append(pruned, t)
	}
	return pruned, nil
}

func (s *Store) saveLocked(ctx context.Context, list List) error {
	if list == nil {
		list = List{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return &StorageError{Kind: StorageWriteFailed, Key: ListKey, Err: err}
	}
	if err := s.kv.Set(ctx, ListKey, string(data)); err != nil {
		return &StorageError{Kind: StorageWriteFailed, Key: ListKey, Err: err}
	}
	return nil
}

func (s *Store) notesTitles(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, NotesKeyPrefix)
	if err != nil {
		return nil, &StorageError{Kind: StorageReadFailed, Key: NotesKeyPrefix, Err: err}
	}
	titles := make([]string, 0, len(keys))
	for _, k := range keys {
		titles = append(titles, strings.TrimPrefix(k, NotesKeyPrefix))
	}
	return titles, nil
}

func (s *Store) nextNumber(ctx context.Context, list List) (int, error) {
	highest := len(list)
	for _, r := range list {
		if n, ok := titleNumber(r.Title); ok && n > highest {
			highest = n
		}
	}
	titles, err := s.notesTitles(ctx)
	if err != nil {
		return 0, err
	}
	for _, t := range titles {
		if n, ok := titleNumber(t); ok && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}
