package watermark

import (
	"sync"
	"time"
)

// Store tracks one high-water mark per monitored source. Everything at or
// below a source's mark has already been published; scans start strictly
// above it. Marks never rewind.
type Store struct {
	mu    sync.Mutex
	start time.Time
	marks map[string]time.Time
}

// NewStore creates a store whose sources default to the current time.
// Changes written before process start are therefore never picked up;
// the marks are not persisted across restarts.
func NewStore() *Store {
	return NewStoreAt(time.Now())
}

// NewStoreAt creates a store with an explicit default boundary
func NewStoreAt(start time.Time) *Store {
	return &Store{
		start: start,
		marks: make(map[string]time.Time),
	}
}

// Get returns the current high-water mark for a source
func (s *Store) Get(source string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mark, ok := s.marks[source]; ok {
		return mark
	}
	return s.start
}

// Advance raises the mark for a source to candidate. A candidate older
// than the current mark is ignored, so the mark is monotonically
// non-decreasing.
func (s *Store) Advance(source string, candidate time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.marks[source]
	if !ok {
		current = s.start
	}
	if candidate.After(current) {
		s.marks[source] = candidate
	}
}
