// Package cache holds the agent's in-memory copy of deployed
// configuration documents.
package cache

import (
	"sync"
	"time"

	"github.com/appconfd/appconfd/internal/source"
)

// Entry is one cached configuration document.
type Entry struct {
	// Data is the raw payload.
	Data []byte

	// Version identifies the deployed configuration version.
	Version string

	// ContentType is the payload media type.
	ContentType string

	// FetchedAt is when the entry was last written.
	FetchedAt time.Time
}

// Store is a TTL-based in-memory store keyed by profile. Entries
// never drop out of the store; age only affects Fresh, so stale
// data stays available when the upstream is failing.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[source.ProfileRef]Entry
}

func New(ttl time.Duration) *Store {
	return &Store{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[source.ProfileRef]Entry),
	}
}

// Put stores the entry, stamping it with the current time, and
// returns the stored entry.
func (s *Store) Put(ref source.ProfileRef, entry Entry) Entry {
	entry.FetchedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[ref] = entry

	return entry
}

// Get returns the cached entry regardless of age.
func (s *Store) Get(ref source.ProfileRef) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[ref]
	return entry, ok
}

// Fresh returns the cached entry only if it is within the TTL.
func (s *Store) Fresh(ref source.ProfileRef) (Entry, bool) {
	entry, ok := s.Get(ref)
	if !ok {
		return Entry{}, false
	}

	if s.now().Sub(entry.FetchedAt) > s.ttl {
		return Entry{}, false
	}

	return entry, true
}

// Len returns the number of cached profiles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}
