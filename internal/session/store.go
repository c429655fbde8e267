// Package session holds each browser session's uploaded dataset and chosen
// mapping. Nothing here outlives the session TTL: expiry is how "no
// persistence beyond the current session" is enforced.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"kpiboard/internal/cache"
	"kpiboard/internal/core"
)

// State is everything the server remembers for one browser session.
type State struct {
	mu sync.Mutex

	Filename   string
	SheetNames []string
	Sheet      string
	Table      core.RawTable
	Mapping    core.Mapping
	DateLayout string
	UploadedAt time.Time
}

// Snapshot returns a copy of the mutable fields under the state lock.
func (s *State) Snapshot() (core.RawTable, core.Mapping, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := make(core.Mapping, len(s.Mapping))
	for k, v := range s.Mapping {
		m[k] = v
	}
	return s.Table, m, s.DateLayout
}

// Meta returns the dataset's descriptive fields under the state lock.
func (s *State) Meta() (filename, sheet string, sheetNames []string, uploadedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.SheetNames))
	copy(names, s.SheetNames)
	return s.Filename, s.Sheet, names, s.UploadedAt
}

// Version changes whenever a new dataset is loaded, which makes it usable
// as a cache key component for anything derived from the table.
func (s *State) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.UploadedAt.UnixNano()
}

// SetDataset replaces the session's table, resetting any previous mapping.
func (s *State) SetDataset(filename, sheet string, sheetNames []string, table core.RawTable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Filename = filename
	s.Sheet = sheet
	s.SheetNames = sheetNames
	s.Table = table
	s.Mapping = core.SuggestMapping(table.Columns)
	s.UploadedAt = time.Now()
}

// SetMapping stores the user-confirmed column bindings.
func (s *State) SetMapping(m core.Mapping, dateLayout string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Mapping = m
	s.DateLayout = dateLayout
}

// HasDataset reports whether a table has been loaded.
func (s *State) HasDataset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Table.Columns) > 0
}

// Store maps session IDs to session state with LRU+TTL eviction.
type Store struct {
	cache *cache.LRUCache[*State]
}

// NewStore creates a store keeping at most maxSessions sessions alive for ttl.
func NewStore(maxSessions int, ttl time.Duration) *Store {
	return &Store{cache: cache.NewLRU[*State](maxSessions, ttl)}
}

// Get returns the session for an ID, if still alive.
func (s *Store) Get(id string) (*State, bool) {
	return s.cache.Get(id)
}

// Create allocates a fresh session and returns its ID.
func (s *Store) Create() (string, *State) {
	id := newID()
	st := &State{}
	s.cache.Set(id, st)
	return id, st
}

// Touch refreshes a session's TTL.
func (s *Store) Touch(id string, st *State) {
	s.cache.Set(id, st)
}

// CleanExpired drops expired sessions (cache.Cleaner).
func (s *Store) CleanExpired() int { return s.cache.CleanExpired() }

func newID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("sess_%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
