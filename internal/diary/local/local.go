package local

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/i474232898/weather-diary-sync/internal/diary"
	"github.com/i474232898/weather-diary-sync/internal/state"
	"github.com/sirupsen/logrus"
)

// MaxEntries caps the local store; the oldest entries beyond the cap are
// dropped on every write.
const MaxEntries = 100

var ErrNotFound = errors.New("local: entry not found")

// Store keeps diary entries in the durable document table. If the table
// stops accepting writes the store degrades to a process-lifetime memory
// buffer instead of failing saves, and reports the degradation.
type Store struct {
	states *state.Store

	mu       sync.Mutex
	degraded bool
	memory   []diary.Entry
	now      func() time.Time
}

func NewStore(states *state.Store) *Store {
	return &Store{states: states, now: time.Now}
}

// Save assigns an id and timestamp and persists the entry. It always
// returns a usable entry; persistence trouble flips the store into
// degraded mode rather than losing the write.
func (s *Store) Save(d diary.Draft) diary.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := diary.Entry{
		ID:        uuid.NewString(),
		Title:     d.Title,
		Content:   d.Content,
		Mood:      d.Mood,
		Weather:   d.Weather,
		Timestamp: s.now().UnixMilli(),
	}

	if s.degraded {
		s.memoryPut(e)
		return e
	}
	if err := s.put(e); err != nil {
		logrus.WithError(err).Error("local store degraded to memory")
		// Snapshot the durable entries before flipping the mode, so the
		// memory buffer starts from everything the table still serves.
		s.memory = s.listLocked()
		s.degraded = true
		s.memoryPut(e)
	}
	return e
}

// Put persists an entry that already carries its id and timestamp, as
// sync merges do.
func (s *Store) Put(e diary.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		s.memoryPut(e)
		return nil
	}
	return s.put(e)
}

// Replace swaps the whole local set for the merged view.
func (s *Store) Replace(entries []diary.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		s.memory = append([]diary.Entry(nil), entries...)
		diary.SortByTimestampDesc(s.memory)
		s.trimMemory()
		return nil
	}

	docs := make([]state.Doc, 0, len(entries))
	for _, e := range entries {
		body, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		docs = append(docs, state.Doc{ID: e.ID, TimestampMs: e.Timestamp, Body: string(body)})
	}
	if err := s.states.ReplaceDocs(docs); err != nil {
		return fmt.Errorf("replace: %w", err)
	}
	return s.states.TrimDocs(MaxEntries)
}

// List returns all entries newest first.
func (s *Store) List() []diary.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

// Delete removes an entry by id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		for i, e := range s.memory {
			if e.ID == id {
				s.memory = append(s.memory[:i], s.memory[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	}
	return s.states.DeleteDoc(id)
}

// Update applies a patch to an existing entry and returns the result.
func (s *Store) Update(id string, p diary.Patch) (diary.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.listLocked() {
		if e.ID != id {
			continue
		}
		updated := p.Apply(e)
		if s.degraded {
			s.memoryPut(updated)
			return updated, nil
		}
		if err := s.put(updated); err != nil {
			return diary.Entry{}, err
		}
		return updated, nil
	}
	return diary.Entry{}, ErrNotFound
}

// Degraded reports whether writes are currently memory-only.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *Store) put(e diary.Entry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := s.states.PutDoc(state.Doc{ID: e.ID, TimestampMs: e.Timestamp, Body: string(body)}); err != nil {
		return fmt.Errorf("put: %w", err)
	}
	return s.states.TrimDocs(MaxEntries)
}

func (s *Store) listLocked() []diary.Entry {
	if s.degraded {
		out := make([]diary.Entry, len(s.memory))
		copy(out, s.memory)
		return out
	}
	docs, err := s.states.ListDocs(MaxEntries)
	if err != nil {
		logrus.WithError(err).Error("local store list failed")
		return nil
	}
	out := make([]diary.Entry, 0, len(docs))
	for _, d := range docs {
		var e diary.Entry
		if err := json.Unmarshal([]byte(d.Body), &e); err != nil {
			logrus.WithField("entry", d.ID).WithError(err).Warn("skipping unreadable entry")
			continue
		}
		out = append(out, e)
	}
	return out
}

func (s *Store) memoryPut(e diary.Entry) {
	for i, cur := range s.memory {
		if cur.ID == e.ID {
			s.memory[i] = e
			diary.SortByTimestampDesc(s.memory)
			return
		}
	}
	s.memory = append(s.memory, e)
	diary.SortByTimestampDesc(s.memory)
	s.trimMemory()
}

func (s *Store) trimMemory() {
	if len(s.memory) > MaxEntries {
		s.memory = s.memory[:MaxEntries]
	}
}
