package service

import (
	"sync"
	"time"

	"github.com/noah-isme/block-scheduler-api/internal/dto"
)

// runStore keeps run records in memory for status polling until they expire.
type runStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]dto.RunRecord
}

func newRunStore(ttl time.Duration) *runStore {
	return &runStore{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]dto.RunRecord),
	}
}

func (s *runStore) Save(record dto.RunRecord) {
	record.UpdatedAt = s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[record.RunID] = record
	s.sweepLocked()
}

// Update applies fn to a stored record. It reports false when the record is
// missing or expired.
func (s *runStore) Update(id string, fn func(*dto.RunRecord)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.items[id]
	if !ok || s.expired(record) {
		delete(s.items, id)
		return false
	}
	fn(&record)
	record.UpdatedAt = s.now().UTC()
	s.items[id] = record
	return true
}

func (s *runStore) Get(id string) (dto.RunRecord, bool) {
	s.mu.RLock()
	record, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return dto.RunRecord{}, false
	}
	if s.expired(record) {
		s.Delete(id)
		return dto.RunRecord{}, false
	}
	return record, true
}

func (s *runStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *runStore) expired(record dto.RunRecord) bool {
	return s.now().Sub(record.UpdatedAt) > s.ttl
}

func (s *runStore) sweepLocked() {
	for id, record := range s.items {
		if s.expired(record) {
			delete(s.items, id)
		}
	}
}
