package offline

import (
	"bytes"
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Entry is a cached response.
type Entry struct {
	Key      string
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// EntryMeta describes a cached entry without its payload.
type EntryMeta struct {
	Key      string
	StoredAt time.Time
}

// Storage persists named caches of responses.
// Keys returns entries oldest first.
type Storage interface {
	Match(ctx context.Context, cacheName, key string) (Entry, bool, error)
	Put(ctx context.Context, cacheName string, entry Entry) error
	Delete(ctx context.Context, cacheName, key string) error
	Keys(ctx context.Context, cacheName string) ([]EntryMeta, error)
}

// CloneEntry returns a deep copy of entry.
func CloneEntry(entry Entry) Entry {
	return Entry{
		Key:      entry.Key,
		Status:   entry.Status,
		Header:   entry.Header.Clone(),
		Body:     bytes.Clone(entry.Body),
		StoredAt: entry.StoredAt,
	}
}

type memoryRecord struct {
	entry    Entry
	sequence uint64
}

// MemoryStorage keeps caches in process memory.
type MemoryStorage struct {
	mu       sync.RWMutex
	caches   map[string]map[string]memoryRecord
	sequence uint64
}

// NewMemoryStorage constructs an empty in-memory Storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{caches: make(map[string]map[string]memoryRecord)}
}

func (s *MemoryStorage) Match(_ context.Context, cacheName, key string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.caches[cacheName][key]
	if !ok {
		return Entry{}, false, nil
	}
	return CloneEntry(record.entry), true, nil
}

func (s *MemoryStorage) Put(_ context.Context, cacheName string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cache, ok := s.caches[cacheName]
	if !ok {
		cache = make(map[string]memoryRecord)
		s.caches[cacheName] = cache
	}
	s.sequence++
	cache[entry.Key] = memoryRecord{entry: CloneEntry(entry), sequence: s.sequence}
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, cacheName, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cache := s.caches[cacheName]
	if cache == nil {
		return nil
	}
	delete(cache, key)
	if len(cache) == 0 {
		delete(s.caches, cacheName)
	}
	return nil
}

func (s *MemoryStorage) Keys(_ context.Context, cacheName string) ([]EntryMeta, error) {
	s.mu.RLock()
	records := make([]memoryRecord, 0, len(s.caches[cacheName]))
	for _, record := range s.caches[cacheName] {
		records = append(records, record)
	}
	s.mu.RUnlock()

	sort.Slice(records, func(left, right int) bool {
		if records[left].entry.StoredAt.Equal(records[right].entry.StoredAt) {
			return records[left].sequence < records[right].sequence
		}
		return records[left].entry.StoredAt.Before(records[right].entry.StoredAt)
	})

	metas := make([]EntryMeta, 0, len(records))
	for _, record := range records {
		metas = append(metas, EntryMeta{Key: record.entry.Key, StoredAt: record.entry.StoredAt})
	}
	return metas, nil
}
