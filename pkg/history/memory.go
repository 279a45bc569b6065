package history

import (
	"context"
	"sync"
)

// DefaultCapacity bounds a MemoryStore when no capacity is given.
const DefaultCapacity = 100

// MemoryStore keeps records in process, bounded by capacity. When the
// bound is hit the oldest record is evicted. Saving an existing run ID
// replaces the record and moves it to the newest position.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	records  map[string]Record
}

// NewMemoryStore creates an in-memory store holding at most capacity
// records. Values below one fall back to DefaultCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		capacity: capacity,
		records:  make(map[string]Record, capacity),
	}
}

// Save implements the Store interface.
func (ms *MemoryStore) Save(ctx context.Context, rec Record) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.records[rec.RunID]; exists {
		ms.removeLocked(rec.RunID)
	}
	ms.records[rec.RunID] = rec
	ms.order = append(ms.order, rec.RunID)

	for len(ms.order) > ms.capacity {
		ms.removeLocked(ms.order[0])
	}
	return nil
}

// Get implements the Store interface.
func (ms *MemoryStore) Get(ctx context.Context, runID string) (Record, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	rec, ok := ms.records[runID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Recent implements the Store interface.
func (ms *MemoryStore) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if n > len(ms.order) {
		n = len(ms.order)
	}
	out := make([]Record, 0, n)
	for i := len(ms.order) - 1; i >= len(ms.order)-n; i-- {
		out = append(out, ms.records[ms.order[i]])
	}
	return out, nil
}

// Delete implements the Store interface.
func (ms *MemoryStore) Delete(ctx context.Context, runID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.removeLocked(runID)
	return nil
}

// Prune implements the Store interface.
func (ms *MemoryStore) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	excess := len(ms.order) - keep
	if excess <= 0 {
		return 0, nil
	}
	for i := 0; i < excess; i++ {
		ms.removeLocked(ms.order[0])
	}
	return excess, nil
}

// Len returns the number of stored records.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.order)
}

// Close implements the Store interface.
func (ms *MemoryStore) Close() error {
	return nil
}

// removeLocked drops a record and its order entry. Callers hold the lock.
func (ms *MemoryStore) removeLocked(runID string) {
	if _, ok := ms.records[runID]; !ok {
		return
	}
	delete(ms.records, runID)
	for i, id := range ms.order {
		if id == runID {
			ms.order = append(ms.order[:i], ms.order[i+1:]...)
			break
		}
	}
}
