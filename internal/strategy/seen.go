// internal/strategy/seen.go
package strategy

import "sync"

// seenSet is a capacity-bounded set with FIFO eviction. It replaces an
// unbounded processed-token map so a long-running process cannot grow
// without limit; once full, the oldest entry makes room for the newest.
type seenSet struct {
	mu       sync.Mutex
	capacity int
	members  map[string]struct{}
	order    []string
}

func newSeenSet(capacity int) *seenSet {
	if capacity <= 0 {
		capacity = 1
	}
	return &seenSet{
		capacity: capacity,
		members:  make(map[string]struct{}, capacity),
	}
}

func (s *seenSet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[key]
	return ok
}

// Add inserts the key, evicting the oldest member when at capacity.
// Re-adding an existing key is a no-op.
func (s *seenSet) Add(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[key]; ok {
		return
	}
	if len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.members, oldest)
	}
	s.members[key] = struct{}{}
	s.order = append(s.order, key)
}

func (s *seenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}
