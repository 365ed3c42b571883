// Package locks provides striped mutexes keyed by entity id. A room's
// stripe serializes membership changes and message writes for that room;
// unrelated rooms never contend on the same stripe beyond hash collisions.
package locks

import (
	"hash/fnv"
	"sync"
)

const stripes = 256

// Set is a fixed pool of mutexes indexed by key hash.
type Set struct {
	mu [stripes]sync.Mutex
}

// NewSet returns an empty stripe set.
func NewSet() *Set { return &Set{} }

func (s *Set) idx(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % stripes)
}

// Lock acquires the stripe for key and returns its unlock function.
func (s *Set) Lock(key string) func() {
	i := s.idx(key)
	s.mu[i].Lock()
	return s.mu[i].Unlock
}

// Rooms serializes mutations per room; Pairs serializes private-room
// creation per sorted user pair.
var (
	Rooms = NewSet()
	Pairs = NewSet()
)
