package worker

import (
	"sort"
	"sync"
)

// UserSet remembers which users have produced changes.
type UserSet struct {
	mu    sync.Mutex
	users map[string]struct{}
}

func NewUserSet(ids ...string) *UserSet {
	s := &UserSet{users: make(map[string]struct{})}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s *UserSet) Add(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	s.users[id] = struct{}{}
	s.mu.Unlock()
}

// List returns the users in a stable order.
func (s *UserSet) List() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.users))
	for id := range s.users {
		out = append(out, id)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}
