// Package applock provides per-application serialization. Decision
// supersession, milestone advancement, and task completion for a single
// application must run one at a time; operations across applications never
// contend.
package applock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Map hands out one mutex per key, creating and reclaiming entries on demand
// so the map does not grow with the number of applications ever seen.
type Map struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func New() *Map {
	return &Map{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key and returns its release func.
func (m *Map) Lock(key string) (unlock func()) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		m.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

// Do runs fn while holding the key's lock.
func (m *Map) Do(key string, fn func() error) error {
	unlock := m.Lock(key)
	defer unlock()
	return fn()
}
