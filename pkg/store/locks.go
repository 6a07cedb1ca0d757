package store

import "sync"

// NameLocks is a keyed mutex. Entries are reference counted and removed once
// nobody holds or waits for them, so memory stays bounded by concurrency.
// The zero value is ready to use.
type NameLocks struct {
	mu    sync.Mutex
	locks map[string]*nameLock
}

type nameLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until name is free and returns its release function.
func (l *NameLocks) Lock(name string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*nameLock)
	}
	nl, ok := l.locks[name]
	if !ok {
		nl = &nameLock{}
		l.locks[name] = nl
	}
	nl.refs++
	l.mu.Unlock()

	nl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			nl.mu.Unlock()
			l.mu.Lock()
			nl.refs--
			if nl.refs == 0 {
				delete(l.locks, name)
			}
			l.mu.Unlock()
		})
	}
}

// Len returns the number of names currently held or awaited.
func (l *NameLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
