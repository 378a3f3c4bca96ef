// Package runlock serializes pipeline work on a per-entity basis so that
// concurrent runs never write the same organization or person at once.
package runlock

import "sync"

// KeyedLocker hands out one mutex per key. Keys are typically an
// organization or person uniq key.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New builds an empty locker.
func New() *KeyedLocker {
	return &KeyedLocker{locks: map[string]*entry{}}
}

// Lock blocks until the key is exclusively held and returns the unlock
// function. Callers must release on every exit path, normally via defer.
func (l *KeyedLocker) Lock(key string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// TryLock acquires the key without blocking. It returns the unlock function
// and true on success, or nil and false when the key is already held.
func (l *KeyedLocker) TryLock(key string) (unlock func(), ok bool) {
	l.mu.Lock()
	e, exists := l.locks[key]
	if !exists {
		e = &entry{}
		l.locks[key] = e
	}
	if !e.mu.TryLock() {
		if !exists {
			delete(l.locks, key)
		}
		l.mu.Unlock()
		return nil, false
	}
	e.refs++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}, true
}
