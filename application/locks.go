package application

import "sync"

// keyLocks serializes mutating workflows per item key, with a global
// reader/writer gate so a reset excludes every per-key workflow.
//
// lockKey holds the global lock shared, so any number of per-key workflows
// run concurrently with each other but never concurrently with lockAll.
// Entries are reference-counted and removed when the last holder releases,
// so the map stays bounded by the number of in-flight workflows.
type keyLocks struct {
	global sync.RWMutex

	mu   sync.Mutex
	keys map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{keys: make(map[string]*keyLock)}
}

// lockKey acquires exclusive access to the given item key. It blocks while
// another workflow holds the same key or a reset is in flight.
func (l *keyLocks) lockKey(key string) {
	l.global.RLock()

	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &keyLock{}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

// unlockKey releases the key acquired by lockKey.
func (l *keyLocks) unlockKey(key string) {
	l.mu.Lock()
	e := l.keys[key]
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
	l.mu.Unlock()

	e.mu.Unlock()
	l.global.RUnlock()
}

// lockAll acquires exclusive access to every key at once. It blocks until
// all in-flight per-key workflows have released.
func (l *keyLocks) lockAll() {
	l.global.Lock()
}

// unlockAll releases the lock acquired by lockAll.
func (l *keyLocks) unlockAll() {
	l.global.Unlock()
}
