package distlock

import (
	"context"
	"sync"
)

// LocalLocker hands out in-process locks keyed by string. It backs the
// memory storage mode where a single process owns all campaigns.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

// Lock returns a DistLock for key.
func (l *LocalLocker) Lock(key string) DistLock {
	return &localLock{owner: l, key: key}
}

type localLock struct {
	owner *LocalLocker
	key   string
	mine  bool
}

func (l *localLock) Acquire(_ context.Context) (bool, error) {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	if l.owner.held[l.key] {
		return false, nil
	}
	l.owner.held[l.key] = true
	l.mine = true
	return true, nil
}

func (l *localLock) Release(_ context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	if l.mine {
		delete(l.owner.held, l.key)
		l.mine = false
	}
	return nil
}
