package services

import "sync"

// PairLocks hands out one mutex per (user, course). Entries are dropped once
// nobody holds or waits for them.
type PairLocks struct {
	mu    sync.Mutex
	locks map[string]*pairLock
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

func NewPairLocks() *PairLocks {
	return &PairLocks{locks: make(map[string]*pairLock)}
}

// Lock blocks until the pair is free and returns the matching unlock func.
func (p *PairLocks) Lock(userID, courseID string) func() {
	key := userID + "\x00" + courseID

	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &pairLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}

func (p *PairLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
