package services

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPairLocks_MutualExclusionPerPair(t *testing.T) {
	locks := NewPairLocks()

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("U", "C")
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("Expected at most one holder, saw %d", maxInside)
	}
	if locks.size() != 0 {
		t.Errorf("Expected lock table to be empty, got %d entries", locks.size())
	}
}

func TestPairLocks_DistinctPairsDoNotBlock(t *testing.T) {
	locks := NewPairLocks()
	unlockA := locks.Lock("U", "C1")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := locks.Lock("U", "C2")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Lock on a different pair blocked")
	}
}

func TestPairLocks_KeyDoesNotCollide(t *testing.T) {
	locks := NewPairLocks()
	unlock := locks.Lock("ab", "c")
	defer unlock()

	done := make(chan struct{})
	go func() {
		u := locks.Lock("a", "bc")
		u()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pairs with the same concatenation shared a lock")
	}
}
