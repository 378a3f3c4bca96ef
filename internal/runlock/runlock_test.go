package runlock

import (
	"sync"
	"testing"
)

func TestLockSerializesSameKey(t *testing.T) {
	t.Parallel()

	l := New()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("org:abc")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
	if len(l.locks) != 0 {
		t.Errorf("locks map not drained: %d entries", len(l.locks))
	}
}

func TestLockIndependentKeys(t *testing.T) {
	t.Parallel()

	l := New()
	unlockA := l.Lock("org:a")
	defer unlockA()

	// A held lock on one key must not block another key.
	unlockB, ok := l.TryLock("org:b")
	if !ok {
		t.Fatal("TryLock on independent key failed")
	}
	unlockB()
}

func TestTryLockHeldKey(t *testing.T) {
	t.Parallel()

	l := New()
	unlock := l.Lock("person:x")

	if _, ok := l.TryLock("person:x"); ok {
		t.Fatal("TryLock succeeded on held key")
	}

	unlock()
	again, ok := l.TryLock("person:x")
	if !ok {
		t.Fatal("TryLock failed after release")
	}
	again()
}

func TestUnlockIdempotent(t *testing.T) {
	t.Parallel()

	l := New()
	unlock := l.Lock("k")
	unlock()
	unlock() // second call must be a no-op

	next := l.Lock("k")
	next()
}
