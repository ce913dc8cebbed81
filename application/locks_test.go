package application

import (
	"sync"
	"testing"
	"time"
)

func TestLockKeySerializesSameKey(t *testing.T) {
	locks := newKeyLocks()

	var mu sync.Mutex
	inCritical := 0
	maxInCritical := 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.lockKey("sku-1")
			defer locks.unlockKey("sku-1")

			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxInCritical != 1 {
		t.Fatalf("observed %d concurrent holders of one key, want 1", maxInCritical)
	}
}

func TestLockKeyIndependentKeys(t *testing.T) {
	locks := newKeyLocks()
	locks.lockKey("a")
	defer locks.unlockKey("a")

	acquired := make(chan struct{})
	go func() {
		locks.lockKey("b")
		locks.unlockKey("b")
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("locking an independent key blocked behind another key")
	}
}

func TestLockAllExcludesKeyHolders(t *testing.T) {
	locks := newKeyLocks()
	locks.lockKey("a")

	allHeld := make(chan struct{})
	go func() {
		locks.lockAll()
		close(allHeld)
		locks.unlockAll()
	}()

	select {
	case <-allHeld:
		t.Fatal("lockAll succeeded while a key was held")
	case <-time.After(20 * time.Millisecond):
	}

	locks.unlockKey("a")

	select {
	case <-allHeld:
	case <-time.After(time.Second):
		t.Fatal("lockAll never acquired after the key was released")
	}
}

func TestLockKeyBlocksDuringLockAll(t *testing.T) {
	locks := newKeyLocks()
	locks.lockAll()

	acquired := make(chan struct{})
	go func() {
		locks.lockKey("a")
		locks.unlockKey("a")
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("per-key lock succeeded during lockAll")
	case <-time.After(20 * time.Millisecond):
	}

	locks.unlockAll()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("per-key lock never acquired after unlockAll")
	}
}

func TestLockRegistryDoesNotLeak(t *testing.T) {
	locks := newKeyLocks()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n%4))
			for j := 0; j < 100; j++ {
				locks.lockKey(key)
				locks.unlockKey(key)
			}
		}(i)
	}
	wg.Wait()

	locks.mu.Lock()
	remaining := len(locks.keys)
	locks.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("%d lock entries leaked", remaining)
	}
}
