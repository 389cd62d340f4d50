package rlock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"git.ruekov.eu/ruakij/partStreamer/pkg/rlock"
)

func TestMutex_Reentrant(t *testing.T) {
	t.Parallel()

	m := rlock.New()

	ctx, unlock, err := m.Lock(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	innerCtx, innerUnlock, err := m.Lock(ctx)
	if err != nil {
		t.Fatalf("unexpected error re-entering: %v", err)
	}
	if !m.Held(innerCtx) {
		t.Errorf("expected inner context to hold the mutex")
	}

	innerUnlock()
	if !m.Held(ctx) {
		t.Errorf("expected outer context to still hold the mutex after inner unlock")
	}

	unlock()
	if m.Held(ctx) {
		t.Errorf("expected mutex to be released")
	}

	// Stale context does not re-enter a released mutex
	_, _, ok := m.TryLock(context.Background())
	if !ok {
		t.Errorf("expected mutex to be free")
	}
}

func TestMutex_UnlockIsIdempotent(t *testing.T) {
	t.Parallel()

	m := rlock.New()

	_, unlock, err := m.Lock(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unlock()
	unlock()

	_, unlock2, ok := m.TryLock(context.Background())
	if !ok {
		t.Fatalf("expected mutex to be free")
	}
	defer unlock2()

	// A double unlock must not release someone elses hold
	_, _, ok = m.TryLock(context.Background())
	if ok {
		t.Errorf("expected mutex to be held")
	}
}

func TestMutex_Cancel(t *testing.T) {
	t.Parallel()

	m := rlock.New()

	_, unlock, err := m.Lock(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err = m.Lock(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestMutex_MutualExclusion(t *testing.T) {
	t.Parallel()

	m := rlock.New()
	counter := 0
	inside := 0

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				ctx, unlock, err := m.Lock(context.Background())
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				inside++
				if inside != 1 {
					t.Errorf("expected exactly one holder, got %d", inside)
				}
				// nested acquisition must not deadlock
				_, innerUnlock, _ := m.Lock(ctx)
				counter++
				innerUnlock()
				inside--
				unlock()
			}
		}()
	}
	wg.Wait()

	if counter != 3200 {
		t.Errorf("expected counter 3200, got %d", counter)
	}
}
