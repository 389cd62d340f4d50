// Package rlock provides a mutex which can be re-acquired by the holder of the lock.
//
// Go has no goroutine identity, so ownership travels with the context: Lock returns a derived
// context and any Lock call made with that context (or one derived from it) re-enters instead of
// blocking. Waiting for the lock can be abandoned through the context.
package rlock

import (
	"context"
	"sync"
)

type holder struct {
	_ byte // non-zero size, every holder gets a distinct address
}

type ctxKey struct {
	m *Mutex
}

// Mutex is a context-scoped re-entrant mutex. The zero value is not usable, use New.
type Mutex struct {
	sem chan struct{}

	mu    sync.Mutex
	owner *holder
	depth int
}

func New() *Mutex {
	return &Mutex{
		sem: make(chan struct{}, 1),
	}
}

// Lock acquires the mutex, or re-enters it when ctx was returned by an earlier Lock which is still held.
// The returned unlock function is safe to call more than once; only the first call has an effect.
func (m *Mutex) Lock(ctx context.Context) (context.Context, func(), error) {
	if m.reenter(ctx) {
		return ctx, sync.OnceFunc(m.unlock), nil
	}

	// Fast path, also makes an already cancelled ctx not fail when the lock is free
	select {
	case m.sem <- struct{}{}:
		return m.take(ctx), sync.OnceFunc(m.unlock), nil
	default:
	}

	select {
	case m.sem <- struct{}{}:
		return m.take(ctx), sync.OnceFunc(m.unlock), nil
	case <-ctx.Done():
		return ctx, func() {}, ctx.Err()
	}
}

// TryLock acquires the mutex without waiting, reporting whether it succeeded.
func (m *Mutex) TryLock(ctx context.Context) (context.Context, func(), bool) {
	if m.reenter(ctx) {
		return ctx, sync.OnceFunc(m.unlock), true
	}

	select {
	case m.sem <- struct{}{}:
		return m.take(ctx), sync.OnceFunc(m.unlock), true
	default:
		return ctx, func() {}, false
	}
}

// Held reports whether ctx currently owns the mutex.
func (m *Mutex) Held(ctx context.Context) bool {
	h, ok := ctx.Value(ctxKey{m}).(*holder)
	if !ok {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner == h
}

func (m *Mutex) reenter(ctx context.Context) bool {
	h, ok := ctx.Value(ctxKey{m}).(*holder)
	if !ok {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner != h {
		return false
	}
	m.depth++
	return true
}

func (m *Mutex) take(ctx context.Context) context.Context {
	h := &holder{}

	m.mu.Lock()
	m.owner = h
	m.depth = 1
	m.mu.Unlock()

	return context.WithValue(ctx, ctxKey{m}, h)
}

func (m *Mutex) unlock() {
	m.mu.Lock()
	m.depth--
	if m.depth > 0 {
		m.mu.Unlock()
		return
	}
	m.owner = nil
	m.mu.Unlock()

	<-m.sem
}
