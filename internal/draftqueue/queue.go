// Package draftqueue serializes writes to the same application.
//
// Every write for a key runs alone, in the order the calls arrived. Writes
// for different keys run in parallel. Autosave and explicit step saves both
// go through Do, so the last write to arrive is the last one applied.
package draftqueue

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type entry struct {
	waiters []chan struct{}
}

// Queue is a set of per-key FIFO locks. The zero value is not usable; call New.
type Queue struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

func New() *Queue {
	return &Queue{entries: make(map[uuid.UUID]*entry)}
}

// Do runs fn once every earlier call for key has finished. If ctx ends while
// waiting, fn is skipped and ctx.Err() is returned.
func (q *Queue) Do(ctx context.Context, key uuid.UUID, fn func() error) error {
	if err := q.acquire(ctx, key); err != nil {
		return err
	}
	defer q.release(key)
	return fn()
}

// Pending returns how many calls hold or wait for key.
func (q *Queue) Pending(key uuid.UUID) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[key]
	if !ok {
		return 0
	}
	return 1 + len(e.waiters)
}

func (q *Queue) acquire(ctx context.Context, key uuid.UUID) error {
	q.mu.Lock()
	e, busy := q.entries[key]
	if !busy {
		q.entries[key] = &entry{}
		q.mu.Unlock()
		return nil
	}
	turn := make(chan struct{})
	e.waiters = append(e.waiters, turn)
	q.mu.Unlock()

	select {
	case <-turn:
		return nil
	case <-ctx.Done():
		q.mu.Lock()
		for i, w := range e.waiters {
			if w == turn {
				e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
				q.mu.Unlock()
				return ctx.Err()
			}
		}
		q.mu.Unlock()
		// The lock was handed over while ctx ended; pass it on.
		q.release(key)
		return ctx.Err()
	}
}

func (q *Queue) release(key uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.entries[key]
	if e == nil {
		return
	}
	if len(e.waiters) == 0 {
		delete(q.entries, key)
		return
	}
	next := e.waiters[0]
	e.waiters = e.waiters[1:]
	close(next)
}
