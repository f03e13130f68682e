// Package serializer provides per-key single-worker task execution. Tasks
// submitted for the same key run strictly in submission order; tasks for
// different keys run concurrently.
package serializer

import (
	"errors"
	"sync"
)

// DefaultQueueSize is the per-key task buffer used by New
const DefaultQueueSize = 64

// ErrClosed is returned by Submit after Close has been called
var ErrClosed = errors.New("serializer closed")

// KeyedSerializer owns one lazily-created worker goroutine per key. Slots
// are never evicted for the lifetime of the process; the map is small in
// practice (one entry per active owner) and keeping slots warm preserves
// FIFO guarantees without handshake complexity.
type KeyedSerializer struct {
	mu        sync.RWMutex
	slots     map[string]chan func()
	queueSize int
	wg        sync.WaitGroup
	closed    bool
}

// New creates a KeyedSerializer with the given per-key queue size. A
// non-positive size falls back to DefaultQueueSize.
func New(queueSize int) *KeyedSerializer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &KeyedSerializer{
		slots:     make(map[string]chan func()),
		queueSize: queueSize,
	}
}

// Submit enqueues task on the key's slot, creating the slot on first use.
// Submit blocks when the key's queue is full, which preserves submission
// order under backpressure. After Close it returns ErrClosed.
func (s *KeyedSerializer) Submit(key string, task func()) error {
	slot, err := s.slot(key)
	if err != nil {
		return err
	}

	// The send happens under the read lock so Close cannot close the slot
	// out from under a blocked sender. Workers keep draining independently,
	// so a send blocked on a full queue always completes.
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	slot <- task
	return nil
}

func (s *KeyedSerializer) slot(key string) (chan func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	slot, ok := s.slots[key]
	s.mu.RUnlock()
	if ok {
		return slot, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	slot, ok = s.slots[key]
	if !ok {
		slot = make(chan func(), s.queueSize)
		s.slots[key] = slot
		s.wg.Add(1)
		go s.run(slot)
	}
	return slot, nil
}

func (s *KeyedSerializer) run(slot chan func()) {
	defer s.wg.Done()
	for task := range slot {
		task()
	}
}

// Close stops accepting new tasks, lets every queued task finish, and waits
// for all workers to exit. Close blocks until in-flight Submit calls have
// handed off their task.
func (s *KeyedSerializer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, slot := range s.slots {
		close(slot)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
