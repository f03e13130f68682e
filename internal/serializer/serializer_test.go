package serializer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedSerializer_FIFOPerKey(t *testing.T) {
	s := New(8)

	const n = 200
	var mu sync.Mutex
	got := make([]int, 0, n)

	for i := 0; i < n; i++ {
		i := i
		require.NoError(t, s.Submit("owner-1", func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	s.Close()

	assert.Len(t, got, n)
	for i, v := range got {
		assert.Equal(t, i, v, "task %d executed out of submission order", i)
	}
}

func TestKeyedSerializer_KeysRunIndependently(t *testing.T) {
	s := New(1)

	// Block key A's worker; key B must still make progress.
	release := make(chan struct{})
	require.NoError(t, s.Submit("a", func() { <-release }))

	// If keys shared a worker this would deadlock and the test would
	// time out.
	done := make(chan struct{})
	require.NoError(t, s.Submit("b", func() { close(done) }))
	<-done

	close(release)
	s.Close()
}

func TestKeyedSerializer_ConcurrentSubmitters(t *testing.T) {
	s := New(16)

	var mu sync.Mutex
	counts := make(map[string]int)

	var wg sync.WaitGroup
	keys := []string{"u1", "u2", "u3", "u4"}
	for _, key := range keys {
		for i := 0; i < 50; i++ {
			wg.Add(1)
			key := key
			go func() {
				defer wg.Done()
				s.Submit(key, func() {
					mu.Lock()
					counts[key]++
					mu.Unlock()
				})
			}()
		}
	}
	wg.Wait()
	s.Close()

	for _, key := range keys {
		assert.Equal(t, 50, counts[key])
	}
}

func TestKeyedSerializer_SubmitAfterCloseIsRejected(t *testing.T) {
	s := New(4)
	ran := false
	require.NoError(t, s.Submit("k", func() { ran = true }))
	s.Close()

	err := s.Submit("k", func() { t.Error("task ran after Close") })
	assert.ErrorIs(t, err, ErrClosed)
	assert.True(t, ran)
}

func TestKeyedSerializer_CloseWaitsForBlockedSubmit(t *testing.T) {
	s := New(1)

	// Occupy the worker and fill the queue so the next Submit blocks on
	// the channel send.
	release := make(chan struct{})
	require.NoError(t, s.Submit("k", func() { <-release }))
	require.NoError(t, s.Submit("k", func() {}))

	var submitErr error
	blocked := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		close(blocked)
		submitErr = s.Submit("k", func() {})
		close(finished)
	}()
	<-blocked

	// Close while a sender is parked on a full queue. It must wait for the
	// handoff instead of closing the channel under the sender, which would
	// panic the submitting goroutine.
	go close(release)
	s.Close()
	<-finished

	assert.True(t, submitErr == nil || submitErr == ErrClosed,
		"blocked submit must either hand off or be rejected, got %v", submitErr)
}
