package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalpost/reputation-engine/lock"
)

func TestKeyed_MutualExclusionPerKey(t *testing.T) {
	// GIVEN: Many goroutines incrementing a counter under the same key
	// WHEN: Each takes the lock around its read-modify-write
	// THEN: No increment is lost

	k := lock.NewKeyed()
	ctx := context.Background()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := k.Acquire(ctx, "question:q1", time.Second)
			require.NoError(t, err)
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestKeyed_DifferentKeysDoNotBlock(t *testing.T) {
	// GIVEN: A held lock on one key
	// WHEN: Acquiring a different key
	// THEN: The second acquire returns immediately

	k := lock.NewKeyed()
	ctx := context.Background()

	release1, err := k.Acquire(ctx, "question:q1", time.Second)
	require.NoError(t, err)
	defer release1()

	done := make(chan struct{})
	go func() {
		release2, err := k.Acquire(ctx, "answer:a1", time.Second)
		assert.NoError(t, err)
		release2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent key blocked behind an unrelated lock")
	}
}

func TestKeyed_ReleaseAllowsReacquire(t *testing.T) {
	k := lock.NewKeyed()
	ctx := context.Background()

	release, err := k.Acquire(ctx, "q1", time.Second)
	require.NoError(t, err)
	release()
	// Releasing twice is safe.
	release()

	release, err = k.Acquire(ctx, "q1", time.Second)
	require.NoError(t, err)
	release()
}

func TestKeyed_CancelWhileWaiting(t *testing.T) {
	// GIVEN: A waiter queued behind a long-lived holder
	// WHEN: The waiter's context is cancelled mid-wait
	// THEN: The acquire returns promptly with the context error, and the
	//       key still works for later acquires

	k := lock.NewKeyed()

	release, err := k.Acquire(context.Background(), "q1", time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := k.Acquire(ctx, "q1", time.Second)
		errs <- err
	}()

	// Let the waiter park on the held lock before cancelling.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled waiter never returned")
	}

	release()
	release2, err := k.Acquire(context.Background(), "q1", time.Second)
	require.NoError(t, err)
	release2()
}

func TestKeyed_CancelledContext(t *testing.T) {
	// GIVEN: An already-cancelled context
	// WHEN: Acquiring
	// THEN: The acquire fails instead of blocking

	k := lock.NewKeyed()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := k.Acquire(ctx, "q1", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
