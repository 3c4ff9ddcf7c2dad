package locking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSerializesSameKey(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var mu sync.Mutex
	var inCritical int
	var maxInCritical int

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "acct-1")
			require.NoError(t, err)
			defer release()

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

	assert.Equal(t, 1, maxInCritical)
}

func TestLocalDifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	releaseA, err := l.Acquire(ctx, "acct-a")
	require.NoError(t, err)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := l.Acquire(ctx, "acct-b")
		assert.NoError(t, err)
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquiring a different key blocked behind an unrelated lock")
	}
}

func TestLocalAcquireHonorsContext(t *testing.T) {
	l := NewLocal()

	release, err := l.Acquire(context.Background(), "acct-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx, "acct-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()

	// The key must not be wedged after the abandoned acquisition.
	release2, err := l.Acquire(context.Background(), "acct-1")
	require.NoError(t, err)
	release2()
}

func TestLocalReleaseIsIdempotent(t *testing.T) {
	l := NewLocal()

	release, err := l.Acquire(context.Background(), "acct-1")
	require.NoError(t, err)
	release()
	release()

	release2, err := l.Acquire(context.Background(), "acct-1")
	require.NoError(t, err)
	release2()
}
