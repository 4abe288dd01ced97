package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexExcludesSameKey(t *testing.T) {
	k := NewKeyedMutex()
	var active, maxSeen atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(context.Background(), "conv")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := active.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Zero(t, k.Len())
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	k := NewKeyedMutex()

	unlockA, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)
	unlockB, ok := k.TryLock("b")
	require.True(t, ok)
	assert.Equal(t, 2, k.Len())

	unlockA()
	unlockB()
	assert.Zero(t, k.Len())
}

func TestKeyedMutexTryLock(t *testing.T) {
	k := NewKeyedMutex()

	unlock, ok := k.TryLock("doc")
	require.True(t, ok)

	_, ok = k.TryLock("doc")
	assert.False(t, ok)

	unlock()
	unlock()

	again, ok := k.TryLock("doc")
	require.True(t, ok)
	again()
	assert.Zero(t, k.Len())
}

func TestKeyedMutexLockHonoursContext(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), "conv")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = k.Lock(ctx, "conv")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, k.Len())
}
