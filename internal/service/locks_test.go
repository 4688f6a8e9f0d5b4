package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockRegistryMutualExclusion(t *testing.T) {
	registry := NewLockRegistry()
	ctx := context.Background()

	release, ok := registry.Acquire(ctx, "req-1", time.Second)
	require.True(t, ok)

	_, ok = registry.Acquire(ctx, "req-1", 20*time.Millisecond)
	assert.False(t, ok, "second acquire must time out while held")

	release()

	release2, ok := registry.Acquire(ctx, "req-1", time.Second)
	require.True(t, ok, "lock must be reacquirable after release")
	release2()
}

func TestLockRegistryIndependentKeys(t *testing.T) {
	registry := NewLockRegistry()
	ctx := context.Background()

	releaseA, ok := registry.Acquire(ctx, "req-a", time.Second)
	require.True(t, ok)
	defer releaseA()

	releaseB, ok := registry.Acquire(ctx, "req-b", 20*time.Millisecond)
	require.True(t, ok, "different requests must not contend")
	releaseB()
}

func TestLockRegistryContextCancellation(t *testing.T) {
	registry := NewLockRegistry()

	release, ok := registry.Acquire(context.Background(), "req-1", time.Second)
	require.True(t, ok)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok = registry.Acquire(ctx, "req-1", time.Minute)
	assert.False(t, ok, "cancelled context must not wait out the full timeout")
}

func TestLockRegistrySerializesCounter(t *testing.T) {
	registry := NewLockRegistry()
	ctx := context.Background()

	const workers = 32
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, ok := registry.Acquire(ctx, "shared", 5*time.Second)
			if !ok {
				return
			}
			counter++
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, workers, counter)
}
