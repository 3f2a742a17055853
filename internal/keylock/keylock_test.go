package keylock

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSerializesSameKey(t *testing.T) {
	g := New()

	const workers = 50
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Do("provider-1|2025-06-01", func() error {
				// Non-atomic increment: only safe if Do serializes.
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestDoIndependentKeysDoNotBlock(t *testing.T) {
	g := New()

	release := make(chan struct{})
	holding := make(chan struct{})

	go func() {
		_ = g.Do("key-a", func() error {
			close(holding)
			<-release
			return nil
		})
	}()

	<-holding

	done := make(chan struct{})
	go func() {
		_ = g.Do("key-b", func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent key blocked behind key-a")
	}

	close(release)
}

func TestDoPropagatesError(t *testing.T) {
	g := New()
	sentinel := errors.New("boom")

	err := g.Do("k", func() error { return sentinel })
	require.ErrorIs(t, err, sentinel)
}

func TestLockEntriesAreReleased(t *testing.T) {
	g := New()

	for i := 0; i < 10; i++ {
		_ = g.Do("k", func() error { return nil })
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Empty(t, g.keys)
}
