package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_StartsAtEpoch(t *testing.T) {
	clock := NewDeterministicClock(time.Time{})
	assert.Equal(t, Epoch, clock.Now())
}

func TestDeterministicClock_TickAdvances(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := NewDeterministicClock(start)

	assert.Equal(t, start.Add(time.Second), clock.Tick())
	assert.Equal(t, start.Add(2*time.Second), clock.Tick())
	assert.Equal(t, start.Add(2*time.Second), clock.Now())
}

func TestDeterministicClock_WithStep(t *testing.T) {
	clock := NewDeterministicClock(Epoch).WithStep(time.Hour)
	assert.Equal(t, Epoch.Add(time.Hour), clock.Tick())
}

func TestDeterministicClock_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	clock := NewDeterministicClock(time.Date(2024, 1, 1, 1, 0, 0, 0, loc))
	assert.Equal(t, time.UTC, clock.Now().Location())
	assert.True(t, Epoch.Equal(clock.Now()))
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock(Epoch)
	clock.Tick()
	clock.Tick()

	clock.Reset()
	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, Epoch.Add(time.Second), clock.Tick())
}

func TestDeterministicClock_ConcurrentTicks(t *testing.T) {
	clock := NewDeterministicClock(Epoch)

	const goroutines = 50
	const perGoroutine = 20

	var wg sync.WaitGroup
	seen := make(chan time.Time, goroutines*perGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				seen <- clock.Tick()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[time.Time]bool)
	for ts := range seen {
		require.False(t, unique[ts], "duplicate tick %v", ts)
		unique[ts] = true
	}
	assert.Len(t, unique, goroutines*perGoroutine)
	assert.Equal(t, Epoch.Add(goroutines*perGoroutine*time.Second), clock.Now())
}
