package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock_StartsAtEpoch(t *testing.T) {
	clock := NewDeterministicClock(time.Time{})
	assert.Equal(t, Epoch, clock.Now())
	assert.Zero(t, clock.Elapsed())

	start := time.Unix(500, 0)
	assert.Equal(t, start, NewDeterministicClock(start).Now())
}

func TestDeterministicClock_Advance(t *testing.T) {
	clock := NewDeterministicClock(time.Time{})

	assert.Equal(t, Epoch.Add(time.Second), clock.Advance(time.Second))
	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, clock.Elapsed())

	// Never runs backwards
	clock.Advance(-time.Hour)
	assert.Equal(t, 1500*time.Millisecond, clock.Elapsed())
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock(time.Time{})
	clock.Advance(time.Minute)

	clock.Reset()
	assert.Equal(t, Epoch, clock.Now())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock(time.Time{})
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				clock.Advance(time.Millisecond)
				_ = clock.Now()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, numGoroutines*callsPerGoroutine*time.Millisecond, clock.Elapsed())
}

func TestFixedIDGenerator(t *testing.T) {
	gen := NewFixedIDGenerator("rt-fixed")
	assert.Equal(t, "rt-fixed", gen.Generate())
	assert.Equal(t, "rt-fixed", gen.Generate())

	assert.Equal(t, "test-runtime", NewFixedIDGenerator("").Generate())
}
