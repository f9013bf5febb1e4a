package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitscript/internal/timer"
)

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()
	require.True(t, q.Enqueue(timer.Event{Kind: timer.EventStarted}))
	require.True(t, q.Enqueue(timer.Event{Kind: timer.EventSplit, SplitIndex: 1}))
	assert.Equal(t, 2, q.Len())

	e, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, timer.EventStarted, e.Kind)

	e, ok = q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, timer.EventSplit, e.Kind)

	_, ok = q.TryDequeue()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(timer.Event{Kind: timer.EventReset})
	q.Close()

	assert.Equal(t, 0, q.Len())
	assert.False(t, q.Enqueue(timer.Event{Kind: timer.EventReset}))
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestEventQueue_ConcurrentEnqueue(t *testing.T) {
	q := newEventQueue()
	const goroutines, per = 20, 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				q.Enqueue(timer.Event{Kind: timer.EventSplit})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, goroutines*per, q.Len())
}
