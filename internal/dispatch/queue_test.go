package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelQueueFIFO(t *testing.T) {
	q := newChannelQueue(recipients(3))

	first, ok := q.popFront()
	require.True(t, ok)
	assert.Equal(t, "+56910000000", first.Phone)

	second, ok := q.popFront()
	require.True(t, ok)
	assert.Equal(t, "+56910000001", second.Phone)

	assert.Equal(t, 1, q.len())
}

func TestChannelQueuePushFrontRestoresHead(t *testing.T) {
	q := newChannelQueue(recipients(2))
	rec, ok := q.popFront()
	require.True(t, ok)

	q.pushFront(rec)

	again, ok := q.popFront()
	require.True(t, ok)
	assert.Equal(t, rec.Phone, again.Phone)
}

func TestChannelQueueDrain(t *testing.T) {
	q := newChannelQueue(recipients(4))
	snapshot := q.drain()
	assert.Len(t, snapshot, 4)
	assert.Equal(t, 0, q.len())

	_, ok := q.popFront()
	assert.False(t, ok)
}

func TestChannelQueueEmptyPop(t *testing.T) {
	q := newChannelQueue(nil)
	_, ok := q.popFront()
	assert.False(t, ok)
}

// A worker pops while the redistributor appends. Every recipient must
// come out exactly once.
func TestChannelQueueConcurrentPushAndPop(t *testing.T) {
	q := newChannelQueue(nil)
	const total = 200

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, r := range recipients(total) {
			q.push(r)
		}
	}()

	seen := make(map[string]bool)
	for len(seen) < total {
		rec, ok := q.popFront()
		if !ok {
			continue
		}
		require.False(t, seen[rec.Phone], "recipient popped twice")
		seen[rec.Phone] = true
	}
	wg.Wait()
	assert.Equal(t, 0, q.len())
}
