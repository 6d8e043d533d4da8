// internal/dispatch/queue.go
package dispatch

import (
	"sync"

	"github.com/vortexsms/campaign-engine/internal/model"
)

// channelQueue is the ordered pending-recipient sequence for one
// channel. Its worker pops the head; the redistributor appends to the
// tail. A queue is never replaced once created, only drained and
// appended to.
type channelQueue struct {
	mu    sync.Mutex
	items []model.Recipient
}

func newChannelQueue(items []model.Recipient) *channelQueue {
	q := &channelQueue{}
	q.items = append(q.items, items...)
	return q
}

func (q *channelQueue) popFront() (model.Recipient, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return model.Recipient{}, false
	}
	r := q.items[0]
	q.items = q.items[1:]
	return r, true
}

// pushFront returns a popped recipient that could not be attempted.
func (q *channelQueue) pushFront(r model.Recipient) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([]model.Recipient{r}, q.items...)
}

func (q *channelQueue) push(rs ...model.Recipient) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, rs...)
}

// drain atomically snapshots and clears the queue.
func (q *channelQueue) drain() []model.Recipient {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

func (q *channelQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
