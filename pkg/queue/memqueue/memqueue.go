/*
Package memqueue implements pkg/queue.Queue as a mutex-guarded in-memory
slice: the single-process default, and the backend tests exercise.
*/
package memqueue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sahil-03/fleetctl/pkg/metrics"
	"github.com/sahil-03/fleetctl/pkg/types"
)

// Queue is a FIFO of pending requests held in process memory.
type Queue struct {
	mu    sync.Mutex
	items []types.QueuedRequest
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{}
}

func (q *Queue) Enqueue(_ context.Context, payload []byte) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := uuid.New().String()
	q.items = append(q.items, types.QueuedRequest{
		RequestID:  id,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	})
	metrics.QueueLength.Set(float64(len(q.items)))
	return id, nil
}

func (q *Queue) Dequeue(_ context.Context) (types.QueuedRequest, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return types.QueuedRequest{}, false, nil
	}
	item := q.items[0]
	q.items = q.items[1:]
	metrics.QueueLength.Set(float64(len(q.items)))
	return item, true, nil
}

func (q *Queue) Length(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}
