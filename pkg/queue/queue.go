/*
Package queue implements the Request Queue (C6): a FIFO of uniquely
identified inference requests with no consumer ack. pkg/dispatcher
re-enqueues on delivery failure; cross-process durability is delegated to
whichever Queue implementation the operator configures.
*/
package queue

import (
	"context"

	"github.com/sahil-03/fleetctl/pkg/types"
)

// Queue is the FIFO contract every implementation satisfies.
type Queue interface {
	// Enqueue appends payload and returns a fresh request id.
	Enqueue(ctx context.Context, payload []byte) (string, error)

	// Dequeue pops the oldest item, or (types.QueuedRequest{}, false, nil)
	// if the queue is empty. Non-blocking.
	Dequeue(ctx context.Context) (types.QueuedRequest, bool, error)

	// Length returns the current item count.
	Length(ctx context.Context) (int, error)
}
