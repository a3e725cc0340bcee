package balancer

import (
	"sync"

	"github.com/sahil-03/fleetctl/pkg/fleet"
	"github.com/sahil-03/fleetctl/pkg/types"
)

// Strategy selects and releases replica endpoints for outgoing requests.
// Acquire returns (nil, false) when the snapshot has no active endpoints;
// the dispatcher must not dequeue in that case.
type Strategy interface {
	Acquire(snapshot fleet.Snapshot) (*types.ReplicaRecord, bool)
	Release(instanceID string)
}

// RoundRobin cycles through the snapshot with a rolling index mod N.
type RoundRobin struct {
	mu   sync.Mutex
	next int
}

// NewRoundRobin returns a RoundRobin strategy starting at index 0.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

func (r *RoundRobin) Acquire(snapshot fleet.Snapshot) (*types.ReplicaRecord, bool) {
	if len(snapshot) == 0 {
		return nil, false
	}

	r.mu.Lock()
	idx := r.next % len(snapshot)
	r.next++
	r.mu.Unlock()

	replica := snapshot[idx]
	return &replica, true
}

func (r *RoundRobin) Release(string) {}
