package balancer

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sahil-03/fleetctl/pkg/fleet"
	"github.com/sahil-03/fleetctl/pkg/types"
)

// Random picks a uniformly random endpoint on every acquire. It owns a
// private source rather than using the math/rand/v2 package-level
// functions, the way the teacher's DNS resolver avoids a shared global
// generator.
type Random struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandom returns a Random strategy seeded from the current time.
func NewRandom() *Random {
	now := uint64(time.Now().UnixNano())
	return &Random{rnd: rand.New(rand.NewPCG(now, now>>1|1))}
}

func (r *Random) Acquire(snapshot fleet.Snapshot) (*types.ReplicaRecord, bool) {
	if len(snapshot) == 0 {
		return nil, false
	}

	r.mu.Lock()
	idx := r.rnd.IntN(len(snapshot))
	r.mu.Unlock()

	replica := snapshot[idx]
	return &replica, true
}

func (r *Random) Release(string) {}
