/*
Package boltqueue implements pkg/queue.Queue on top of BoltDB, so queued
requests survive a process restart — the durable backend choice spec.md
§4.6 leaves to the operator.
*/
package boltqueue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/sahil-03/fleetctl/pkg/metrics"
	"github.com/sahil-03/fleetctl/pkg/types"
)

var bucketRequests = []byte("queued_requests")

// record is the on-disk shape of one queued item; Seq orders FIFO pop
// since BoltDB's bucket iteration is key-sorted, not insertion-ordered.
type record struct {
	Seq        uint64
	RequestID  string
	Payload    []byte
	EnqueuedAt time.Time
}

// Queue is a BoltDB-backed FIFO. Safe for concurrent use: every operation
// runs inside its own bolt transaction.
type Queue struct {
	db *bolt.DB
}

// Open opens (creating if absent) a BoltDB file under dataDir.
func Open(dataDir string) (*Queue, error) {
	dbPath := filepath.Join(dataDir, "fleetctl-queue.db")
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: opening queue database: %v", types.ErrConfiguration, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRequests)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating queue bucket: %v", types.ErrConfiguration, err)
	}

	return &Queue{db: db}, nil
}

// Close releases the underlying database file.
func (q *Queue) Close() error {
	return q.db.Close()
}

func (q *Queue) Enqueue(_ context.Context, payload []byte) (string, error) {
	id := uuid.New().String()

	err := q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRequests)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		rec := record{Seq: seq, RequestID: id, Payload: payload, EnqueuedAt: time.Now()}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
	if err != nil {
		return "", fmt.Errorf("enqueuing request: %w", err)
	}

	if n, lenErr := q.Length(context.Background()); lenErr == nil {
		metrics.QueueLength.Set(float64(n))
	}
	return id, nil
}

func (q *Queue) Dequeue(_ context.Context) (types.QueuedRequest, bool, error) {
	var rec record
	var found bool

	err := q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRequests)
		cur := b.Cursor()
		k, v := cur.First()
		if k == nil {
			return nil
		}
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		found = true
		return b.Delete(k)
	})
	if err != nil {
		return types.QueuedRequest{}, false, fmt.Errorf("dequeuing request: %w", err)
	}
	if !found {
		return types.QueuedRequest{}, false, nil
	}

	if n, lenErr := q.Length(context.Background()); lenErr == nil {
		metrics.QueueLength.Set(float64(n))
	}
	return types.QueuedRequest{RequestID: rec.RequestID, Payload: rec.Payload, EnqueuedAt: rec.EnqueuedAt}, true, nil
}

func (q *Queue) Length(_ context.Context) (int, error) {
	var n int
	err := q.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketRequests).Stats().KeyN
		return nil
	})
	return n, err
}

// seqKey renders seq as a big-endian fixed-width key so bucket iteration
// (key-sorted) visits items in insertion order.
func seqKey(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}
