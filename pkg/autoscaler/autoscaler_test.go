package autoscaler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahil-03/fleetctl/pkg/config"
	"github.com/sahil-03/fleetctl/pkg/types"
)

type fakeQueue struct {
	length int
	err    error
}

func (f *fakeQueue) Length(context.Context) (int, error) {
	return f.length, f.err
}

type fakeFleet struct {
	count     int
	scaleCall []int
	scaleErr  error
}

func (f *fakeFleet) ScaleTo(_ context.Context, n int) error {
	f.scaleCall = append(f.scaleCall, n)
	if f.scaleErr != nil {
		return f.scaleErr
	}
	f.count = n
	return nil
}

func (f *fakeFleet) Count() int {
	return f.count
}

func testConfig() config.AutoscalerConfig {
	return config.AutoscalerConfig{
		MinReplicas:        1,
		MaxReplicas:        10,
		ScaleUpThreshold:   5,
		ScaleDownThreshold: 2,
		CooldownSeconds:    60,
		CheckIntervalSecs:  10,
	}
}

func TestTickScalesUpWhenLoadExceedsThreshold(t *testing.T) {
	q := &fakeQueue{length: 30}
	f := &fakeFleet{count: 2}
	a := New(q, f, testConfig())

	err := a.tick(context.Background())
	require.NoError(t, err)

	require.Len(t, f.scaleCall, 1)
	assert.Equal(t, 6, f.scaleCall[0])
}

func TestTickScalesDownWhenLoadBelowThreshold(t *testing.T) {
	q := &fakeQueue{length: 1}
	f := &fakeFleet{count: 5}
	a := New(q, f, testConfig())

	err := a.tick(context.Background())
	require.NoError(t, err)

	require.Len(t, f.scaleCall, 1)
	assert.Equal(t, 1, f.scaleCall[0])
}

func TestTickDoesNothingWithinCooldown(t *testing.T) {
	q := &fakeQueue{length: 30}
	f := &fakeFleet{count: 2}
	a := New(q, f, testConfig())
	a.lastScale = time.Now()

	err := a.tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.scaleCall)
}

func TestTickNeverExceedsMaxReplicas(t *testing.T) {
	q := &fakeQueue{length: 1000}
	f := &fakeFleet{count: 9}
	cfg := testConfig()
	a := New(q, f, cfg)

	err := a.tick(context.Background())
	require.NoError(t, err)
	require.Len(t, f.scaleCall, 1)
	assert.Equal(t, cfg.MaxReplicas, f.scaleCall[0])
}

func TestTickNeverGoesBelowMinReplicas(t *testing.T) {
	q := &fakeQueue{length: 0}
	f := &fakeFleet{count: 3}
	cfg := testConfig()
	a := New(q, f, cfg)

	err := a.tick(context.Background())
	require.NoError(t, err)
	require.Len(t, f.scaleCall, 1)
	assert.Equal(t, cfg.MinReplicas, f.scaleCall[0])
}

func TestTickNoActionWhenLoadBetweenThresholds(t *testing.T) {
	q := &fakeQueue{length: 6}
	f := &fakeFleet{count: 3}
	a := New(q, f, testConfig())

	err := a.tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.scaleCall)
}

func TestTickPropagatesQueueError(t *testing.T) {
	q := &fakeQueue{err: errors.New("queue unavailable")}
	f := &fakeFleet{count: 2}
	a := New(q, f, testConfig())

	err := a.tick(context.Background())
	assert.Error(t, err)
	assert.Empty(t, f.scaleCall)
}

func TestTickHoldsCooldownOnCapacityError(t *testing.T) {
	q := &fakeQueue{length: 30}
	f := &fakeFleet{count: 2, scaleErr: types.ErrCapacity}
	a := New(q, f, testConfig())

	err := a.tick(context.Background())
	require.NoError(t, err)
	require.Len(t, f.scaleCall, 1)
	assert.True(t, a.lastScale.IsZero(), "lastScale must not advance on a capacity error")
}

func TestTickPropagatesNonCapacityScaleError(t *testing.T) {
	q := &fakeQueue{length: 30}
	f := &fakeFleet{count: 2, scaleErr: errors.New("unexpected failure")}
	a := New(q, f, testConfig())

	err := a.tick(context.Background())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, types.ErrCapacity))
}
