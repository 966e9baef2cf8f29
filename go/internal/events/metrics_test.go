package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct{ err error }

func (p failingPublisher) Publish(context.Context, Event) error { return p.err }

func TestMetricPublisherCountsOutcomes(t *testing.T) {
	counters := NewCounters()
	ev, err := New("room-1", TypeRoundStarted, time.Now(), RoundStartedPayload{Round: 1, Letter: "M"})
	require.NoError(t, err)

	ok := NewMetricPublisher(NopPublisher{}, counters)
	require.NoError(t, ok.Publish(context.Background(), ev))
	require.NoError(t, ok.Publish(context.Background(), ev))

	boom := errors.New("nats down")
	bad := NewMetricPublisher(failingPublisher{err: boom}, counters)
	assert.ErrorIs(t, bad.Publish(context.Background(), ev), boom)

	stats := counters.Snapshot()
	assert.Equal(t, uint64(2), stats[TypeRoundStarted].Published)
	assert.Equal(t, uint64(1), stats[TypeRoundStarted].Failed)
}

func TestCountersSnapshotIsACopy(t *testing.T) {
	counters := NewCounters()
	counters.RecordEventPublished(TypeGameReset, true, time.Millisecond)

	snap := counters.Snapshot()
	counters.RecordEventPublished(TypeGameReset, true, time.Millisecond)

	assert.Equal(t, uint64(1), snap[TypeGameReset].Published)
	assert.Equal(t, uint64(2), counters.Snapshot()[TypeGameReset].Published)
}
