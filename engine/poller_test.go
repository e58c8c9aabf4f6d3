package engine

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPoller(src DataSource, bus *Bus) (*Poller, *SnapshotStore) {
	store := NewSnapshotStore()
	p := NewPoller(src, store, bus, PollerConfig{Interval: time.Hour}, zerolog.Nop())
	return p, store
}

func countingBus() (*Bus, *atomic.Int32) {
	bus := NewBus(zerolog.Nop())
	var n atomic.Int32
	bus.Register("counter", "", false, SenderFunc(func(string, any) error {
		n.Add(1)
		return nil
	}))
	return bus, &n
}

func TestPollOnce_PublishesFirstSnapshotAndBroadcasts(t *testing.T) {
	src := newFakeSource(seedRows()...)
	bus, broadcasts := countingBus()
	p, store := newTestPoller(src, bus)

	changed, err := p.PollOnce()
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, store.Current())
	assert.Len(t, store.Current().Rows, 2)
	assert.Equal(t, int32(1), broadcasts.Load())
}

func TestPollOnce_NoRedundantBroadcastForIdenticalContent(t *testing.T) {
	// GIVEN: Two successive polls fetch identical content
	// THEN: Exactly one broadcast occurs across both

	src := newFakeSource(seedRows()...)
	bus, broadcasts := countingBus()
	p, _ := newTestPoller(src, bus)

	for i := 0; i < 2; i++ {
		_, err := p.PollOnce()
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), broadcasts.Load())
}

func TestPollOnce_ChangeTriggersReplaceAndBroadcast(t *testing.T) {
	src := newFakeSource(seedRows()...)
	bus, broadcasts := countingBus()
	p, store := newTestPoller(src, bus)

	_, err := p.PollOnce()
	require.NoError(t, err)
	first := store.Current()

	src.mu.Lock()
	src.rows[0][ColAddress] = "수원"
	src.mu.Unlock()

	changed, err := p.PollOnce()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NotEqual(t, first.Fingerprint, store.Current().Fingerprint)
	assert.Equal(t, int32(2), broadcasts.Load())
}

func TestPollOnce_FetchFailureKeepsPriorSnapshot(t *testing.T) {
	src := newFakeSource(seedRows()...)
	p, store := newTestPoller(src, nil)

	_, err := p.PollOnce()
	require.NoError(t, err)
	prior := store.Current()

	src.mu.Lock()
	src.fetchErr = errors.New("503 backend error")
	src.mu.Unlock()

	_, err = p.PollOnce()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))
	assert.Same(t, prior, store.Current(), "failed poll must not disturb the snapshot")
}

func TestTick_SkipsWhenCycleInFlight(t *testing.T) {
	// GIVEN: A cycle already marked running
	// WHEN: A tick fires
	// THEN: It is skipped, not queued

	src := newFakeSource(seedRows()...)
	p, _ := newTestPoller(src, nil)

	p.running.Store(true)
	p.tick()
	assert.Equal(t, 0, src.fetchCount())

	p.running.Store(false)
	p.tick()
	assert.Equal(t, 1, src.fetchCount())
}

func TestPoller_StartStop(t *testing.T) {
	src := newFakeSource(seedRows()...)
	p, store := newTestPoller(src, nil)

	p.Start()
	defer p.Stop()

	// The first cycle runs immediately on Start.
	deadline := time.Now().Add(2 * time.Second)
	for store.Current() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.NotNil(t, store.Current())

	p.Stop()
	fetched := src.fetchCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, fetched, src.fetchCount(), "no cycles after Stop")
}

func TestPoller_RestartsAfterStop(t *testing.T) {
	// GIVEN: A poller that has been started and stopped once
	// WHEN: Start is called again
	// THEN: The loop comes back and cycles resume

	src := newFakeSource(seedRows()...)
	p, store := newTestPoller(src, nil)

	p.Start()
	deadline := time.Now().Add(2 * time.Second)
	for store.Current() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	p.Stop()
	fetched := src.fetchCount()

	p.Start()
	defer p.Stop()

	deadline = time.Now().Add(2 * time.Second)
	for src.fetchCount() == fetched && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Greater(t, src.fetchCount(), fetched, "restarted loop runs its first cycle")
}
