package agent

import (
	"sync"
	"testing"

	"github.com/nstehr/creep/creep-core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainSnapshot(t *testing.T, room string, tick int) model.RoomSnapshot {
	t.Helper()
	snap, err := model.BuildSnapshot(room, tick, make([]byte, model.RoomArea))
	require.NoError(t, err)
	return snap
}

func TestRegistryPublishSupersedes(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Publish(plainSnapshot(t, "W1N1", 10)))
	require.NoError(t, r.Publish(plainSnapshot(t, "W1N1", 11)))

	got, ok := r.Get("W1N1")
	require.True(t, ok)
	assert.Equal(t, 11, got.Tick())
}

func TestRegistryRejectsStale(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Publish(plainSnapshot(t, "W1N1", 10)))

	err := r.Publish(plainSnapshot(t, "W1N1", 9))
	assert.ErrorIs(t, err, ErrStaleSnapshot)

	got, _ := r.Get("W1N1")
	assert.Equal(t, 10, got.Tick())

	// Same tick is a resend and replaces.
	assert.NoError(t, r.Publish(plainSnapshot(t, "W1N1", 10)))
}

func TestRegistryRejectsZeroSnapshot(t *testing.T) {
	err := NewRegistry().Publish(model.RoomSnapshot{})
	assert.ErrorIs(t, err, model.ErrInvalidRoom)
}

func TestRegistryRooms(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("E1S1")
	assert.False(t, ok)

	for _, name := range []string{"W2N2", "E1S1", "W1N1"} {
		require.NoError(t, r.Publish(plainSnapshot(t, name, 1)))
	}
	assert.Equal(t, []string{"E1S1", "W1N1", "W2N2"}, r.Rooms())
	assert.Equal(t, 3, r.Len())
}

func TestRegistryConcurrentPublish(t *testing.T) {
	r := NewRegistry()
	base := plainSnapshot(t, "W1N1", 0)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(tick int) {
			defer wg.Done()
			snap, err := base.Advance(tick)
			if err != nil {
				t.Error(err)
				return
			}
			_ = r.Publish(snap) // stale publishes are expected to lose
		}(i)
	}
	wg.Wait()

	got, ok := r.Get("W1N1")
	require.True(t, ok)
	assert.Equal(t, 50, got.Tick())
}
