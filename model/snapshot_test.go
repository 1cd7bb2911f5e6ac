package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSnapshot(t *testing.T) {
	raw := make([]byte, RoomArea)
	raw[RoomSize+1] = byte(Wall)

	snap, err := BuildSnapshot("W1N1", 42, raw)
	require.NoError(t, err)
	assert.Equal(t, "W1N1", snap.Name())
	assert.Equal(t, 42, snap.Tick())
	assert.False(t, snap.Walkable(MustCoord(1, 1)))
	assert.Equal(t, Wall, snap.At(MustCoord(1, 1)))
	assert.True(t, snap.Walkable(MustCoord(2, 1)))
	assert.Equal(t, "W1N1@42", snap.String())
}

func TestBuildSnapshotPropagatesDecodeErrors(t *testing.T) {
	snap, err := BuildSnapshot("W1N1", 1, make([]byte, RoomArea-1))
	assert.ErrorIs(t, err, ErrLengthMismatch)
	assert.True(t, snap.IsZero())

	raw := make([]byte, RoomArea)
	raw[0] = 0x10
	snap, err = BuildSnapshot("W1N1", 1, raw)
	assert.ErrorIs(t, err, ErrInvalidFlag)
	assert.True(t, snap.IsZero())
}

func TestNewSnapshotValidation(t *testing.T) {
	grid, err := DecodeTerrain(make([]byte, RoomArea))
	require.NoError(t, err)

	_, err = NewSnapshot("", 1, grid)
	assert.ErrorIs(t, err, ErrInvalidRoom)
	_, err = NewSnapshot("E1S1", -1, grid)
	assert.ErrorIs(t, err, ErrInvalidRoom)
	_, err = NewSnapshot("E1S1", 1, nil)
	assert.ErrorIs(t, err, ErrInvalidRoom)
}

func TestSnapshotAdvanceSharesTerrain(t *testing.T) {
	snap, err := BuildSnapshot("E1S1", 10, make([]byte, RoomArea))
	require.NoError(t, err)

	next, err := snap.Advance(11)
	require.NoError(t, err)
	assert.Equal(t, 11, next.Tick())
	assert.Equal(t, 10, snap.Tick(), "original snapshot must not change")
	assert.Same(t, snap.Terrain(), next.Terrain())

	_, err = snap.Advance(9)
	assert.ErrorIs(t, err, ErrInvalidRoom)
}

func TestSnapshotEqual(t *testing.T) {
	a, err := BuildSnapshot("E1S1", 10, make([]byte, RoomArea))
	require.NoError(t, err)
	b, err := BuildSnapshot("E1S1", 10, make([]byte, RoomArea))
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	raw := make([]byte, RoomArea)
	raw[0] = byte(Wall)
	c, err := BuildSnapshot("E1S1", 10, raw)
	require.NoError(t, err)
	assert.False(t, a.Equal(c))

	d, err := a.Advance(11)
	require.NoError(t, err)
	assert.False(t, a.Equal(d))
}
