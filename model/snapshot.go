package model

import "fmt"

// RoomSnapshot is one room's terrain as of one host tick. It is a value:
// the next update produces a new snapshot instead of changing this one.
// The grid pointer is shared between snapshots of the same room, which is
// safe because TerrainGrid has no mutators.
type RoomSnapshot struct {
	name    string
	tick    int
	terrain *TerrainGrid
}

// BuildSnapshot decodes raw and wraps it. Decoder errors come back unchanged,
// so errors.Is(err, ErrLengthMismatch) and ErrInvalidFlag still match.
func BuildSnapshot(name string, tick int, raw []byte) (RoomSnapshot, error) {
	grid, err := DecodeTerrain(raw)
	if err != nil {
		return RoomSnapshot{}, err
	}
	return NewSnapshot(name, tick, grid)
}

// NewSnapshot wraps an already decoded grid.
func NewSnapshot(name string, tick int, grid *TerrainGrid) (RoomSnapshot, error) {
	switch {
	case name == "":
		return RoomSnapshot{}, fmt.Errorf("%w: empty room name", ErrInvalidRoom)
	case tick < 0:
		return RoomSnapshot{}, fmt.Errorf("%w: negative tick %d for %s", ErrInvalidRoom, tick, name)
	case grid == nil:
		return RoomSnapshot{}, fmt.Errorf("%w: nil terrain for %s", ErrInvalidRoom, name)
	}
	return RoomSnapshot{name: name, tick: tick, terrain: grid}, nil
}

// Advance returns the snapshot for a later tick. Terrain is static per room,
// so the grid carries over without another decode.
func (s RoomSnapshot) Advance(tick int) (RoomSnapshot, error) {
	if tick < s.tick {
		return RoomSnapshot{}, fmt.Errorf("%w: tick %d is older than %d for %s", ErrInvalidRoom, tick, s.tick, s.name)
	}
	return NewSnapshot(s.name, tick, s.terrain)
}

func (s RoomSnapshot) Name() string           { return s.name }
func (s RoomSnapshot) Tick() int              { return s.tick }
func (s RoomSnapshot) Terrain() *TerrainGrid  { return s.terrain }
func (s RoomSnapshot) IsZero() bool           { return s.terrain == nil }
func (s RoomSnapshot) At(c Coord) TerrainFlag { return s.terrain.At(c) }
func (s RoomSnapshot) Walkable(c Coord) bool  { return s.terrain.Walkable(c) }

func (s RoomSnapshot) Equal(o RoomSnapshot) bool {
	return s.name == o.name && s.tick == o.tick && s.terrain.Equal(o.terrain)
}

func (s RoomSnapshot) String() string {
	return fmt.Sprintf("%s@%d", s.name, s.tick)
}
