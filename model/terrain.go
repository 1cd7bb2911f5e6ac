package model

import "strings"

// TerrainFlag is the per-tile terrain code exactly as the host encodes it:
// a bitmask where each bit is one of the host's TERRAIN_MASK_* constants.
type TerrainFlag byte

const (
	Plain TerrainFlag = 0
	Wall  TerrainFlag = 1 // TERRAIN_MASK_WALL
	Swamp TerrainFlag = 2 // TERRAIN_MASK_SWAMP
	Lava  TerrainFlag = 4 // TERRAIN_MASK_LAVA
)

// Host-side names for the masks, kept for code that mirrors the JS API.
const (
	TerrainMaskWall  = Wall
	TerrainMaskSwamp = Swamp
	TerrainMaskLava  = Lava
)

// knownBits is every bit the host protocol defines. Anything else is rejected by the decoder.
const knownBits = Wall | Swamp | Lava

// Valid reports whether the flag only uses bits the host defines.
func (f TerrainFlag) Valid() bool { return f&^knownBits == 0 }

func (f TerrainFlag) IsWall() bool  { return f&Wall != 0 }
func (f TerrainFlag) IsSwamp() bool { return f&Swamp != 0 }
func (f TerrainFlag) IsLava() bool  { return f&Lava != 0 }
func (f TerrainFlag) IsPlain() bool { return f == Plain }

// Walkable is false iff the wall bit is set, whatever else is combined with it.
func (f TerrainFlag) Walkable() bool { return !f.IsWall() }

// Kind collapses a combined code to the single terrain that governs movement.
// The host stores some walls as wall|swamp (3); wall wins, then lava, then swamp.
func (f TerrainFlag) Kind() TerrainFlag {
	switch {
	case f.IsWall():
		return Wall
	case f.IsLava():
		return Lava
	case f.IsSwamp():
		return Swamp
	default:
		return Plain
	}
}

func (f TerrainFlag) String() string {
	if !f.Valid() {
		return "invalid"
	}
	switch f.Kind() {
	case Wall:
		return "wall"
	case Lava:
		return "lava"
	case Swamp:
		return "swamp"
	default:
		return "plain"
	}
}

// TerrainGrid is one room's terrain, row-major: tiles[y*RoomSize + x].
// It has no mutators; the only constructors are the decoders, so every grid
// in circulation is fully populated and validated.
type TerrainGrid struct {
	tiles [RoomArea]TerrainFlag
}

// At never fails: a Coord is always inside the grid.
func (g *TerrainGrid) At(c Coord) TerrainFlag {
	return g.tiles[c.Index()]
}

// AtXY is At for unvalidated coordinates.
func (g *TerrainGrid) AtXY(x, y int) (TerrainFlag, error) {
	i, err := ToIndex(x, y)
	if err != nil {
		return 0, err
	}
	return g.tiles[i], nil
}

func (g *TerrainGrid) Walkable(c Coord) bool { return g.At(c).Walkable() }
func (g *TerrainGrid) IsWall(c Coord) bool   { return g.At(c).IsWall() }
func (g *TerrainGrid) IsSwamp(c Coord) bool  { return g.At(c).Kind() == Swamp }
func (g *TerrainGrid) IsPlain(c Coord) bool  { return g.At(c).IsPlain() }

// Count returns how many tiles classify as kind (see TerrainFlag.Kind).
func (g *TerrainGrid) Count(kind TerrainFlag) int {
	n := 0
	for _, f := range g.tiles {
		if f.Kind() == kind {
			n++
		}
	}
	return n
}

// WalkableCount is the number of tiles without the wall bit.
func (g *TerrainGrid) WalkableCount() int {
	n := 0
	for _, f := range g.tiles {
		if f.Walkable() {
			n++
		}
	}
	return n
}

// WallsAround counts wall tiles in the 8-neighborhood. Tiles beyond the room
// border are not counted.
func (g *TerrainGrid) WallsAround(c Coord) int {
	n := 0
	for _, nb := range c.Neighbors() {
		if g.At(nb).IsWall() {
			n++
		}
	}
	return n
}

// IsExit reports whether c is a walkable border tile.
func (g *TerrainGrid) IsExit(c Coord) bool {
	return c.IsEdge() && g.Walkable(c)
}

// Exits returns all walkable border tiles in index order.
func (g *TerrainGrid) Exits() []Coord {
	var out []Coord
	for i := range g.tiles {
		c := Coord{x: uint8(i % RoomSize), y: uint8(i / RoomSize)}
		if g.IsExit(c) {
			out = append(out, c)
		}
	}
	return out
}

// Raw returns a copy of the codes in host order, suitable for DecodeTerrain.
func (g *TerrainGrid) Raw() []byte {
	out := make([]byte, RoomArea)
	for i, f := range g.tiles {
		out[i] = byte(f)
	}
	return out
}

// String encodes the grid in the host's terrain string form: one ASCII digit per tile.
func (g *TerrainGrid) String() string {
	var b strings.Builder
	b.Grow(RoomArea)
	for _, f := range g.tiles {
		b.WriteByte('0' + byte(f))
	}
	return b.String()
}

func (g *TerrainGrid) Equal(o *TerrainGrid) bool {
	if g == nil || o == nil {
		return g == o
	}
	return g.tiles == o.tiles
}
