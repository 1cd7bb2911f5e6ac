package rules

import (
	"github.com/nstehr/creep/creep-core/model"
)

// TileEnv is what a rule condition sees: one tile of one room snapshot.
// Its methods are callable from expr expressions.
type TileEnv struct {
	X, Y  int
	Room  string
	Tick  int
	coord model.Coord
	grid  *model.TerrainGrid
}

func newTileEnv(snap model.RoomSnapshot, c model.Coord) TileEnv {
	return TileEnv{
		X:     c.X(),
		Y:     c.Y(),
		Room:  snap.Name(),
		Tick:  snap.Tick(),
		coord: c,
		grid:  snap.Terrain(),
	}
}

func (e TileEnv) flag() model.TerrainFlag {
	if e.grid == nil {
		return model.Plain
	}
	return e.grid.At(e.coord)
}

func (e TileEnv) IsWall() bool   { return e.flag().IsWall() }
func (e TileEnv) IsSwamp() bool  { return e.flag().Kind() == model.Swamp }
func (e TileEnv) IsLava() bool   { return e.flag().Kind() == model.Lava }
func (e TileEnv) IsPlain() bool  { return e.flag().IsPlain() }
func (e TileEnv) Walkable() bool { return e.flag().Walkable() }
func (e TileEnv) IsEdge() bool   { return e.coord.IsEdge() }
func (e TileEnv) Terrain() string {
	return e.flag().String()
}

func (e TileEnv) IsExit() bool {
	return e.grid != nil && e.grid.IsExit(e.coord)
}

func (e TileEnv) WallsAround() int {
	if e.grid == nil {
		return 0
	}
	return e.grid.WallsAround(e.coord)
}

// RangeTo returns the host range (Chebyshev distance) to (x, y), or -1 when
// (x, y) is outside the room.
func (e TileEnv) RangeTo(x, y int) int {
	o, err := model.NewCoord(x, y)
	if err != nil {
		return -1
	}
	return e.coord.Range(o)
}
