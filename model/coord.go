package model

import (
	"encoding/json"
	"fmt"
)

// RoomSize is the edge length of every room. It must match the host exactly.
const RoomSize = 50

// RoomArea is the number of tiles in a room and the length of a raw terrain buffer.
const RoomArea = RoomSize * RoomSize

// ToIndex maps room coordinates to the linear index used by the host's raw
// terrain buffer. The layout is row-major, the same order Room.Terrain.getRawBuffer uses.
func ToIndex(x, y int) (int, error) {
	if x < 0 || x >= RoomSize || y < 0 || y >= RoomSize {
		return 0, fmt.Errorf("%w: (%d, %d)", ErrOutOfBounds, x, y)
	}
	return y*RoomSize + x, nil
}

// FromIndex is the exact inverse of ToIndex.
func FromIndex(i int) (x, y int, err error) {
	if i < 0 || i >= RoomArea {
		return 0, 0, fmt.Errorf("%w: index %d", ErrOutOfBounds, i)
	}
	return i % RoomSize, i / RoomSize, nil
}

// Coord is a validated position inside a room. The fields are unexported so the
// only ways to get one are NewCoord and CoordFromIndex; the zero value is (0, 0).
type Coord struct {
	x, y uint8
}

func NewCoord(x, y int) (Coord, error) {
	if _, err := ToIndex(x, y); err != nil {
		return Coord{}, err
	}
	return Coord{x: uint8(x), y: uint8(y)}, nil
}

func CoordFromIndex(i int) (Coord, error) {
	x, y, err := FromIndex(i)
	if err != nil {
		return Coord{}, err
	}
	return Coord{x: uint8(x), y: uint8(y)}, nil
}

// MustCoord is for literals in tests and tables. It panics on out-of-range input.
func MustCoord(x, y int) Coord {
	c, err := NewCoord(x, y)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Coord) X() int { return int(c.x) }
func (c Coord) Y() int { return int(c.y) }

// Index never fails: a Coord is in range by construction.
func (c Coord) Index() int { return int(c.y)*RoomSize + int(c.x) }

// IsEdge reports whether the tile is on the room border, where exits live.
func (c Coord) IsEdge() bool {
	return c.x == 0 || c.y == 0 || c.x == RoomSize-1 || c.y == RoomSize-1
}

// Range is the Chebyshev distance, which is how the host measures range.
func (c Coord) Range(o Coord) int {
	dx := abs(int(c.x) - int(o.x))
	dy := abs(int(c.y) - int(o.y))
	return max(dx, dy)
}

// Neighbors returns the in-room tiles of the 8-neighborhood, row by row.
func (c Coord) Neighbors() []Coord {
	out := make([]Coord, 0, 8)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n, err := NewCoord(int(c.x)+dx, int(c.y)+dy)
			if err != nil {
				continue
			}
			out = append(out, n)
		}
	}
	return out
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.x, c.y)
}

type coordJSON struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coord) MarshalJSON() ([]byte, error) {
	return json.Marshal(coordJSON{X: int(c.x), Y: int(c.y)})
}

// UnmarshalJSON validates bounds, so JSON input cannot smuggle in a bad Coord.
func (c *Coord) UnmarshalJSON(data []byte) error {
	var raw coordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewCoord(raw.X, raw.Y)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
