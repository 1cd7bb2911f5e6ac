package model

import "fmt"

// Code is any integer type a raw terrain buffer can arrive as: bytes from the
// in-process path, ints from a JSON array on the wire.
type Code interface {
	~uint8 | ~uint16 | ~uint32 | ~int | ~int8 | ~int16 | ~int32 | ~int64
}

// DecodeTerrain validates a raw host buffer and builds the grid from it.
// It is the only way host bytes become a TerrainGrid. On error the returned
// grid is nil; no partially filled grid is ever handed out.
func DecodeTerrain[T Code](raw []T) (*TerrainGrid, error) {
	if len(raw) != RoomArea {
		return nil, fmt.Errorf("%w: got %d codes, want %d", ErrLengthMismatch, len(raw), RoomArea)
	}

	var g TerrainGrid
	for i, v := range raw {
		code := int64(v)
		if code < 0 || code > 0xFF || !TerrainFlag(code).Valid() {
			return nil, invalidCode(i, code)
		}
		g.tiles[i] = TerrainFlag(code)
	}
	return &g, nil
}

// DecodeTerrainString decodes the host's string form, one ASCII digit per tile
// in the same row-major order.
func DecodeTerrainString(s string) (*TerrainGrid, error) {
	if len(s) != RoomArea {
		return nil, fmt.Errorf("%w: got %d characters, want %d", ErrLengthMismatch, len(s), RoomArea)
	}

	var g TerrainGrid
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch < '0' || ch > '9' || !TerrainFlag(ch-'0').Valid() {
			return nil, fmt.Errorf("%w: character %q at index %d", ErrInvalidFlag, ch, i)
		}
		g.tiles[i] = TerrainFlag(ch - '0')
	}
	return &g, nil
}

func invalidCode(i int, code int64) error {
	x, y, _ := FromIndex(i)
	return fmt.Errorf("%w: code %d at index %d (%d,%d)", ErrInvalidFlag, code, i, x, y)
}
