package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RoomState is the per-room payload the host sends. Terrain is optional:
// it is static, so the host only ships the raw buffer when asked to.
type RoomState struct {
	Room    string       `json:"room"`
	Tick    int          `json:"tick"`
	Terrain TerrainCodes `json:"terrain,omitempty"`
}

// TerrainCodes is the raw terrain buffer as a JSON array of integers.
// Elements that are not integers (1.5, 1e20, strings, null) fail with
// ErrInvalidFlag naming the index, the same as an out-of-range code.
type TerrainCodes []int

func (tc *TerrainCodes) UnmarshalJSON(data []byte) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return fmt.Errorf("%w: terrain is not an array: %v", ErrInvalidFlag, err)
	}
	if elems == nil {
		*tc = nil
		return nil
	}

	codes := make(TerrainCodes, len(elems))
	for i, e := range elems {
		v, err := strconv.ParseInt(string(e), 10, 0)
		if err != nil {
			return fmt.Errorf("%w: element %s at index %d", ErrInvalidFlag, e, i)
		}
		codes[i] = int(v)
	}
	*tc = codes
	return nil
}

// TickState announces a new host tick along with the CPU budget for it.
type TickState struct {
	Tick int `json:"tick"`
	CPU  CPU `json:"cpu"`
}

type CPU struct {
	Bucket    int     `json:"bucket"`
	TickLimit int     `json:"tickLimit"`
	Used      float64 `json:"used"`
}
