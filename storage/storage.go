// Package storage caches room terrain across restarts. Terrain never changes
// for a room, and fetching the raw buffer costs the host CPU, so the sidecar
// keeps the last decoded grid and only asks the host when it has nothing.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/nstehr/creep/creep-core/model"
)

var ErrNotFound = errors.New("terrain not found")

// Store persists terrain in the host's string form. Loaded terrain is
// decoded again before use, so a corrupted store cannot yield a bad grid.
type Store interface {
	SaveTerrain(ctx context.Context, room string, grid *model.TerrainGrid) error
	LoadTerrain(ctx context.Context, room string) (string, error)
	Close() error
}

// LoadGrid loads and decodes a room's terrain.
func LoadGrid(ctx context.Context, s Store, room string) (*model.TerrainGrid, error) {
	encoded, err := s.LoadTerrain(ctx, room)
	if err != nil {
		return nil, err
	}
	grid, err := model.DecodeTerrainString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding stored terrain for %s: %w", room, err)
	}
	return grid, nil
}
