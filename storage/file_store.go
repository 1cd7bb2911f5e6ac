package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nstehr/creep/creep-core/model"
)

// FileStore keeps all rooms in one JSON file.
type FileStore struct {
	filePath string
	mutex    sync.RWMutex
	data     *fileData
}

type fileData struct {
	Rooms map[string]roomRecord `json:"rooms"`
}

type roomRecord struct {
	Terrain   string    `json:"terrain"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewFileStore opens filePath, creating it if it doesn't exist.
func NewFileStore(filePath string) (*FileStore, error) {
	store := &FileStore{
		filePath: filePath,
		data:     &fileData{Rooms: make(map[string]roomRecord)},
	}

	if _, err := os.Stat(filePath); err == nil {
		if err := store.loadFromFile(); err != nil {
			return nil, fmt.Errorf("loading terrain store %s: %w", filePath, err)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return nil, fmt.Errorf("creating terrain store dir: %w", err)
		}
		if err := store.saveToFile(); err != nil {
			return nil, fmt.Errorf("creating terrain store %s: %w", filePath, err)
		}
	}

	return store, nil
}

func (s *FileStore) loadFromFile() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	raw, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, s.data); err != nil {
		return err
	}
	if s.data.Rooms == nil {
		s.data.Rooms = make(map[string]roomRecord)
	}
	return nil
}

// saveToFile writes via a temp file and rename so a crash never leaves a torn file.
// Callers must hold the write lock or be the constructor.
func (s *FileStore) saveToFile() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.filePath)
}

func (s *FileStore) SaveTerrain(_ context.Context, room string, grid *model.TerrainGrid) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	prev, had := s.data.Rooms[room]
	s.data.Rooms[room] = roomRecord{Terrain: grid.String(), UpdatedAt: time.Now().UTC()}
	if err := s.saveToFile(); err != nil {
		// Memory must not serve a record the file doesn't have.
		if had {
			s.data.Rooms[room] = prev
		} else {
			delete(s.data.Rooms, room)
		}
		return fmt.Errorf("saving terrain for %s: %w", room, err)
	}
	return nil
}

func (s *FileStore) LoadTerrain(_ context.Context, room string) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rec, ok := s.data.Rooms[room]
	if !ok {
		return "", fmt.Errorf("%s: %w", room, ErrNotFound)
	}
	return rec.Terrain, nil
}

func (s *FileStore) Close() error { return nil }
