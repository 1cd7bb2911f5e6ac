package ipc

// Requests the sidecar sends to the host. The host shim must handle each type.
const (
	TypeRequestTerrain = "request_terrain"
)

// RequestTerrainCommand asks the host to send Room.Terrain.getRawBuffer() for
// a room in its next room_state.
type RequestTerrainCommand struct {
	Room   string `json:"room"`
	Reason string `json:"reason,omitempty"`
}
