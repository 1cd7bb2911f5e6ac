package ipc

// These constants must stay in sync with the message names in the host shim.
const (
	TypeHello     = "hello"
	TypeAck       = "ack"
	TypeRoomState = "room_state"
	TypeTick      = "tick"
	TypeInitRoom  = "init_room"
)

// Ack statuses. Anything other than StatusOK tells the host what to do next.
const (
	StatusOK            = "ok"
	StatusResendTerrain = "resend_terrain" // decode failed or terrain unknown; send the raw buffer again
	StatusThrottled     = "throttled"      // CPU budget too low, nothing was run
	StatusStale         = "stale"          // the tick is older than what is already published
	StatusError         = "error"
)

type HelloMessage struct {
	Player string `json:"player"`
	Shard  string `json:"shard"`
}

// InitRoomMessage is the initGame(roomName) console command forwarded by the host.
type InitRoomMessage struct {
	Room string `json:"room"`
}

type AckMessage struct {
	Status string `json:"status"`
	Room   string `json:"room,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewAck builds an ack envelope. It cannot fail: AckMessage always marshals.
func NewAck(msg AckMessage) *Envelope {
	env, _ := NewEnvelope(TypeAck, msg)
	return &env
}
