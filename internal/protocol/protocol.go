package protocol

import "encoding/json"

// Message types (client -> server).
const (
	TypeRemove = "remove"
	TypeReset  = "reset"
)

// Message types (server -> client).
const (
	TypeInit        = "init"
	TypeCubeRemoved = "cube_removed"
	TypeActive      = "active"
	TypeError       = "error"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
