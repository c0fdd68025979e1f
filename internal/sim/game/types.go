package game

import (
	"time"

	"cubegame.live/internal/protocol"
)

// Config fixes the cube identifier space for the life of the process.
type Config struct {
	XDim int
	YDim int
	ZDim int

	// PricePerCubeLamports is display-only. Payment happens on-chain,
	// outside this process, and is never verified here.
	PricePerCubeLamports uint64
}

// JoinRequest registers a new viewer connection. Out is owned by the
// transport; the game only ever sends marshaled frames into it.
type JoinRequest struct {
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	SessionID string
}

// CommandEnvelope carries one parsed client command into the game loop.
// Exactly one of Remove/Reset is set.
type CommandEnvelope struct {
	SessionID string
	Remove    *protocol.RemoveCmd
	Reset     *protocol.ResetCmd
}

type session struct {
	id  string
	out chan []byte
}

// Stats is a point-in-time view of the game state, served over the
// stats request channel so it is always consistent.
type Stats struct {
	Epoch         uint64 `json:"epoch"`
	CubesTotal    int    `json:"cubes_total"`
	ClickedCount  int    `json:"clicked_count"`
	ActiveViewers int    `json:"active_viewers"`

	QueueDepths QueueDepths `json:"queue_depths"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

// Audit record kinds.
const (
	AuditCubeRemoved = "CUBE_REMOVED"
	AuditGridReset   = "GRID_RESET"
)

// AuditEntry is one journal record. Written for accepted removals and for
// resets only; rejected and redundant requests leave no trace.
type AuditEntry struct {
	At           time.Time `json:"at"`
	Epoch        uint64    `json:"epoch"`
	Kind         string    `json:"kind"`
	CubeID       string    `json:"cube_id,omitempty"`
	Wallet       string    `json:"wallet,omitempty"`
	ClickedCount int       `json:"clicked_count"`
}

// AuditLogger sinks may be nil. Implemented in internal/persistence/*.
type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}
