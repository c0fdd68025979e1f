package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"cubegame.live/internal/protocol"
)

// Game is the single-threaded authority over the cube grid and the live
// viewer set. All state must be accessed only from the Run goroutine;
// other goroutines talk to it through the exported channels.
type Game struct {
	cfg Config

	cubes        map[string]bool
	clickedCount int
	epoch        uint64

	sessions map[string]*session

	join  chan JoinRequest
	leave chan string
	inbox chan CommandEnvelope

	adminReset chan adminResetReq
	statsReq   chan statsReq

	stop chan struct{}

	nextSessionNum atomic.Uint64

	// Optional journal sink (may be nil). Implemented in internal/persistence/*.
	auditLogger AuditLogger
}

func New(cfg Config) (*Game, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	g := &Game{
		cfg:        cfg,
		sessions:   make(map[string]*session),
		join:       make(chan JoinRequest, 32),
		leave:      make(chan string, 32),
		inbox:      make(chan CommandEnvelope, 256),
		adminReset: make(chan adminResetReq),
		statsReq:   make(chan statsReq),
		stop:       make(chan struct{}),
	}
	g.initialize()
	return g, nil
}

func (g *Game) Config() Config { return g.cfg }

func (g *Game) Join() chan<- JoinRequest      { return g.join }
func (g *Game) Leave() chan<- string          { return g.leave }
func (g *Game) Inbox() chan<- CommandEnvelope { return g.inbox }

// SetAuditLogger must be called before Run.
func (g *Game) SetAuditLogger(l AuditLogger) { g.auditLogger = l }

func (g *Game) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.stop:
			return nil
		case req := <-g.join:
			g.handleJoin(req)
		case id := <-g.leave:
			g.handleLeave(id)
		case env := <-g.inbox:
			g.handleCommand(env)
		case req := <-g.adminReset:
			g.handleAdminReset(req)
		case req := <-g.statsReq:
			g.handleStats(req)
		}
	}
}

func (g *Game) Stop() { close(g.stop) }

// initialize replaces the whole grid state. No partially-initialized state
// is observable: it runs on the loop goroutine (or before Run starts).
func (g *Game) initialize() {
	g.cubes = buildCubes(g.cfg)
	g.clickedCount = 0
	g.epoch++
}

func (g *Game) handleJoin(req JoinRequest) {
	id := fmt.Sprintf("V%d", g.nextSessionNum.Add(1))
	s := &session{id: id, out: req.Out}
	g.sessions[id] = s

	// Snapshot first on the newcomer's own queue, then the count update to
	// everyone. Channel FIFO keeps that order on the wire.
	sendLatest(s.out, g.encodeInit())
	g.broadcastActive()

	if req.Resp != nil {
		req.Resp <- JoinResponse{SessionID: id}
	}
}

func (g *Game) handleLeave(id string) {
	if _, ok := g.sessions[id]; !ok {
		return
	}
	delete(g.sessions, id)
	g.broadcastActive()
}

func (g *Game) handleCommand(env CommandEnvelope) {
	switch {
	case env.Remove != nil:
		g.handleRemove(env.SessionID, env.Remove)
	case env.Reset != nil:
		g.resetEpoch()
	}
}

func (g *Game) handleRemove(sessionID string, cmd *protocol.RemoveCmd) {
	present, ok := g.cubes[cmd.ID]
	if !ok {
		g.sendError(sessionID, protocol.ErrInvalidCubeID)
		return
	}
	if !present {
		// Already removed this epoch: idempotent no-op, nothing broadcast.
		return
	}

	g.cubes[cmd.ID] = false
	g.clickedCount++

	var wallet *string
	if cmd.Wallet != "" {
		w := cmd.Wallet
		wallet = &w
	}
	g.broadcast(mustMarshal(protocol.CubeRemovedMsg{
		Type:         protocol.TypeCubeRemoved,
		ID:           cmd.ID,
		ClickedCount: g.clickedCount,
		Wallet:       wallet,
	}))

	g.audit(AuditEntry{
		At:           time.Now().UTC(),
		Epoch:        g.epoch,
		Kind:         AuditCubeRemoved,
		CubeID:       cmd.ID,
		Wallet:       cmd.Wallet,
		ClickedCount: g.clickedCount,
	})
}

// resetEpoch wipes the grid and broadcasts a fresh snapshot to the entire
// live set, requester included.
func (g *Game) resetEpoch() {
	g.initialize()
	g.broadcast(g.encodeInit())
	g.audit(AuditEntry{
		At:    time.Now().UTC(),
		Epoch: g.epoch,
		Kind:  AuditGridReset,
	})
}

func (g *Game) encodeInit() []byte {
	return mustMarshal(protocol.InitMsg{
		Type:         protocol.TypeInit,
		Cubes:        g.cubes,
		ClickedCount: g.clickedCount,
	})
}

func (g *Game) broadcastActive() {
	g.broadcast(mustMarshal(protocol.ActiveMsg{
		Type:  protocol.TypeActive,
		Count: len(g.sessions),
	}))
}

// broadcast serializes once and delivers best-effort: a backlogged session
// never blocks the loop or delivery to the others.
func (g *Game) broadcast(b []byte) {
	for _, s := range g.sessions {
		sendLatest(s.out, b)
	}
}

func (g *Game) sendError(sessionID, message string) {
	s, ok := g.sessions[sessionID]
	if !ok {
		return
	}
	sendLatest(s.out, mustMarshal(protocol.ErrorMsg{
		Type:    protocol.TypeError,
		Message: message,
	}))
}

func (g *Game) audit(entry AuditEntry) {
	if g.auditLogger == nil {
		return
	}
	_ = g.auditLogger.WriteAudit(entry)
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
