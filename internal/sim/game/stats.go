package game

import (
	"context"
	"errors"
)

type statsReq struct {
	Resp chan Stats
}

// Stats returns a consistent view of the game state, computed on the loop
// goroutine. Safe to call from HTTP handlers.
func (g *Game) Stats(ctx context.Context) (Stats, error) {
	if g == nil {
		return Stats{}, errors.New("game not running")
	}
	resp := make(chan Stats, 1)

	select {
	case g.statsReq <- statsReq{Resp: resp}:
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}

	select {
	case s := <-resp:
		return s, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (g *Game) handleStats(req statsReq) {
	s := Stats{
		Epoch:         g.epoch,
		CubesTotal:    len(g.cubes),
		ClickedCount:  g.clickedCount,
		ActiveViewers: len(g.sessions),
		QueueDepths: QueueDepths{
			Inbox: len(g.inbox),
			Join:  len(g.join),
			Leave: len(g.leave),
		},
	}
	select {
	case req.Resp <- s:
	default:
	}
}
