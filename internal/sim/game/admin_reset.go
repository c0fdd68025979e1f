package game

import (
	"context"
	"errors"
)

type adminResetReq struct {
	Resp chan adminResetResp
}

type adminResetResp struct {
	Epoch uint64
}

// RequestReset asks the game loop to start a new epoch immediately. It is
// safe to call from other goroutines (e.g. admin HTTP handlers) and
// returns the epoch that the reset started.
func (g *Game) RequestReset(ctx context.Context) (epoch uint64, err error) {
	if g == nil {
		return 0, errors.New("game not running")
	}
	resp := make(chan adminResetResp, 1)
	req := adminResetReq{Resp: resp}

	select {
	case g.adminReset <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case r := <-resp:
		return r.Epoch, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (g *Game) handleAdminReset(req adminResetReq) {
	g.resetEpoch()
	if req.Resp != nil {
		select {
		case req.Resp <- adminResetResp{Epoch: g.epoch}:
		default:
		}
	}
}
