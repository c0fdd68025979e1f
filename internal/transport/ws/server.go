package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"cubegame.live/internal/protocol"
	"cubegame.live/internal/sim/game"
)

const (
	writeWait = 5 * time.Second

	// Viewers are read-mostly: keep the connection alive with pings instead
	// of expecting client traffic.
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second

	maxMessageSize = 4 * 1024
)

type Server struct {
	game *game.Game
	log  *log.Logger

	upgrader websocket.Upgrader
	maxQueue int
}

func NewServer(g *game.Game, maxQueue int, logger *log.Logger) *Server {
	if maxQueue <= 0 {
		maxQueue = 64
	}
	return &Server{
		game: g,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		maxQueue: maxQueue,
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		out := make(chan []byte, s.maxQueue)
		respCh := make(chan game.JoinResponse, 1)
		s.game.Join() <- game.JoinRequest{Out: out, Resp: respCh}
		resp := <-respCh
		sessionID := resp.SessionID
		defer func() { s.game.Leave() <- sessionID }()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine: owns every write on the connection.
		go func() {
			pings := time.NewTicker(pingPeriod)
			defer pings.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				case <-pings.C:
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			s.route(sessionID, msg, out)
		}
	}
}

// route parses one client frame. Malformed input is answered on this
// connection only; valid commands go to the game loop.
func (s *Server) route(sessionID string, msg []byte, out chan []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		s.replyError(out, protocol.ErrInvalidMessage)
		return
	}
	switch base.Type {
	case protocol.TypeRemove:
		var cmd protocol.RemoveCmd
		if err := json.Unmarshal(msg, &cmd); err != nil {
			s.replyError(out, protocol.ErrInvalidMessage)
			return
		}
		s.game.Inbox() <- game.CommandEnvelope{SessionID: sessionID, Remove: &cmd}
	case protocol.TypeReset:
		s.game.Inbox() <- game.CommandEnvelope{SessionID: sessionID, Reset: &protocol.ResetCmd{Type: protocol.TypeReset}}
	default:
		s.replyError(out, protocol.ErrUnknownMessageType)
	}
}

func (s *Server) replyError(out chan []byte, message string) {
	b, err := json.Marshal(protocol.ErrorMsg{Type: protocol.TypeError, Message: message})
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}
