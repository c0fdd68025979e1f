// A demo/load client: connects as a viewer and clicks random present cubes.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"cubegame.live/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		wallet   = flag.String("wallet", "", "payer tag to attach to removals (optional)")
		interval = flag.Duration("interval", time.Second, "delay between clicks")
		clicks   = flag.Int("clicks", 0, "stop after this many clicks sent (0 = unlimited)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	frames := make(chan []byte, 64)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			frames <- msg
		}
	}()

	present := make(map[string]bool)
	sent := 0
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case err := <-readErr:
			logger.Fatalf("read: %v", err)
		case msg := <-frames:
			handleFrame(logger, msg, present)
		case <-ticker.C:
			if len(present) == 0 {
				continue
			}
			id := randomPresent(present)
			cmd := protocol.RemoveCmd{Type: protocol.TypeRemove, ID: id, Wallet: *wallet}
			if err := conn.WriteJSON(cmd); err != nil {
				logger.Fatalf("send remove: %v", err)
			}
			sent++
			if *clicks > 0 && sent >= *clicks {
				logger.Printf("done: %d clicks sent", sent)
				return
			}
		}
	}
}

func handleFrame(logger *log.Logger, msg []byte, present map[string]bool) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeInit:
		var init protocol.InitMsg
		if err := json.Unmarshal(msg, &init); err != nil {
			return
		}
		for id := range present {
			delete(present, id)
		}
		for id, p := range init.Cubes {
			if p {
				present[id] = true
			}
		}
		logger.Printf("init: %d cubes, %d already removed", len(init.Cubes), init.ClickedCount)

	case protocol.TypeCubeRemoved:
		var ev protocol.CubeRemovedMsg
		if err := json.Unmarshal(msg, &ev); err != nil {
			return
		}
		delete(present, ev.ID)
		logger.Printf("removed %s (total %d)", ev.ID, ev.ClickedCount)

	case protocol.TypeActive:
		var a protocol.ActiveMsg
		if err := json.Unmarshal(msg, &a); err != nil {
			return
		}
		logger.Printf("viewers: %d", a.Count)

	case protocol.TypeError:
		var e protocol.ErrorMsg
		if err := json.Unmarshal(msg, &e); err != nil {
			return
		}
		logger.Printf("server error: %s", e.Message)
	}
}

func randomPresent(present map[string]bool) string {
	n := rand.Intn(len(present))
	for id := range present {
		if n == 0 {
			return id
		}
		n--
	}
	return ""
}
