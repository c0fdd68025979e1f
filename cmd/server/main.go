package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cubegame.live/internal/persistence/indexdb"
	persistlog "cubegame.live/internal/persistence/log"
	"cubegame.live/internal/sim/game"
	"cubegame.live/internal/sim/tuning"
	"cubegame.live/internal/transport/rpcproxy"
	"cubegame.live/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite removal index")
		rpcURL     = flag.String("rpc_upstream", "", "upstream Solana RPC url for the /rpc passthrough (or set CUBEGAME_RPC_UPSTREAM)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	upstream := strings.TrimSpace(*rpcURL)
	if upstream == "" {
		upstream = strings.TrimSpace(os.Getenv("CUBEGAME_RPC_UPSTREAM"))
	}
	if upstream == "" {
		upstream = strings.TrimSpace(tune.RPC.UpstreamURL)
	}

	g, err := game.New(game.Config{
		XDim:                 tune.Grid.XDim,
		YDim:                 tune.Grid.YDim,
		ZDim:                 tune.Grid.ZDim,
		PricePerCubeLamports: tune.PricePerCubeLamports,
	})
	if err != nil {
		logger.Fatalf("game: %v", err)
	}

	_ = os.MkdirAll(*dataDir, 0o755)
	auditLog := persistlog.NewAuditLogger(*dataDir)
	defer auditLog.Close()

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
	}

	sinks := multiAuditLogger{a: auditLog}
	if idx != nil {
		sinks.b = idx
	}
	g.SetAuditLogger(sinks)

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := g.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("game stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		ctx2, cancel2 := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel2()
		s, err := g.Stats(ctx2)
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP cubegame_cubes_total Size of the fixed cube identifier space.\n")
		fmt.Fprintf(rw, "# TYPE cubegame_cubes_total gauge\n")
		fmt.Fprintf(rw, "cubegame_cubes_total %d\n", s.CubesTotal)

		fmt.Fprintf(rw, "# HELP cubegame_cubes_removed Cubes removed in the current epoch.\n")
		fmt.Fprintf(rw, "# TYPE cubegame_cubes_removed gauge\n")
		fmt.Fprintf(rw, "cubegame_cubes_removed %d\n", s.ClickedCount)

		fmt.Fprintf(rw, "# HELP cubegame_active_viewers Currently connected viewers.\n")
		fmt.Fprintf(rw, "# TYPE cubegame_active_viewers gauge\n")
		fmt.Fprintf(rw, "cubegame_active_viewers %d\n", s.ActiveViewers)

		fmt.Fprintf(rw, "# HELP cubegame_epoch Current grid epoch (increments on reset).\n")
		fmt.Fprintf(rw, "# TYPE cubegame_epoch counter\n")
		fmt.Fprintf(rw, "cubegame_epoch %d\n", s.Epoch)

		fmt.Fprintf(rw, "# HELP cubegame_price_per_cube_lamports Display price per cube.\n")
		fmt.Fprintf(rw, "# TYPE cubegame_price_per_cube_lamports gauge\n")
		fmt.Fprintf(rw, "cubegame_price_per_cube_lamports %d\n", g.Config().PricePerCubeLamports)

		fmt.Fprintf(rw, "# HELP cubegame_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE cubegame_queue_depth gauge\n")
		fmt.Fprintf(rw, "cubegame_queue_depth{queue=%q} %d\n", "inbox", s.QueueDepths.Inbox)
		fmt.Fprintf(rw, "cubegame_queue_depth{queue=%q} %d\n", "join", s.QueueDepths.Join)
		fmt.Fprintf(rw, "cubegame_queue_depth{queue=%q} %d\n", "leave", s.QueueDepths.Leave)
	})
	mux.HandleFunc("/v1/stats", func(rw http.ResponseWriter, r *http.Request) {
		ctx2, cancel2 := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel2()
		s, err := g.Stats(ctx2)
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			game.Stats
			PricePerCubeLamports uint64 `json:"price_per_cube_lamports"`
		}{Stats: s, PricePerCubeLamports: g.Config().PricePerCubeLamports}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/v1/leaderboard", func(rw http.ResponseWriter, r *http.Request) {
		if idx == nil {
			http.Error(rw, "index db disabled", http.StatusServiceUnavailable)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		players, err := idx.TopPlayers(r.Context(), limit)
		if err != nil {
			logger.Printf("leaderboard: %v", err)
			rw.WriteHeader(http.StatusInternalServerError)
			return
		}
		if players == nil {
			players = []indexdb.PlayerStat{}
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"players": players})
	})
	mux.HandleFunc("/admin/v1/reset", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		epoch, err := g.RequestReset(ctx2)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "epoch": epoch})
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(g, tune.Session.MaxQueue, logger).Handler())

	if upstream != "" {
		mux.HandleFunc("/rpc", rpcproxy.New(upstream, logger).Handler())
		logger.Printf("rpc passthrough enabled")
	} else {
		logger.Printf("rpc passthrough disabled (no upstream configured)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("grid %dx%dx%d (%d cubes), listening on %s",
		tune.Grid.XDim, tune.Grid.YDim, tune.Grid.ZDim,
		tune.Grid.XDim*tune.Grid.YDim*tune.Grid.ZDim, *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type multiAuditLogger struct {
	a game.AuditLogger
	b game.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry game.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
