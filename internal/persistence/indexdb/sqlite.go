// Package indexdb maintains a small sqlite read-model of removals and
// epochs. It is an observability sink: the game authority never reads it,
// and losing it loses nothing but history.
package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"cubegame.live/internal/sim/game"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan game.AuditEntry
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Buffered so a bursty click storm never stalls the game loop.
		ch: make(chan game.AuditEntry, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads; NORMAL is a decent
	// durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS removals (
			epoch         INTEGER NOT NULL,
			cube_id       TEXT    NOT NULL,
			wallet        TEXT    NOT NULL DEFAULT '',
			clicked_count INTEGER NOT NULL,
			removed_at    TEXT    NOT NULL,
			PRIMARY KEY (epoch, cube_id)
		);`,
		`CREATE TABLE IF NOT EXISTS epochs (
			epoch      INTEGER PRIMARY KEY,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS player_stats (
			wallet        TEXT PRIMARY KEY,
			cubes_removed INTEGER NOT NULL DEFAULT 0
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

// WriteAudit queues one record for the writer goroutine. It implements
// game.AuditLogger and never blocks the caller; under sustained
// saturation records are dropped.
func (s *SQLiteIndex) WriteAudit(e game.AuditEntry) error {
	if s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- e:
	default:
	}
	return nil
}

func (s *SQLiteIndex) loop() {
	for e := range s.ch {
		s.apply(e)
	}
}

func (s *SQLiteIndex) apply(e game.AuditEntry) {
	switch e.Kind {
	case game.AuditCubeRemoved:
		_, _ = s.db.Exec(
			`INSERT OR IGNORE INTO removals (epoch, cube_id, wallet, clicked_count, removed_at) VALUES (?,?,?,?,?)`,
			e.Epoch, e.CubeID, e.Wallet, e.ClickedCount, e.At.UTC().Format(time.RFC3339Nano),
		)
		if e.Wallet != "" {
			_, _ = s.db.Exec(
				`INSERT INTO player_stats (wallet, cubes_removed) VALUES (?,1)
				 ON CONFLICT(wallet) DO UPDATE SET cubes_removed = cubes_removed + 1`,
				e.Wallet,
			)
		}
	case game.AuditGridReset:
		_, _ = s.db.Exec(
			`INSERT OR IGNORE INTO epochs (epoch, started_at) VALUES (?,?)`,
			e.Epoch, e.At.UTC().Format(time.RFC3339Nano),
		)
	}
}

type PlayerStat struct {
	Wallet       string `json:"wallet"`
	CubesRemoved int    `json:"cubes_removed"`
}

// TopPlayers returns wallets ranked by accepted removals across all epochs.
func (s *SQLiteIndex) TopPlayers(ctx context.Context, limit int) ([]PlayerStat, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT wallet, cubes_removed FROM player_stats ORDER BY cubes_removed DESC, wallet ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlayerStat
	for rows.Next() {
		var p PlayerStat
		if err := rows.Scan(&p.Wallet, &p.CubesRemoved); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
