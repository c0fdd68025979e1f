package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"cubegame.live/internal/sim/game"
)

func entry(kind, cube, wallet string, epoch uint64, count int) game.AuditEntry {
	return game.AuditEntry{
		At:           time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
		Epoch:        epoch,
		Kind:         kind,
		CubeID:       cube,
		Wallet:       wallet,
		ClickedCount: count,
	}
}

func TestSQLiteIndex_RecordsRemovalsAndStats(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	_ = idx.WriteAudit(entry(game.AuditCubeRemoved, "cube-0-0-0", "walletA", 1, 1))
	_ = idx.WriteAudit(entry(game.AuditCubeRemoved, "cube-1-0-0", "walletA", 1, 2))
	_ = idx.WriteAudit(entry(game.AuditCubeRemoved, "cube-2-0-0", "walletB", 1, 3))
	_ = idx.WriteAudit(entry(game.AuditCubeRemoved, "cube-3-0-0", "", 1, 4))
	_ = idx.WriteAudit(entry(game.AuditGridReset, "", "", 2, 0))
	// Same cube, new epoch: its own row.
	_ = idx.WriteAudit(entry(game.AuditCubeRemoved, "cube-0-0-0", "walletB", 2, 1))

	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var removals int
	if err := db.QueryRow(`SELECT COUNT(*) FROM removals`).Scan(&removals); err != nil {
		t.Fatalf("count removals: %v", err)
	}
	if removals != 5 {
		t.Fatalf("removals = %d, want 5", removals)
	}

	var started string
	if err := db.QueryRow(`SELECT started_at FROM epochs WHERE epoch=2`).Scan(&started); err != nil {
		t.Fatalf("epoch row: %v", err)
	}
	if started == "" {
		t.Fatalf("epoch 2 has empty started_at")
	}

	var anonCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM player_stats`).Scan(&anonCount); err != nil {
		t.Fatalf("count player_stats: %v", err)
	}
	if anonCount != 2 {
		t.Fatalf("player_stats rows = %d, want 2 (untagged removals excluded)", anonCount)
	}
}

func TestSQLiteIndex_TopPlayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	_ = idx.WriteAudit(entry(game.AuditCubeRemoved, "cube-0-0-0", "walletA", 1, 1))
	_ = idx.WriteAudit(entry(game.AuditCubeRemoved, "cube-1-0-0", "walletB", 1, 2))
	_ = idx.WriteAudit(entry(game.AuditCubeRemoved, "cube-2-0-0", "walletB", 1, 3))

	// The writer is async; poll until both wallets land.
	deadline := time.Now().Add(2 * time.Second)
	var top []PlayerStat
	for time.Now().Before(deadline) {
		top, err = idx.TopPlayers(context.Background(), 10)
		if err != nil {
			t.Fatalf("TopPlayers: %v", err)
		}
		if len(top) == 2 && top[0].CubesRemoved == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(top) != 2 {
		t.Fatalf("top = %+v, want 2 wallets", top)
	}
	if top[0].Wallet != "walletB" || top[0].CubesRemoved != 2 {
		t.Fatalf("leader = %+v, want walletB with 2", top[0])
	}
	if top[1].Wallet != "walletA" || top[1].CubesRemoved != 1 {
		t.Fatalf("runner-up = %+v", top[1])
	}
}
