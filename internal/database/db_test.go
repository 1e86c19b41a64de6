package database

import (
	"testing"
)

// TestOpen_InMemory_ReturnsDB はインメモリDBが開けることを検証する。
func TestOpen_InMemory_ReturnsDB(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open returned unexpected error: %v", err)
	}
	if db == nil {
		t.Fatal("expected non-nil db")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
}

// TestOpen_ForeignKeysEnabled は外部キー制約が有効化されていることを検証する。
// お気に入りのCASCADE削除はこのpragmaに依存している。
func TestOpen_ForeignKeysEnabled(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open returned unexpected error: %v", err)
	}
	defer db.Close()

	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		t.Fatalf("PRAGMA foreign_keys query failed: %v", err)
	}
	if enabled != 1 {
		t.Errorf("foreign_keys = %d, want 1", enabled)
	}
}
