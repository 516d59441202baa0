package redisstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store/redisstore"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { c.Close() })
	return mr, c
}

// ═══════════════════════════════════════════════════════════════════════════
// FetchAccount
// ═══════════════════════════════════════════════════════════════════════════

func TestLedger_FetchAccount_ReadsHash(t *testing.T) {
	mr, c := newRedis(t)
	mr.HSet("rfid:12345678", "Name", "Ana", "Address", "Block 1", "Balance", "200", "Role", "Resident")

	l := redisstore.NewLedger(c, "")
	a, err := l.FetchAccount(context.Background(), "12345678")
	if err != nil {
		t.Fatalf("FetchAccount: %v", err)
	}
	want := types.CardAccount{UID: "12345678", Name: "Ana", Address: "Block 1", Balance: 200, Role: "Resident"}
	if a != want {
		t.Errorf("got %+v, want %+v", a, want)
	}
}

func TestLedger_FetchAccount_MissingFieldsDefault(t *testing.T) {
	mr, c := newRedis(t)
	mr.HSet("rfid:A1B2C3D4", "Name", "Bo")

	a, err := redisstore.NewLedger(c, "").FetchAccount(context.Background(), "a1b2c3d4")
	if err != nil {
		t.Fatalf("FetchAccount: %v", err)
	}
	if a.Address != "N/A" || a.Role != "Unknown" || a.Balance != 0 {
		t.Errorf("expected defaults, got %+v", a)
	}
}

func TestLedger_FetchAccount_Missing_NotFound(t *testing.T) {
	_, c := newRedis(t)

	_, err := redisstore.NewLedger(c, "").FetchAccount(context.Background(), "FFFFFFFF")
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestLedger_FetchAccount_BadBalance_Error(t *testing.T) {
	mr, c := newRedis(t)
	mr.HSet("rfid:12345678", "Balance", "lots")

	_, err := redisstore.NewLedger(c, "").FetchAccount(context.Background(), "12345678")
	if err == nil || errors.Is(err, store.ErrAccountNotFound) {
		t.Errorf("expected transient parse error, got %v", err)
	}
}

func TestLedger_FetchAccount_ServerDown_Transient(t *testing.T) {
	mr, c := newRedis(t)
	mr.Close()

	_, err := redisstore.NewLedger(c, "").FetchAccount(context.Background(), "12345678")
	if err == nil || errors.Is(err, store.ErrAccountNotFound) {
		t.Errorf("expected transient error, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// UpdateBalance / PutAccount
// ═══════════════════════════════════════════════════════════════════════════

func TestLedger_UpdateBalance_SetsField(t *testing.T) {
	mr, c := newRedis(t)
	l := redisstore.NewLedger(c, "")
	ctx := context.Background()

	if err := l.PutAccount(ctx, types.CardAccount{UID: "12345678", Name: "Ana", Balance: 100, Role: "Visitor"}); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}
	if err := l.UpdateBalance(ctx, "12345678", 50); err != nil {
		t.Fatalf("UpdateBalance: %v", err)
	}
	if got := mr.HGet("rfid:12345678", "Balance"); got != "50" {
		t.Errorf("expected Balance=50, got %q", got)
	}
	if got := mr.HGet("rfid:12345678", "Name"); got != "Ana" {
		t.Errorf("expected Name untouched, got %q", got)
	}
}

func TestLedger_UpdateBalance_Missing_DoesNotCreate(t *testing.T) {
	mr, c := newRedis(t)

	err := redisstore.NewLedger(c, "").UpdateBalance(context.Background(), "FFFFFFFF", 10)
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
	if mr.Exists("rfid:FFFFFFFF") {
		t.Error("update must not create a card")
	}
}

func TestLedger_CustomPrefix(t *testing.T) {
	mr, c := newRedis(t)
	l := redisstore.NewLedger(c, "cards/")

	if err := l.PutAccount(context.Background(), types.CardAccount{UID: "deadbeef"}); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}
	if !mr.Exists("cards/DEADBEEF") {
		t.Errorf("expected key cards/DEADBEEF, have %v", mr.Keys())
	}
}
