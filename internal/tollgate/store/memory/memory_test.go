package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store/memory"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

func TestLedger_FetchUnknown_NotFound(t *testing.T) {
	l := memory.NewLedger()
	if _, err := l.FetchAccount(context.Background(), "DEADBEEF"); !errors.Is(err, store.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestLedger_FetchAppliesDefaults(t *testing.T) {
	l := memory.NewLedger(types.CardAccount{UID: "deadbeef", Balance: 5})
	a, err := l.FetchAccount(context.Background(), "DEADBEEF")
	if err != nil {
		t.Fatalf("FetchAccount: %v", err)
	}
	if a.Name != "Unknown" || a.Address != "N/A" || a.Role != "Unknown" {
		t.Errorf("expected defaults, got %+v", a)
	}
}

func TestLedger_UpdateUnknown_DoesNotCreate(t *testing.T) {
	l := memory.NewLedger()
	if err := l.UpdateBalance(context.Background(), "DEADBEEF", 10); !errors.Is(err, store.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
	if _, ok := l.Balance("DEADBEEF"); ok {
		t.Error("update must not create accounts")
	}
}

func TestTransactionLog_RecentIsNewestFirst(t *testing.T) {
	tl := memory.NewTransactionLog()
	ctx := context.Background()
	for _, uid := range []string{"00000001", "00000002", "00000003"} {
		if err := tl.Append(ctx, types.TransactionRecord{UID: uid, Type: types.TxEntry}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := tl.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].UID != "00000003" || got[1].UID != "00000002" {
		t.Errorf("unexpected order: %s, %s", got[0].UID, got[1].UID)
	}
	if got[0].ID != 3 {
		t.Errorf("expected id=3, got %d", got[0].ID)
	}
}
