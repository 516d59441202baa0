package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrandonDHaskell/tollgate/internal/logging"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/policy"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/service"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store/memory"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

func newTestTopUpService(cfg service.GateConfig, accounts ...types.CardAccount) (*service.TopUpService, *memory.Ledger, *memory.TransactionLog, *service.StatusPublisher) {
	ledger := memory.NewLedger(accounts...)
	log := memory.NewTransactionLog()
	status := service.NewStatusPublisher("", logging.Discard())
	svc := service.NewTopUpService(ledger, log, service.NewKeyedLocker(), cfg, status, logging.Discard())
	return svc, ledger, log, status
}

func TestTopUp_AddsAmountAndRecordsOnce(t *testing.T) {
	svc, ledger, log, _ := newTestTopUpService(testConfig(),
		types.CardAccount{UID: "12345678", Name: "Ana", Balance: 30, Role: types.RoleVisitor})

	acct, err := svc.TopUp(context.Background(), " 12345678 ", 100)
	if err != nil {
		t.Fatalf("TopUp: %v", err)
	}
	if acct.Balance != 130 {
		t.Errorf("expected balance 130, got %d", acct.Balance)
	}
	if bal, _ := ledger.Balance("12345678"); bal != 130 {
		t.Errorf("expected stored balance 130, got %d", bal)
	}

	recs := log.Records()
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Type != types.TxTopUp || recs[0].Balance != 130 || recs[0].Name != "Ana" {
		t.Errorf("unexpected record %+v", recs[0])
	}
}

func TestTopUp_LowercaseUID_Canonicalised(t *testing.T) {
	svc, _, _, _ := newTestTopUpService(testConfig(), types.CardAccount{UID: "A1B2C3D4", Balance: 0})

	acct, err := svc.TopUp(context.Background(), "a1b2c3d4", 10)
	if err != nil {
		t.Fatalf("TopUp: %v", err)
	}
	if acct.UID != "A1B2C3D4" {
		t.Errorf("expected canonical uid, got %q", acct.UID)
	}
}

func TestTopUp_InvalidUID(t *testing.T) {
	svc, _, _, _ := newTestTopUpService(testConfig())

	for _, in := range []string{"", "1234567", "123456789", "ZZZZZZZZ", "12345678 extra"} {
		if _, err := svc.TopUp(context.Background(), in, 10); !errors.Is(err, service.ErrInvalidUID) {
			t.Errorf("%q: expected ErrInvalidUID, got %v", in, err)
		}
	}
}

func TestTopUp_NonPositiveAmount_NoMutation(t *testing.T) {
	svc, ledger, log, _ := newTestTopUpService(testConfig(), types.CardAccount{UID: "12345678", Balance: 30})

	for _, amt := range []int64{0, -5} {
		if _, err := svc.TopUp(context.Background(), "12345678", amt); !errors.Is(err, policy.ErrInvalidAmount) {
			t.Errorf("amount %d: expected ErrInvalidAmount, got %v", amt, err)
		}
	}
	if ledger.UpdateCount() != 0 || len(log.Records()) != 0 {
		t.Error("invalid amount must not touch ledger or log")
	}
}

func TestTopUp_AboveCap_Rejected(t *testing.T) {
	cfg := testConfig()
	cfg.Policy = policy.New(50, 500)
	svc, _, _, _ := newTestTopUpService(cfg, types.CardAccount{UID: "12345678"})

	if _, err := svc.TopUp(context.Background(), "12345678", 501); !errors.Is(err, policy.ErrAmountTooHigh) {
		t.Errorf("expected ErrAmountTooHigh, got %v", err)
	}
}

func TestTopUp_UnknownCard_NotFound(t *testing.T) {
	svc, _, _, _ := newTestTopUpService(testConfig())

	if _, err := svc.TopUp(context.Background(), "FFFFFFFF", 10); !errors.Is(err, store.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestTopUp_AppendFails_BalanceRestored(t *testing.T) {
	svc, ledger, log, _ := newTestTopUpService(testConfig(), types.CardAccount{UID: "12345678", Balance: 30})
	log.FailWith(errors.New("disk full"))

	if _, err := svc.TopUp(context.Background(), "12345678", 100); err == nil {
		t.Fatal("expected error when the record cannot be written")
	}
	if bal, _ := ledger.Balance("12345678"); bal != 30 {
		t.Errorf("expected balance restored to 30, got %d", bal)
	}
}

func TestTopUp_LockHeld_Busy(t *testing.T) {
	cfg := testConfig()
	cfg.LockTimeout = 20 * time.Millisecond
	locker := service.NewKeyedLocker()
	ledger := memory.NewLedger(types.CardAccount{UID: "12345678", Balance: 30})
	svc := service.NewTopUpService(ledger, memory.NewTransactionLog(), locker, cfg, nil, logging.Discard())

	release, err := locker.Lock(context.Background(), "12345678")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer release()

	if _, err := svc.TopUp(context.Background(), "12345678", 10); !errors.Is(err, service.ErrLockTimeout) {
		t.Errorf("expected ErrLockTimeout, got %v", err)
	}
}

func TestTopUp_ClearsMatchingLastScannedUID(t *testing.T) {
	svc, _, _, status := newTestTopUpService(testConfig(),
		types.CardAccount{UID: "12345678"}, types.CardAccount{UID: "A1B2C3D4"})
	ctx := context.Background()

	status.SetLastScannedUID("A1B2C3D4")
	if _, err := svc.TopUp(ctx, "12345678", 10); err != nil {
		t.Fatalf("TopUp: %v", err)
	}
	if got := status.Snapshot().LastScannedUID; got != "A1B2C3D4" {
		t.Errorf("other card's uid should stay, got %q", got)
	}

	if _, err := svc.TopUp(ctx, "A1B2C3D4", 10); err != nil {
		t.Fatalf("TopUp: %v", err)
	}
	if got := status.Snapshot().LastScannedUID; got != "" {
		t.Errorf("expected cleared uid, got %q", got)
	}
}
