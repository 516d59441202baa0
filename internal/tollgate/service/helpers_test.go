package service_test

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/tollgate/internal/logging"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/policy"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/service"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store/memory"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

func testConfig() service.GateConfig {
	return service.GateConfig{
		Policy:        policy.New(50, 0),
		LedgerTimeout: time.Second,
		LockTimeout:   time.Second,
	}
}

// newTestGateService builds a GateService backed by in-memory stores.
func newTestGateService(cfg service.GateConfig, accounts ...types.CardAccount) (*service.GateService, *memory.Ledger, *memory.TransactionLog) {
	ledger := memory.NewLedger(accounts...)
	log := memory.NewTransactionLog()
	svc := service.NewGateService(ledger, log, service.NewKeyedLocker(), cfg, logging.Discard())
	return svc, ledger, log
}

// slowLedger widens the fetch/update window so unserialized callers would
// interleave.
type slowLedger struct {
	store.Ledger
	delay time.Duration
}

func (s slowLedger) FetchAccount(ctx context.Context, uid string) (types.CardAccount, error) {
	time.Sleep(s.delay)
	return s.Ledger.FetchAccount(ctx, uid)
}

// blockingLedger never answers until ctx is done.
type blockingLedger struct{}

func (blockingLedger) FetchAccount(ctx context.Context, _ string) (types.CardAccount, error) {
	<-ctx.Done()
	return types.CardAccount{}, ctx.Err()
}

func (blockingLedger) UpdateBalance(ctx context.Context, _ string, _ int64) error {
	<-ctx.Done()
	return ctx.Err()
}

// fakeActuator records the commands it was sent.
type fakeActuator struct {
	cmds chan types.GateCommand
	err  error
}

func newFakeActuator() *fakeActuator {
	return &fakeActuator{cmds: make(chan types.GateCommand, 8)}
}

func (a *fakeActuator) Send(_ context.Context, cmd types.GateCommand) error {
	if a.err != nil {
		return a.err
	}
	a.cmds <- cmd
	return nil
}
