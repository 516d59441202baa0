package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/uid"
)

var ErrInvalidUID = errors.New("uid must be exactly 8 hex characters")

type TopUpService struct {
	ledger store.Ledger
	log    store.TransactionLog
	locker Locker
	cfg    GateConfig
	status *StatusPublisher // optional
	logger logrus.FieldLogger
}

func NewTopUpService(ledger store.Ledger, log store.TransactionLog, locker Locker, cfg GateConfig, status *StatusPublisher, logger logrus.FieldLogger) *TopUpService {
	if locker == nil {
		locker = NewKeyedLocker()
	}
	return &TopUpService{ledger: ledger, log: log, locker: locker, cfg: cfg, status: status, logger: logger}
}

// TopUp credits amount onto the card and appends a TopUp record.  The
// balance change and the record land together or not at all.
func (s *TopUpService) TopUp(ctx context.Context, rawUID string, amount int64) (types.CardAccount, error) {
	id, ok := uid.Canonical(rawUID)
	if !ok {
		return types.CardAccount{}, ErrInvalidUID
	}
	if _, err := s.cfg.Policy.TopUp(types.CardAccount{}, amount); err != nil {
		return types.CardAccount{}, err
	}

	log := s.logger.WithFields(logrus.Fields{"uid": id, "amount": amount})

	release, err := acquire(ctx, s.locker, id, s.cfg.LockTimeout)
	if err != nil {
		return types.CardAccount{}, err
	}
	defer release()

	fetchCtx, cancel := s.ledgerCtx(ctx)
	acct, err := s.ledger.FetchAccount(fetchCtx, id)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return types.CardAccount{}, err
		}
		return types.CardAccount{}, fmt.Errorf("fetch account: %w", err)
	}

	d, err := s.cfg.Policy.TopUp(acct, amount)
	if err != nil {
		return types.CardAccount{}, err
	}
	prev := acct.Balance

	updCtx, cancel := s.ledgerCtx(ctx)
	err = s.ledger.UpdateBalance(updCtx, id, *d.NewBalance)
	cancel()
	if err != nil {
		return types.CardAccount{}, fmt.Errorf("update balance: %w", err)
	}
	acct.Balance = *d.NewBalance

	rec := types.RecordFor(acct, types.TxTopUp, true, "", time.Now().UTC())
	if err := s.log.Append(ctx, rec); err != nil {
		// Put the balance back on a fresh context; ctx may be what failed.
		rbCtx, cancel := context.WithTimeout(context.Background(), s.rollbackTimeout())
		rbErr := s.ledger.UpdateBalance(rbCtx, id, prev)
		cancel()
		if rbErr != nil {
			log.WithError(rbErr).Error("top-up rollback failed; ledger and log disagree")
			return types.CardAccount{}, errors.Join(fmt.Errorf("record top-up: %w", err), fmt.Errorf("rollback: %w", rbErr))
		}
		log.WithError(err).Warn("top-up rolled back")
		return types.CardAccount{}, fmt.Errorf("record top-up: %w", err)
	}

	if s.status != nil {
		s.status.ClearLastScannedUID(id)
	}
	log.WithField("balance", acct.Balance).Info("top-up applied")
	return acct, nil
}

func (s *TopUpService) ledgerCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.LedgerTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.LedgerTimeout)
}

func (s *TopUpService) rollbackTimeout() time.Duration {
	if s.cfg.LedgerTimeout > 0 {
		return s.cfg.LedgerTimeout
	}
	return 3 * time.Second
}
