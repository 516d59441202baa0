package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/policy"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

type GateConfig struct {
	Policy        policy.Policy
	LedgerTimeout time.Duration // per ledger call; 0 = caller's context only
	LockTimeout   time.Duration // bounded wait for the card lock
	// RecordDenied also appends a record for denials against a resolved
	// account, with Granted=false.
	RecordDenied bool
}

// Resolution is the outcome of one scan.  Account is nil when the card
// could not be resolved.
type Resolution struct {
	Account  *types.CardAccount
	Decision policy.Decision
	Command  types.GateCommand
}

type GateService struct {
	ledger store.Ledger
	log    store.TransactionLog
	locker Locker
	cfg    GateConfig
	logger logrus.FieldLogger
}

func NewGateService(ledger store.Ledger, log store.TransactionLog, locker Locker, cfg GateConfig, logger logrus.FieldLogger) *GateService {
	if locker == nil {
		locker = NewKeyedLocker()
	}
	return &GateService{ledger: ledger, log: log, locker: locker, cfg: cfg, logger: logger}
}

// Resolve runs fetch, decide and balance update for uid under its card
// lock.  Every failure denies with CLOSE and leaves the ledger untouched.
func (s *GateService) Resolve(ctx context.Context, lane types.Lane, uid string) Resolution {
	log := s.logger.WithFields(logrus.Fields{"lane": lane, "uid": uid})

	release, err := acquire(ctx, s.locker, uid, s.cfg.LockTimeout)
	if err != nil {
		log.WithError(err).Warn("card lock not acquired")
		return deny(lane, nil, policy.ReasonLockTimeout)
	}
	defer release()

	fetchCtx, cancel := s.ledgerCtx(ctx)
	acct, err := s.ledger.FetchAccount(fetchCtx, uid)
	cancel()
	if errors.Is(err, store.ErrAccountNotFound) {
		log.Info("card not found")
		return deny(lane, nil, policy.ReasonNotFound)
	}
	if err != nil {
		log.WithError(err).Error("ledger fetch failed")
		return deny(lane, nil, policy.ReasonLedgerError)
	}

	d := s.cfg.Policy.Decide(lane, acct)
	if d.Grant && d.NewBalance != nil {
		updCtx, cancel := s.ledgerCtx(ctx)
		err := s.ledger.UpdateBalance(updCtx, uid, *d.NewBalance)
		cancel()
		if err != nil {
			log.WithError(err).Error("ledger update failed")
			return deny(lane, nil, policy.ReasonLedgerError)
		}
		acct.Balance = *d.NewBalance
	}

	return Resolution{Account: &acct, Decision: d, Command: policy.Command(lane, d)}
}

// Record appends the transaction for a written decision.  Failures are
// logged rather than returned: the gate has already moved.
func (s *GateService) Record(ctx context.Context, ev types.ScanEvent, res Resolution) {
	if res.Account == nil {
		return
	}
	if !res.Decision.Grant && !s.cfg.RecordDenied {
		return
	}

	rec := types.RecordFor(*res.Account, res.Decision.RecordType, res.Decision.Grant, ev.ID, time.Now().UTC())
	if err := s.log.Append(ctx, rec); err != nil {
		s.logger.WithFields(logrus.Fields{
			"lane":    ev.Lane,
			"uid":     ev.UID,
			"scan_id": ev.ID,
		}).WithError(err).Error("transaction append failed")
	}
}

func (s *GateService) ledgerCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.LedgerTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.LedgerTimeout)
}

func deny(lane types.Lane, acct *types.CardAccount, reason string) Resolution {
	d := policy.Deny(lane, reason)
	return Resolution{Account: acct, Decision: d, Command: policy.Command(lane, d)}
}

// StatusMessage is the human-readable lane status for a resolution.
func StatusMessage(uid string, res Resolution) string {
	switch res.Decision.Reason {
	case policy.ReasonGranted:
		return fmt.Sprintf("Access Granted: UID %s (%s) Balance %d", uid, res.Account.Name, res.Account.Balance)
	case policy.ReasonInsufficientBalance:
		return fmt.Sprintf("Access Denied: UID %s Insufficient Balance (%d)", uid, res.Account.Balance)
	case policy.ReasonNotFound:
		return fmt.Sprintf("Access Denied: UID %s Not Found", uid)
	case policy.ReasonLockTimeout:
		return fmt.Sprintf("Access Denied: UID %s Busy", uid)
	default:
		return fmt.Sprintf("Access Denied: UID %s Ledger Unavailable", uid)
	}
}
