// Package policy decides whether a lane grants access for a resolved card
// account and which balance mutation, if any, goes with the decision.
// Everything here is pure; callers own the ledger I/O.
package policy

import (
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

// DefaultFare is deducted on a successful EXIT scan unless configured.
const DefaultFare int64 = 50

var (
	ErrInvalidAmount = errors.New("top-up amount must be positive")
	ErrAmountTooHigh = errors.New("top-up amount exceeds the configured maximum")
)

const (
	ReasonGranted             = "granted"
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonNotFound            = "not_found"
	ReasonLedgerError         = "ledger_error"
	ReasonLockTimeout         = "lock_timeout"
)

type Policy struct {
	Fare int64
	// MaxTopUp caps a single top-up. 0 means no cap.
	MaxTopUp int64
}

func New(fare, maxTopUp int64) Policy {
	if fare <= 0 {
		fare = DefaultFare
	}
	if maxTopUp < 0 {
		maxTopUp = 0
	}
	return Policy{Fare: fare, MaxTopUp: maxTopUp}
}

// Decision is the outcome for one scan. NewBalance is nil whenever Grant is
// false, and nil for grants that do not touch the balance.
type Decision struct {
	Grant      bool
	NewBalance *int64
	RecordType types.TransactionType
	Reason     string
}

func (p Policy) Decide(lane types.Lane, acct types.CardAccount) Decision {
	switch lane {
	case types.LaneEntrance:
		if acct.Balance > 0 {
			return Decision{Grant: true, RecordType: types.TxEntry, Reason: ReasonGranted}
		}
		return Decision{RecordType: types.TxEntry, Reason: ReasonInsufficientBalance}

	case types.LaneExit:
		next := acct.Balance - p.fare()
		if next >= 0 {
			return Decision{Grant: true, NewBalance: &next, RecordType: types.TxExit, Reason: ReasonGranted}
		}
		return Decision{RecordType: types.TxExit, Reason: ReasonInsufficientBalance}
	}

	return Decision{Reason: fmt.Sprintf("unknown_lane_%s", lane)}
}

// Deny is the decision used when no account could be resolved.
func Deny(lane types.Lane, reason string) Decision {
	d := Decision{Reason: reason, RecordType: types.TxEntry}
	if lane == types.LaneExit {
		d.RecordType = types.TxExit
	}
	return d
}

// TopUp credits amount onto the account balance.
func (p Policy) TopUp(acct types.CardAccount, amount int64) (Decision, error) {
	if amount <= 0 {
		return Decision{}, ErrInvalidAmount
	}
	if p.MaxTopUp > 0 && amount > p.MaxTopUp {
		return Decision{}, ErrAmountTooHigh
	}
	next := acct.Balance + amount
	return Decision{Grant: true, NewBalance: &next, RecordType: types.TxTopUp, Reason: ReasonGranted}, nil
}

func (p Policy) fare() int64 {
	if p.Fare <= 0 {
		return DefaultFare
	}
	return p.Fare
}

// Command maps a decision onto the actuator command for lane.
func Command(lane types.Lane, d Decision) types.GateCommand {
	if d.Grant {
		return types.GateCommand{Lane: lane, Action: types.ActionOpen}
	}
	return types.GateCommand{Lane: lane, Action: types.ActionClose}
}
