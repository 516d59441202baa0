package store

import (
	"context"
	"errors"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

// ErrAccountNotFound means the ledger has no record for the UID. Any other
// error from a Ledger is treated as transient.
var ErrAccountNotFound = errors.New("account not found")

// Ledger is the balance-of-record store. Implementations must re-read the
// source of truth on every FetchAccount call.
type Ledger interface {
	FetchAccount(ctx context.Context, uid string) (types.CardAccount, error)
	// UpdateBalance sets the balance unconditionally. It never creates an
	// account; a missing UID yields ErrAccountNotFound.
	UpdateBalance(ctx context.Context, uid string, balance int64) error
}
