package store

import (
	"context"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

// TransactionLog is the local append-only history of resolved scans and
// top-ups.  There is deliberately no update or delete.
type TransactionLog interface {
	Append(ctx context.Context, rec types.TransactionRecord) error
	// Recent returns up to limit records, most recent first.
	Recent(ctx context.Context, limit int) ([]types.TransactionRecord, error)
}
