package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/tollgate/internal/db"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

// Ledger keeps card accounts in the local database, for single-box
// installs without a remote ledger.
type Ledger struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewLedger(db *sql.DB, writer *dbpkg.Worker) *Ledger {
	return &Ledger{db: db, writer: writer}
}

func (l *Ledger) FetchAccount(ctx context.Context, uid string) (types.CardAccount, error) {
	uid = strings.ToUpper(strings.TrimSpace(uid))

	var a types.CardAccount
	err := l.db.QueryRowContext(ctx, `
SELECT uid, name, address, balance, role
FROM accounts
WHERE uid = ?;
`, uid).Scan(&a.UID, &a.Name, &a.Address, &a.Balance, &a.Role)
	if err == sql.ErrNoRows {
		return types.CardAccount{}, store.ErrAccountNotFound
	}
	if err != nil {
		return types.CardAccount{}, fmt.Errorf("FetchAccount query: %w", err)
	}
	return a.WithDefaults(), nil
}

func (l *Ledger) UpdateBalance(ctx context.Context, uid string, balance int64) error {
	uid = strings.ToUpper(strings.TrimSpace(uid))
	nowMs := time.Now().UTC().UnixMilli()

	return l.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE accounts
SET balance = ?,
    updated_at_ms = ?
WHERE uid = ?;
`, balance, nowMs, uid)
		if err != nil {
			return fmt.Errorf("UpdateBalance: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrAccountNotFound
		}
		return nil
	})
}

// PutAccount creates or replaces a card.  Used by provisioning and tests.
func (l *Ledger) PutAccount(ctx context.Context, a types.CardAccount) error {
	a = a.WithDefaults()
	a.UID = strings.ToUpper(strings.TrimSpace(a.UID))
	nowMs := time.Now().UTC().UnixMilli()

	return l.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO accounts(uid, name, address, balance, role, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(uid) DO UPDATE SET
  name = excluded.name,
  address = excluded.address,
  balance = excluded.balance,
  role = excluded.role,
  updated_at_ms = excluded.updated_at_ms;
`, a.UID, a.Name, a.Address, a.Balance, a.Role, nowMs, nowMs); err != nil {
			return fmt.Errorf("PutAccount %s: %w", a.UID, err)
		}
		return nil
	})
}

var (
	_ store.Ledger         = (*Ledger)(nil)
	_ store.TransactionLog = (*TransactionLog)(nil)
)
