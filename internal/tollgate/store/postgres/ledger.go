// Package postgres is a shared SQL ledger for deployments where several
// gate boxes charge the same cards.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS card_accounts (
    uid        CHAR(8) PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT 'Unknown',
    address    TEXT NOT NULL DEFAULT 'N/A',
    balance    BIGINT NOT NULL DEFAULT 0,
    role       TEXT NOT NULL DEFAULT 'Unknown',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type Ledger struct {
	db *pgxpool.Pool
}

func NewLedger(db *pgxpool.Pool) *Ledger {
	return &Ledger{db: db}
}

// EnsureSchema creates the card_accounts table when missing.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure card_accounts: %w", err)
	}
	return nil
}

func (l *Ledger) FetchAccount(ctx context.Context, uid string) (types.CardAccount, error) {
	uid = strings.ToUpper(strings.TrimSpace(uid))

	var a types.CardAccount
	err := l.db.QueryRow(ctx,
		`SELECT uid, name, address, balance, role FROM card_accounts WHERE uid = $1`, uid,
	).Scan(&a.UID, &a.Name, &a.Address, &a.Balance, &a.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.CardAccount{}, store.ErrAccountNotFound
		}
		return types.CardAccount{}, fmt.Errorf("FetchAccount %s: %w", uid, err)
	}
	return a.WithDefaults(), nil
}

// UpdateBalance locks the row before writing so a concurrent writer on
// another box waits rather than interleaving.
func (l *Ledger) UpdateBalance(ctx context.Context, uid string, balance int64) error {
	uid = strings.ToUpper(strings.TrimSpace(uid))

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("UpdateBalance begin: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var current string
	if err := tx.QueryRow(ctx,
		`SELECT uid FROM card_accounts WHERE uid = $1 FOR UPDATE`, uid,
	).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrAccountNotFound
		}
		return fmt.Errorf("UpdateBalance lock %s: %w", uid, err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE card_accounts SET balance = $2, updated_at = now() WHERE uid = $1`, uid, balance,
	); err != nil {
		return fmt.Errorf("UpdateBalance %s: %w", uid, err)
	}

	return tx.Commit(ctx)
}

// PutAccount creates or replaces a card.
func (l *Ledger) PutAccount(ctx context.Context, a types.CardAccount) error {
	a = a.WithDefaults()
	a.UID = strings.ToUpper(strings.TrimSpace(a.UID))

	_, err := l.db.Exec(ctx, `
INSERT INTO card_accounts (uid, name, address, balance, role)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (uid) DO UPDATE SET
    name = EXCLUDED.name,
    address = EXCLUDED.address,
    balance = EXCLUDED.balance,
    role = EXCLUDED.role,
    updated_at = now()`,
		a.UID, a.Name, a.Address, a.Balance, a.Role)
	if err != nil {
		return fmt.Errorf("PutAccount %s: %w", a.UID, err)
	}
	return nil
}

var _ store.Ledger = (*Ledger)(nil)
