package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SeedAccount struct {
	UID     string
	Name    string
	Address string
	Balance int64
	Role    string
}

// DevAccounts are the demo cards loaded into the sqlite ledger in dev.
var DevAccounts = []SeedAccount{
	{UID: "12345678", Name: "Dev Resident", Address: "Block 1 Lot 1", Balance: 200, Role: "Resident"},
	{UID: "A1B2C3D4", Name: "Dev Visitor", Address: "N/A", Balance: 50, Role: "Visitor"},
	{UID: "DEADBEEF", Name: "Empty Card", Address: "Block 2 Lot 7", Balance: 0, Role: "Resident"},
}

type SeedDevOptions struct {
	Accounts []SeedAccount // defaults to DevAccounts
}

// SeedDev inserts demo accounts without touching cards that already exist,
// so balances changed during a dev session survive a restart.
func SeedDev(ctx context.Context, conn *sql.DB, opt SeedDevOptions) error {
	accounts := opt.Accounts
	if len(accounts) == 0 {
		accounts = DevAccounts
	}
	now := time.Now().UTC().UnixMilli()

	for _, a := range accounts {
		if _, err := conn.ExecContext(ctx, `
INSERT OR IGNORE INTO accounts(uid, name, address, balance, role, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);`,
			a.UID, a.Name, a.Address, a.Balance, a.Role, now, now,
		); err != nil {
			return fmt.Errorf("seed account %s: %w", a.UID, err)
		}
	}

	return nil
}
