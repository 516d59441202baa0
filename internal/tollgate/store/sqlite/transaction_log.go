package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/tollgate/internal/db"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

const maxRecent = 500

type TransactionLog struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewTransactionLog(db *sql.DB, writer *dbpkg.Worker) *TransactionLog {
	return &TransactionLog{db: db, writer: writer}
}

func (l *TransactionLog) Append(ctx context.Context, rec types.TransactionRecord) error {
	if rec.Date.IsZero() {
		rec.Date = time.Now().UTC()
	}
	var granted int
	if rec.Granted {
		granted = 1
	}
	var scanID any
	if rec.ScanID != "" {
		scanID = rec.ScanID
	}

	return l.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO transactions(uid, name, address, balance, role, type, granted, scan_id, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.UID, rec.Name, rec.Address, rec.Balance, rec.Role,
			string(rec.Type), granted, scanID, rec.Date.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("Append insert: %w", err)
		}
		return nil
	})
}

// Recent reads straight from the pool; reads never go through the writer.
func (l *TransactionLog) Recent(ctx context.Context, limit int) ([]types.TransactionRecord, error) {
	if limit <= 0 || limit > maxRecent {
		limit = maxRecent
	}

	rows, err := l.db.QueryContext(ctx, `
SELECT id, uid, name, address, balance, role, type, granted, scan_id, created_at_ms
FROM transactions
ORDER BY id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("Recent query: %w", err)
	}
	defer rows.Close()

	out := make([]types.TransactionRecord, 0, limit)
	for rows.Next() {
		var (
			rec       types.TransactionRecord
			typ       string
			granted   int
			scanID    sql.NullString
			createdMs int64
		)
		if err := rows.Scan(&rec.ID, &rec.UID, &rec.Name, &rec.Address, &rec.Balance,
			&rec.Role, &typ, &granted, &scanID, &createdMs); err != nil {
			return nil, fmt.Errorf("Recent scan: %w", err)
		}
		rec.Type = types.TransactionType(typ)
		rec.Granted = granted == 1
		rec.ScanID = scanID.String
		rec.Date = time.UnixMilli(createdMs).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Recent rows: %w", err)
	}
	return out, nil
}
