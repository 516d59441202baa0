package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

// TransactionLog is an in-memory append-only log of transaction records.
// It is intended for use in tests and dev environments.
type TransactionLog struct {
	mu      sync.Mutex
	nextID  int64
	records []types.TransactionRecord
	failErr error
}

func NewTransactionLog() *TransactionLog {
	return &TransactionLog{nextID: 1}
}

func (l *TransactionLog) Append(_ context.Context, rec types.TransactionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failErr != nil {
		return l.failErr
	}
	if rec.Date.IsZero() {
		rec.Date = time.Now().UTC()
	}
	rec.ID = l.nextID
	l.nextID++
	l.records = append(l.records, rec)
	return nil
}

func (l *TransactionLog) Recent(_ context.Context, limit int) ([]types.TransactionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > len(l.records) {
		limit = len(l.records)
	}
	out := make([]types.TransactionRecord, 0, limit)
	for i := len(l.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.records[i])
	}
	return out, nil
}

// Records returns a copy of all records in append order.  Test-only helper.
func (l *TransactionLog) Records() []types.TransactionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.TransactionRecord, len(l.records))
	copy(out, l.records)
	return out
}

// FailWith makes every subsequent Append return err (nil restores normal
// behaviour).  Test-only helper.
func (l *TransactionLog) FailWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failErr = err
}

var _ store.TransactionLog = (*TransactionLog)(nil)
