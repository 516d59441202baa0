package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]types.CardAccount

	fetchErr  error
	updateErr error
	updates   int
}

func NewLedger(accounts ...types.CardAccount) *Ledger {
	l := &Ledger{accounts: make(map[string]types.CardAccount, len(accounts))}
	for _, a := range accounts {
		l.Put(a)
	}
	return l
}

func (l *Ledger) FetchAccount(_ context.Context, uid string) (types.CardAccount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.fetchErr != nil {
		return types.CardAccount{}, l.fetchErr
	}
	a, ok := l.accounts[strings.ToUpper(uid)]
	if !ok {
		return types.CardAccount{}, store.ErrAccountNotFound
	}
	return a.WithDefaults(), nil
}

func (l *Ledger) UpdateBalance(_ context.Context, uid string, balance int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.updateErr != nil {
		return l.updateErr
	}
	key := strings.ToUpper(uid)
	a, ok := l.accounts[key]
	if !ok {
		return store.ErrAccountNotFound
	}
	a.Balance = balance
	l.accounts[key] = a
	l.updates++
	return nil
}

// Put creates or replaces an account.
func (l *Ledger) Put(a types.CardAccount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a.UID = strings.ToUpper(a.UID)
	l.accounts[a.UID] = a
}

// Balance returns the stored balance for uid.  Test-only helper.
func (l *Ledger) Balance(uid string) (int64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.accounts[strings.ToUpper(uid)]
	return a.Balance, ok
}

// UpdateCount reports how many successful UpdateBalance calls were made.
// Test-only helper.
func (l *Ledger) UpdateCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.updates
}

// FailFetch and FailUpdate inject errors for tests; nil clears them.
func (l *Ledger) FailFetch(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetchErr = err
}

func (l *Ledger) FailUpdate(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updateErr = err
}

var _ store.Ledger = (*Ledger)(nil)
