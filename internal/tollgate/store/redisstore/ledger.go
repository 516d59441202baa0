// Package redisstore keeps card accounts and per-card locks in Redis.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/BrandonDHaskell/tollgate/internal/tollgate/store"
	"github.com/BrandonDHaskell/tollgate/internal/tollgate/types"
)

const DefaultPrefix = "rfid:"

// updateBalance sets Balance only when the card hash already exists.
var updateBalance = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'Balance', ARGV[1])
return 1
`)

// Ledger stores one hash per card at <prefix><UID> with the fields
// Name, Address, Balance and Role.
type Ledger struct {
	client redis.UniversalClient
	prefix string
}

func NewLedger(client redis.UniversalClient, prefix string) *Ledger {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Ledger{client: client, prefix: prefix}
}

func (l *Ledger) key(uid string) string {
	return l.prefix + strings.ToUpper(strings.TrimSpace(uid))
}

func (l *Ledger) FetchAccount(ctx context.Context, uid string) (types.CardAccount, error) {
	fields, err := l.client.HGetAll(ctx, l.key(uid)).Result()
	if err != nil {
		return types.CardAccount{}, fmt.Errorf("FetchAccount %s: %w", uid, err)
	}
	if len(fields) == 0 {
		return types.CardAccount{}, store.ErrAccountNotFound
	}

	a := types.CardAccount{
		UID:     strings.ToUpper(strings.TrimSpace(uid)),
		Name:    fields["Name"],
		Address: fields["Address"],
		Role:    fields["Role"],
	}
	if raw := strings.TrimSpace(fields["Balance"]); raw != "" {
		bal, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return types.CardAccount{}, fmt.Errorf("FetchAccount %s: bad balance %q: %w", uid, raw, err)
		}
		a.Balance = bal
	}
	return a.WithDefaults(), nil
}

func (l *Ledger) UpdateBalance(ctx context.Context, uid string, balance int64) error {
	n, err := updateBalance.Run(ctx, l.client, []string{l.key(uid)}, balance).Int()
	if err != nil {
		return fmt.Errorf("UpdateBalance %s: %w", uid, err)
	}
	if n == 0 {
		return store.ErrAccountNotFound
	}
	return nil
}

// PutAccount creates or replaces a card hash.
func (l *Ledger) PutAccount(ctx context.Context, a types.CardAccount) error {
	a = a.WithDefaults()
	err := l.client.HSet(ctx, l.key(a.UID),
		"Name", a.Name,
		"Address", a.Address,
		"Balance", a.Balance,
		"Role", a.Role,
	).Err()
	if err != nil {
		return fmt.Errorf("PutAccount %s: %w", a.UID, err)
	}
	return nil
}

var _ store.Ledger = (*Ledger)(nil)
