package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrNotAcquired = errors.New("lock not acquired")

// releaseLock deletes the key only if it still holds our token, so an
// expired lock taken over by another holder is left alone.
var releaseLock = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

type LockerConfig struct {
	Prefix string        // default "lock:rfid:"
	TTL    time.Duration // lease length, default 10s
	Retry  time.Duration // poll interval while waiting, default 25ms
	Logger logrus.FieldLogger
}

// Locker serializes work on one card across processes, e.g. the server and
// the top-up CLI.  The wait is bounded by the caller's context.
type Locker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
	logger logrus.FieldLogger
}

func NewLocker(client redis.UniversalClient, cfg LockerConfig) *Locker {
	l := &Locker{client: client, prefix: cfg.Prefix, ttl: cfg.TTL, retry: cfg.Retry, logger: cfg.Logger}
	if l.logger == nil {
		l.logger = logrus.StandardLogger()
	}
	if l.prefix == "" {
		l.prefix = "lock:" + DefaultPrefix
	}
	if l.ttl <= 0 {
		l.ttl = 10 * time.Second
	}
	if l.retry <= 0 {
		l.retry = 25 * time.Millisecond
	}
	return l
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	k := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
			}
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return func() { l.release(k, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) release(k, token string) {
	// The caller's context may already be done; release on a fresh one.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseLock.Run(ctx, l.client, []string{k}, token).Err(); err != nil {
		l.logger.WithError(err).WithFields(logrus.Fields{"key": k, "ttl": l.ttl}).Warn("lock release failed; lease held until expiry")
	}
}
