package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockTTL bounds how long a crashed pass can block the next one.
const DefaultLockTTL = 30 * time.Minute

// ErrLockHeld is returned when another pass owns the company lock.
var ErrLockHeld = errors.New("platform/cache: lock held")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// CompanyLockKey builds the redis key guarding ledger passes for a company.
func CompanyLockKey(companyID uuid.UUID) string {
	return fmt.Sprintf("ledger:company:%s:lock", companyID)
}

// Locker hands out expiring single-owner locks.
type Locker struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewLocker builds a Locker. A non-positive ttl falls back to DefaultLockTTL.
func NewLocker(client redis.Cmdable, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Locker{client: client, ttl: ttl}
}

// Lease is an acquired lock. Release it once the guarded work is done.
type Lease struct {
	client redis.Cmdable
	key    string
	token  string
}

// Acquire takes key for the locker's ttl or returns ErrLockHeld.
func (l *Locker) Acquire(ctx context.Context, key string) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, errors.New("platform/cache: locker not configured")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("platform/cache: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lease{client: l.client, key: key, token: token}, nil
}

// Key returns the locked key.
func (l *Lease) Key() string {
	return l.key
}

// Release deletes the key if this lease still owns it. An expired lease
// taken over by someone else is left alone.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("platform/cache: release %s: %w", l.key, err)
	}
	return nil
}
