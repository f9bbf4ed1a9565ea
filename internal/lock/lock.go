// Package lock serializes payment processing per loan across
// processes. The database row lock already protects a single instance;
// the redis lock keeps two instances from queueing on the same loan's
// row and timing out instead of failing fast.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/creditera/cobranza/internal/config"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyLoanPayment = "loan:payment:lock:%s"

	DefaultTTL = 30 * time.Second
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// LoanLocker hands out short-lived per-loan locks. A nil LoanLocker is
// valid and locks nothing; payment processing then relies on the row
// lock alone.
type LoanLocker struct {
	client *redis.Client
	script *redis.Script
}

// NewLoanLocker builds a locker from configuration. Returns nil when no
// redis address is configured.
func NewLoanLocker(cfg config.Config) *LoanLocker {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})
	return &LoanLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// TryLock attempts to take the loan's payment lock. It does not block:
// a held lock returns ok=false and the caller maps that to a
// concurrency conflict.
func (l *LoanLocker) TryLock(ctx context.Context, loanID snowflake.ID, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", true, nil
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	key := fmt.Sprintf(keyLoanPayment, loanID.String())
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release frees the lock if the token still owns it.
func (l *LoanLocker) Release(ctx context.Context, loanID snowflake.ID, token string) error {
	if l == nil || l.client == nil || token == "" {
		return nil
	}
	key := fmt.Sprintf(keyLoanPayment, loanID.String())
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}
