// Package verification implements component C: short-lived numeric
// codes for email/phone proof, entirely Redis-backed.
package verification

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/redis/go-redis/v9"
)

// TargetType is the channel a verification code is sent over.
type TargetType string

const (
	TargetEmail TargetType = "email"
	TargetPhone TargetType = "phone"
)

// Sender delivers a verification code out of band. The core treats
// failure as retryable in general, but a failure on this specific path
// surfaces service_unavailable (§6.5) since there is no fallback.
type Sender interface {
	SendCode(ctx context.Context, target TargetType, to, code string) error
}

// Store is the Redis-backed verification-code store (§4.C).
type Store struct {
	rdb      *redis.Client
	sender   Sender
	codeTTL  time.Duration
	rateTTL  time.Duration
	debug    bool
}

func NewStore(rdb *redis.Client, sender Sender, codeTTL, rateTTL time.Duration, debug bool) *Store {
	return &Store{rdb: rdb, sender: sender, codeTTL: codeTTL, rateTTL: rateTTL, debug: debug}
}

func codeKey(t TargetType, target string) string {
	if t == TargetEmail {
		return fmt.Sprintf("email_code:%s", target)
	}
	return fmt.Sprintf("sms_code:%s", target)
}

func rateKey(t TargetType, target string) string {
	return fmt.Sprintf("code_rate:%s:%s", t, target)
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Send admits the request with a single SET NX EX on the rate key — the
// one atomic primitive the store relies on (§5) — then stores the code
// and dispatches it (§4.C). Returns the code only when debug is
// enabled; production callers must not echo it.
func (s *Store) Send(ctx context.Context, targetType TargetType, target string) (codeIfDebug string, err error) {
	rk := rateKey(targetType, target)

	admitted, err := s.rdb.SetNX(ctx, rk, "1", s.rateTTL).Result()
	if err != nil {
		return "", errs.Wrap(errs.KindServiceUnavailable, "rate check failed", err)
	}
	if !admitted {
		return "", errs.New(errs.KindCodeSendRateLimited, "code already sent recently")
	}

	code, err := generateCode()
	if err != nil {
		return "", errs.Wrap(errs.KindServiceUnavailable, "failed to generate code", err)
	}

	if err := s.rdb.Set(ctx, codeKey(targetType, target), code, s.codeTTL).Err(); err != nil {
		return "", errs.Wrap(errs.KindServiceUnavailable, "failed to store verification code", err)
	}

	if err := s.sender.SendCode(ctx, targetType, target, code); err != nil {
		return "", errs.Wrap(errs.KindServiceUnavailable, "failed to send verification code", err)
	}

	if s.debug {
		return code, nil
	}
	return "", nil
}

// VerifyAndConsume atomically checks and deletes a code: on match the
// code is deleted before returning success (§8 invariant 4); on
// mismatch the stored code is left intact so the rate-limit window
// continues to cap brute-force attempts.
func (s *Store) VerifyAndConsume(ctx context.Context, targetType TargetType, target, submitted string) error {
	key := codeKey(targetType, target)

	stored, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return errs.New(errs.KindCodeInvalidOrExpired, "verification code expired or not found")
	}
	if err != nil {
		return errs.Wrap(errs.KindServiceUnavailable, "failed to read verification code", err)
	}
	if stored != submitted {
		return errs.New(errs.KindCodeInvalidOrExpired, "verification code does not match")
	}

	deleted, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return errs.Wrap(errs.KindServiceUnavailable, "failed to consume verification code", err)
	}
	if deleted == 0 {
		return errs.New(errs.KindCodeInvalidOrExpired, "verification code already consumed")
	}
	return nil
}
