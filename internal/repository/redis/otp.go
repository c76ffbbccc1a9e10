// Package redisstore holds the Redis-backed stores. The only one today is
// the OTP store: short-lived verification codes whose lifetime is enforced
// by key expiry, so nothing ever has to sweep them.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrOTPMissing means no record exists: never issued, expired, or
	// already consumed.
	ErrOTPMissing = errors.New("otp record missing")
	// ErrOTPMismatch means a record exists but the code differs. The
	// record is left in place.
	ErrOTPMismatch = errors.New("otp mismatch")
)

const (
	fieldOTP   = "otp"
	fieldEmail = "email"
)

// consumeScript compares the submitted code and deletes the record only on
// a match, so two concurrent verifications of one code can never both win.
//
// Returns {0} when missing, {1} on mismatch, {2, email} on success.
var consumeScript = redis.NewScript(`
	local stored = redis.call('HGET', KEYS[1], 'otp')
	if not stored then
		return {0}
	end
	if stored ~= ARGV[1] then
		return {1}
	end
	local email = redis.call('HGET', KEYS[1], 'email')
	redis.call('DEL', KEYS[1])
	return {2, email}
`)

type OTPStore struct {
	client *redis.Client
}

func NewOTPStore(client *redis.Client) *OTPStore {
	return &OTPStore{client: client}
}

// Key is the cache key holding memberID's pending verification.
func Key(memberID int64) string {
	return "members:" + strconv.FormatInt(memberID, 10) + ":email:otp"
}

// Save writes {otp, email} for memberID with the given TTL. Any previous
// record is replaced and its TTL restarted; the DEL/HSET/EXPIRE run in one
// MULTI so a reader never sees a record without an expiry.
func (s *OTPStore) Save(ctx context.Context, memberID int64, code int, email string, ttl time.Duration) error {
	key := Key(memberID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldOTP, strconv.Itoa(code), fieldEmail, email)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save otp: %w", err)
	}
	return nil
}

// Consume checks code against memberID's record. On a match the record is
// deleted and the pending email returned.
func (s *OTPStore) Consume(ctx context.Context, memberID int64, code int) (string, error) {
	res, err := consumeScript.Run(ctx, s.client, []string{Key(memberID)}, strconv.Itoa(code)).Slice()
	if err != nil {
		return "", fmt.Errorf("consume otp: %w", err)
	}
	if len(res) == 0 {
		return "", fmt.Errorf("consume otp: empty reply")
	}

	status, ok := res[0].(int64)
	if !ok {
		return "", fmt.Errorf("consume otp: unexpected status %T", res[0])
	}
	switch status {
	case 0:
		return "", ErrOTPMissing
	case 1:
		return "", ErrOTPMismatch
	}

	if len(res) < 2 {
		return "", fmt.Errorf("consume otp: reply has no email")
	}
	email, ok := res[1].(string)
	if !ok {
		return "", fmt.Errorf("consume otp: unexpected email %T", res[1])
	}
	return email, nil
}

// Delete drops memberID's record if there is one.
func (s *OTPStore) Delete(ctx context.Context, memberID int64) error {
	if err := s.client.Del(ctx, Key(memberID)).Err(); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}
