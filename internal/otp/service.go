// Package otp verifies ownership of an email address with a six-digit code
// sent to it. A member has at most one pending code; issuing again replaces
// it, and a code is good for one successful verification within its TTL.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/lalith-99/echogram/internal/apperr"
	"github.com/lalith-99/echogram/internal/mail"
	"github.com/lalith-99/echogram/internal/models"
	redisstore "github.com/lalith-99/echogram/internal/repository/redis"
	"go.uber.org/zap"
)

const (
	MinCode = 100000
	MaxCode = 999999

	DefaultTTL = 180 * time.Second
)

// Store keeps the pending record of each member.
type Store interface {
	Save(ctx context.Context, memberID int64, code int, email string, ttl time.Duration) error
	Consume(ctx context.Context, memberID int64, code int) (string, error)
}

// Members is the slice of the member repository the service touches.
type Members interface {
	GetByID(ctx context.Context, id int64) (*models.Member, error)
	UpdateEmail(ctx context.Context, id int64, email string) error
}

// Outbox queues mail for asynchronous delivery.
type Outbox interface {
	Enqueue(msg mail.Message) error
}

type Service struct {
	members Members
	store   Store
	outbox  Outbox
	ttl     time.Duration
	logger  *zap.Logger

	generate func() (int, error)
}

func NewService(members Members, store Store, outbox Outbox, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		members:  members,
		store:    store,
		outbox:   outbox,
		ttl:      ttl,
		logger:   logger,
		generate: GenerateCode,
	}
}

// GenerateCode draws a code uniformly from [MinCode, MaxCode].
func GenerateCode() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(MaxCode-MinCode+1))
	if err != nil {
		return 0, fmt.Errorf("generate otp: %w", err)
	}
	return MinCode + int(n.Int64()), nil
}

// Issue stores a fresh code for memberID bound to email and queues it for
// delivery. The returned code is for logging and tests; it must never be
// sent back to the client.
func (s *Service) Issue(ctx context.Context, memberID int64, email string) (int, error) {
	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return 0, fmt.Errorf("load member: %w", err)
	}
	if member == nil {
		return 0, apperr.New(apperr.KindNotFound, "User not found")
	}

	code, err := s.generate()
	if err != nil {
		return 0, err
	}
	if err := s.store.Save(ctx, member.ID, code, email, s.ttl); err != nil {
		return 0, fmt.Errorf("store otp: %w", err)
	}

	// Best effort: a lost email means the member asks for a new code.
	msg := mail.Message{
		To:      email,
		Subject: "Your verification code",
		Body: fmt.Sprintf("Your verification code is %06d. It expires in %d minutes.",
			code, int(s.ttl.Minutes())),
	}
	if err := s.outbox.Enqueue(msg); err != nil {
		s.logger.Warn("otp mail not queued",
			zap.Int64("member_id", member.ID),
			zap.Error(err),
		)
	}

	return code, nil
}

// Verify checks code against memberID's pending record. On success the
// record is consumed, the pending email is written to the member, and the
// updated member is returned.
func (s *Service) Verify(ctx context.Context, memberID int64, code int) (*models.Member, error) {
	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("load member: %w", err)
	}
	if member == nil {
		return nil, apperr.New(apperr.KindNotFound, "User not found")
	}

	email, err := s.store.Consume(ctx, member.ID, code)
	switch {
	case errors.Is(err, redisstore.ErrOTPMissing):
		return nil, apperr.New(apperr.KindRecordMissing, "OTP not found")
	case errors.Is(err, redisstore.ErrOTPMismatch):
		return nil, apperr.New(apperr.KindMismatch, "OTP mismatch")
	case err != nil:
		return nil, fmt.Errorf("check otp: %w", err)
	}

	if err := s.members.UpdateEmail(ctx, member.ID, email); err != nil {
		return nil, fmt.Errorf("commit email: %w", err)
	}
	member.Email = &email
	return member, nil
}
