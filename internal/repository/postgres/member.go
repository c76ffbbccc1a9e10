package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/echogram/internal/models"
)

type MemberStore struct {
	pool *pgxpool.Pool
}

func NewMemberStore(pool *pgxpool.Pool) *MemberStore {
	return &MemberStore{pool: pool}
}

const memberColumns = `id, username, password, email, social_provider, social_subject, created_at`

func scanMember(row pgx.Row) (*models.Member, error) {
	var m models.Member
	err := row.Scan(
		&m.ID,
		&m.Username,
		&m.PasswordHash,
		&m.Email,
		&m.SocialProvider,
		&m.SocialSubject,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MemberStore) Create(ctx context.Context, m *models.Member) (*models.Member, error) {
	query := `
		INSERT INTO service_member (username, password, email, social_provider, social_subject, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING ` + memberColumns

	created, err := scanMember(s.pool.QueryRow(ctx, query,
		m.Username, m.PasswordHash, m.Email, m.SocialProvider, m.SocialSubject))
	if err != nil {
		return nil, fmt.Errorf("insert member: %w",
			translate(err, "username already taken", "referenced row does not exist"))
	}
	return created, nil
}

func (s *MemberStore) GetByID(ctx context.Context, id int64) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM service_member WHERE id = $1`
	return s.getOne(ctx, "get member", query, id)
}

func (s *MemberStore) GetByUsername(ctx context.Context, username string) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM service_member WHERE username = $1`
	return s.getOne(ctx, "get member by username", query, username)
}

func (s *MemberStore) GetBySocialEmail(ctx context.Context, provider models.SocialProvider, email string) (*models.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM service_member
		WHERE social_provider = $1 AND email = $2`
	return s.getOne(ctx, "get member by social email", query, provider, email)
}

func (s *MemberStore) getOne(ctx context.Context, op, query string, args ...any) (*models.Member, error) {
	m, err := scanMember(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

func (s *MemberStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := s.pool.Exec(ctx, `UPDATE service_member SET password = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *MemberStore) UpdateEmail(ctx context.Context, id int64, email string) error {
	_, err := s.pool.Exec(ctx, `UPDATE service_member SET email = $2 WHERE id = $1`, id, email)
	if err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	return nil
}

// Delete relies on ON DELETE CASCADE from posts, comments, likes and chat
// messages to service_member.
func (s *MemberStore) Delete(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM service_member WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}
