package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/echogram/internal/models"
)

type LikeStore struct {
	pool *pgxpool.Pool
}

func NewLikeStore(pool *pgxpool.Pool) *LikeStore {
	return &LikeStore{pool: pool}
}

// Create does not use ON CONFLICT DO NOTHING: the caller needs to know the
// like already existed so it can answer with the existing row.
func (s *LikeStore) Create(ctx context.Context, userID, postID int64) (*models.PostLike, error) {
	query := `
		INSERT INTO post_like (user_id, post_id, created_at)
		VALUES ($1, $2, now())
		RETURNING id, user_id, post_id, created_at`

	var l models.PostLike
	err := s.pool.QueryRow(ctx, query, userID, postID).Scan(&l.ID, &l.UserID, &l.PostID, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert like: %w",
			translate(err, "already liked", "user does not exist"))
	}
	return &l, nil
}

func (s *LikeStore) Get(ctx context.Context, userID, postID int64) (*models.PostLike, error) {
	query := `
		SELECT id, user_id, post_id, created_at
		FROM post_like
		WHERE user_id = $1 AND post_id = $2`

	var l models.PostLike
	err := s.pool.QueryRow(ctx, query, userID, postID).Scan(&l.ID, &l.UserID, &l.PostID, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get like: %w", err)
	}
	return &l, nil
}

func (s *LikeStore) Delete(ctx context.Context, userID, postID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM post_like WHERE user_id = $1 AND post_id = $2`, userID, postID)
	if err != nil {
		return fmt.Errorf("delete like: %w", err)
	}
	return nil
}

func (s *LikeStore) CountByPost(ctx context.Context, postID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM post_like WHERE post_id = $1`, postID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return n, nil
}
