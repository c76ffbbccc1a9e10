package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/echogram/internal/models"
)

type PostStore struct {
	pool *pgxpool.Pool
}

func NewPostStore(pool *pgxpool.Pool) *PostStore {
	return &PostStore{pool: pool}
}

func (s *PostStore) Create(ctx context.Context, userID int64, image, content string) (*models.Post, error) {
	query := `
		INSERT INTO feed_post (user_id, image, content, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, user_id, image, content, created_at`

	var p models.Post
	err := s.pool.QueryRow(ctx, query, userID, image, content).Scan(
		&p.ID,
		&p.UserID,
		&p.Image,
		&p.Content,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w",
			translate(err, "post already exists", "user does not exist"))
	}
	return &p, nil
}

func (s *PostStore) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `
		SELECT id, user_id, image, content, created_at
		FROM feed_post
		WHERE id = $1`

	var p models.Post
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.UserID,
		&p.Image,
		&p.Content,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &p, nil
}

func (s *PostStore) List(ctx context.Context) ([]models.Post, error) {
	query := `
		SELECT id, user_id, image, content, created_at
		FROM feed_post
		ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]models.Post, 0)
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.Image, &p.Content, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

func (s *PostStore) UpdateContent(ctx context.Context, id int64, content string) error {
	_, err := s.pool.Exec(ctx, `UPDATE feed_post SET content = $2 WHERE id = $1`, id, content)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

func (s *PostStore) DeleteOwned(ctx context.Context, userID, postID int64) (bool, error) {
	// Both conditions in the WHERE: a post that exists but belongs to someone
	// else deletes zero rows instead of erroring.
	tag, err := s.pool.Exec(ctx, `DELETE FROM feed_post WHERE id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
