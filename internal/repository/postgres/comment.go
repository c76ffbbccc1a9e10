package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/echogram/internal/models"
)

type CommentStore struct {
	pool *pgxpool.Pool
}

func NewCommentStore(pool *pgxpool.Pool) *CommentStore {
	return &CommentStore{pool: pool}
}

func (s *CommentStore) Create(ctx context.Context, c *models.PostComment) (*models.PostComment, error) {
	query := `
		INSERT INTO post_comment (user_id, post_id, content, parent_id, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, post_id, user_id, content, parent_id, created_at`

	var out models.PostComment
	err := s.pool.QueryRow(ctx, query, c.UserID, c.PostID, c.Content, c.ParentID).Scan(
		&out.ID,
		&out.PostID,
		&out.UserID,
		&out.Content,
		&out.ParentID,
		&out.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w",
			translate(err, "comment already exists", "user or post does not exist"))
	}
	return &out, nil
}

func (s *CommentStore) GetByID(ctx context.Context, id int64) (*models.PostComment, error) {
	query := `
		SELECT id, post_id, user_id, content, parent_id, created_at
		FROM post_comment
		WHERE id = $1`

	var c models.PostComment
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.PostID,
		&c.UserID,
		&c.Content,
		&c.ParentID,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &c, nil
}

func (s *CommentStore) ListByPost(ctx context.Context, postID int64) ([]models.PostComment, error) {
	query := `
		SELECT id, post_id, user_id, content, parent_id, created_at
		FROM post_comment
		WHERE post_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]models.PostComment, 0)
	for rows.Next() {
		var c models.PostComment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Content, &c.ParentID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

// Delete removes a comment together with its replies. The cascade is done
// here in one transaction instead of trusting the schema's FK action, so
// replies can never outlive their parent even on a database created
// without ON DELETE CASCADE.
func (s *CommentStore) Delete(ctx context.Context, id int64) (int64, error) {
	var deleted int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		replies, err := tx.Exec(ctx, `DELETE FROM post_comment WHERE parent_id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete replies: %w", err)
		}
		self, err := tx.Exec(ctx, `DELETE FROM post_comment WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}
		deleted = replies.RowsAffected() + self.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
