package repository

import (
	"context"

	"github.com/lalith-99/echogram/internal/models"
)

// Every method takes a context first and returns (nil, nil) for a lookup
// that finds nothing. Constraint violations come back as *apperr.Error with
// KindIntegrityViolation or KindConflict, never as raw driver errors.

// MemberRepository persists member accounts.
type MemberRepository interface {
	// Create inserts a member and returns it with ID and CreatedAt populated.
	// A taken username is a KindConflict error.
	Create(ctx context.Context, m *models.Member) (*models.Member, error)

	GetByID(ctx context.Context, id int64) (*models.Member, error)
	GetByUsername(ctx context.Context, username string) (*models.Member, error)

	// GetBySocialEmail finds a member who signed up through provider with
	// the given email.
	GetBySocialEmail(ctx context.Context, provider models.SocialProvider, email string) (*models.Member, error)

	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdateEmail(ctx context.Context, id int64, email string) error

	// Delete removes the member; posts, comments and likes go with it.
	Delete(ctx context.Context, id int64) error
}

// PostRepository handles feed posts.
type PostRepository interface {
	Create(ctx context.Context, userID int64, image, content string) (*models.Post, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)

	// List returns every post, newest first. Empty slice, not nil.
	List(ctx context.Context) ([]models.Post, error)

	UpdateContent(ctx context.Context, id int64, content string) error

	// DeleteOwned deletes the post only if userID wrote it. Deleting
	// someone else's post is a silent no-op; the result says whether a row
	// went away.
	DeleteOwned(ctx context.Context, userID, postID int64) (bool, error)
}

// CommentRepository handles post comments and their single reply level.
type CommentRepository interface {
	Create(ctx context.Context, c *models.PostComment) (*models.PostComment, error)
	GetByID(ctx context.Context, id int64) (*models.PostComment, error)

	// ListByPost returns the comments of a post, oldest first.
	ListByPost(ctx context.Context, postID int64) ([]models.PostComment, error)

	// Delete removes the comment and, for a top-level comment, all of its
	// replies in the same transaction. It returns how many rows went away.
	Delete(ctx context.Context, id int64) (int64, error)
}

// LikeRepository handles post likes.
type LikeRepository interface {
	// Create inserts a like. A duplicate (user, post) pair is an
	// apperr KindConflict error.
	Create(ctx context.Context, userID, postID int64) (*models.PostLike, error)
	Get(ctx context.Context, userID, postID int64) (*models.PostLike, error)
	Delete(ctx context.Context, userID, postID int64) error
	CountByPost(ctx context.Context, postID int64) (int, error)
}

// ChatRoomRepository handles chat rooms.
type ChatRoomRepository interface {
	Create(ctx context.Context, name string) (*models.ChatRoom, error)
	GetByID(ctx context.Context, id int64) (*models.ChatRoom, error)
	List(ctx context.Context) ([]models.ChatRoom, error)
}

// ChatMessageRepository is the append-only message log of each room.
type ChatMessageRepository interface {
	// Save persists a message and returns it with ID and CreatedAt
	// populated. A message by a member that no longer exists is a
	// KindIntegrityViolation error.
	Save(ctx context.Context, roomID, userID int64, content string) (*models.ChatMessage, error)

	// ListByRoom returns the full history of a room in chronological order.
	ListByRoom(ctx context.Context, roomID int64) ([]models.ChatMessage, error)
}
