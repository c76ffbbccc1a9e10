package models

import (
	"path"
	"strings"
	"time"
)

// SocialProvider names an external identity provider a member signed up with.
type SocialProvider string

const SocialProviderKakao SocialProvider = "kakao"

// Member is an account. Members created through social login have no
// usable password; their PasswordHash is a random bcrypt hash nobody knows.
//
// Email is nil until it is verified through the OTP flow (or supplied by
// the social provider).
type Member struct {
	ID             int64           `json:"id"`
	Username       string          `json:"username"`
	PasswordHash   string          `json:"-"`
	Email          *string         `json:"email"`
	SocialProvider *SocialProvider `json:"social_provider,omitempty"`
	SocialSubject  *string         `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Post is a feed entry. Image is the stored path of the picture; clients
// get it back through ImageURL.
type Post struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Image     string    `json:"-"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ImageURL is where the static file server exposes the post image.
func (p Post) ImageURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/static/" + path.Base(p.Image)
}

// PostComment is a comment on a post. ParentID is nil for top-level
// comments; replies point at a top-level comment of the same post.
// Deleting a top-level comment deletes its replies with it.
type PostComment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	UserID    int64     `json:"user_id"`
	Content   string    `json:"content"`
	ParentID  *int64    `json:"parent_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (c PostComment) IsParent() bool { return c.ParentID == nil }

// PostLike is unique per (user, post).
type PostLike struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	PostID    int64     `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PostDetail is a post with its aggregates, assembled by the feed handler.
type PostDetail struct {
	Post
	LikeCount    int           `json:"like_count"`
	CommentCount int           `json:"comment_count"`
	Comments     []PostComment `json:"comments"`
}

// ChatRoom groups participants and messages.
type ChatRoom struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is immutable once persisted. Within a room, messages are
// ordered by CreatedAt, with ID breaking ties.
type ChatMessage struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	UserID    int64     `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
