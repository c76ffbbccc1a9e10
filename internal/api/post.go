package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echogram/internal/apperr"
	"github.com/lalith-99/echogram/internal/middleware"
	"github.com/lalith-99/echogram/internal/models"
	"github.com/lalith-99/echogram/internal/repository"
	"go.uber.org/zap"
)

// bannedWord is rejected in post content.
const bannedWord = "f-word"

type PostHandler struct {
	posts         repository.PostRepository
	comments      repository.CommentRepository
	likes         repository.LikeRepository
	staticBaseURL string
	logger        *zap.Logger
}

func NewPostHandler(
	posts repository.PostRepository,
	comments repository.CommentRepository,
	likes repository.LikeRepository,
	staticBaseURL string,
	logger *zap.Logger,
) *PostHandler {
	return &PostHandler{
		posts:         posts,
		comments:      comments,
		likes:         likes,
		staticBaseURL: staticBaseURL,
		logger:        logger,
	}
}

type createPostRequest struct {
	Image   string `json:"image" binding:"required"`
	Content string `json:"content" binding:"required"`
}

type updatePostRequest struct {
	Content string `json:"content" binding:"required"`
}

type postResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ImageURL  string    `json:"image_url"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type postBriefResponse struct {
	ID       int64  `json:"id"`
	ImageURL string `json:"image_url"`
}

type postDetailResponse struct {
	postResponse
	LikeCount    int                  `json:"like_count"`
	CommentCount int                  `json:"comment_count"`
	Comments     []models.PostComment `json:"comments"`
}

func (h *PostHandler) render(p *models.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		ImageURL:  p.ImageURL(h.staticBaseURL),
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
	}
}

func checkContent(content string) error {
	if strings.Contains(strings.ToLower(content), bannedWord) {
		return apperr.New(apperr.KindInvalid, "content contains a banned word")
	}
	return nil
}

// Create handles POST /v1/posts
func (h *PostHandler) Create(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	if err := checkContent(req.Content); err != nil {
		respondError(c, h.logger, "create post", err)
		return
	}

	post, err := h.posts.Create(c.Request.Context(), middleware.GetUserID(c), req.Image, req.Content)
	if err != nil {
		respondError(c, h.logger, "create post", err)
		return
	}
	c.JSON(http.StatusCreated, h.render(post))
}

// List handles GET /v1/posts
func (h *PostHandler) List(c *gin.Context) {
	posts, err := h.posts.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "list posts", err)
		return
	}

	out := make([]postBriefResponse, 0, len(posts))
	for i := range posts {
		out = append(out, postBriefResponse{ID: posts[i].ID, ImageURL: posts[i].ImageURL(h.staticBaseURL)})
	}
	c.JSON(http.StatusOK, out)
}

// loadPost fetches the :post_id post, answering 404 itself when missing.
func (h *PostHandler) loadPost(c *gin.Context, op string) (*models.Post, bool) {
	postID, ok := idParam(c, "post_id")
	if !ok {
		return nil, false
	}
	post, err := h.posts.GetByID(c.Request.Context(), postID)
	if err != nil {
		respondError(c, h.logger, op, err)
		return nil, false
	}
	if post == nil {
		respondError(c, h.logger, op, apperr.New(apperr.KindNotFound, "Post not found"))
		return nil, false
	}
	return post, true
}

// Get handles GET /v1/posts/:post_id
func (h *PostHandler) Get(c *gin.Context) {
	post, ok := h.loadPost(c, "get post")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	comments, err := h.comments.ListByPost(ctx, post.ID)
	if err != nil {
		respondError(c, h.logger, "get post", err)
		return
	}
	likes, err := h.likes.CountByPost(ctx, post.ID)
	if err != nil {
		respondError(c, h.logger, "get post", err)
		return
	}

	c.JSON(http.StatusOK, postDetailResponse{
		postResponse: h.render(post),
		LikeCount:    likes,
		CommentCount: len(comments),
		Comments:     comments,
	})
}

// Update handles PATCH /v1/posts/:post_id
func (h *PostHandler) Update(c *gin.Context) {
	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	if err := checkContent(req.Content); err != nil {
		respondError(c, h.logger, "update post", err)
		return
	}

	post, ok := h.loadPost(c, "update post")
	if !ok {
		return
	}
	if post.UserID != middleware.GetUserID(c) {
		respondError(c, h.logger, "update post", apperr.New(apperr.KindForbidden, "not your post"))
		return
	}

	if err := h.posts.UpdateContent(c.Request.Context(), post.ID, req.Content); err != nil {
		respondError(c, h.logger, "update post", err)
		return
	}
	post.Content = req.Content
	c.JSON(http.StatusOK, h.render(post))
}

// Delete handles DELETE /v1/posts/:post_id
//
// Only the author's own post is removed; anything else is a quiet 204.
func (h *PostHandler) Delete(c *gin.Context) {
	postID, ok := idParam(c, "post_id")
	if !ok {
		return
	}

	deleted, err := h.posts.DeleteOwned(c.Request.Context(), middleware.GetUserID(c), postID)
	if err != nil {
		respondError(c, h.logger, "delete post", err)
		return
	}
	if deleted {
		h.logger.Info("post deleted", zap.Int64("post_id", postID))
	}
	c.Status(http.StatusNoContent)
}
