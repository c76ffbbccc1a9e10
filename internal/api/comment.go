package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echogram/internal/apperr"
	"github.com/lalith-99/echogram/internal/middleware"
	"github.com/lalith-99/echogram/internal/models"
	"github.com/lalith-99/echogram/internal/repository"
	"go.uber.org/zap"
)

type CommentHandler struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	logger   *zap.Logger
}

func NewCommentHandler(posts repository.PostRepository, comments repository.CommentRepository, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{posts: posts, comments: comments, logger: logger}
}

type createCommentRequest struct {
	Content  string `json:"content" binding:"required"`
	ParentID *int64 `json:"parent_id"`
}

// Create handles POST /v1/posts/:post_id/comments
//
// A reply must point at a top-level comment of the same post; replies to
// replies are rejected.
func (h *CommentHandler) Create(c *gin.Context) {
	postID, ok := idParam(c, "post_id")
	if !ok {
		return
	}
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	ctx := c.Request.Context()

	post, err := h.posts.GetByID(ctx, postID)
	if err != nil {
		respondError(c, h.logger, "create comment", err)
		return
	}
	if post == nil {
		respondError(c, h.logger, "create comment", apperr.New(apperr.KindNotFound, "Post not found"))
		return
	}

	if req.ParentID != nil {
		parent, err := h.comments.GetByID(ctx, *req.ParentID)
		if err != nil {
			respondError(c, h.logger, "create comment", err)
			return
		}
		switch {
		case parent == nil || parent.PostID != postID:
			respondError(c, h.logger, "create comment", apperr.New(apperr.KindInvalid, "parent comment does not exist"))
			return
		case !parent.IsParent():
			respondError(c, h.logger, "create comment", apperr.New(apperr.KindInvalid, "replies cannot be nested"))
			return
		}
	}

	comment, err := h.comments.Create(ctx, &models.PostComment{
		PostID:   postID,
		UserID:   middleware.GetUserID(c),
		Content:  req.Content,
		ParentID: req.ParentID,
	})
	if err != nil {
		respondError(c, h.logger, "create comment", err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// Delete handles DELETE /v1/posts/:post_id/comments/:comment_id
//
// Deleting a top-level comment takes its replies with it.
func (h *CommentHandler) Delete(c *gin.Context) {
	postID, ok := idParam(c, "post_id")
	if !ok {
		return
	}
	commentID, ok := idParam(c, "comment_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	comment, err := h.comments.GetByID(ctx, commentID)
	if err != nil {
		respondError(c, h.logger, "delete comment", err)
		return
	}
	if comment == nil || comment.PostID != postID {
		respondError(c, h.logger, "delete comment", apperr.New(apperr.KindNotFound, "Comment not found"))
		return
	}
	if comment.UserID != middleware.GetUserID(c) {
		respondError(c, h.logger, "delete comment", apperr.New(apperr.KindForbidden, "not your comment"))
		return
	}

	removed, err := h.comments.Delete(ctx, comment.ID)
	if err != nil {
		respondError(c, h.logger, "delete comment", err)
		return
	}
	h.logger.Info("comment deleted",
		zap.Int64("comment_id", comment.ID),
		zap.Int64("rows", removed),
	)
	c.Status(http.StatusNoContent)
}
