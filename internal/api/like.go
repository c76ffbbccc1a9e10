package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echogram/internal/apperr"
	"github.com/lalith-99/echogram/internal/middleware"
	"github.com/lalith-99/echogram/internal/repository"
	"go.uber.org/zap"
)

type LikeHandler struct {
	posts  repository.PostRepository
	likes  repository.LikeRepository
	logger *zap.Logger
}

func NewLikeHandler(posts repository.PostRepository, likes repository.LikeRepository, logger *zap.Logger) *LikeHandler {
	return &LikeHandler{posts: posts, likes: likes, logger: logger}
}

// Create handles POST /v1/posts/:post_id/likes
//
// Liking twice is not an error: the existing like comes back with 200.
func (h *LikeHandler) Create(c *gin.Context) {
	postID, ok := idParam(c, "post_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	post, err := h.posts.GetByID(ctx, postID)
	if err != nil {
		respondError(c, h.logger, "like post", err)
		return
	}
	if post == nil {
		respondError(c, h.logger, "like post", apperr.New(apperr.KindNotFound, "Post not found"))
		return
	}

	like, err := h.likes.Create(ctx, userID, postID)
	if err == nil {
		c.JSON(http.StatusCreated, like)
		return
	}
	if apperr.KindOf(err) != apperr.KindConflict {
		respondError(c, h.logger, "like post", err)
		return
	}

	existing, err := h.likes.Get(ctx, userID, postID)
	if err != nil {
		respondError(c, h.logger, "like post", err)
		return
	}
	if existing == nil {
		// Unliked between the insert and the lookup.
		respondError(c, h.logger, "like post", apperr.New(apperr.KindConflict, "like changed concurrently"))
		return
	}
	c.JSON(http.StatusOK, existing)
}

// Delete handles DELETE /v1/posts/:post_id/likes
func (h *LikeHandler) Delete(c *gin.Context) {
	postID, ok := idParam(c, "post_id")
	if !ok {
		return
	}
	if err := h.likes.Delete(c.Request.Context(), middleware.GetUserID(c), postID); err != nil {
		respondError(c, h.logger, "unlike post", err)
		return
	}
	c.Status(http.StatusNoContent)
}
