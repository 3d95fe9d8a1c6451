package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/repository"
)

type ReplyHandler interface {
	ListUnattached(c *gin.Context)
}

type replyHandler struct {
	replyRepo repository.ReplyRepository
	logger    *zap.Logger
}

func NewReplyHandler(replyRepo repository.ReplyRepository, logger *zap.Logger) ReplyHandler {
	return &replyHandler{
		replyRepo: replyRepo,
		logger:    logger,
	}
}

// ListUnattached handles GET /api/replies/unattached: inbound replies the
// correlator could not attach to a single lead, queued for manual review.
func (h *replyHandler) ListUnattached(c *gin.Context) {
	replies, err := h.replyRepo.ListUnattached()
	if err != nil {
		h.logger.Error("Failed to list unattached replies", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list unattached replies"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"replies": replies})
}
