package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/repository"
)

type ChannelHandler interface {
	ListChannels(c *gin.Context)
	DeactivateChannel(c *gin.Context)
}

type channelHandler struct {
	channelRepo repository.ChannelRepository
	logger      *zap.Logger
}

func NewChannelHandler(channelRepo repository.ChannelRepository, logger *zap.Logger) ChannelHandler {
	return &channelHandler{
		channelRepo: channelRepo,
		logger:      logger,
	}
}

// ListChannels handles GET /api/channels.
func (h *channelHandler) ListChannels(c *gin.Context) {
	channels, err := h.channelRepo.ListAll()
	if err != nil {
		h.logger.Error("Failed to list channels", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list channels"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// DeactivateChannel handles POST /api/channels/:id/deactivate. The channel
// row is kept so its messages and leads stay attributable.
func (h *channelHandler) DeactivateChannel(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}

	channel, err := h.channelRepo.GetByID(id)
	if err != nil {
		h.logger.Error("Failed to get channel", zap.Int64("channel_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get channel"})
		return
	}
	if channel == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}

	if err := h.channelRepo.Deactivate(id); err != nil {
		h.logger.Error("Failed to deactivate channel", zap.Int64("channel_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deactivate channel"})
		return
	}

	h.logger.Info("Channel deactivated by operator", zap.Int64("channel_id", id))
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}
