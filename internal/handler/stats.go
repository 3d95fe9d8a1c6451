package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/models"
	"github.com/anichkay-yyy/client-pipeline/internal/repository"
)

type StatsHandler interface {
	GetStats(c *gin.Context)
}

type statsHandler struct {
	leadRepo    repository.LeadRepository
	messageRepo repository.MessageRepository
	budgetRepo  repository.BudgetRepository
	logger      *zap.Logger
}

func NewStatsHandler(leadRepo repository.LeadRepository, messageRepo repository.MessageRepository, budgetRepo repository.BudgetRepository, logger *zap.Logger) StatsHandler {
	return &statsHandler{
		leadRepo:    leadRepo,
		messageRepo: messageRepo,
		budgetRepo:  budgetRepo,
		logger:      logger,
	}
}

// GetStats handles GET /api/stats: pipeline counters plus today's budget.
func (h *statsHandler) GetStats(c *gin.Context) {
	counts, err := h.leadRepo.StatusCounts()
	if err != nil {
		h.logger.Error("Failed to get lead status counts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stats"})
		return
	}

	total, err := h.messageRepo.Count()
	if err != nil {
		h.logger.Error("Failed to count messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stats"})
		return
	}

	since := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	recent, err := h.messageRepo.CountSince(since)
	if err != nil {
		h.logger.Error("Failed to count recent messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stats"})
		return
	}

	budget, err := h.budgetRepo.Get(models.BudgetDate(time.Now()))
	if err != nil {
		h.logger.Error("Failed to get daily budget", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages_total":  total,
		"messages_24h":    recent,
		"leads_by_status": counts,
		"budget_today":    budget,
	})
}
