package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/models"
	"github.com/anichkay-yyy/client-pipeline/internal/repository"
)

type BudgetHandler interface {
	GetBudget(c *gin.Context)
	SetBudget(c *gin.Context)
}

type budgetHandler struct {
	budgetRepo repository.BudgetRepository
	logger     *zap.Logger
}

func NewBudgetHandler(budgetRepo repository.BudgetRepository, logger *zap.Logger) BudgetHandler {
	return &budgetHandler{
		budgetRepo: budgetRepo,
		logger:     logger,
	}
}

// GetBudget handles GET /api/budget?date=YYYY-MM-DD, defaulting to today.
func (h *budgetHandler) GetBudget(c *gin.Context) {
	date, ok := h.parseDate(c)
	if !ok {
		return
	}

	budget, err := h.budgetRepo.Get(date)
	if err != nil {
		h.logger.Error("Failed to get daily budget", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get budget"})
		return
	}
	if budget == nil {
		c.JSON(http.StatusOK, gin.H{"budget": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

type setBudgetRequest struct {
	MaxSends int `json:"max_sends" binding:"required"`
}

// SetBudget handles PUT /api/budget?date=YYYY-MM-DD. Lowering max_sends below
// the sends already used does not undo past sends; it only blocks new
// reservations.
func (h *budgetHandler) SetBudget(c *gin.Context) {
	date, ok := h.parseDate(c)
	if !ok {
		return
	}

	var req setBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_sends is required"})
		return
	}
	if req.MaxSends <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_sends must be positive"})
		return
	}

	if err := h.budgetRepo.SetMax(date, req.MaxSends); err != nil {
		h.logger.Error("Failed to set daily budget", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to set budget"})
		return
	}

	h.logger.Info("Daily budget updated",
		zap.String("date", date.Format(models.BudgetDateLayout)),
		zap.Int("max_sends", req.MaxSends))
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *budgetHandler) parseDate(c *gin.Context) (time.Time, bool) {
	dateParam := c.Query("date")
	if dateParam == "" {
		return models.BudgetDate(time.Now()), true
	}
	date, err := time.Parse(models.BudgetDateLayout, dateParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return time.Time{}, false
	}
	return date, true
}
