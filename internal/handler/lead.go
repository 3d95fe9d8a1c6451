package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/models"
	"github.com/anichkay-yyy/client-pipeline/internal/repository"
)

type LeadHandler interface {
	ListLeads(c *gin.Context)
	GetLead(c *gin.Context)
	RejectLead(c *gin.Context)
	ForwardLead(c *gin.Context)
}

type leadHandler struct {
	leadRepo  repository.LeadRepository
	replyRepo repository.ReplyRepository
	logger    *zap.Logger
}

func NewLeadHandler(leadRepo repository.LeadRepository, replyRepo repository.ReplyRepository, logger *zap.Logger) LeadHandler {
	return &leadHandler{
		leadRepo:  leadRepo,
		replyRepo: replyRepo,
		logger:    logger,
	}
}

// ListLeads handles GET /api/leads. An optional ?status= filter narrows the
// list to one lifecycle state.
func (h *leadHandler) ListLeads(c *gin.Context) {
	statusParam := c.Query("status")

	var (
		leads []*models.Lead
		err   error
	)
	if statusParam != "" {
		leads, err = h.leadRepo.ListByStatus(models.LeadStatus(statusParam))
	} else {
		leads, err = h.leadRepo.ListRecent(100)
	}
	if err != nil {
		h.logger.Error("Failed to list leads", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list leads"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"leads": leads})
}

// GetLead handles GET /api/leads/:id, returning the lead and its replies.
func (h *leadHandler) GetLead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lead id"})
		return
	}

	lead, err := h.leadRepo.GetByID(id)
	if err != nil {
		h.logger.Error("Failed to get lead", zap.Int64("lead_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get lead"})
		return
	}
	if lead == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
		return
	}

	replies, err := h.replyRepo.ListForLead(id)
	if err != nil {
		h.logger.Error("Failed to list lead replies", zap.Int64("lead_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list replies"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"lead": lead, "replies": replies})
}

// RejectLead handles POST /api/leads/:id/reject. Only states with a reject
// edge in the lifecycle accept it.
func (h *leadHandler) RejectLead(c *gin.Context) {
	h.transition(c, models.StatusRejected)
}

// ForwardLead handles POST /api/leads/:id/forward, marking a replied lead as
// handed over to a human.
func (h *leadHandler) ForwardLead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lead id"})
		return
	}

	lead, err := h.leadRepo.GetByID(id)
	if err != nil {
		h.logger.Error("Failed to get lead", zap.Int64("lead_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get lead"})
		return
	}
	if lead == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
		return
	}

	err = h.leadRepo.MarkForwarded(id, lead.Status, time.Now().UTC())
	if errors.Is(err, repository.ErrTransitionNotAllowed) || errors.Is(err, repository.ErrStaleTransition) {
		c.JSON(http.StatusConflict, gin.H{"error": "lead cannot be forwarded from its current status"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to forward lead", zap.Int64("lead_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to forward lead"})
		return
	}

	h.logger.Info("Lead forwarded by operator", zap.Int64("lead_id", id))
	c.JSON(http.StatusOK, gin.H{"status": "forwarded"})
}

func (h *leadHandler) transition(c *gin.Context, to models.LeadStatus) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lead id"})
		return
	}

	lead, err := h.leadRepo.GetByID(id)
	if err != nil {
		h.logger.Error("Failed to get lead", zap.Int64("lead_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get lead"})
		return
	}
	if lead == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
		return
	}

	err = h.leadRepo.Transition(id, lead.Status, to)
	if errors.Is(err, repository.ErrTransitionNotAllowed) || errors.Is(err, repository.ErrStaleTransition) {
		c.JSON(http.StatusConflict, gin.H{"error": "transition not allowed from current status"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to transition lead",
			zap.Int64("lead_id", id), zap.String("to", string(to)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update lead"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(to)})
}
