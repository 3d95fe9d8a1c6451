// Package classifier promotes scored messages to leads.
package classifier

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/dedup"
	"github.com/anichkay-yyy/client-pipeline/internal/models"
	"github.com/anichkay-yyy/client-pipeline/internal/repository"
	"github.com/anichkay-yyy/client-pipeline/internal/scorer"
)

// Scorer is the slice of the scoring service the adapter consumes.
type Scorer interface {
	Score(ctx context.Context, text string, targetStacks []string) (*scorer.ScoreResult, error)
}

// Adapter turns scored messages into leads. It is idempotent per message id:
// re-processing an already-classified message is a no-op.
type Adapter struct {
	messages     repository.MessageRepository
	leads        repository.LeadRepository
	dedup        *dedup.Store
	scorer       Scorer
	logger       *zap.Logger
	minRelevance float64
	targetStacks []string
	timeout      time.Duration
	interval     time.Duration
	batchSize    int
}

func NewAdapter(
	messages repository.MessageRepository,
	leads repository.LeadRepository,
	store *dedup.Store,
	sc Scorer,
	logger *zap.Logger,
	minRelevance float64,
	targetStacks []string,
	timeout time.Duration,
	interval time.Duration,
) *Adapter {
	return &Adapter{
		messages:     messages,
		leads:        leads,
		dedup:        store,
		scorer:       sc,
		logger:       logger,
		minRelevance: minRelevance,
		targetStacks: targetStacks,
		timeout:      timeout,
		interval:     interval,
		batchSize:    50,
	}
}

// Run drains the persisted classification queue on a fixed interval. The
// queue delivers at-least-once; Classify absorbs redelivery.
func (a *Adapter) Run(ctx context.Context) {
	a.logger.Info("Classifier adapter started.")

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Classifier adapter stopped.")
			return
		case <-ticker.C:
			a.drain(ctx)
		}
	}
}

func (a *Adapter) drain(ctx context.Context) {
	pending, err := a.messages.ListUnclassified(a.batchSize)
	if err != nil {
		a.logger.Error("Failed to list unclassified messages", zap.Error(err))
		return
	}

	for _, msg := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := a.Classify(ctx, msg); err != nil {
			a.logger.Error("Failed to classify message",
				zap.Error(err), zap.Int64("message_id", msg.ID))
		}
	}
}

// Classify scores one message and creates a lead when it clears the relevance
// threshold. Scoring unavailability leaves the message unclassified for a
// later retry, never defaulted to relevant or irrelevant.
func (a *Adapter) Classify(ctx context.Context, msg *models.Message) error {
	// Idempotency: a lead for this message means the work is already done.
	existing, err := a.leads.GetByMessageID(msg.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return a.messages.MarkClassified(msg.ID)
	}

	// Cross-channel dedup re-check: identical text may have produced a lead
	// through another channel since ingestion. An ambiguous check (storage
	// error) skips classification rather than risk duplicate outreach; the
	// message stays queued for re-checking.
	leadExists, err := a.dedup.LeadExists(msg.TextHash)
	if err != nil {
		return err
	}
	if leadExists {
		a.logger.Debug("Duplicate text, skipping lead creation",
			zap.Int64("message_id", msg.ID), zap.String("text_hash", msg.TextHash[:12]))
		return a.messages.MarkClassified(msg.ID)
	}

	scoreCtx, cancel := context.WithTimeout(ctx, a.timeout)
	result, err := a.scorer.Score(scoreCtx, msg.Text, a.targetStacks)
	cancel()
	if err != nil {
		return err
	}

	if !result.Relevant || result.Score < a.minRelevance {
		a.logger.Debug("Message below relevance threshold",
			zap.Int64("message_id", msg.ID), zap.Float64("score", result.Score))
		return a.messages.MarkClassified(msg.ID)
	}

	lead := &models.Lead{
		MessageID:      msg.ID,
		Status:         models.StatusNew,
		RelevanceScore: result.Score,
		Budget:         result.Budget,
		Stack:          result.Stack,
		Deadline:       result.Deadline,
		Language:       result.Language,
		Summary:        result.Summary,
	}
	if err := a.leads.Create(lead); err != nil {
		return err
	}
	a.logger.Info("Created lead",
		zap.Int64("lead_id", lead.ID),
		zap.Int64("message_id", msg.ID),
		zap.Float64("score", result.Score))

	return a.messages.MarkClassified(msg.ID)
}
