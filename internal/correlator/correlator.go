// Package correlator attaches inbound replies to contacted leads. Correlation
// is conservative: a reply that cannot be matched to exactly one lead is kept
// unattached for manual review rather than guessed.
package correlator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/gateway"
	"github.com/anichkay-yyy/client-pipeline/internal/models"
	"github.com/anichkay-yyy/client-pipeline/internal/repository"
)

const cursorName = "inbound"

// Inbox is the slice of the gateway the correlator consumes.
type Inbox interface {
	Inbound(ctx context.Context, afterEventID int64) ([]gateway.InboundEvent, error)
}

// SentimentScorer classifies an inbound reply against the outreach it answers.
type SentimentScorer interface {
	Sentiment(ctx context.Context, outreachText, replyText string) (models.Sentiment, error)
}

// Notifier forwards positive replies to a human operator.
type Notifier interface {
	NotifyPositiveReply(lead *models.Lead, replyText string)
}

// Correlator polls the gateway inbox and advances the lead state machine for
// replies it can attribute. The cursor is acknowledged per event, after the
// event's writes, so a crash replays at most one event.
type Correlator struct {
	leads    repository.LeadRepository
	replies  repository.ReplyRepository
	cursors  repository.CursorRepository
	inbox    Inbox
	scorer   SentimentScorer
	notifier Notifier
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time
}

func New(
	leads repository.LeadRepository,
	replies repository.ReplyRepository,
	cursors repository.CursorRepository,
	inbox Inbox,
	scorer SentimentScorer,
	notifier Notifier,
	logger *zap.Logger,
	interval time.Duration,
) *Correlator {
	return &Correlator{
		leads:    leads,
		replies:  replies,
		cursors:  cursors,
		inbox:    inbox,
		scorer:   scorer,
		notifier: notifier,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// Run polls the inbox until the context is cancelled.
func (c *Correlator) Run(ctx context.Context) {
	c.logger.Info("Reply correlator started.")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Reply correlator stopped.")
			return
		case <-ticker.C:
			if err := c.Drain(ctx); err != nil {
				c.logger.Error("Failed to drain inbound events", zap.Error(err))
			}
		}
	}
}

// Drain processes all inbound events past the stored cursor.
func (c *Correlator) Drain(ctx context.Context) error {
	cursor, err := c.cursors.Get(cursorName)
	if err != nil {
		return err
	}

	events, err := c.inbox.Inbound(ctx, cursor)
	if err != nil {
		return err
	}

	for _, event := range events {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.processEvent(ctx, event); err != nil {
			// Stop without acknowledging so the event is retried next drain.
			return err
		}
		if err := c.cursors.Set(cursorName, event.EventID); err != nil {
			return err
		}
	}
	return nil
}

func (c *Correlator) processEvent(ctx context.Context, event gateway.InboundEvent) error {
	lead, ambiguous, err := c.match(event)
	if err != nil {
		return err
	}

	if lead == nil {
		return c.storeUnattached(event, ambiguous)
	}

	if event.PlatformMsgID != 0 {
		seen, err := c.replies.ExistsForLead(lead.ID, event.PlatformMsgID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}

	sentiment := c.classify(ctx, lead, event.Text)

	text := event.Text
	reply := &models.Reply{
		LeadID:        &lead.ID,
		PlatformMsgID: &event.PlatformMsgID,
		SenderID:      &event.SenderID,
		Text:          &text,
		Sentiment:     &sentiment,
		ReceivedAt:    event.ReceivedAt,
	}
	if err := c.replies.Insert(reply); err != nil {
		return err
	}

	if lead.Status == models.StatusContacted {
		err := c.leads.MarkReplied(lead.ID, event.ReceivedAt.UTC())
		if err != nil && !errors.Is(err, repository.ErrStaleTransition) {
			return err
		}
	}

	c.logger.Info("Reply correlated",
		zap.Int64("lead_id", lead.ID),
		zap.Int64("event_id", event.EventID),
		zap.String("sentiment", string(sentiment)))

	if sentiment == models.SentimentPositive {
		c.notifier.NotifyPositiveReply(lead, event.Text)
		err := c.leads.MarkForwarded(lead.ID, models.StatusReplied, c.now().UTC())
		if err != nil && !errors.Is(err, repository.ErrStaleTransition) {
			return err
		}
	}
	return nil
}

// match finds the lead an event answers. A thread reply matches on the
// outreach message it replies to; a DM matches when the sender has exactly
// one live contacted lead, or one contacted strictly later than the rest.
func (c *Correlator) match(event gateway.InboundEvent) (*models.Lead, bool, error) {
	candidates, err := c.leads.ContactedBySender(event.SenderID)
	if err != nil {
		return nil, false, err
	}
	if len(candidates) == 0 {
		return nil, false, nil
	}

	if !event.IsDirect && event.ReplyToMsgID != nil {
		for _, lead := range candidates {
			if lead.OutreachMsgID != nil && *lead.OutreachMsgID == *event.ReplyToMsgID {
				return lead, false, nil
			}
		}
		// A thread reply to something other than our outreach is not a reply
		// to the lead at all.
		return nil, true, nil
	}

	if len(candidates) == 1 {
		return candidates[0], false, nil
	}

	// Candidates are ordered by contacted_at descending; pick the most recent
	// only when it is unambiguously the latest contact.
	first, second := candidates[0], candidates[1]
	if first.ContactedAt != nil && second.ContactedAt != nil && first.ContactedAt.After(*second.ContactedAt) {
		return first, false, nil
	}
	return nil, true, nil
}

// storeUnattached keeps an uncorrelated event for manual review instead of
// dropping it. Events from senders we never contacted are discarded.
func (c *Correlator) storeUnattached(event gateway.InboundEvent, ambiguous bool) error {
	if !ambiguous {
		return nil
	}

	text := event.Text
	reply := &models.Reply{
		PlatformMsgID: &event.PlatformMsgID,
		SenderID:      &event.SenderID,
		Text:          &text,
		NeedsReview:   true,
		ReceivedAt:    event.ReceivedAt,
	}
	if err := c.replies.Insert(reply); err != nil {
		return err
	}
	c.logger.Warn("Ambiguous reply stored for review",
		zap.Int64("event_id", event.EventID),
		zap.Int64("sender_id", event.SenderID))
	return nil
}

func (c *Correlator) classify(ctx context.Context, lead *models.Lead, replyText string) models.Sentiment {
	outreach := ""
	if lead.OutreachText != nil {
		outreach = *lead.OutreachText
	}

	scoreCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	sentiment, err := c.scorer.Sentiment(scoreCtx, outreach, replyText)
	if err != nil {
		c.logger.Warn("Sentiment classification failed", zap.Error(err))
		return models.SentimentUnclear
	}
	return sentiment
}
