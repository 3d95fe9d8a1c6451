// Package ingest validates and persists incoming channel messages.
package ingest

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/dedup"
	"github.com/anichkay-yyy/client-pipeline/internal/models"
	"github.com/anichkay-yyy/client-pipeline/internal/registry"
	"github.com/anichkay-yyy/client-pipeline/internal/repository"
)

// Outcome of ingesting one raw message.
type Outcome int

const (
	// Created means the message was persisted and is novel: it will be picked
	// up by the classifier.
	Created Outcome = iota
	// AlreadyIngested means the (channel, platform message id) pair was seen
	// before; re-ingestion is an idempotent no-op.
	AlreadyIngested
	// DuplicateContent means the message was persisted for channel coverage
	// but its text matches an earlier message, so it is excluded from
	// classification.
	DuplicateContent
)

// RawMessage is one message event from the crawler collaborator.
type RawMessage struct {
	ChannelPlatformID int64
	PlatformMsgID     int64
	SenderID          *int64
	SenderHandle      string
	Text              string
	PublishedAt       time.Time
}

// Gate is the ingestion entry point. Ingest is a pure, retriable function of
// its input: on storage failure the caller retries the whole call.
type Gate struct {
	registry *registry.Registry
	messages repository.MessageRepository
	dedup    *dedup.Store
	logger   *zap.Logger
}

func NewGate(reg *registry.Registry, messages repository.MessageRepository, store *dedup.Store, logger *zap.Logger) *Gate {
	return &Gate{registry: reg, messages: messages, dedup: store, logger: logger}
}

// Ingest persists one raw message, resolving its channel and computing the
// content hash for cross-channel deduplication. Novel messages are handed to
// classification through the persisted queue (messages.classified_at IS NULL),
// which makes the hand-off at-least-once and idempotent per message id.
func (g *Gate) Ingest(in RawMessage) (Outcome, error) {
	channel, err := g.registry.Resolve(in.ChannelPlatformID, "", "", "")
	if err != nil {
		return 0, fmt.Errorf("failed to resolve channel %d: %w", in.ChannelPlatformID, err)
	}

	existing, err := g.messages.GetByPlatformID(channel.ID, in.PlatformMsgID)
	if err != nil {
		return 0, fmt.Errorf("failed to check message existence: %w", err)
	}
	if existing != nil {
		return AlreadyIngested, nil
	}

	textHash := dedup.Hash(in.Text)
	isDup, err := g.dedup.IsDuplicate(textHash, 0)
	if err != nil {
		// Nothing is persisted yet, so the caller re-delivers the message and
		// novelty is decided on a working index instead of guessed.
		return 0, fmt.Errorf("failed to check content hash: %w", err)
	}

	msg := &models.Message{
		ChannelID:     channel.ID,
		PlatformMsgID: in.PlatformMsgID,
		SenderID:      in.SenderID,
		Text:          in.Text,
		PublishedAt:   in.PublishedAt,
		TextHash:      textHash,
		IsNovel:       !isDup,
	}
	if in.SenderHandle != "" {
		msg.SenderHandle = &in.SenderHandle
	}

	inserted, err := g.messages.Insert(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to persist message: %w", err)
	}
	if !inserted {
		// Lost the race with a concurrent ingest of the same message.
		return AlreadyIngested, nil
	}

	if isDup {
		g.logger.Debug("Duplicate content ingested",
			zap.Int64("message_id", msg.ID),
			zap.String("text_hash", textHash[:12]))
		return DuplicateContent, nil
	}
	return Created, nil
}
