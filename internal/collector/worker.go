// Package collector polls the platform gateway for new channel messages and
// feeds them through the ingestion gate.
package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/gateway"
	"github.com/anichkay-yyy/client-pipeline/internal/ingest"
	"github.com/anichkay-yyy/client-pipeline/internal/models"
	"github.com/anichkay-yyy/client-pipeline/internal/registry"
	"github.com/anichkay-yyy/client-pipeline/internal/repository"
)

// MessageSource is the slice of the gateway the collector consumes.
type MessageSource interface {
	Collect(ctx context.Context, channelPlatformID, afterMsgID int64) ([]gateway.Message, error)
	Channels(ctx context.Context) ([]gateway.Channel, error)
	ResolveHandle(ctx context.Context, handle string) (*gateway.Channel, error)
}

// Worker periodically discovers channels and collects their new messages.
type Worker struct {
	source       MessageSource
	registry     *registry.Registry
	channels     repository.ChannelRepository
	gate         *ingest.Gate
	logger       *zap.Logger
	pollInterval time.Duration
}

func NewWorker(
	source MessageSource,
	reg *registry.Registry,
	channels repository.ChannelRepository,
	gate *ingest.Gate,
	logger *zap.Logger,
	pollInterval time.Duration,
) *Worker {
	return &Worker{
		source:       source,
		registry:     reg,
		channels:     channels,
		gate:         gate,
		logger:       logger,
		pollInterval: pollInterval,
	}
}

// Run starts the periodic collection loop.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("Collector worker started.")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Initial channel sync on startup
	w.syncChannels(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Collector worker stopped.")
			return
		case <-ticker.C:
			w.syncChannels(ctx)
			w.collectAll(ctx)
		}
	}
}

// syncChannels registers channels newly visible to the gateway and
// deactivates the ones it can no longer reach.
func (w *Worker) syncChannels(ctx context.Context) {
	gwCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	visible, err := w.source.Channels(gwCtx)
	if err != nil {
		w.logger.Error("Failed to list gateway channels", zap.Error(err))
		return
	}

	for _, ch := range visible {
		if !ch.Reachable {
			existing, err := w.channels.GetByPlatformID(ch.PlatformID)
			if err != nil || existing == nil || !existing.IsActive {
				continue
			}
			if err := w.registry.MarkInactive(existing.ID); err != nil {
				w.logger.Error("Failed to deactivate unreachable channel",
					zap.Error(err), zap.Int64("platform_id", ch.PlatformID))
			}
			continue
		}
		if _, err := w.registry.Resolve(ch.PlatformID, ch.Handle, ch.Title, ""); err != nil {
			w.logger.Error("Failed to register channel",
				zap.Error(err), zap.Int64("platform_id", ch.PlatformID))
		}
	}
}

func (w *Worker) collectAll(ctx context.Context) {
	channels, err := w.channels.ListActive()
	if err != nil {
		w.logger.Error("Failed to list active channels", zap.Error(err))
		return
	}

	if len(channels) == 0 {
		w.logger.Info("No channels configured for monitoring.")
		return
	}

	for _, channel := range channels {
		if ctx.Err() != nil {
			return
		}

		gwCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		messages, err := w.source.Collect(gwCtx, channel.PlatformID, channel.LastCollectedMsgID)
		cancel()
		if err != nil {
			w.logger.Error("Failed to collect messages",
				zap.Error(err), zap.Int64("channel_id", channel.ID))
			continue
		}

		if len(messages) == 0 {
			continue
		}
		w.logger.Info("Collected messages",
			zap.Int64("channel_id", channel.ID), zap.Int("count", len(messages)))

		maxMsgID := channel.LastCollectedMsgID
		for _, msg := range messages {
			outcome, err := w.gate.Ingest(ingest.RawMessage{
				ChannelPlatformID: channel.PlatformID,
				PlatformMsgID:     msg.PlatformMsgID,
				SenderID:          msg.SenderID,
				SenderHandle:      msg.SenderHandle,
				Text:              msg.Text,
				PublishedAt:       msg.PublishedAt,
			})
			if err != nil {
				// Ingestion is retriable: the cursor is not advanced past a
				// failed message, so the next poll re-delivers it.
				w.logger.Error("Failed to ingest message",
					zap.Error(err), zap.Int64("platform_msg_id", msg.PlatformMsgID))
				break
			}
			if msg.PlatformMsgID > maxMsgID {
				maxMsgID = msg.PlatformMsgID
			}
			if outcome == ingest.DuplicateContent {
				w.logger.Debug("Duplicate content collected",
					zap.Int64("platform_msg_id", msg.PlatformMsgID))
			}
			if outcome == ingest.Created {
				w.discoverReferenced(ctx, channel, msg.Text)
			}
		}

		if maxMsgID > channel.LastCollectedMsgID {
			if err := w.channels.UpdateLastCollectedMsgID(channel.ID, maxMsgID); err != nil {
				w.logger.Error("Failed to advance collection cursor",
					zap.Error(err), zap.Int64("channel_id", channel.ID))
			}
		}
	}
}

// discoverReferenced registers channels mentioned by @handle in a collected
// message, recording the mentioning channel as their provenance. Handles the
// platform cannot resolve, and channels we already track, are skipped.
func (w *Worker) discoverReferenced(ctx context.Context, from *models.Channel, text string) {
	for _, handle := range registry.ExtractHandles(text) {
		if from.Handle != nil && strings.EqualFold(*from.Handle, handle) {
			continue
		}

		known, err := w.channels.GetByHandle(handle)
		if err != nil {
			w.logger.Error("Failed to look up referenced handle",
				zap.Error(err), zap.String("handle", handle))
			continue
		}
		if known != nil {
			continue
		}

		gwCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		ref, err := w.source.ResolveHandle(gwCtx, handle)
		cancel()
		if err != nil {
			w.logger.Error("Failed to resolve referenced handle",
				zap.Error(err), zap.String("handle", handle))
			continue
		}
		if ref == nil {
			continue
		}

		provenance := fmt.Sprintf("channel:%d", from.PlatformID)
		if from.Handle != nil {
			provenance = "@" + *from.Handle
		}
		if _, err := w.registry.Resolve(ref.PlatformID, ref.Handle, ref.Title, provenance); err != nil {
			w.logger.Error("Failed to register discovered channel",
				zap.Error(err), zap.Int64("platform_id", ref.PlatformID))
		}
	}
}
