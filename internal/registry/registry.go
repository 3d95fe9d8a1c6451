// Package registry tracks known channels and their discovery provenance.
package registry

import (
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/models"
	"github.com/anichkay-yyy/client-pipeline/internal/repository"
)

// Registry resolves platform channel ids to channel rows, creating unseen
// channels with discovery provenance. Channels are deactivated, never deleted.
type Registry struct {
	channels repository.ChannelRepository
	logger   *zap.Logger
}

func New(channels repository.ChannelRepository, logger *zap.Logger) *Registry {
	return &Registry{channels: channels, logger: logger}
}

// Resolve returns the channel for the platform id, creating it on first
// sighting. discoveredFrom records which channel or lead forward led here;
// empty means a seeded/crawled source.
func (r *Registry) Resolve(platformID int64, handle, title, discoveredFrom string) (*models.Channel, error) {
	existing, err := r.channels.GetByPlatformID(platformID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	channel := &models.Channel{
		PlatformID: platformID,
		IsActive:   true,
	}
	if handle != "" {
		channel.Handle = &handle
	}
	if title != "" {
		channel.Title = &title
	}
	if discoveredFrom != "" {
		channel.DiscoveredFrom = &discoveredFrom
	}

	if err := r.channels.Create(channel); err != nil {
		return nil, err
	}
	r.logger.Info("Registered channel",
		zap.Int64("platform_id", platformID),
		zap.String("title", channel.DisplayName()),
		zap.String("discovered_from", discoveredFrom))
	return channel, nil
}

// MarkInactive deactivates a channel after the crawler reports sustained
// access failure. History stays in place.
func (r *Registry) MarkInactive(channelID int64) error {
	if err := r.channels.Deactivate(channelID); err != nil {
		return err
	}
	r.logger.Info("Channel deactivated", zap.Int64("channel_id", channelID))
	return nil
}
