// Package janitor expires stale pipeline state: contacted leads that never
// got an answer and discovered channels that never produced a lead.
package janitor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/models"
	"github.com/anichkay-yyy/client-pipeline/internal/repository"
)

// Config holds the janitor's expiry thresholds.
type Config struct {
	Interval        time.Duration
	ReplyTTL        time.Duration
	DeadChannelDays int
}

// Janitor runs periodic cleanup sweeps over leads and channels.
type Janitor struct {
	leads    repository.LeadRepository
	channels repository.ChannelRepository
	logger   *zap.Logger
	cfg      Config
}

func New(leads repository.LeadRepository, channels repository.ChannelRepository, logger *zap.Logger, cfg Config) *Janitor {
	return &Janitor{
		leads:    leads,
		channels: channels,
		logger:   logger,
		cfg:      cfg,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	j.logger.Info("Janitor started.")

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Janitor stopped.")
			return
		case <-ticker.C:
			j.ExpireStaleLeads()
			j.DeactivateDeadChannels()
		}
	}
}

// ExpireStaleLeads moves contacted leads that outlived the reply TTL to
// no_reply. Leads that got a reply in the meantime lose the race and stay.
func (j *Janitor) ExpireStaleLeads() {
	stale, err := j.leads.ListStaleContacted(j.cfg.ReplyTTL)
	if err != nil {
		j.logger.Error("Failed to list stale contacted leads", zap.Error(err))
		return
	}

	for _, lead := range stale {
		err := j.leads.Transition(lead.ID, models.StatusContacted, models.StatusNoReply)
		if errors.Is(err, repository.ErrStaleTransition) {
			continue
		}
		if err != nil {
			j.logger.Error("Failed to expire lead", zap.Error(err), zap.Int64("lead_id", lead.ID))
			continue
		}
		j.logger.Info("Lead expired without a reply", zap.Int64("lead_id", lead.ID))
	}
}

// DeactivateDeadChannels disables auto-discovered channels that produced no
// lead within the grace period. Manually configured channels are never
// touched.
func (j *Janitor) DeactivateDeadChannels() {
	dead, err := j.channels.ListDeadDiscovered(j.cfg.DeadChannelDays)
	if err != nil {
		j.logger.Error("Failed to list dead discovered channels", zap.Error(err))
		return
	}

	for _, channel := range dead {
		if err := j.channels.Deactivate(channel.ID); err != nil {
			j.logger.Error("Failed to deactivate channel", zap.Error(err), zap.Int64("channel_id", channel.ID))
			continue
		}
		j.logger.Info("Dead discovered channel deactivated",
			zap.Int64("channel_id", channel.ID),
			zap.String("channel", channel.DisplayName()))
	}
}
