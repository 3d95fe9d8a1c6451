// Package scheduler drives the lead state machine from classification through
// outreach: promotion past the outreach threshold, copy generation, and the
// budgeted send pass.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/copygen"
	"github.com/anichkay-yyy/client-pipeline/internal/gateway"
	"github.com/anichkay-yyy/client-pipeline/internal/models"
	"github.com/anichkay-yyy/client-pipeline/internal/repository"
)

// Ledger is the slice of the budget repository the scheduler consumes. Its
// TryReserve must be atomic across all concurrent callers.
type Ledger interface {
	TryReserve(date time.Time, defaultMax int) (bool, error)
	Release(date time.Time) error
}

// Transport sends outreach through the platform gateway.
type Transport interface {
	SendThreadReply(ctx context.Context, chatID, replyToMsgID int64, text string) (int64, error)
	SendDM(ctx context.Context, userID int64, text string) (int64, error)
}

// CopyGenerator produces outreach and DM texts for a lead.
type CopyGenerator interface {
	Generate(ctx context.Context, req copygen.GenerateRequest) (*copygen.GenerateResponse, error)
}

// Alerter surfaces operator-facing conditions. All methods are best-effort.
type Alerter interface {
	AlertPeerFlood()
	AlertBudgetViolation(date time.Time)
	AlertLeadFailed(leadID int64, attempts int)
}

// Config holds the scheduler's tunables.
type Config struct {
	MaxSendsPerDay   int
	OutreachMinScore float64
	MinDelay         time.Duration
	MaxDelay         time.Duration
	MaxSendAttempts  int
	PassInterval     time.Duration
	SendTimeout      time.Duration
}

// Scheduler owns every queued->contacted transition. It processes leads one
// at a time, reserving budget per lead, so mid-pass quota exhaustion leaves
// the remaining leads untouched in queued.
type Scheduler struct {
	leads       repository.LeadRepository
	messages    repository.MessageRepository
	channels    repository.ChannelRepository
	ledger      Ledger
	transport   Transport
	copygen     CopyGenerator
	alerter     Alerter
	logger      *zap.Logger
	cfg         Config
	pacer       *pacer
	pausedUntil time.Time
	now         func() time.Time
}

func New(
	leads repository.LeadRepository,
	messages repository.MessageRepository,
	channels repository.ChannelRepository,
	ledger Ledger,
	transport Transport,
	gen CopyGenerator,
	alerter Alerter,
	logger *zap.Logger,
	cfg Config,
) *Scheduler {
	return &Scheduler{
		leads:     leads,
		messages:  messages,
		channels:  channels,
		ledger:    ledger,
		transport: transport,
		copygen:   gen,
		alerter:   alerter,
		logger:    logger,
		cfg:       cfg,
		pacer:     newPacer(cfg.MinDelay, cfg.MaxDelay),
		now:       time.Now,
	}
}

// Run executes promotion, preparation and the send pass on a fixed interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Outreach scheduler started.")

	ticker := time.NewTicker(s.cfg.PassInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Outreach scheduler stopped.")
			return
		case <-ticker.C:
			s.Promote(ctx)
			s.Prepare(ctx)
			if err := s.RunPass(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("Scheduling pass aborted", zap.Error(err))
			}
		}
	}
}

// Promote applies the stricter outreach threshold to new leads:
// new->scored for leads worth contacting, new->rejected otherwise.
func (s *Scheduler) Promote(ctx context.Context) {
	leads, err := s.leads.ListByStatus(models.StatusNew)
	if err != nil {
		s.logger.Error("Failed to list new leads", zap.Error(err))
		return
	}

	for _, lead := range leads {
		if ctx.Err() != nil {
			return
		}
		target := models.StatusScored
		if lead.RelevanceScore < s.cfg.OutreachMinScore {
			target = models.StatusRejected
		}
		err := s.leads.Transition(lead.ID, models.StatusNew, target)
		if errors.Is(err, repository.ErrStaleTransition) {
			continue // another pass got there first
		}
		if err != nil {
			s.logger.Error("Failed to promote lead", zap.Error(err), zap.Int64("lead_id", lead.ID))
			continue
		}
		s.logger.Info("Lead promoted",
			zap.Int64("lead_id", lead.ID),
			zap.String("status", string(target)),
			zap.Float64("score", lead.RelevanceScore))
	}
}

// Prepare attaches generated outreach and DM copy to scored leads, moving
// them to queued.
func (s *Scheduler) Prepare(ctx context.Context) {
	leads, err := s.leads.ListByStatus(models.StatusScored)
	if err != nil {
		s.logger.Error("Failed to list scored leads", zap.Error(err))
		return
	}

	for _, lead := range leads {
		if ctx.Err() != nil {
			return
		}
		if err := s.prepareLead(ctx, lead); err != nil {
			s.logger.Error("Failed to prepare lead copy", zap.Error(err), zap.Int64("lead_id", lead.ID))
		}
	}
}

func (s *Scheduler) prepareLead(ctx context.Context, lead *models.Lead) error {
	msg, err := s.messages.GetByID(lead.MessageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return errors.New("lead has no source message")
	}
	channel, err := s.channels.GetByID(msg.ChannelID)
	if err != nil {
		return err
	}
	if channel == nil {
		return errors.New("lead message has no channel")
	}

	language := "en"
	if lead.Language != nil && *lead.Language != "" {
		language = *lead.Language
	}

	generated, err := s.copygen.Generate(ctx, copygen.GenerateRequest{
		OrderText:    msg.Text,
		Language:     language,
		ChannelTitle: channel.DisplayName(),
	})
	if err != nil {
		return err
	}

	err = s.leads.AttachCopy(lead.ID, generated.OutreachText, generated.DMText)
	if errors.Is(err, repository.ErrStaleTransition) {
		return nil
	}
	return err
}

// RunPass executes one budgeted send pass over queued leads, highest score
// first, oldest message first at equal score. The pass is cooperatively
// cancellable between leads, never mid-reservation.
func (s *Scheduler) RunPass(ctx context.Context) error {
	if s.isPaused() {
		return nil
	}

	queued, err := s.leads.ListQueued()
	if err != nil {
		return err
	}
	if len(queued) == 0 {
		return nil
	}

	passID := uuid.New().String()[:8]
	s.logger.Info("Scheduling pass started", zap.String("pass_id", passID), zap.Int("queued", len(queued)))

	for _, lead := range queued {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.isPaused() {
			return nil
		}

		granted, err := s.ledger.TryReserve(s.now(), s.cfg.MaxSendsPerDay)
		if err != nil {
			if errors.Is(err, repository.ErrBudgetViolation) {
				// Reservations for this date must halt until an operator
				// intervenes.
				s.alerter.AlertBudgetViolation(s.now())
				return err
			}
			return err
		}
		if !granted {
			s.logger.Info("Daily budget exhausted, leads remain queued",
				zap.String("pass_id", passID), zap.Int64("lead_id", lead.ID))
			return nil
		}

		if err := s.sendOutreach(ctx, passID, lead); err != nil {
			s.logger.Error("Outreach send failed",
				zap.Error(err), zap.String("pass_id", passID), zap.Int64("lead_id", lead.ID))
		}

		if err := s.pacer.wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// sendOutreach dispatches one lead's outreach under an already-granted
// reservation. The reservation is compensated when the send irrecoverably
// fails.
func (s *Scheduler) sendOutreach(ctx context.Context, passID string, lead *models.Lead) error {
	msg, err := s.messages.GetByID(lead.MessageID)
	if err != nil || msg == nil {
		s.releaseReservation()
		if err == nil {
			err = errors.New("lead has no source message")
		}
		return err
	}
	channel, err := s.channels.GetByID(msg.ChannelID)
	if err != nil || channel == nil {
		s.releaseReservation()
		if err == nil {
			err = errors.New("lead message has no channel")
		}
		return err
	}
	if lead.OutreachText == nil {
		s.releaseReservation()
		return errors.New("queued lead has no outreach text")
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	outreachMsgID, err := s.transport.SendThreadReply(sendCtx, channel.PlatformID, msg.PlatformMsgID, *lead.OutreachText)
	cancel()
	if err != nil {
		s.releaseReservation()
		if errors.Is(err, gateway.ErrPeerFlood) {
			s.pauseOutreach(24 * time.Hour)
			s.alerter.AlertPeerFlood()
			return err
		}
		return s.requeueOrFail(lead, err)
	}

	// Outreach is the state-defining send; the DM is a best-effort secondary
	// channel and does not gate the contacted transition.
	var dmMsgID *int64
	if msg.SenderID != nil && lead.DMText != nil && *lead.DMText != "" {
		dmCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		id, dmErr := s.transport.SendDM(dmCtx, *msg.SenderID, *lead.DMText)
		cancel()
		if dmErr != nil {
			s.logger.Warn("DM send failed, outreach still counts",
				zap.Error(dmErr), zap.Int64("lead_id", lead.ID))
		} else {
			dmMsgID = &id
		}
	}

	err = s.leads.MarkContacted(lead.ID, outreachMsgID, dmMsgID, s.now().UTC())
	if errors.Is(err, repository.ErrStaleTransition) {
		// Another pass already contacted this lead; give the slot back.
		s.releaseReservation()
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("Outreach sent",
		zap.String("pass_id", passID),
		zap.Int64("lead_id", lead.ID),
		zap.Int64("outreach_msg_id", outreachMsgID))
	return nil
}

// requeueOrFail handles a transport failure after a compensated reservation:
// the lead stays queued for a bounded number of attempts, then fails.
func (s *Scheduler) requeueOrFail(lead *models.Lead, sendErr error) error {
	attempts, err := s.leads.IncrementSendAttempts(lead.ID)
	if err != nil {
		return err
	}
	if attempts < s.cfg.MaxSendAttempts {
		s.logger.Warn("Lead requeued after transport failure",
			zap.Int64("lead_id", lead.ID),
			zap.Int("attempts", attempts),
			zap.Error(sendErr))
		return nil
	}

	if err := s.leads.Transition(lead.ID, models.StatusQueued, models.StatusFailed); err != nil &&
		!errors.Is(err, repository.ErrStaleTransition) {
		return err
	}
	s.alerter.AlertLeadFailed(lead.ID, attempts)
	s.logger.Error("Lead failed after exhausting send attempts",
		zap.Int64("lead_id", lead.ID), zap.Int("attempts", attempts))
	return nil
}

func (s *Scheduler) releaseReservation() {
	if err := s.ledger.Release(s.now()); err != nil {
		s.logger.Error("Failed to release budget reservation", zap.Error(err))
	}
}

func (s *Scheduler) isPaused() bool {
	if s.pausedUntil.IsZero() {
		return false
	}
	if s.now().After(s.pausedUntil) {
		s.pausedUntil = time.Time{}
		s.logger.Info("Outreach pause lifted")
		return false
	}
	return true
}

func (s *Scheduler) pauseOutreach(d time.Duration) {
	s.pausedUntil = s.now().Add(d)
	s.logger.Warn("Outreach paused", zap.Time("until", s.pausedUntil))
}

// PausedUntil reports the current outreach pause deadline, zero when active.
func (s *Scheduler) PausedUntil() time.Time {
	return s.pausedUntil
}
