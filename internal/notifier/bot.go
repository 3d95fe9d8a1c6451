// Package notifier is the operator-facing Telegram bot: it pushes alerts and
// positive-reply notifications, posts a daily summary, and answers a small
// set of status commands.
package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/models"
	"github.com/anichkay-yyy/client-pipeline/internal/repository"
)

const summaryHourUTC = 21

// Bot pushes pipeline notifications to a fixed operator chat. A nil *Bot is
// valid and ignores every call, so callers never need to branch on whether
// notifications are enabled.
type Bot struct {
	api      *tgbotapi.BotAPI
	logger   *zap.Logger
	chatID   int64
	leads    repository.LeadRepository
	channels repository.ChannelRepository
	messages repository.MessageRepository
	budget   repository.BudgetRepository
}

// NewBot creates the operator bot. Returns nil when notifications are
// disabled or no token is configured.
func NewBot(
	enabled bool,
	token string,
	chatID int64,
	leads repository.LeadRepository,
	channels repository.ChannelRepository,
	messages repository.MessageRepository,
	budget repository.BudgetRepository,
	logger *zap.Logger,
) (*Bot, error) {
	if !enabled || token == "" {
		logger.Info("Notifier bot is disabled (notifier.enabled=false or token is empty)")
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Notifier bot authorized", zap.String("username", botAPI.Self.UserName))

	return &Bot{
		api:      botAPI,
		logger:   logger,
		chatID:   chatID,
		leads:    leads,
		channels: channels,
		messages: messages,
		budget:   budget,
	}, nil
}

// Start listens for operator commands and posts the daily summary until the
// context is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b == nil {
		return nil
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	summary := time.NewTimer(untilNextSummary(time.Now()))
	defer summary.Stop()

	b.logger.Info("Notifier bot started, waiting for updates...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Notifier bot shutting down...")
			b.api.StopReceivingUpdates()
			return nil
		case <-summary.C:
			b.sendDailySummary()
			summary.Reset(untilNextSummary(time.Now()))
		case update := <-updates:
			if update.Message != nil {
				b.handleMessage(update.Message)
			}
		}
	}
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	if !message.IsCommand() {
		return
	}

	switch message.Command() {
	case "status":
		b.handleStatusCommand(message)
	case "leads":
		b.handleLeadsCommand(message)
	case "channels":
		b.handleChannelsCommand(message)
	case "help", "start":
		b.handleHelpCommand(message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help for the list of commands.")
	}
}

// handleStatusCommand reports today's budget and lead counts per status.
func (b *Bot) handleStatusCommand(message *tgbotapi.Message) {
	counts, err := b.leads.StatusCounts()
	if err != nil {
		b.logger.Error("Failed to get lead status counts", zap.Error(err))
		b.sendMessage(message.Chat.ID, "Failed to read pipeline status.")
		return
	}

	today := models.BudgetDate(time.Now())
	budget, err := b.budget.Get(today)
	if err != nil {
		b.logger.Error("Failed to get daily budget", zap.Error(err))
	}

	var sb strings.Builder
	sb.WriteString("Pipeline status\n\n")
	if budget != nil {
		fmt.Fprintf(&sb, "Budget today: %d/%d sends used\n\n", budget.SendsUsed, budget.MaxSends)
	} else {
		sb.WriteString("Budget today: no sends yet\n\n")
	}
	for _, status := range []models.LeadStatus{
		models.StatusNew, models.StatusScored, models.StatusQueued,
		models.StatusContacted, models.StatusReplied, models.StatusForwarded,
		models.StatusRejected, models.StatusFailed, models.StatusNoReply,
	} {
		if n := counts[status]; n > 0 {
			fmt.Fprintf(&sb, "%s: %d\n", status, n)
		}
	}
	b.sendMessage(message.Chat.ID, sb.String())
}

// handleLeadsCommand lists the most recent leads.
func (b *Bot) handleLeadsCommand(message *tgbotapi.Message) {
	leads, err := b.leads.ListRecent(10)
	if err != nil {
		b.logger.Error("Failed to list recent leads", zap.Error(err))
		b.sendMessage(message.Chat.ID, "Failed to list leads.")
		return
	}
	if len(leads) == 0 {
		b.sendMessage(message.Chat.ID, "No leads yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Recent leads\n\n")
	for _, lead := range leads {
		summary := ""
		if lead.Summary != nil {
			summary = truncate(*lead.Summary, 80)
		}
		fmt.Fprintf(&sb, "#%d [%s] score %.2f %s\n", lead.ID, lead.Status, lead.RelevanceScore, summary)
	}
	b.sendMessage(message.Chat.ID, sb.String())
}

// handleChannelsCommand lists monitored channels and their state.
func (b *Bot) handleChannelsCommand(message *tgbotapi.Message) {
	channels, err := b.channels.ListAll()
	if err != nil {
		b.logger.Error("Failed to list channels", zap.Error(err))
		b.sendMessage(message.Chat.ID, "Failed to list channels.")
		return
	}
	if len(channels) == 0 {
		b.sendMessage(message.Chat.ID, "No channels registered.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Channels\n\n")
	for _, channel := range channels {
		state := "active"
		if !channel.IsActive {
			state = "inactive"
		}
		origin := "configured"
		if channel.DiscoveredFrom != nil {
			origin = "discovered"
		}
		fmt.Fprintf(&sb, "%s (%s, %s)\n", channel.DisplayName(), state, origin)
	}
	b.sendMessage(message.Chat.ID, sb.String())
}

func (b *Bot) handleHelpCommand(message *tgbotapi.Message) {
	helpText := "Commands:\n\n" +
		"/status - budget and lead counts\n" +
		"/leads - most recent leads\n" +
		"/channels - monitored channels\n" +
		"/help - this message"
	b.sendMessage(message.Chat.ID, helpText)
}

// sendDailySummary posts the end-of-day digest to the operator chat.
func (b *Bot) sendDailySummary() {
	counts, err := b.leads.StatusCounts()
	if err != nil {
		b.logger.Error("Failed to build daily summary", zap.Error(err))
		return
	}

	since := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	ingested, err := b.messages.CountSince(since)
	if err != nil {
		b.logger.Error("Failed to count ingested messages", zap.Error(err))
	}

	budget, err := b.budget.Get(models.BudgetDate(time.Now()))
	if err != nil {
		b.logger.Error("Failed to get daily budget", zap.Error(err))
	}
	sendsUsed := 0
	if budget != nil {
		sendsUsed = budget.SendsUsed
	}

	text := fmt.Sprintf(
		"Daily summary\n\n"+
			"Messages ingested (24h): %d\n"+
			"Outreach sent today: %d\n"+
			"Contacted: %d\n"+
			"Replied: %d\n"+
			"Forwarded: %d",
		ingested,
		sendsUsed,
		counts[models.StatusContacted],
		counts[models.StatusReplied],
		counts[models.StatusForwarded],
	)
	b.sendMessage(b.chatID, text)
}

// NotifyPositiveReply tells the operator a lead answered positively.
func (b *Bot) NotifyPositiveReply(lead *models.Lead, replyText string) {
	if b == nil {
		return
	}

	summary := ""
	if lead.Summary != nil {
		summary = *lead.Summary
	}
	text := fmt.Sprintf(
		"Positive reply on lead #%d\n\n"+
			"Order: %s\n\n"+
			"Reply: %s",
		lead.ID, summary, truncate(replyText, 300),
	)
	b.sendMessage(b.chatID, text)
}

// AlertPeerFlood tells the operator outreach is paused after a flood limit.
func (b *Bot) AlertPeerFlood() {
	if b == nil {
		return
	}
	b.sendMessage(b.chatID, "Peer flood limit hit. Outreach is paused for 24 hours.")
}

// AlertBudgetViolation reports an over-budget ledger row that needs manual
// intervention.
func (b *Bot) AlertBudgetViolation(date time.Time) {
	if b == nil {
		return
	}
	b.sendMessage(b.chatID, fmt.Sprintf(
		"Budget ledger violation for %s: sends_used exceeds max_sends. Outreach halted for this date.",
		models.BudgetDate(date).Format(models.BudgetDateLayout),
	))
}

// AlertLeadFailed reports a lead that exhausted its send attempts.
func (b *Bot) AlertLeadFailed(leadID int64, attempts int) {
	if b == nil {
		return
	}
	b.sendMessage(b.chatID, fmt.Sprintf("Lead #%d failed after %d send attempts.", leadID, attempts))
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// untilNextSummary computes the delay to the next daily summary time.
func untilNextSummary(now time.Time) time.Duration {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), summaryHourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

// truncate shortens s to max runes. Counting bytes would cut multibyte
// text (Cyrillic reply previews) mid-rune.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
