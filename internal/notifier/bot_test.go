package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUntilNextSummary(t *testing.T) {
	morning := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 12*time.Hour, untilNextSummary(morning))

	// Past today's summary time the next one is tomorrow.
	evening := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, 23*time.Hour, untilNextSummary(evening))

	exactly := time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC)
	assert.Equal(t, 24*time.Hour, untilNextSummary(exactly))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "0123456789...", truncate("0123456789abcdef", 10))

	// Multibyte text is cut on rune boundaries.
	assert.Equal(t, "привет...", truncate("привет, интересует", 6))
	assert.Equal(t, "привет", truncate("привет", 6))
}

func TestNilBotIsSafe(t *testing.T) {
	var b *Bot
	b.NotifyPositiveReply(nil, "ignored")
	b.AlertPeerFlood()
	b.AlertBudgetViolation(time.Now())
	b.AlertLeadFailed(1, 3)
	assert.NoError(t, b.Start(nil))
}
