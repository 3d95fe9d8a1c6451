package models

import "time"

// Sentiment classification of an inbound reply, supplied by the scorer.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
	SentimentUnclear  Sentiment = "unclear"
)

// Reply represents an inbound response stored in the 'replies' table.
// LeadID is nil when correlation was ambiguous: the reply is kept for manual
// review instead of being attached to a guessed lead.
type Reply struct {
	ID            int64      `db:"id" json:"id"`
	LeadID        *int64     `db:"lead_id" json:"lead_id,omitempty"`
	PlatformMsgID *int64     `db:"platform_msg_id" json:"platform_msg_id,omitempty"`
	SenderID      *int64     `db:"sender_id" json:"sender_id,omitempty"`
	Text          *string    `db:"text" json:"text,omitempty"`
	Sentiment     *Sentiment `db:"sentiment" json:"sentiment,omitempty"`
	NeedsReview   bool       `db:"needs_review" json:"needs_review"`
	ReceivedAt    time.Time  `db:"received_at" json:"received_at"`
}
