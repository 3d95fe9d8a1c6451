package models

import "time"

// LeadStatus is the closed set of lead lifecycle states.
type LeadStatus string

const (
	StatusNew       LeadStatus = "new"       // created by the classifier
	StatusScored    LeadStatus = "scored"    // passed the outreach threshold
	StatusQueued    LeadStatus = "queued"    // outreach + DM copy attached
	StatusContacted LeadStatus = "contacted" // outreach sent
	StatusReplied   LeadStatus = "replied"   // inbound reply correlated
	StatusForwarded LeadStatus = "forwarded" // escalated to a human
	StatusRejected  LeadStatus = "rejected"  // not worth pursuing
	StatusFailed    LeadStatus = "failed"    // send retries exhausted
	StatusNoReply   LeadStatus = "no_reply"  // contacted but went stale
)

// transitions is the explicit lead state machine. Any transition not listed
// here is rejected, regardless of caller intent.
var transitions = map[LeadStatus][]LeadStatus{
	StatusNew:       {StatusScored, StatusRejected},
	StatusScored:    {StatusQueued, StatusRejected},
	StatusQueued:    {StatusContacted, StatusFailed, StatusRejected},
	StatusContacted: {StatusReplied, StatusForwarded, StatusNoReply},
	StatusReplied:   {StatusForwarded, StatusRejected},
}

// CanTransition reports whether moving a lead from one status to another is
// allowed by the state machine.
func CanTransition(from, to LeadStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions.
func (s LeadStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Lead represents a message promoted to a sales candidate, stored in the
// 'leads' table. A message maps to at most one lead.
type Lead struct {
	ID             int64      `db:"id" json:"id"`
	MessageID      int64      `db:"message_id" json:"message_id"`
	Status         LeadStatus `db:"status" json:"status"`
	RelevanceScore float64    `db:"relevance_score" json:"relevance_score"`
	Budget         *string    `db:"budget" json:"budget,omitempty"`
	Stack          *string    `db:"stack" json:"stack,omitempty"`
	Deadline       *string    `db:"deadline" json:"deadline,omitempty"`
	Language       *string    `db:"language" json:"language,omitempty"`
	Summary        *string    `db:"summary" json:"summary,omitempty"`
	OutreachText   *string    `db:"outreach_text" json:"-"`
	DMText         *string    `db:"dm_text" json:"-"`
	OutreachMsgID  *int64     `db:"outreach_msg_id" json:"outreach_msg_id,omitempty"`
	DMMsgID        *int64     `db:"dm_msg_id" json:"dm_msg_id,omitempty"`
	SendAttempts   int        `db:"send_attempts" json:"send_attempts"`
	ContactedAt    *time.Time `db:"contacted_at" json:"contacted_at,omitempty"`
	RepliedAt      *time.Time `db:"replied_at" json:"replied_at,omitempty"`
	ForwardedAt    *time.Time `db:"forwarded_at" json:"forwarded_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}
