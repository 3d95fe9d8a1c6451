package models

import "time"

// Channel represents a discovered messaging source stored in the 'channels' table.
// A channel is never deleted, only deactivated when the crawler loses access.
type Channel struct {
	ID                 int64     `db:"id" json:"id"`
	PlatformID         int64     `db:"platform_id" json:"platform_id"`
	Handle             *string   `db:"handle" json:"handle,omitempty"`
	Title              *string   `db:"title" json:"title,omitempty"`
	IsActive           bool      `db:"is_active" json:"is_active"`
	DiscoveredFrom     *string   `db:"discovered_from" json:"discovered_from,omitempty"`
	DiscoveredAt       time.Time `db:"discovered_at" json:"discovered_at"`
	LastCollectedMsgID int64     `db:"last_collected_msg_id" json:"last_collected_msg_id"`
}

// DisplayName returns the best human-readable name for the channel.
func (c *Channel) DisplayName() string {
	if c.Title != nil && *c.Title != "" {
		return *c.Title
	}
	if c.Handle != nil && *c.Handle != "" {
		return *c.Handle
	}
	return "unknown channel"
}
