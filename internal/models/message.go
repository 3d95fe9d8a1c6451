package models

import "time"

// Message represents one ingested unit of channel content stored in the
// 'messages' table. Rows are immutable after creation except for the
// classification bookkeeping column.
type Message struct {
	ID            int64      `db:"id"`
	ChannelID     int64      `db:"channel_id"`
	PlatformMsgID int64      `db:"platform_msg_id"`
	SenderID      *int64     `db:"sender_id"`
	SenderHandle  *string    `db:"sender_handle"`
	Text          string     `db:"text"`
	PublishedAt   time.Time  `db:"published_at"`
	TextHash      string     `db:"text_hash"`
	IsNovel       bool       `db:"is_novel"`
	ClassifiedAt  *time.Time `db:"classified_at"`
	CreatedAt     time.Time  `db:"created_at"`
}
