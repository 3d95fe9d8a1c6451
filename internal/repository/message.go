package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/models"
)

type MessageRepository interface {
	// Insert persists a message. Returns false when the (channel, platform
	// message id) pair already exists; re-ingestion is an idempotent no-op.
	Insert(msg *models.Message) (bool, error)
	GetByID(id int64) (*models.Message, error)
	GetByPlatformID(channelID, platformMsgID int64) (*models.Message, error)
	// HashExists reports whether any other message already carries the hash.
	HashExists(textHash string, excludeID int64) (bool, error)
	// LeadExistsForHash reports whether a lead was already created for any
	// message with the given hash.
	LeadExistsForHash(textHash string) (bool, error)
	ListUnclassified(limit int) ([]*models.Message, error)
	MarkClassified(id int64) error
	CountSince(since string) (int, error)
	Count() (int, error)
}

type messageRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewMessageRepository(db *sqlx.DB, logger *zap.Logger) MessageRepository {
	return &messageRepository{db: db, logger: logger}
}

const messageColumns = `id, channel_id, platform_msg_id, sender_id, sender_handle, text, published_at, text_hash, is_novel, classified_at, created_at`

func (r *messageRepository) Insert(msg *models.Message) (bool, error) {
	query := `INSERT INTO messages (channel_id, platform_msg_id, sender_id, sender_handle, text, published_at, text_hash, is_novel)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          ON CONFLICT (channel_id, platform_msg_id) DO NOTHING
	          RETURNING id, created_at`
	err := r.db.QueryRowx(query, msg.ChannelID, msg.PlatformMsgID, msg.SenderID, msg.SenderHandle,
		msg.Text, msg.PublishedAt, msg.TextHash, msg.IsNovel).Scan(&msg.ID, &msg.CreatedAt)
	if err == sql.ErrNoRows {
		return false, nil // already ingested
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *messageRepository) GetByID(id int64) (*models.Message, error) {
	var msg models.Message
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	err := r.db.Get(&msg, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) GetByPlatformID(channelID, platformMsgID int64) (*models.Message, error) {
	var msg models.Message
	query := `SELECT ` + messageColumns + ` FROM messages WHERE channel_id = $1 AND platform_msg_id = $2`
	err := r.db.Get(&msg, query, channelID, platformMsgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) HashExists(textHash string, excludeID int64) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM messages WHERE text_hash = $1 AND id != $2`
	if err := r.db.Get(&count, query, textHash, excludeID); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *messageRepository) LeadExistsForHash(textHash string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM leads l
	          JOIN messages m ON l.message_id = m.id
	          WHERE m.text_hash = $1`
	if err := r.db.Get(&count, query, textHash); err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListUnclassified returns novel messages that have not yet been through the
// classifier, oldest first. This is the at-least-once hand-off from ingestion
// to classification.
func (r *messageRepository) ListUnclassified(limit int) ([]*models.Message, error) {
	var messages []*models.Message
	query := `SELECT ` + messageColumns + ` FROM messages
	          WHERE is_novel = TRUE AND classified_at IS NULL
	          ORDER BY id LIMIT $1`
	err := r.db.Select(&messages, query, limit)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) MarkClassified(id int64) error {
	query := `UPDATE messages SET classified_at = NOW() WHERE id = $1`
	_, err := r.db.Exec(query, id)
	return err
}

func (r *messageRepository) CountSince(since string) (int, error) {
	var count int
	err := r.db.Get(&count, `SELECT COUNT(*) FROM messages WHERE created_at >= $1::date`, since)
	return count, err
}

func (r *messageRepository) Count() (int, error) {
	var count int
	err := r.db.Get(&count, `SELECT COUNT(*) FROM messages`)
	return count, err
}
