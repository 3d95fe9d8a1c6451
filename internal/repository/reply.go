package repository

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/models"
)

type ReplyRepository interface {
	Insert(reply *models.Reply) error
	ListForLead(leadID int64) ([]*models.Reply, error)
	ListUnattached() ([]*models.Reply, error)
	// ExistsForLead reports whether the platform message was already recorded
	// as a reply to the lead.
	ExistsForLead(leadID, platformMsgID int64) (bool, error)
}

type replyRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewReplyRepository(db *sqlx.DB, logger *zap.Logger) ReplyRepository {
	return &replyRepository{db: db, logger: logger}
}

const replyColumns = `id, lead_id, platform_msg_id, sender_id, text, sentiment, needs_review, received_at`

func (r *replyRepository) Insert(reply *models.Reply) error {
	query := `INSERT INTO replies (lead_id, platform_msg_id, sender_id, text, sentiment, needs_review, received_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	return r.db.QueryRowx(query, reply.LeadID, reply.PlatformMsgID, reply.SenderID,
		reply.Text, reply.Sentiment, reply.NeedsReview, reply.ReceivedAt).Scan(&reply.ID)
}

func (r *replyRepository) ListForLead(leadID int64) ([]*models.Reply, error) {
	var replies []*models.Reply
	query := `SELECT ` + replyColumns + ` FROM replies WHERE lead_id = $1 ORDER BY id`
	err := r.db.Select(&replies, query, leadID)
	if err != nil {
		return nil, err
	}
	return replies, nil
}

func (r *replyRepository) ListUnattached() ([]*models.Reply, error) {
	var replies []*models.Reply
	query := `SELECT ` + replyColumns + ` FROM replies WHERE lead_id IS NULL AND needs_review = TRUE ORDER BY id`
	err := r.db.Select(&replies, query)
	if err != nil {
		return nil, err
	}
	return replies, nil
}

func (r *replyRepository) ExistsForLead(leadID, platformMsgID int64) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM replies WHERE lead_id = $1 AND platform_msg_id = $2`
	if err := r.db.Get(&count, query, leadID, platformMsgID); err != nil {
		return false, err
	}
	return count > 0, nil
}
