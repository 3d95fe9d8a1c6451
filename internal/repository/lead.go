package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/models"
)

// ErrStaleTransition is returned when a compare-and-set status update finds
// the lead no longer in the expected prior status. It signals that another
// worker already processed the lead, not a storage failure.
var ErrStaleTransition = errors.New("lead not in expected status")

// ErrTransitionNotAllowed is returned for transitions outside the state machine.
var ErrTransitionNotAllowed = errors.New("transition not allowed by state machine")

type LeadRepository interface {
	Create(lead *models.Lead) error
	GetByID(id int64) (*models.Lead, error)
	GetByMessageID(messageID int64) (*models.Lead, error)
	ListByStatus(status models.LeadStatus) ([]*models.Lead, error)
	// ListQueued returns queued leads in scheduling order: relevance score
	// descending, then message publish date ascending.
	ListQueued() ([]*models.Lead, error)
	ListRecent(limit int) ([]*models.Lead, error)
	// Transition moves the lead from one status to another with
	// compare-and-set semantics keyed on the expected prior status.
	Transition(id int64, from, to models.LeadStatus) error
	AttachCopy(id int64, outreachText, dmText string) error
	// MarkContacted performs the queued->contacted CAS together with the
	// outcome of the send in a single statement.
	MarkContacted(id int64, outreachMsgID int64, dmMsgID *int64, at time.Time) error
	MarkReplied(id int64, at time.Time) error
	MarkForwarded(id int64, from models.LeadStatus, at time.Time) error
	IncrementSendAttempts(id int64) (int, error)
	ListStaleContacted(ttl time.Duration) ([]*models.Lead, error)
	StatusCounts() (map[models.LeadStatus]int, error)
	// ContactedBySender returns contacted or replied leads whose source
	// message was authored by the given sender, most recently contacted first.
	ContactedBySender(senderID int64) ([]*models.Lead, error)
}

type leadRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewLeadRepository(db *sqlx.DB, logger *zap.Logger) LeadRepository {
	return &leadRepository{db: db, logger: logger}
}

const leadColumns = `id, message_id, status, relevance_score, budget, stack, deadline, language, summary,
	outreach_text, dm_text, outreach_msg_id, dm_msg_id, send_attempts, contacted_at, replied_at, forwarded_at, created_at`

func (r *leadRepository) Create(lead *models.Lead) error {
	query := `INSERT INTO leads (message_id, status, relevance_score, budget, stack, deadline, language, summary)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id, created_at`
	return r.db.QueryRowx(query, lead.MessageID, lead.Status, lead.RelevanceScore,
		lead.Budget, lead.Stack, lead.Deadline, lead.Language, lead.Summary).
		Scan(&lead.ID, &lead.CreatedAt)
}

func (r *leadRepository) GetByID(id int64) (*models.Lead, error) {
	var lead models.Lead
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	err := r.db.Get(&lead, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &lead, nil
}

func (r *leadRepository) GetByMessageID(messageID int64) (*models.Lead, error) {
	var lead models.Lead
	query := `SELECT ` + leadColumns + ` FROM leads WHERE message_id = $1`
	err := r.db.Get(&lead, query, messageID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &lead, nil
}

func (r *leadRepository) ListByStatus(status models.LeadStatus) ([]*models.Lead, error) {
	var leads []*models.Lead
	query := `SELECT ` + leadColumns + ` FROM leads WHERE status = $1 ORDER BY id`
	err := r.db.Select(&leads, query, status)
	if err != nil {
		return nil, err
	}
	return leads, nil
}

func (r *leadRepository) ListQueued() ([]*models.Lead, error) {
	var leads []*models.Lead
	query := `
		SELECT l.id, l.message_id, l.status, l.relevance_score, l.budget, l.stack, l.deadline,
		       l.language, l.summary, l.outreach_text, l.dm_text, l.outreach_msg_id, l.dm_msg_id,
		       l.send_attempts, l.contacted_at, l.replied_at, l.forwarded_at, l.created_at
		FROM leads l
		JOIN messages m ON m.id = l.message_id
		WHERE l.status = $1
		ORDER BY l.relevance_score DESC, m.published_at ASC
	`
	err := r.db.Select(&leads, query, models.StatusQueued)
	if err != nil {
		return nil, err
	}
	return leads, nil
}

func (r *leadRepository) ListRecent(limit int) ([]*models.Lead, error) {
	var leads []*models.Lead
	query := `SELECT ` + leadColumns + ` FROM leads ORDER BY id DESC LIMIT $1`
	err := r.db.Select(&leads, query, limit)
	if err != nil {
		return nil, err
	}
	return leads, nil
}

func (r *leadRepository) Transition(id int64, from, to models.LeadStatus) error {
	if !models.CanTransition(from, to) {
		return ErrTransitionNotAllowed
	}
	query := `UPDATE leads SET status = $1 WHERE id = $2 AND status = $3`
	res, err := r.db.Exec(query, to, id, from)
	if err != nil {
		return err
	}
	return checkTransitioned(res)
}

func (r *leadRepository) AttachCopy(id int64, outreachText, dmText string) error {
	query := `UPDATE leads SET status = $1, outreach_text = $2, dm_text = $3
	          WHERE id = $4 AND status = $5`
	res, err := r.db.Exec(query, models.StatusQueued, outreachText, dmText, id, models.StatusScored)
	if err != nil {
		return err
	}
	return checkTransitioned(res)
}

func (r *leadRepository) MarkContacted(id int64, outreachMsgID int64, dmMsgID *int64, at time.Time) error {
	query := `UPDATE leads SET status = $1, outreach_msg_id = $2, dm_msg_id = $3, contacted_at = $4
	          WHERE id = $5 AND status = $6`
	res, err := r.db.Exec(query, models.StatusContacted, outreachMsgID, dmMsgID, at, id, models.StatusQueued)
	if err != nil {
		return err
	}
	return checkTransitioned(res)
}

func (r *leadRepository) MarkReplied(id int64, at time.Time) error {
	query := `UPDATE leads SET status = $1, replied_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.db.Exec(query, models.StatusReplied, at, id, models.StatusContacted)
	if err != nil {
		return err
	}
	return checkTransitioned(res)
}

func (r *leadRepository) MarkForwarded(id int64, from models.LeadStatus, at time.Time) error {
	if !models.CanTransition(from, models.StatusForwarded) {
		return ErrTransitionNotAllowed
	}
	query := `UPDATE leads SET status = $1, forwarded_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.db.Exec(query, models.StatusForwarded, at, id, from)
	if err != nil {
		return err
	}
	return checkTransitioned(res)
}

func (r *leadRepository) IncrementSendAttempts(id int64) (int, error) {
	var attempts int
	query := `UPDATE leads SET send_attempts = send_attempts + 1 WHERE id = $1 RETURNING send_attempts`
	err := r.db.Get(&attempts, query, id)
	return attempts, err
}

func (r *leadRepository) ListStaleContacted(ttl time.Duration) ([]*models.Lead, error) {
	var leads []*models.Lead
	query := `SELECT ` + leadColumns + ` FROM leads
	          WHERE status = $1 AND contacted_at IS NOT NULL AND contacted_at < $2
	          ORDER BY id`
	err := r.db.Select(&leads, query, models.StatusContacted, time.Now().UTC().Add(-ttl))
	if err != nil {
		return nil, err
	}
	return leads, nil
}

func (r *leadRepository) StatusCounts() (map[models.LeadStatus]int, error) {
	rows, err := r.db.Queryx(`SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[models.LeadStatus]int{}
	for rows.Next() {
		var status models.LeadStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *leadRepository) ContactedBySender(senderID int64) ([]*models.Lead, error) {
	var leads []*models.Lead
	query := `
		SELECT l.id, l.message_id, l.status, l.relevance_score, l.budget, l.stack, l.deadline,
		       l.language, l.summary, l.outreach_text, l.dm_text, l.outreach_msg_id, l.dm_msg_id,
		       l.send_attempts, l.contacted_at, l.replied_at, l.forwarded_at, l.created_at
		FROM leads l
		JOIN messages m ON m.id = l.message_id
		WHERE m.sender_id = $1 AND l.status IN ($2, $3)
		ORDER BY l.contacted_at DESC NULLS LAST
	`
	err := r.db.Select(&leads, query, senderID, models.StatusContacted, models.StatusReplied)
	if err != nil {
		return nil, err
	}
	return leads, nil
}

func checkTransitioned(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleTransition
	}
	return nil
}
