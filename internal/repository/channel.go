package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/models"
)

type ChannelRepository interface {
	GetByPlatformID(platformID int64) (*models.Channel, error)
	GetByID(id int64) (*models.Channel, error)
	GetByHandle(handle string) (*models.Channel, error)
	Create(channel *models.Channel) error
	ListActive() ([]*models.Channel, error)
	ListAll() ([]*models.Channel, error)
	Deactivate(id int64) error
	UpdateLastCollectedMsgID(id, lastMsgID int64) error
	ListDeadDiscovered(minAgeDays int) ([]*models.Channel, error)
}

type channelRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewChannelRepository(db *sqlx.DB, logger *zap.Logger) ChannelRepository {
	return &channelRepository{db: db, logger: logger}
}

const channelColumns = `id, platform_id, handle, title, is_active, discovered_from, discovered_at, last_collected_msg_id`

func (r *channelRepository) GetByPlatformID(platformID int64) (*models.Channel, error) {
	var ch models.Channel
	query := `SELECT ` + channelColumns + ` FROM channels WHERE platform_id = $1`
	err := r.db.Get(&ch, query, platformID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Channel not found
		}
		return nil, err
	}
	return &ch, nil
}

func (r *channelRepository) GetByID(id int64) (*models.Channel, error) {
	var ch models.Channel
	query := `SELECT ` + channelColumns + ` FROM channels WHERE id = $1`
	err := r.db.Get(&ch, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &ch, nil
}

func (r *channelRepository) GetByHandle(handle string) (*models.Channel, error) {
	var ch models.Channel
	query := `SELECT ` + channelColumns + ` FROM channels WHERE LOWER(handle) = LOWER($1)`
	err := r.db.Get(&ch, query, handle)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &ch, nil
}

// Create inserts a new channel. Concurrent creation of the same platform_id is
// resolved first-writer-wins: on conflict the existing row is returned.
func (r *channelRepository) Create(channel *models.Channel) error {
	query := `INSERT INTO channels (platform_id, handle, title, is_active, discovered_from)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (platform_id) DO NOTHING
	          RETURNING ` + channelColumns
	err := r.db.QueryRowx(query, channel.PlatformID, channel.Handle, channel.Title,
		channel.IsActive, channel.DiscoveredFrom).StructScan(channel)
	if err == sql.ErrNoRows {
		existing, gerr := r.GetByPlatformID(channel.PlatformID)
		if gerr != nil {
			return gerr
		}
		*channel = *existing
		return nil
	}
	return err
}

func (r *channelRepository) ListActive() ([]*models.Channel, error) {
	var channels []*models.Channel
	query := `SELECT ` + channelColumns + ` FROM channels WHERE is_active = TRUE ORDER BY id`
	err := r.db.Select(&channels, query)
	if err != nil {
		return nil, err
	}
	return channels, nil
}

func (r *channelRepository) ListAll() ([]*models.Channel, error) {
	var channels []*models.Channel
	query := `SELECT ` + channelColumns + ` FROM channels ORDER BY id`
	err := r.db.Select(&channels, query)
	if err != nil {
		return nil, err
	}
	return channels, nil
}

// Deactivate marks a channel inactive. History is never deleted.
func (r *channelRepository) Deactivate(id int64) error {
	query := `UPDATE channels SET is_active = FALSE WHERE id = $1`
	_, err := r.db.Exec(query, id)
	return err
}

func (r *channelRepository) UpdateLastCollectedMsgID(id, lastMsgID int64) error {
	query := `UPDATE channels SET last_collected_msg_id = $1 WHERE id = $2`
	_, err := r.db.Exec(query, lastMsgID, id)
	return err
}

// ListDeadDiscovered returns active discovered channels older than minAgeDays
// that have produced zero leads.
func (r *channelRepository) ListDeadDiscovered(minAgeDays int) ([]*models.Channel, error) {
	var channels []*models.Channel
	query := `
		SELECT ` + channelColumns + ` FROM channels c
		WHERE c.is_active = TRUE
		  AND c.discovered_from IS NOT NULL
		  AND c.discovered_at < NOW() - ($1 * INTERVAL '1 day')
		  AND NOT EXISTS (
		      SELECT 1 FROM messages m
		      JOIN leads l ON l.message_id = m.id
		      WHERE m.channel_id = c.id
		  )
		ORDER BY c.id
	`
	err := r.db.Select(&channels, query, minAgeDays)
	if err != nil {
		return nil, err
	}
	return channels, nil
}
