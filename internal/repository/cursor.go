package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// CursorRepository persists the last acknowledged inbound event id so the
// inbound stream resumes where it left off after a restart.
type CursorRepository interface {
	Get(name string) (int64, error)
	Set(name string, lastEventID int64) error
}

type cursorRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewCursorRepository(db *sqlx.DB, logger *zap.Logger) CursorRepository {
	return &cursorRepository{db: db, logger: logger}
}

func (r *cursorRepository) Get(name string) (int64, error) {
	var id int64
	err := r.db.Get(&id, `SELECT last_event_id FROM inbound_cursor WHERE name = $1`, name)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return id, nil
}

func (r *cursorRepository) Set(name string, lastEventID int64) error {
	_, err := r.db.Exec(
		`INSERT INTO inbound_cursor (name, last_event_id) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET last_event_id = EXCLUDED.last_event_id`,
		name, lastEventID)
	return err
}
