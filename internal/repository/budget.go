package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/models"
)

// ErrBudgetViolation indicates sends_used > max_sends was observed for a date.
// This should be impossible under correct reservation usage; reservations for
// that date must halt and an operator must be alerted.
var ErrBudgetViolation = errors.New("daily budget invariant violated: sends_used > max_sends")

// BudgetRepository is the send quota ledger. TryReserve is the single atomic
// operation in the engine: the quota check and the increment commit as one
// conditional update, so concurrent callers can never both take the last slot.
type BudgetRepository interface {
	// TryReserve claims one send slot for the date, lazily creating the row
	// with defaultMax on first access. Returns false when the quota is
	// exhausted.
	TryReserve(date time.Time, defaultMax int) (bool, error)
	// Release compensates a granted reservation after an irrecoverable send
	// failure. The counter is clamped at zero; a clamp is logged as an anomaly.
	Release(date time.Time) error
	Get(date time.Time) (*models.DailyBudget, error)
	// SetMax is an administrative correction of the date's quota.
	SetMax(date time.Time, maxSends int) error
}

type budgetRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewBudgetRepository(db *sqlx.DB, logger *zap.Logger) BudgetRepository {
	return &budgetRepository{db: db, logger: logger}
}

func (r *budgetRepository) TryReserve(date time.Time, defaultMax int) (bool, error) {
	day := models.BudgetDate(date)

	// Lazy row creation, first writer wins.
	_, err := r.db.Exec(
		`INSERT INTO daily_budget (date, sends_used, max_sends) VALUES ($1, 0, $2)
		 ON CONFLICT (date) DO NOTHING`,
		day, defaultMax)
	if err != nil {
		return false, err
	}

	// The check and the increment are one indivisible statement.
	res, err := r.db.Exec(
		`UPDATE daily_budget SET sends_used = sends_used + 1
		 WHERE date = $1 AND sends_used < max_sends`,
		day)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	// Denied: distinguish ordinary exhaustion from a broken invariant.
	budget, err := r.Get(day)
	if err != nil {
		return false, err
	}
	if budget != nil && budget.SendsUsed > budget.MaxSends {
		r.logger.Error("Daily budget invariant violated",
			zap.Time("date", day),
			zap.Int("sends_used", budget.SendsUsed),
			zap.Int("max_sends", budget.MaxSends))
		return false, ErrBudgetViolation
	}
	return false, nil
}

func (r *budgetRepository) Release(date time.Time) error {
	day := models.BudgetDate(date)
	res, err := r.db.Exec(
		`UPDATE daily_budget SET sends_used = sends_used - 1
		 WHERE date = $1 AND sends_used > 0`,
		day)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		r.logger.Warn("Budget release clamped at zero", zap.Time("date", day))
	}
	return nil
}

func (r *budgetRepository) Get(date time.Time) (*models.DailyBudget, error) {
	day := models.BudgetDate(date)
	var budget models.DailyBudget
	err := r.db.Get(&budget, `SELECT date, sends_used, max_sends FROM daily_budget WHERE date = $1`, day)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &budget, nil
}

func (r *budgetRepository) SetMax(date time.Time, maxSends int) error {
	day := models.BudgetDate(date)
	_, err := r.db.Exec(
		`INSERT INTO daily_budget (date, sends_used, max_sends) VALUES ($1, 0, $2)
		 ON CONFLICT (date) DO UPDATE SET max_sends = EXCLUDED.max_sends`,
		day, maxSends)
	return err
}
