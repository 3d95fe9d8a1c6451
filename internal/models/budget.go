package models

import "time"

// BudgetDateLayout is the canonical key format for daily_budget rows.
const BudgetDateLayout = "2006-01-02"

// DailyBudget is the send quota ledger row for one calendar date.
// Invariant: SendsUsed <= MaxSends, enforced atomically at reservation time.
type DailyBudget struct {
	Date      time.Time `db:"date" json:"date"`
	SendsUsed int       `db:"sends_used" json:"sends_used"`
	MaxSends  int       `db:"max_sends" json:"max_sends"`
}

// BudgetDate truncates t to its UTC calendar date.
func BudgetDate(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
