package model

import "time"

// Financial record kinds.
const (
	FinancialKindRevenue = "revenue"
	FinancialKindExpense = "expense"
)

// FinancialRecord is a single revenue or expense line, optionally tied to a
// client. Month uses the "2006-01" layout.
type FinancialRecord struct {
	ID          string     `json:"id" db:"id"`
	ClientID    *string    `json:"client_id,omitempty" db:"client_id"`
	Kind        string     `json:"kind" db:"kind"`
	Description string     `json:"description" db:"description"`
	Amount      float64    `json:"amount" db:"amount"`
	Month       string     `json:"month" db:"month"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	Paid        bool       `json:"paid" db:"paid"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// FinancialRecordPatch is a merge patch for a FinancialRecord.
type FinancialRecordPatch struct {
	ClientID    *string    `json:"client_id,omitempty"`
	Kind        *string    `json:"kind,omitempty"`
	Description *string    `json:"description,omitempty"`
	Amount      *float64   `json:"amount,omitempty"`
	Month       *string    `json:"month,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Paid        *bool      `json:"paid,omitempty"`
}

// Apply merges the patch over r and returns the result.
func (p FinancialRecordPatch) Apply(r FinancialRecord) FinancialRecord {
	if p.ClientID != nil {
		id := *p.ClientID
		r.ClientID = &id
	}
	if p.Kind != nil {
		r.Kind = *p.Kind
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	if p.Month != nil {
		r.Month = *p.Month
	}
	if p.DueDate != nil {
		due := *p.DueDate
		r.DueDate = &due
	}
	if p.Paid != nil {
		r.Paid = *p.Paid
	}
	return r
}

// FinancialSummary totals a set of records for one month.
type FinancialSummary struct {
	Month    string  `json:"month"`
	Revenue  float64 `json:"revenue"`
	Expenses float64 `json:"expenses"`
}

// Margin returns revenue minus expenses.
func (s FinancialSummary) Margin() float64 {
	return s.Revenue - s.Expenses
}

// Summarize totals the records whose Month equals month.
func Summarize(records []FinancialRecord, month string) FinancialSummary {
	sum := FinancialSummary{Month: month}
	for _, r := range records {
		if r.Month != month {
			continue
		}
		switch r.Kind {
		case FinancialKindRevenue:
			sum.Revenue += r.Amount
		case FinancialKindExpense:
			sum.Expenses += r.Amount
		}
	}
	return sum
}
