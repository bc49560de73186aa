package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/agency-dashboard/internal/apperr"
	"github.com/nhle/agency-dashboard/internal/model"
)

const financialColumns = `id, client_id, kind, description, amount, month,
	due_date, paid, created_at, updated_at`

type financialRow struct {
	ID          string     `db:"id"`
	ClientID    *string    `db:"client_id"`
	Kind        string     `db:"kind"`
	Description string     `db:"description"`
	Amount      float64    `db:"amount"`
	Month       string     `db:"month"`
	DueDate     *time.Time `db:"due_date"`
	Paid        int        `db:"paid"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (r financialRow) toModel() model.FinancialRecord {
	return model.FinancialRecord{
		ID:          r.ID,
		ClientID:    r.ClientID,
		Kind:        r.Kind,
		Description: r.Description,
		Amount:      r.Amount,
		Month:       r.Month,
		DueDate:     utcPtr(r.DueDate),
		Paid:        r.Paid != 0,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func financialArgs(r model.FinancialRecord) []interface{} {
	return []interface{}{
		r.ID, r.ClientID, r.Kind, r.Description, r.Amount, r.Month,
		utcPtr(r.DueDate), boolToInt(r.Paid), r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
	}
}

func validateFinancialRecord(r model.FinancialRecord) error {
	var errs apperr.ValidationErrors
	if r.Kind != model.FinancialKindRevenue && r.Kind != model.FinancialKindExpense {
		errs.Add("kind", "must be revenue or expense")
	}
	if r.Amount < 0 {
		errs.Add("amount", "must not be negative")
	}
	if r.Month != "" {
		if _, err := time.Parse("2006-01", r.Month); err != nil {
			errs.Add("month", "must use the YYYY-MM layout")
		}
	}
	return errs.Err()
}

const upsertFinancialSQL = `INSERT OR REPLACE INTO financial_records (` + financialColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateFinancialRecord inserts a new record. Month defaults to the current
// month.
func (s *SQLiteStore) CreateFinancialRecord(
	ctx context.Context,
	r model.FinancialRecord,
) (*model.FinancialRecord, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := s.now()
	if r.Month == "" {
		r.Month = now.Format("2006-01")
	}
	if err := validateFinancialRecord(r); err != nil {
		return nil, err
	}
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `INSERT INTO financial_records (`+financialColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, financialArgs(r)...)
	if err != nil {
		return nil, fmt.Errorf("creating financial record: %w", err)
	}
	return &r, nil
}

// UpdateFinancialRecord merges patch over the stored record.
func (s *SQLiteStore) UpdateFinancialRecord(
	ctx context.Context,
	id string,
	patch model.FinancialRecordPatch,
) (UpdateResult[model.FinancialRecord], error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return UpdateResult[model.FinancialRecord]{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var row financialRow
	err = tx.GetContext(ctx, &row, "SELECT "+financialColumns+" FROM financial_records WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return UpdateResult[model.FinancialRecord]{}, nil
	}
	if err != nil {
		return UpdateResult[model.FinancialRecord]{}, fmt.Errorf("loading financial record %s: %w", id, err)
	}

	updated := patch.Apply(row.toModel())
	if err := validateFinancialRecord(updated); err != nil {
		return UpdateResult[model.FinancialRecord]{}, err
	}
	updated.UpdatedAt = s.now()

	if _, err := tx.ExecContext(ctx, upsertFinancialSQL, financialArgs(updated)...); err != nil {
		return UpdateResult[model.FinancialRecord]{}, fmt.Errorf("updating financial record %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return UpdateResult[model.FinancialRecord]{}, fmt.Errorf("committing financial record %s: %w", id, err)
	}
	return UpdateResult[model.FinancialRecord]{Entity: &updated, RowsAffected: 1}, nil
}

// GetFinancialRecord retrieves a record by ID, or nil when absent.
func (s *SQLiteStore) GetFinancialRecord(ctx context.Context, id string) (*model.FinancialRecord, error) {
	var row financialRow
	err := s.db.GetContext(ctx, &row, "SELECT "+financialColumns+" FROM financial_records WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting financial record %s: %w", id, err)
	}
	r := row.toModel()
	return &r, nil
}

// ListFinancialRecords returns records for month ("2006-01"), or every
// record when month is empty.
func (s *SQLiteStore) ListFinancialRecords(ctx context.Context, month string) ([]model.FinancialRecord, error) {
	if month == "" {
		return s.selectFinancial(ctx,
			"SELECT "+financialColumns+" FROM financial_records ORDER BY created_at DESC")
	}
	return s.selectFinancial(ctx,
		"SELECT "+financialColumns+" FROM financial_records WHERE month = ? ORDER BY created_at DESC",
		month)
}

// SearchFinancialRecords matches query against description, kind and month.
func (s *SQLiteStore) SearchFinancialRecords(ctx context.Context, query string) ([]model.FinancialRecord, error) {
	where, args := searchClause(query, "description", "kind", "month")
	return s.selectFinancial(ctx,
		"SELECT "+financialColumns+" FROM financial_records WHERE "+where+" ORDER BY created_at DESC",
		args...)
}

// DeleteFinancialRecord removes a record by ID. Deleting a missing id is a
// no-op.
func (s *SQLiteStore) DeleteFinancialRecord(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM financial_records WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting financial record %s: %w", id, err)
	}
	return nil
}

// BulkUpsertFinancialRecords inserts or replaces each record by ID,
// stopping at the first failure.
func (s *SQLiteStore) BulkUpsertFinancialRecords(ctx context.Context, records []model.FinancialRecord) error {
	if len(records) == 0 {
		return nil
	}

	stmt, err := s.db.PreparexContext(ctx, upsertFinancialSQL)
	if err != nil {
		return fmt.Errorf("preparing financial record upsert: %w", err)
	}
	defer stmt.Close()

	now := s.now()
	for i, r := range records {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.Month == "" {
			r.Month = now.Format("2006-01")
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
		if err := validateFinancialRecord(r); err != nil {
			return fmt.Errorf("upserting financial record %d (%s): %w", i, r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, financialArgs(r)...); err != nil {
			return fmt.Errorf("upserting financial record %d (%s): %w", i, r.ID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) selectFinancial(ctx context.Context, query string, args ...interface{}) ([]model.FinancialRecord, error) {
	var rows []financialRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying financial records: %w", err)
	}
	records := make([]model.FinancialRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toModel())
	}
	return records, nil
}
