package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/agency-dashboard/internal/apperr"
	"github.com/nhle/agency-dashboard/internal/model"
)

const clientColumns = `id, name, website, segment, owner, status,
	monthly_budget, budget_spent_month,
	goal_targets, latest_metrics, contacts, access, onboarding,
	created_at, updated_at`

// clientRow mirrors the clients table; nested collections are JSON text.
type clientRow struct {
	ID               string    `db:"id"`
	Name             string    `db:"name"`
	Website          string    `db:"website"`
	Segment          string    `db:"segment"`
	Owner            string    `db:"owner"`
	Status           string    `db:"status"`
	MonthlyBudget    float64   `db:"monthly_budget"`
	BudgetSpentMonth float64   `db:"budget_spent_month"`
	GoalTargets      string    `db:"goal_targets"`
	LatestMetrics    string    `db:"latest_metrics"`
	Contacts         string    `db:"contacts"`
	Access           string    `db:"access"`
	Onboarding       string    `db:"onboarding"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r clientRow) toModel() (model.Client, error) {
	c := model.Client{
		ID:               r.ID,
		Name:             r.Name,
		Website:          r.Website,
		Segment:          r.Segment,
		Owner:            r.Owner,
		Status:           model.ClientStatus(r.Status),
		MonthlyBudget:    r.MonthlyBudget,
		BudgetSpentMonth: r.BudgetSpentMonth,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
	if err := unmarshalColumn("goal_targets", r.GoalTargets, &c.GoalTargets); err != nil {
		return model.Client{}, err
	}
	if err := unmarshalColumn("latest_metrics", r.LatestMetrics, &c.LatestMetrics); err != nil {
		return model.Client{}, err
	}
	if err := unmarshalColumn("contacts", r.Contacts, &c.Contacts); err != nil {
		return model.Client{}, err
	}
	if err := unmarshalColumn("access", r.Access, &c.Access); err != nil {
		return model.Client{}, err
	}
	if err := unmarshalColumn("onboarding", r.Onboarding, &c.Onboarding); err != nil {
		return model.Client{}, err
	}
	return c, nil
}

// clientArgs returns the positional arguments matching clientColumns.
func clientArgs(c model.Client) ([]interface{}, error) {
	goals, err := marshalColumn("goal_targets", c.GoalTargets)
	if err != nil {
		return nil, err
	}
	metrics, err := marshalColumn("latest_metrics", c.LatestMetrics)
	if err != nil {
		return nil, err
	}
	contacts, err := marshalColumn("contacts", c.Contacts)
	if err != nil {
		return nil, err
	}
	access, err := marshalColumn("access", c.Access)
	if err != nil {
		return nil, err
	}
	onboarding, err := marshalColumn("onboarding", c.Onboarding)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		c.ID, c.Name, c.Website, c.Segment, c.Owner, string(c.Status),
		c.MonthlyBudget, c.BudgetSpentMonth,
		goals, metrics, contacts, access, onboarding,
		c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	}, nil
}

func validateClient(c model.Client) error {
	var errs apperr.ValidationErrors
	if strings.TrimSpace(c.Name) == "" {
		errs.Add("name", "must not be empty")
	}
	if _, err := model.ParseClientStatus(string(c.Status)); err != nil {
		errs.Add("status", err.Error())
	}
	return errs.Err()
}

const insertClientSQL = `INSERT INTO clients (` + clientColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const upsertClientSQL = `INSERT OR REPLACE INTO clients (` + clientColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateClient inserts a new client. Generates a UUID if ID is empty and
// stamps the creation time. Status defaults to active.
func (s *SQLiteStore) CreateClient(ctx context.Context, c model.Client) (*model.Client, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = model.ClientStatusActive
	}
	if err := validateClient(c); err != nil {
		return nil, err
	}
	now := s.now()
	c.CreatedAt = now
	c.UpdatedAt = now

	args, err := clientArgs(c)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, insertClientSQL, args...); err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	return &c, nil
}

// UpdateClient merges patch over the stored client. A missing id yields a
// zero UpdateResult and no error.
func (s *SQLiteStore) UpdateClient(
	ctx context.Context,
	id string,
	patch model.ClientPatch,
) (UpdateResult[model.Client], error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return UpdateResult[model.Client]{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var row clientRow
	err = tx.GetContext(ctx, &row, "SELECT "+clientColumns+" FROM clients WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return UpdateResult[model.Client]{}, nil
	}
	if err != nil {
		return UpdateResult[model.Client]{}, fmt.Errorf("loading client %s: %w", id, err)
	}

	current, err := row.toModel()
	if err != nil {
		return UpdateResult[model.Client]{}, err
	}
	updated := patch.Apply(current)
	if err := validateClient(updated); err != nil {
		return UpdateResult[model.Client]{}, err
	}
	updated.UpdatedAt = s.now()

	args, err := clientArgs(updated)
	if err != nil {
		return UpdateResult[model.Client]{}, err
	}
	result, err := tx.ExecContext(ctx, upsertClientSQL, args...)
	if err != nil {
		return UpdateResult[model.Client]{}, fmt.Errorf("updating client %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return UpdateResult[model.Client]{}, fmt.Errorf("committing client %s: %w", id, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		affected = 1
	}
	return UpdateResult[model.Client]{Entity: &updated, RowsAffected: affected}, nil
}

// GetClient retrieves a client by ID. Returns nil without error when absent.
func (s *SQLiteStore) GetClient(ctx context.Context, id string) (*model.Client, error) {
	var row clientRow
	err := s.db.GetContext(ctx, &row, "SELECT "+clientColumns+" FROM clients WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting client %s: %w", id, err)
	}

	c, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListClients returns every client, newest first. The result is never nil.
func (s *SQLiteStore) ListClients(ctx context.Context) ([]model.Client, error) {
	return s.selectClients(ctx, "SELECT "+clientColumns+" FROM clients ORDER BY created_at DESC")
}

// SearchClients matches query case-insensitively against name, website,
// segment and owner.
func (s *SQLiteStore) SearchClients(ctx context.Context, query string) ([]model.Client, error) {
	where, args := searchClause(query, "name", "website", "segment", "owner")
	return s.selectClients(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE "+where+" ORDER BY created_at DESC",
		args...)
}

// DeleteClient removes a client by ID. Deleting a missing id is a no-op.
func (s *SQLiteStore) DeleteClient(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting client %s: %w", id, err)
	}
	return nil
}

// BulkUpsertClients inserts or replaces each client by ID. Records are
// written one by one; the first failure stops the batch and is returned,
// leaving earlier records in place.
func (s *SQLiteStore) BulkUpsertClients(ctx context.Context, clients []model.Client) error {
	if len(clients) == 0 {
		return nil
	}

	stmt, err := s.db.PreparexContext(ctx, upsertClientSQL)
	if err != nil {
		return fmt.Errorf("preparing client upsert: %w", err)
	}
	defer stmt.Close()

	now := s.now()
	for i, c := range clients {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.Status == "" {
			c.Status = model.ClientStatusActive
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
		if err := validateClient(c); err != nil {
			return fmt.Errorf("upserting client %d (%s): %w", i, c.ID, err)
		}

		args, err := clientArgs(c)
		if err != nil {
			return fmt.Errorf("upserting client %d (%s): %w", i, c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("upserting client %d (%s): %w", i, c.ID, err)
		}
	}

	return nil
}

func (s *SQLiteStore) selectClients(ctx context.Context, query string, args ...interface{}) ([]model.Client, error) {
	var rows []clientRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying clients: %w", err)
	}

	clients := make([]model.Client, 0, len(rows))
	for _, r := range rows {
		c, err := r.toModel()
		if err != nil {
			return nil, fmt.Errorf("decoding client %s: %w", r.ID, err)
		}
		clients = append(clients, c)
	}
	return clients, nil
}
