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

const teamColumns = `id, name, email, role, active, created_at, updated_at`

type teamRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Role      string    `db:"role"`
	Active    int       `db:"active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r teamRow) toModel() model.TeamMember {
	return model.TeamMember{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Role:      r.Role,
		Active:    r.Active != 0,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func teamArgs(m model.TeamMember) []interface{} {
	return []interface{}{
		m.ID, m.Name, m.Email, m.Role, boolToInt(m.Active), m.CreatedAt.UTC(), m.UpdatedAt.UTC(),
	}
}

func validateTeamMember(m model.TeamMember) error {
	var errs apperr.ValidationErrors
	if strings.TrimSpace(m.Name) == "" {
		errs.Add("name", "must not be empty")
	}
	if m.Email != "" && !strings.Contains(m.Email, "@") {
		errs.Add("email", "must be an email address")
	}
	return errs.Err()
}

const upsertTeamSQL = `INSERT OR REPLACE INTO team_members (` + teamColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

// CreateTeamMember inserts a new team member.
func (s *SQLiteStore) CreateTeamMember(ctx context.Context, m model.TeamMember) (*model.TeamMember, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if err := validateTeamMember(m); err != nil {
		return nil, err
	}
	now := s.now()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `INSERT INTO team_members (`+teamColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, teamArgs(m)...)
	if err != nil {
		return nil, fmt.Errorf("creating team member: %w", err)
	}
	return &m, nil
}

// UpdateTeamMember merges patch over the stored member.
func (s *SQLiteStore) UpdateTeamMember(
	ctx context.Context,
	id string,
	patch model.TeamMemberPatch,
) (UpdateResult[model.TeamMember], error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return UpdateResult[model.TeamMember]{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var row teamRow
	err = tx.GetContext(ctx, &row, "SELECT "+teamColumns+" FROM team_members WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return UpdateResult[model.TeamMember]{}, nil
	}
	if err != nil {
		return UpdateResult[model.TeamMember]{}, fmt.Errorf("loading team member %s: %w", id, err)
	}

	updated := patch.Apply(row.toModel())
	if err := validateTeamMember(updated); err != nil {
		return UpdateResult[model.TeamMember]{}, err
	}
	updated.UpdatedAt = s.now()

	if _, err := tx.ExecContext(ctx, upsertTeamSQL, teamArgs(updated)...); err != nil {
		return UpdateResult[model.TeamMember]{}, fmt.Errorf("updating team member %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return UpdateResult[model.TeamMember]{}, fmt.Errorf("committing team member %s: %w", id, err)
	}
	return UpdateResult[model.TeamMember]{Entity: &updated, RowsAffected: 1}, nil
}

// GetTeamMember retrieves a member by ID, or nil when absent.
func (s *SQLiteStore) GetTeamMember(ctx context.Context, id string) (*model.TeamMember, error) {
	var row teamRow
	err := s.db.GetContext(ctx, &row, "SELECT "+teamColumns+" FROM team_members WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting team member %s: %w", id, err)
	}
	m := row.toModel()
	return &m, nil
}

// ListTeamMembers returns all members, newest first.
func (s *SQLiteStore) ListTeamMembers(ctx context.Context) ([]model.TeamMember, error) {
	return s.selectTeam(ctx, "SELECT "+teamColumns+" FROM team_members ORDER BY created_at DESC")
}

// SearchTeamMembers matches query against name, email and role.
func (s *SQLiteStore) SearchTeamMembers(ctx context.Context, query string) ([]model.TeamMember, error) {
	where, args := searchClause(query, "name", "email", "role")
	return s.selectTeam(ctx,
		"SELECT "+teamColumns+" FROM team_members WHERE "+where+" ORDER BY created_at DESC",
		args...)
}

// DeleteTeamMember removes a member by ID. Deleting a missing id is a no-op.
func (s *SQLiteStore) DeleteTeamMember(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM team_members WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting team member %s: %w", id, err)
	}
	return nil
}

// BulkUpsertTeamMembers inserts or replaces each member by ID, stopping at
// the first failure.
func (s *SQLiteStore) BulkUpsertTeamMembers(ctx context.Context, members []model.TeamMember) error {
	if len(members) == 0 {
		return nil
	}

	stmt, err := s.db.PreparexContext(ctx, upsertTeamSQL)
	if err != nil {
		return fmt.Errorf("preparing team member upsert: %w", err)
	}
	defer stmt.Close()

	now := s.now()
	for i, m := range members {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = now
		}
		if err := validateTeamMember(m); err != nil {
			return fmt.Errorf("upserting team member %d (%s): %w", i, m.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, teamArgs(m)...); err != nil {
			return fmt.Errorf("upserting team member %d (%s): %w", i, m.ID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) selectTeam(ctx context.Context, query string, args ...interface{}) ([]model.TeamMember, error) {
	var rows []teamRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying team members: %w", err)
	}
	members := make([]model.TeamMember, 0, len(rows))
	for _, r := range rows {
		members = append(members, r.toModel())
	}
	return members, nil
}
